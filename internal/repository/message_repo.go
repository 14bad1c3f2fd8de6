package repository

import (
	"context"
	"time"

	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/utils/pagination"
	"gorm.io/gorm"
)

// MessageRepository provides data access for chat messages.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// Create inserts a message row. The caller assigns the id so the client
// temp-entry can be reconciled against the echoed canonical row.
func (r *MessageRepository) Create(ctx context.Context, message *db.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// History returns a page of the match's messages in ascending time order.
//
// Behavior:
//   - Without a token, returns the newest `limit` messages (still ascending).
//   - With a token, returns the page of older messages before the cursor.
//   - The next token points further into the past; nil means history is
//     exhausted.
func (r *MessageRepository) History(
	ctx context.Context,
	matchID uint64,
	paginationToken *string,
	limit int,
) ([]db.Message, *string, error) {
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at DESC, id DESC").
		Limit(limit + 1)

	if cursor.MessageID != "" && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			ts, ts, cursor.MessageID,
		)
	}

	var messages []db.Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(messages) > limit {
		last := messages[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			MessageID:   last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		messages = messages[:limit]
	}

	// flip newest-first into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nextToken, nil
}

// MarkRead stamps read_at on every unread message in the match that the
// reader did not send, in one batch, and returns the updated rows so the
// sender's local view can be patched without a reload.
func (r *MessageRepository) MarkRead(ctx context.Context, matchID, readerID uint64) ([]db.Message, error) {
	now := time.Now().UTC()

	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ? AND sender_id <> ? AND read_at IS NULL", matchID, readerID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	err = r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("id IN ?", ids).
		Update("read_at", now).Error
	if err != nil {
		return nil, err
	}

	var updated []db.Message
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&updated).Error; err != nil {
		return nil, err
	}
	return updated, nil
}

// RecentReceived returns the newest messages across all of the user's
// matches that the user did not send. Feeds the notification aggregator.
func (r *MessageRepository) RecentReceived(ctx context.Context, userID uint64, limit int) ([]db.Message, error) {
	var messages []db.Message
	err := r.db.WithContext(ctx).
		Table("messages m").
		Joins("JOIN matches mt ON mt.id = m.match_id").
		Where("(mt.user1_id = ? OR mt.user2_id = ?) AND m.sender_id <> ?", userID, userID, userID).
		Order("m.created_at DESC, m.id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
