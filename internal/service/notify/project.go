package notify

import (
	"sort"
	"time"

	"github.com/amorhq/amor-core/internal/db"
)

// Kind of a notification item.
const (
	KindMatch   = "match"
	KindMessage = "message"
)

// Item is one row of the unified notification feed. It is derived at
// read time, never persisted.
type Item struct {
	Kind      string    `json:"kind"`
	MatchID   uint64    `json:"match_id"`
	MessageID string    `json:"message_id,omitempty"`
	OtherID   uint64    `json:"other_id"`
	OtherName string    `json:"other_name,omitempty"`
	Preview   string    `json:"preview,omitempty"`
	At        time.Time `json:"at"`
	Read      bool      `json:"read"`
}

// Project merges match and message facts into a unified feed.
//
// Behavior:
//   - One item per match, one item per match's newest received message
//     (older messages of the same match never surface individually).
//   - Read state is derived from the watermark: read = at <= watermark.
//   - Sorted newest first; ties broken by match id for determinism.
//
// Pure: no I/O, fully unit-testable without a backend.
func Project(userID uint64, matches []db.Match, messages []db.Message, watermark time.Time) []Item {
	items := make([]Item, 0, len(matches)+len(messages))

	for _, m := range matches {
		other := m.User1ID
		if other == userID {
			other = m.User2ID
		}
		items = append(items, Item{
			Kind:    KindMatch,
			MatchID: m.ID,
			OtherID: other,
			At:      m.CreatedAt,
			Read:    !m.CreatedAt.After(watermark),
		})
	}

	// newest message per match only
	newest := make(map[uint64]db.Message, len(messages))
	for _, msg := range messages {
		cur, ok := newest[msg.MatchID]
		if !ok || msg.CreatedAt.After(cur.CreatedAt) {
			newest[msg.MatchID] = msg
		}
	}
	for _, msg := range newest {
		items = append(items, Item{
			Kind:      KindMessage,
			MatchID:   msg.MatchID,
			MessageID: msg.ID,
			OtherID:   msg.SenderID,
			Preview:   preview(msg),
			At:        msg.CreatedAt,
			Read:      !msg.CreatedAt.After(watermark),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].At.Equal(items[j].At) {
			return items[i].At.After(items[j].At)
		}
		return items[i].MatchID > items[j].MatchID
	})
	return items
}

func preview(msg db.Message) string {
	switch msg.Type {
	case db.MessageImage:
		return "sent a photo"
	case db.MessageVoice:
		return "sent a voice message"
	default:
		return msg.Content
	}
}
