// Package chat maintains an open chat session: message history with
// optimistic local echo, realtime reconciliation, typing indicators and
// read receipts.
package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/apperr"
	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/realtime"
	"github.com/amorhq/amor-core/internal/repository"
	"github.com/google/uuid"
)

// historyPageSize bounds the initial load of an opened chat.
const historyPageSize = 200

// TypingEvent is the ephemeral typing pulse payload.
type TypingEvent struct {
	MatchID uint64 `json:"match_id"`
	UserID  uint64 `json:"user_id"`
}

// ReadEvent carries a batch read receipt: the ids stamped and when.
type ReadEvent struct {
	MatchID    uint64   `json:"match_id"`
	ReaderID   uint64   `json:"reader_id"`
	MessageIDs []string `json:"message_ids"`
	ReadAtMs   int64    `json:"read_at_ms"`
}

// Service owns at most one open chat session per client session.
// Opening a new chat tears the previous one down first, so duplicate
// event delivery and leaked subscriptions cannot happen.
type Service struct {
	appCtx      *app.AppContext
	messageRepo *repository.MessageRepository
	matchRepo   *repository.MatchRepository

	mu     sync.Mutex
	active *Session
}

// NewService creates a chat service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		messageRepo: repository.NewMessageRepository(appCtx.DB),
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
	}
}

// Open starts a session on the match for the given participant.
//
// Behavior:
//   - Verifies the user is a participant (apperr.ErrForbidden otherwise).
//   - Tears down any previously open session.
//   - Loads history ascending, subscribes to the match channel, and marks
//     the peer's unread messages as read in one batch.
func (s *Service) Open(ctx context.Context, userID, matchID uint64) (*Session, error) {
	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	var peerID uint64
	switch userID {
	case m.User1ID:
		peerID = m.User2ID
	case m.User2ID:
		peerID = m.User1ID
	default:
		return nil, apperr.ErrForbidden
	}

	s.mu.Lock()
	if s.active != nil {
		s.active.Close()
		s.active = nil
	}
	s.mu.Unlock()

	history, _, err := s.messageRepo.History(ctx, matchID, nil, historyPageSize)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(history))
	for _, msg := range history {
		entries = append(entries, Entry{Message: msg})
	}

	sess := newSession(s, userID, peerID, matchID, entries)
	if err := sess.subscribe(ctx); err != nil {
		return nil, err
	}

	// Read receipts for everything the peer sent before we opened.
	if err := sess.MarkRead(ctx); err != nil {
		s.appCtx.Logger.Warn("failed to mark history read", "match", matchID, "err", err)
	}

	s.mu.Lock()
	s.active = sess
	s.mu.Unlock()

	s.appCtx.Logger.Debug("chat opened", "match", matchID, "user", userID, "history", len(entries))
	return sess, nil
}

// Active returns the currently open session, if any.
func (s *Service) Active() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Close tears down the active session. Safe to call when nothing is open.
func (s *Service) Close() {
	s.mu.Lock()
	sess := s.active
	s.active = nil
	s.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}

// release drops the manager's pointer when a session closes itself.
func (s *Service) release(sess *Session) {
	s.mu.Lock()
	if s.active == sess {
		s.active = nil
	}
	s.mu.Unlock()
}

// History exposes paged chat history outside an open session (profile
// screens, previews). Participants only.
func (s *Service) History(ctx context.Context, userID, matchID uint64, token *string, limit int) ([]db.Message, *string, error) {
	if err := s.requireParticipant(ctx, userID, matchID); err != nil {
		return nil, nil, err
	}
	return s.messageRepo.History(ctx, matchID, token, limit)
}

// SendDirect persists and fans out a text message without an open
// session. Push-style senders (the HTTP surface, bots) use it; the
// recipient's session picks the row up off the realtime echo.
func (s *Service) SendDirect(ctx context.Context, userID, matchID uint64, content string) (*db.Message, error) {
	if err := s.requireParticipant(ctx, userID, matchID); err != nil {
		return nil, err
	}

	msg := &db.Message{
		ID:       uuid.NewString(),
		MatchID:  matchID,
		SenderID: userID,
		Type:     db.MessageText,
		Content:  content,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	s.publishInsert(ctx, *msg)
	return msg, nil
}

// MarkRead batch-stamps the match's unread peer messages for the reader
// and broadcasts the receipt. Participants only.
func (s *Service) MarkRead(ctx context.Context, userID, matchID uint64) ([]db.Message, error) {
	if err := s.requireParticipant(ctx, userID, matchID); err != nil {
		return nil, err
	}
	return s.markReadAndPublish(ctx, matchID, userID)
}

// markReadAndPublish is the shared read-receipt path for sessions and
// direct callers: one batch DB update, one broadcast.
func (s *Service) markReadAndPublish(ctx context.Context, matchID, readerID uint64) ([]db.Message, error) {
	updated, err := s.messageRepo.MarkRead(ctx, matchID, readerID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}
	if len(updated) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(updated))
	for _, msg := range updated {
		ids = append(ids, msg.ID)
	}
	ev, err := realtime.NewEvent(realtime.KindMessageRead, ReadEvent{
		MatchID:    matchID,
		ReaderID:   readerID,
		MessageIDs: ids,
		ReadAtMs:   updated[0].ReadAt.UnixMilli(),
	})
	if err != nil {
		return updated, err
	}
	if err := s.appCtx.Bus.Publish(ctx, realtime.ChatChannel(matchID), ev); err != nil {
		s.appCtx.Logger.Warn("failed to broadcast read receipt", "match", matchID, "err", err)
	}
	return updated, nil
}

func (s *Service) publishInsert(ctx context.Context, msg db.Message) {
	ev, err := realtime.NewEvent(realtime.KindMessageInsert, msg)
	if err != nil {
		s.appCtx.Logger.Error("failed to build message event", "match", msg.MatchID, "err", err)
		return
	}
	if err := s.appCtx.Bus.Publish(ctx, realtime.ChatChannel(msg.MatchID), ev); err != nil {
		s.appCtx.Logger.Warn("failed to publish message", "match", msg.MatchID, "err", err)
	}
}

func (s *Service) requireParticipant(ctx context.Context, userID, matchID uint64) error {
	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if m.User1ID != userID && m.User2ID != userID {
		return apperr.ErrForbidden
	}
	return nil
}
