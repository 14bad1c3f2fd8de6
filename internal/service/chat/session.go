package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amorhq/amor-core/internal/apperr"
	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/realtime"
	"github.com/google/uuid"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("chat session is closed")

// Session is one open chat. All mutating realtime events funnel through
// handleEvent on the subscription goroutine; public methods are safe to
// call from anywhere.
type Session struct {
	svc     *Service
	userID  uint64
	peerID  uint64
	matchID uint64

	mu          sync.Mutex
	closed      bool
	entries     []Entry
	otherTyping bool
	typingTimer *time.Timer
	sub         *realtime.Subscription
}

func newSession(svc *Service, userID, peerID, matchID uint64, entries []Entry) *Session {
	return &Session{
		svc:     svc,
		userID:  userID,
		peerID:  peerID,
		matchID: matchID,
		entries: entries,
	}
}

// MatchID returns the match this session is scoped to.
func (s *Session) MatchID() uint64 { return s.matchID }

func (s *Session) subscribe(ctx context.Context) error {
	sub, err := s.svc.appCtx.Bus.Subscribe(ctx, realtime.ChatChannel(s.matchID), s.handleEvent)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// Send persists a text message with an optimistic local echo.
//
// The pending entry is appended before the write; on failure it is
// removed again (rollback, transient error to the caller); on success
// the canonical row replaces it whether the realtime echo or this call's
// own response lands first.
func (s *Session) Send(ctx context.Context, content string) (string, error) {
	if s.isClosed() {
		return "", ErrSessionClosed
	}

	tempID := "temp-" + uuid.NewString()
	pending := Entry{
		Pending: true,
		TempID:  tempID,
		Message: db.Message{
			MatchID:   s.matchID,
			SenderID:  s.userID,
			Type:      db.MessageText,
			Content:   content,
			CreatedAt: time.Now().UTC(),
		},
	}
	s.mu.Lock()
	s.entries = append(s.entries, pending)
	s.mu.Unlock()

	msg := &db.Message{
		ID:       uuid.NewString(),
		MatchID:  s.matchID,
		SenderID: s.userID,
		Type:     db.MessageText,
		Content:  content,
	}
	if err := s.svc.messageRepo.Create(ctx, msg); err != nil {
		s.mu.Lock()
		s.entries = DropPending(s.entries, tempID)
		s.mu.Unlock()
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	s.apply(*msg)
	s.svc.publishInsert(ctx, *msg)
	return msg.ID, nil
}

// SendMedia uploads a binary payload and then inserts the message row
// referencing its URL. The ordering is deliberate: a failed upload must
// never leave a dangling message row. Payloads are validated before any
// network call.
func (s *Session) SendMedia(ctx context.Context, msgType string, contentType string, data []byte) (string, error) {
	if s.isClosed() {
		return "", ErrSessionClosed
	}
	if msgType != db.MessageImage && msgType != db.MessageVoice {
		return "", fmt.Errorf("unsupported media message type %q", msgType)
	}
	if len(data) == 0 {
		return "", apperr.Reject(apperr.RejectInvalidMedia, "empty %s payload", msgType)
	}
	if max := s.svc.appCtx.Cfg.Amor.MaxUploadBytes; int64(len(data)) > max {
		return "", apperr.Reject(apperr.RejectInvalidMedia, "%s payload exceeds %d bytes", msgType, max)
	}

	path := fmt.Sprintf("matches/%d/%s", s.matchID, uuid.NewString())
	url, err := s.svc.appCtx.Media.Upload(ctx, path, contentType, data)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}

	msg := &db.Message{
		ID:       uuid.NewString(),
		MatchID:  s.matchID,
		SenderID: s.userID,
		Type:     msgType,
		MediaURL: url,
	}
	if err := s.svc.messageRepo.Create(ctx, msg); err != nil {
		return "", fmt.Errorf("failed to send media message: %w", err)
	}

	s.apply(*msg)
	s.svc.publishInsert(ctx, *msg)
	return msg.ID, nil
}

// NotifyTyping broadcasts an ephemeral typing pulse. Best-effort: a lost
// pulse only under-fires the indicator on the other side.
func (s *Session) NotifyTyping(ctx context.Context) {
	if s.isClosed() {
		return
	}
	ev, err := realtime.NewEvent(realtime.KindTyping, TypingEvent{MatchID: s.matchID, UserID: s.userID})
	if err != nil {
		return
	}
	if err := s.svc.appCtx.Bus.Publish(ctx, realtime.ChatChannel(s.matchID), ev); err != nil {
		s.svc.appCtx.Logger.Debug("typing pulse dropped", "match", s.matchID, "err", err)
	}
}

// MarkRead stamps every unread peer message as read in one batch,
// patches the local view and broadcasts the receipt so the peer's
// double-check marks update without a reload.
func (s *Session) MarkRead(ctx context.Context) error {
	updated, err := s.svc.markReadAndPublish(ctx, s.matchID, s.userID)
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return nil
	}

	readAt := *updated[0].ReadAt
	ids := make([]string, 0, len(updated))
	for _, msg := range updated {
		ids = append(ids, msg.ID)
	}

	s.mu.Lock()
	s.entries = ApplyRead(s.entries, ids, readAt)
	s.mu.Unlock()
	return nil
}

// Entries returns a snapshot of the session's message list.
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// OtherTyping reports whether the peer sent a typing pulse within the
// expiry window.
func (s *Session) OtherTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otherTyping
}

// Close unsubscribes and clears local state. Idempotent, and safe to
// call on a session that never finished opening.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sub := s.sub
	s.sub = nil
	s.entries = nil
	s.otherTyping = false
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	s.mu.Unlock()

	_ = sub.Close()
	s.svc.release(s)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// apply merges a canonical row into the local list.
func (s *Session) apply(msg db.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.entries = Reconcile(s.entries, msg)
}

// handleEvent applies one realtime event. An event that raced a Close
// (delivered after teardown was requested) is discarded by the closed
// check; an event for a different match is a stale subscription echo and
// is discarded too.
func (s *Session) handleEvent(ev realtime.Event) {
	if s.isClosed() {
		return
	}

	switch ev.Kind {
	case realtime.KindMessageInsert:
		var msg db.Message
		if err := ev.Decode(&msg); err != nil {
			s.svc.appCtx.Logger.Warn("bad message event", "err", err)
			return
		}
		if msg.MatchID != s.matchID {
			return
		}
		s.apply(msg)
		if msg.SenderID == s.peerID {
			// Receiving while open counts as reading.
			go func() {
				if err := s.MarkRead(context.Background()); err != nil {
					s.svc.appCtx.Logger.Warn("failed to ack message", "match", s.matchID, "err", err)
				}
			}()
		}

	case realtime.KindMessageRead:
		var rd ReadEvent
		if err := ev.Decode(&rd); err != nil {
			s.svc.appCtx.Logger.Warn("bad read event", "err", err)
			return
		}
		if rd.MatchID != s.matchID || rd.ReaderID == s.userID {
			return
		}
		s.mu.Lock()
		s.entries = ApplyRead(s.entries, rd.MessageIDs, time.UnixMilli(rd.ReadAtMs).UTC())
		s.mu.Unlock()

	case realtime.KindTyping:
		var t TypingEvent
		if err := ev.Decode(&t); err != nil {
			return
		}
		if t.MatchID != s.matchID || t.UserID == s.userID {
			return
		}
		s.touchTyping()
	}
}

// touchTyping sets the indicator and (re)arms the expiry timer. Every
// new pulse from the peer pushes the deadline back; silence for the full
// window clears the indicator on its own.
func (s *Session) touchTyping() {
	expiry := s.svc.appCtx.Cfg.Amor.TypingExpiry

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.otherTyping = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(expiry, func() {
		s.mu.Lock()
		s.otherTyping = false
		s.mu.Unlock()
	})
}
