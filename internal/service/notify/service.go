// Package notify derives the unified match/message notification feed
// from recent facts and a per-user "read up to here" watermark.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/realtime"
	"github.com/amorhq/amor-core/internal/repository"
)

// Service builds notification feeds. It may also hold one live
// subscription to the user's channel (at most one per client session).
type Service struct {
	appCtx      *app.AppContext
	matchRepo   *repository.MatchRepository
	messageRepo *repository.MessageRepository
	profileRepo *repository.ProfileRepository

	mu  sync.Mutex
	sub *realtime.Subscription
}

// NewService creates a notify service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		messageRepo: repository.NewMessageRepository(appCtx.DB),
		profileRepo: repository.NewProfileRepository(appCtx.DB),
	}
}

// Fetch builds the user's feed: recent matches, the newest received
// message per match, counterpart names resolved in one batch, read state
// stamped from the watermark. The watermark is read once per fetch, not
// per item.
func (s *Service) Fetch(ctx context.Context, userID uint64) ([]Item, error) {
	cfg := s.appCtx.Cfg.Amor

	matches, err := s.matchRepo.ListForUser(ctx, userID, cfg.NotifyMatches)
	if err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.RecentReceived(ctx, userID, cfg.NotifyMessages)
	if err != nil {
		return nil, err
	}
	watermark, err := s.appCtx.Cache.GetWatermark(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := Project(userID, matches, messages, watermark)

	ids := make([]uint64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.OtherID)
	}
	profiles, err := s.profileRepo.GetBatch(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if p, ok := profiles[items[i].OtherID]; ok {
			items[i].OtherName = p.Name
		}
	}
	return items, nil
}

// MarkAllRead advances the watermark to now. Everything currently in the
// feed flips to read; the watermark is the only aggregator state that
// survives a reload.
func (s *Service) MarkAllRead(ctx context.Context, userID uint64) (time.Time, error) {
	now := time.Now().UTC()
	if err := s.appCtx.Cache.SetWatermark(ctx, userID, now); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// Subscribe starts delivering the user's realtime match events to
// handler. Opening a new subscription tears down the previous one, so a
// client session never double-receives.
func (s *Service) Subscribe(ctx context.Context, userID uint64, handler realtime.Handler) error {
	s.mu.Lock()
	prior := s.sub
	s.sub = nil
	s.mu.Unlock()
	_ = prior.Close()

	sub, err := s.appCtx.Bus.Subscribe(ctx, realtime.UserChannel(userID), handler)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// Unsubscribe tears down the live subscription, if any.
func (s *Service) Unsubscribe() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	_ = sub.Close()
}
