// Package match records swipe facts and materializes a Match exactly
// once per unordered user pair when both directions of a like exist.
package match

import (
	"context"
	"fmt"
	"time"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/apperr"
	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/realtime"
	"github.com/amorhq/amor-core/internal/repository"
	"github.com/amorhq/amor-core/internal/service/discover"
)

// Result is the outcome of one swipe.
type Result struct {
	Matched     bool        `json:"matched"`
	Match       *db.Match   `json:"match,omitempty"`
	Other       *db.Profile `json:"other,omitempty"`
	SwipesToday int64       `json:"swipes_today"`
}

// Event is the payload published on both users' channels when a match
// materializes. Clients show the celebratory screen off it.
type Event struct {
	MatchID   uint64    `json:"match_id"`
	User1ID   uint64    `json:"user1_id"`
	User2ID   uint64    `json:"user2_id"`
	VibeScore int       `json:"vibe_score"`
	CreatedAt time.Time `json:"created_at"`
}

// WithProfile pairs a match with the counterpart's profile for list views.
type WithProfile struct {
	Match db.Match   `json:"match"`
	Other db.Profile `json:"other"`
}

// Service implements the swipe/match state machine.
type Service struct {
	appCtx      *app.AppContext
	swipeRepo   *repository.SwipeRepository
	matchRepo   *repository.MatchRepository
	profileRepo *repository.ProfileRepository
}

// NewService creates a match service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		swipeRepo:   repository.NewSwipeRepository(appCtx.DB),
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		profileRepo: repository.NewProfileRepository(appCtx.DB),
	}
}

// Swipe records an action by actor on target and runs match detection.
//
// Sequence:
//  1. Append the swipe fact. Duplicates are fine; only match creation is
//     exactly-once.
//  2. Bump the advisory daily counter (display-only, never a quota).
//  3. For like/superlike, check the reciprocal fact. If the target liked
//     the actor first, create the match keyed by the sorted pair; losing
//     the creation race to the other client is treated as success.
//  4. On a new match, publish a match.new event to both users' channels.
func (s *Service) Swipe(ctx context.Context, actorID, targetID uint64, action string) (*Result, error) {
	if actorID == targetID {
		return nil, apperr.Reject(apperr.RejectSelfSwipe, "cannot swipe on yourself")
	}
	switch action {
	case db.SwipeLike, db.SwipeSkip, db.SwipeSuperlike:
	default:
		return nil, fmt.Errorf("unknown swipe action %q", action)
	}

	if err := s.swipeRepo.Create(ctx, actorID, targetID, action); err != nil {
		return nil, fmt.Errorf("failed to record swipe: %w", err)
	}

	// Advisory counter; a cache failure must not fail the swipe.
	count, err := s.appCtx.Cache.IncrSwipeCount(ctx, actorID)
	if err != nil {
		s.appCtx.Logger.Warn("swipe counter unavailable", "user", actorID, "err", err)
	}

	result := &Result{SwipesToday: count}
	if action == db.SwipeSkip {
		return result, nil
	}

	mutual, err := s.swipeRepo.HasLiked(ctx, targetID, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to check reciprocal like: %w", err)
	}
	if !mutual {
		return result, nil
	}

	me, err := s.profileRepo.GetByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	other, err := s.profileRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	vibe := discover.VibeScore(me.Interests, other.Interests)
	created, isNew, err := s.matchRepo.Create(ctx, actorID, targetID, vibe)
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	result.Matched = true
	result.Match = created
	result.Other = other

	if isNew {
		s.announce(ctx, created)
	}
	return result, nil
}

// announce publishes the match to both participants. Best-effort: the
// match row already exists, a missed event only delays the UI.
func (s *Service) announce(ctx context.Context, m *db.Match) {
	ev, err := realtime.NewEvent(realtime.KindMatchNew, Event{
		MatchID:   m.ID,
		User1ID:   m.User1ID,
		User2ID:   m.User2ID,
		VibeScore: m.VibeScore,
		CreatedAt: m.CreatedAt,
	})
	if err != nil {
		s.appCtx.Logger.Error("failed to build match event", "match", m.ID, "err", err)
		return
	}
	for _, userID := range []uint64{m.User1ID, m.User2ID} {
		if err := s.appCtx.Bus.Publish(ctx, realtime.UserChannel(userID), ev); err != nil {
			s.appCtx.Logger.Warn("failed to announce match", "match", m.ID, "user", userID, "err", err)
		}
	}
}

// List returns the user's matches with the counterpart profile resolved
// in one batch.
func (s *Service) List(ctx context.Context, userID uint64, limit int) ([]WithProfile, error) {
	matches, err := s.matchRepo.ListForUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	otherIDs := make([]uint64, 0, len(matches))
	for _, m := range matches {
		otherIDs = append(otherIDs, counterpart(m, userID))
	}
	profiles, err := s.profileRepo.GetBatch(ctx, otherIDs)
	if err != nil {
		return nil, err
	}

	out := make([]WithProfile, 0, len(matches))
	for _, m := range matches {
		other, ok := profiles[counterpart(m, userID)]
		if !ok {
			continue // counterpart deleted their account
		}
		out = append(out, WithProfile{Match: m, Other: other})
	}
	return out, nil
}

// Unmatch deletes the match and its messages. Only a participant may do it.
func (s *Service) Unmatch(ctx context.Context, userID, matchID uint64) error {
	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	if m.User1ID != userID && m.User2ID != userID {
		return apperr.ErrForbidden
	}
	return s.matchRepo.Delete(ctx, matchID)
}

// SwipesToday reads the advisory daily counter.
func (s *Service) SwipesToday(ctx context.Context, userID uint64) (int64, error) {
	return s.appCtx.Cache.GetSwipeCount(ctx, userID)
}

// counterpart returns the other side of a match relative to userID.
func counterpart(m db.Match, userID uint64) uint64 {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}
