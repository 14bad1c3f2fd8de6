// Package discover builds the swipe queue: a deduplicated,
// exclusion-filtered list of candidate profiles ranked by vibe score.
package discover

import (
	"context"
	"math"
	"sort"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/repository"
)

// Candidate is one entry of the swipe queue.
type Candidate struct {
	Profile   db.Profile `json:"profile"`
	VibeScore int        `json:"vibe_score"`
}

// Service builds candidate queues on top of the profile and swipe
// repositories.
type Service struct {
	appCtx      *app.AppContext
	profileRepo *repository.ProfileRepository
	swipeRepo   *repository.SwipeRepository
}

// NewService creates a discover service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		profileRepo: repository.NewProfileRepository(appCtx.DB),
		swipeRepo:   repository.NewSwipeRepository(appCtx.DB),
	}
}

// VibeScore is the interest-overlap percentage between two tag sets:
// round(|a ∩ b| / max(|a|, |b|) * 100). Either side being empty scores a
// neutral 50, so there is no divide-by-zero and no unfairly zeroed new users.
func VibeScore(mine, theirs []string) int {
	if len(mine) == 0 || len(theirs) == 0 {
		return 50
	}

	tags := make(map[string]struct{}, len(mine))
	for _, tag := range mine {
		tags[tag] = struct{}{}
	}
	overlap := 0
	for _, tag := range theirs {
		if _, ok := tags[tag]; ok {
			overlap++
		}
	}

	larger := len(mine)
	if len(theirs) > larger {
		larger = len(theirs)
	}
	return int(math.Round(float64(overlap) / float64(larger) * 100))
}

// BuildQueue returns the ranked candidate queue for the user.
//
// Behavior:
//   - Exclusion set: self, every ever-liked/superliked target, and every
//     target skipped inside the configured window.
//   - Pool: onboarded profiles in the user's age-pool category.
//   - Sorted descending by vibe score; ties keep the original fetch order.
//   - Any fetch failure yields an empty queue. The caller treats "no
//     candidates" and "fetch failed" identically at this layer, so
//     failures are logged here and never propagated.
func (s *Service) BuildQueue(ctx context.Context, userID uint64) []Candidate {
	me, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		s.appCtx.Logger.Error("queue build failed: own profile", "user", userID, "err", err)
		return nil
	}

	excluded, err := s.swipeRepo.ExcludedTargets(ctx, userID, s.appCtx.Cfg.Amor.SkipWindow)
	if err != nil {
		s.appCtx.Logger.Error("queue build failed: exclusion set", "user", userID, "err", err)
		return nil
	}
	excluded = append(excluded, userID)

	profiles, err := s.profileRepo.Candidates(ctx, me.AgePool, excluded, s.appCtx.Cfg.Amor.QueueLimit)
	if err != nil {
		s.appCtx.Logger.Error("queue build failed: candidates", "user", userID, "err", err)
		return nil
	}

	queue := make([]Candidate, 0, len(profiles))
	for _, profile := range profiles {
		queue = append(queue, Candidate{
			Profile:   profile,
			VibeScore: VibeScore(me.Interests, profile.Interests),
		})
	}

	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].VibeScore > queue[j].VibeScore
	})

	s.appCtx.Logger.Debug("queue built", "user", userID, "candidates", len(queue))
	return queue
}
