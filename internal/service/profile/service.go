// Package profile covers onboarding completion and profile upkeep.
package profile

import (
	"context"
	"fmt"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// AgePool buckets. Profiles and rooms are partitioned by these; the
// pools never mix in the candidate queue.
const (
	PoolTeens  = "teens"
	PoolAdults = "adults"
)

// PoolForAge maps a raw age onto its pool.
func PoolForAge(age int) string {
	if age < 18 {
		return PoolTeens
	}
	return PoolAdults
}

// Service implements onboarding and profile mutation.
type Service struct {
	appCtx      *app.AppContext
	profileRepo *repository.ProfileRepository
}

// NewService creates a profile service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		profileRepo: repository.NewProfileRepository(appCtx.DB),
	}
}

// CompleteOnboarding creates the profile. This is the single point a
// Profile row comes into existence.
func (s *Service) CompleteOnboarding(ctx context.Context, handle, name, password string, age int, interests []string) (*db.Profile, error) {
	if handle == "" || name == "" {
		return nil, fmt.Errorf("handle and name are required")
	}
	if age < 13 {
		return nil, fmt.Errorf("minimum age is 13")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &db.Profile{
		Handle:       handle,
		Name:         name,
		PasswordHash: string(hash),
		Age:          age,
		AgePool:      PoolForAge(age),
		Interests:    db.StringList(interests),
		Onboarded:    true,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	s.appCtx.Logger.Info("onboarding completed", "user", profile.ID, "pool", profile.AgePool)
	return profile, nil
}

// Get returns one profile.
func (s *Service) Get(ctx context.Context, userID uint64) (*db.Profile, error) {
	return s.profileRepo.GetByID(ctx, userID)
}

// UpdateInterests replaces the user's interest tags.
func (s *Service) UpdateInterests(ctx context.Context, userID uint64, interests []string) error {
	return s.profileRepo.UpdateInterests(ctx, userID, db.StringList(interests))
}

// DeleteAccount removes the profile. The explicit deletion path only.
func (s *Service) DeleteAccount(ctx context.Context, userID uint64) error {
	return s.profileRepo.Delete(ctx, userID)
}
