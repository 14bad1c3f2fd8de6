package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amorhq/amor-core/internal/apperr"
	"github.com/amorhq/amor-core/internal/db"
	"gorm.io/gorm"
)

// ProfileRepository provides data access for the Profile model.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// Create inserts a new profile. Called once at onboarding completion.
func (r *ProfileRepository) Create(ctx context.Context, profile *db.Profile) error {
	return r.db.WithContext(ctx).Create(profile).Error
}

// GetByID returns one profile or apperr.ErrNotFound.
func (r *ProfileRepository) GetByID(ctx context.Context, id uint64) (*db.Profile, error) {
	var profile db.Profile
	err := r.db.WithContext(ctx).First(&profile, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetBatch resolves a set of profile ids in one query. Missing ids are
// simply absent from the result; callers decide whether that matters.
func (r *ProfileRepository) GetBatch(ctx context.Context, ids []uint64) (map[uint64]db.Profile, error) {
	out := make(map[uint64]db.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var profiles []db.Profile
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

// Candidates returns onboarded profiles in the given age pool, excluding
// the listed ids, in insertion order. Insertion order is what the ranker
// relies on for stable tie-breaking.
func (r *ProfileRepository) Candidates(ctx context.Context, agePool string, excluded []uint64, limit int) ([]db.Profile, error) {
	query := r.db.WithContext(ctx).
		Where("age_pool = ? AND onboarded = ?", agePool, true).
		Order("id ASC").
		Limit(limit)
	if len(excluded) > 0 {
		query = query.Where("id NOT IN ?", excluded)
	}

	var profiles []db.Profile
	if err := query.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// UpdateInterests replaces the owner's interest tags.
func (r *ProfileRepository) UpdateInterests(ctx context.Context, userID uint64, interests db.StringList) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("id = ?", userID).
		Update("interests", interests).Error
}

// SetFreeChestAt records the next instant the free chest may be opened.
func (r *ProfileRepository) SetFreeChestAt(ctx context.Context, userID uint64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("id = ?", userID).
		Update("free_chest_at", at).Error
}

// DebitStars atomically subtracts amount from the user's balance.
// Returns false when the balance is too low; nothing is changed then.
func (r *ProfileRepository) DebitStars(ctx context.Context, userID uint64, amount int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("id = ? AND stars >= ?", userID, amount).
		Update("stars", gorm.Expr("stars - ?", amount))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// AddStars credits the user's balance.
func (r *ProfileRepository) AddStars(ctx context.Context, userID uint64, amount int64) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("id = ?", userID).
		Update("stars", gorm.Expr("stars + ?", amount)).Error
}

// Delete removes a profile. Explicit account deletion only.
func (r *ProfileRepository) Delete(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).Delete(&db.Profile{}, userID).Error
}
