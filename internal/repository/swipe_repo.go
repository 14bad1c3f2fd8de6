package repository

import (
	"context"
	"time"

	"github.com/amorhq/amor-core/internal/db"
	"gorm.io/gorm"
)

// SwipeRepository provides data access for the append-only Swipe facts.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// Create appends a swipe fact. Duplicates for the same pair are allowed:
// the facts table is append-only and only match creation needs to be
// exactly-once.
func (r *SwipeRepository) Create(ctx context.Context, actorID, targetID uint64, action string) error {
	swipe := db.Swipe{
		ActorID:  actorID,
		TargetID: targetID,
		Action:   action,
	}
	return r.db.WithContext(ctx).Create(&swipe).Error
}

// ExcludedTargets returns every target id the actor must not see again:
//   - liked/superliked targets, permanently
//   - skipped targets whose skip is newer than skipWindow
//
// Example:
//
//	repo.ExcludedTargets(ctx, 1, 48*time.Hour) // queue exclusion set for user 1
func (r *SwipeRepository) ExcludedTargets(ctx context.Context, actorID uint64, skipWindow time.Duration) ([]uint64, error) {
	cutoff := time.Now().UTC().Add(-skipWindow)

	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Distinct("target_id").
		Where("actor_id = ?", actorID).
		Where("action IN ? OR (action = ? AND created_at > ?)",
			[]string{db.SwipeLike, db.SwipeSuperlike}, db.SwipeSkip, cutoff).
		Pluck("target_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// HasLiked reports whether actor has ever liked (or superliked) target.
// This is the reciprocal check the match state machine runs on every
// like: a prior like in the opposite direction makes the pair mutual.
func (r *SwipeRepository) HasLiked(ctx context.Context, actorID, targetID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("actor_id = ? AND target_id = ? AND action IN ?",
			actorID, targetID, []string{db.SwipeLike, db.SwipeSuperlike}).
		Count(&count).Error
	return count > 0, err
}
