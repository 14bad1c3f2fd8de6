package repository

import (
	"context"
	"errors"

	"github.com/amorhq/amor-core/internal/apperr"
	"github.com/amorhq/amor-core/internal/db"
	"gorm.io/gorm"
)

// MatchRepository provides data access for the Match model.
//
// The pair is always stored sorted (User1ID < User2ID) and carries a
// unique composite index, so the "both swipes race in at once" case
// collapses into a duplicate-key insert that callers treat as success.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// sortPair normalizes an unordered user pair into storage order.
func sortPair(a, b uint64) (uint64, uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

// Create materializes the match for the unordered pair {a, b}.
//
// Returns (match, true) when this call inserted the row, and
// (existing match, false) when another caller won the race. A duplicate
// key here is the expected outcome of two mutual likes racing, never an
// error.
func (r *MatchRepository) Create(ctx context.Context, a, b uint64, vibeScore int) (*db.Match, bool, error) {
	u1, u2 := sortPair(a, b)
	match := db.Match{User1ID: u1, User2ID: u2, VibeScore: vibeScore}

	err := r.db.WithContext(ctx).Create(&match).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, getErr := r.GetByPair(ctx, a, b)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &match, true, nil
}

// GetByPair returns the match for an unordered pair, or apperr.ErrNotFound.
func (r *MatchRepository) GetByPair(ctx context.Context, a, b uint64) (*db.Match, error) {
	u1, u2 := sortPair(a, b)

	var match db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		First(&match).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// GetByID returns one match or apperr.ErrNotFound.
func (r *MatchRepository) GetByID(ctx context.Context, id uint64) (*db.Match, error) {
	var match db.Match
	err := r.db.WithContext(ctx).First(&match, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// ListForUser returns the user's matches, newest first.
func (r *MatchRepository) ListForUser(ctx context.Context, userID uint64, limit int) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// Delete removes a match and cascades to its messages. Only reached via
// an explicit unmatch.
func (r *MatchRepository) Delete(ctx context.Context, matchID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("match_id = ?", matchID).Delete(&db.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Match{}, matchID).Error
	})
}
