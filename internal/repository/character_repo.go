package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amorhq/amor-core/internal/apperr"
	"github.com/amorhq/amor-core/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CharacterRepository provides data access for the collectible-character
// economy: collections, characters and ownership rows.
type CharacterRepository struct {
	db *gorm.DB
}

// NewCharacterRepository creates a new repository bound to the given DB connection.
func NewCharacterRepository(database *gorm.DB) *CharacterRepository {
	return &CharacterRepository{db: database}
}

// ActiveCollection returns the collection currently in its time window,
// or apperr.ErrNotFound when no collection is live.
func (r *CharacterRepository) ActiveCollection(ctx context.Context, now time.Time) (*db.Collection, error) {
	var collection db.Collection
	err := r.db.WithContext(ctx).
		Where("active = ? AND starts_at <= ? AND ends_at > ?", true, now, now).
		Order("starts_at DESC").
		First(&collection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

// Characters lists the collection's roll table in insertion order. The
// roll engine walks this list accumulating drop rates, so the order must
// be deterministic.
func (r *CharacterRepository) Characters(ctx context.Context, collectionID uint64) ([]db.Character, error) {
	var characters []db.Character
	err := r.db.WithContext(ctx).
		Where("collection_id = ?", collectionID).
		Order("id ASC").
		Find(&characters).Error
	if err != nil {
		return nil, err
	}
	return characters, nil
}

// GetCharacter returns one character or apperr.ErrNotFound.
func (r *CharacterRepository) GetCharacter(ctx context.Context, id uint64) (*db.Character, error) {
	var character db.Character
	err := r.db.WithContext(ctx).First(&character, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &character, nil
}

// Grant gives the user one copy of the character.
//
// Behavior:
//   - First acquisition inserts the ownership row at level 1.
//   - A duplicate bumps XP by xpPerDuplicate and recomputes the level,
//     relying on the composite PK for the upsert.
//
// Returns the ownership row after the write.
func (r *CharacterRepository) Grant(ctx context.Context, userID, characterID uint64, xpPerDuplicate int) (*db.UserCharacter, error) {
	owned := db.UserCharacter{
		UserID:      userID,
		CharacterID: characterID,
		Level:       1,
		XP:          0,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "character_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"xp":    gorm.Expr("xp + ?", xpPerDuplicate),
				"level": gorm.Expr("(xp + ?) / 100 + 1", xpPerDuplicate),
			}),
		}).
		Create(&owned).Error
	if err != nil {
		return nil, err
	}

	var result db.UserCharacter
	err = r.db.WithContext(ctx).
		Where("user_id = ? AND character_id = ?", userID, characterID).
		First(&result).Error
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListOwned returns the user's collection, newest acquisitions first.
func (r *CharacterRepository) ListOwned(ctx context.Context, userID uint64) ([]db.UserCharacter, error) {
	var owned []db.UserCharacter
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&owned).Error
	if err != nil {
		return nil, err
	}
	return owned, nil
}

// Equip makes characterID the user's single equipped character: every
// other ownership row is unequipped first, inside one transaction.
// Returns apperr.ErrNotFound when the user does not own the character.
func (r *CharacterRepository) Equip(ctx context.Context, userID, characterID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owned db.UserCharacter
		err := tx.Where("user_id = ? AND character_id = ?", userID, characterID).First(&owned).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&db.UserCharacter{}).
			Where("user_id = ? AND equipped = ?", userID, true).
			Update("equipped", false).Error; err != nil {
			return err
		}

		if err := tx.Model(&db.UserCharacter{}).
			Where("user_id = ? AND character_id = ?", userID, characterID).
			Update("equipped", true).Error; err != nil {
			return err
		}

		return tx.Model(&db.Profile{}).
			Where("id = ?", userID).
			Update("equipped_character_id", characterID).Error
	})
}
