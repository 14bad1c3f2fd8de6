// Package economy implements the collectible-character economy: paid
// chest openings, the cooldown-gated free chest, and character equipping.
package economy

import (
	"context"
	"fmt"
	"time"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/apperr"
	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/gacha"
	"github.com/amorhq/amor-core/internal/repository"
)

const (
	// ChestCost is the star price of one paid opening.
	ChestCost int64 = 100

	// xpPerDuplicate is the XP a duplicate acquisition converts into.
	xpPerDuplicate = 25
)

// OpenResult is the outcome of one chest opening.
type OpenResult struct {
	Character db.Character     `json:"character"`
	Owned     db.UserCharacter `json:"owned"`
	Duplicate bool             `json:"duplicate"`
}

// Service implements the character economy on top of the character and
// profile repositories plus the weighted roll engine.
type Service struct {
	appCtx      *app.AppContext
	charRepo    *repository.CharacterRepository
	profileRepo *repository.ProfileRepository
	roller      *gacha.Roller
}

// NewService creates an economy service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		charRepo:    repository.NewCharacterRepository(appCtx.DB),
		profileRepo: repository.NewProfileRepository(appCtx.DB),
		roller:      gacha.NewRoller(),
	}
}

// NewSeededService fixes the roll sequence; test fixtures use it.
func NewSeededService(appCtx *app.AppContext, seed int64) *Service {
	svc := NewService(appCtx)
	svc.roller = gacha.NewSeededRoller(seed)
	return svc
}

// OpenChest performs a paid opening: debit first (atomic balance guard),
// then roll over the active collection and grant the result. A balance
// that cannot cover the cost is a typed rejection, not an error.
func (s *Service) OpenChest(ctx context.Context, userID uint64) (*OpenResult, error) {
	ok, err := s.profileRepo.DebitStars(ctx, userID, ChestCost)
	if err != nil {
		return nil, fmt.Errorf("failed to debit stars: %w", err)
	}
	if !ok {
		return nil, apperr.Reject(apperr.RejectInsufficientStars, "chest costs %d stars", ChestCost)
	}

	result, err := s.rollAndGrant(ctx, userID)
	if err != nil {
		// The stars are already gone; hand them back rather than
		// leaving the user paid-but-empty-handed.
		if refundErr := s.profileRepo.AddStars(ctx, userID, ChestCost); refundErr != nil {
			s.appCtx.Logger.Error("chest refund failed", "user", userID, "err", refundErr)
		}
		return nil, err
	}
	return result, nil
}

// OpenFreeChest grants one character at most once per cooldown window.
// An early attempt is a typed rejection carrying the remaining wait; a
// successful opening resets the cooldown to now + window.
func (s *Service) OpenFreeChest(ctx context.Context, userID uint64) (*OpenResult, error) {
	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if profile.FreeChestAt.After(now) {
		remaining := profile.FreeChestAt.Sub(now).Round(time.Minute)
		return nil, apperr.Reject(apperr.RejectChestCooldown, "free chest available in %s", remaining)
	}

	result, err := s.rollAndGrant(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := now.Add(s.appCtx.Cfg.Amor.ChestCooldown)
	if err := s.profileRepo.SetFreeChestAt(ctx, userID, next); err != nil {
		return nil, fmt.Errorf("failed to reset chest cooldown: %w", err)
	}
	return result, nil
}

// rollAndGrant draws from the active collection's rarity table and
// records the outcome on the ownership row.
func (s *Service) rollAndGrant(ctx context.Context, userID uint64) (*OpenResult, error) {
	collection, err := s.charRepo.ActiveCollection(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("no active collection: %w", err)
	}
	characters, err := s.charRepo.Characters(ctx, collection.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]gacha.Entry, 0, len(characters))
	byID := make(map[uint64]db.Character, len(characters))
	for _, character := range characters {
		entries = append(entries, gacha.Entry{ID: character.ID, Weight: character.DropRate})
		byID[character.ID] = character
	}

	drawn, err := s.roller.Roll(entries)
	if err != nil {
		return nil, fmt.Errorf("roll failed: %w", err)
	}

	owned, err := s.charRepo.Grant(ctx, userID, drawn.ID, xpPerDuplicate)
	if err != nil {
		return nil, fmt.Errorf("failed to grant character: %w", err)
	}

	result := &OpenResult{
		Character: byID[drawn.ID],
		Owned:     *owned,
		Duplicate: owned.XP > 0,
	}
	s.appCtx.Logger.Info("chest opened",
		"user", userID, "character", result.Character.Name,
		"rarity", result.Character.Rarity, "duplicate", result.Duplicate)
	return result, nil
}

// Equip makes the character the user's single equipped one.
func (s *Service) Equip(ctx context.Context, userID, characterID uint64) error {
	return s.charRepo.Equip(ctx, userID, characterID)
}

// Collection lists the user's owned characters.
func (s *Service) Collection(ctx context.Context, userID uint64) ([]db.UserCharacter, error) {
	return s.charRepo.ListOwned(ctx, userID)
}
