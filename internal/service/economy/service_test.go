package economy_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/apperr"
	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/service/economy"
	"github.com/amorhq/amor-core/internal/service/profile"
	"github.com/amorhq/amor-core/internal/testutil"
)

// seedCollection inserts a live collection with a single guaranteed drop
// so openings are deterministic without touching the roller.
func seedCollection(t *testing.T, appCtx *app.AppContext) *db.Character {
	t.Helper()
	now := time.Now().UTC()
	collection := db.Collection{
		Name:     "Starter",
		Active:   true,
		StartsAt: now.Add(-time.Hour),
		EndsAt:   now.Add(24 * time.Hour),
	}
	require.NoError(t, appCtx.DB.Create(&collection).Error)

	character := db.Character{
		CollectionID: collection.ID,
		Name:         "Pebble",
		Rarity:       db.RarityCommon,
		DropRate:     1.0,
	}
	require.NoError(t, appCtx.DB.Create(&character).Error)
	return &character
}

func stars(t *testing.T, appCtx *app.AppContext, userID uint64) int64 {
	t.Helper()
	var p db.Profile
	require.NoError(t, appCtx.DB.First(&p, userID).Error)
	return p.Stars
}

func TestOpenChestDebitsAndGrants(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	character := seedCollection(t, appCtx)
	user := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)

	svc := economy.NewSeededService(appCtx, 1)
	res, err := svc.OpenChest(ctx, user.ID)
	require.NoError(t, err)

	assert.Equal(t, character.ID, res.Character.ID)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 1, res.Owned.Level)
	assert.Zero(t, res.Owned.XP)
	assert.Equal(t, int64(400), stars(t, appCtx, user.ID))
}

// TestOpenChestDuplicateConvertsToXP: a second pull of an owned
// character adds XP on the existing row instead of a new one.
func TestOpenChestDuplicateConvertsToXP(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	seedCollection(t, appCtx)
	user := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)

	svc := economy.NewSeededService(appCtx, 1)
	_, err := svc.OpenChest(ctx, user.ID)
	require.NoError(t, err)

	res, err := svc.OpenChest(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, 25, res.Owned.XP)
	assert.Equal(t, 1, res.Owned.Level)

	owned, err := svc.Collection(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestOpenChestInsufficientStars(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	seedCollection(t, appCtx)
	user := testutil.CreateProfile(t, appCtx, "broke", profile.PoolAdults, 25, nil)
	require.NoError(t, appCtx.DB.Model(&db.Profile{}).Where("id = ?", user.ID).Update("stars", 99).Error)

	svc := economy.NewService(appCtx)
	_, err := svc.OpenChest(ctx, user.ID)
	rej, ok := apperr.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, apperr.RejectInsufficientStars, rej.Code)

	// Nothing was debited.
	assert.Equal(t, int64(99), stars(t, appCtx, user.ID))
}

// TestOpenChestRefundsOnGrantFailure: with no live collection the roll
// cannot happen, and the debit is handed back.
func TestOpenChestRefundsOnGrantFailure(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	user := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)

	svc := economy.NewService(appCtx)
	_, err := svc.OpenChest(ctx, user.ID)
	require.Error(t, err)
	assert.Equal(t, int64(500), stars(t, appCtx, user.ID))
}

// TestFreeChestCooldown is the free-chest lifecycle: first opening
// succeeds and arms the cooldown, the immediate retry is rejected with
// the remaining wait, and a lapsed cooldown admits the next opening.
func TestFreeChestCooldown(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	seedCollection(t, appCtx)
	user := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)

	svc := economy.NewSeededService(appCtx, 1)

	res, err := svc.OpenFreeChest(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	// Free means free.
	assert.Equal(t, int64(500), stars(t, appCtx, user.ID))

	_, err = svc.OpenFreeChest(ctx, user.ID)
	rej, ok := apperr.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, apperr.RejectChestCooldown, rej.Code)
	assert.NotEmpty(t, rej.Reason)

	// Rewind the cooldown as if 72h passed.
	require.NoError(t, appCtx.DB.Model(&db.Profile{}).
		Where("id = ?", user.ID).
		Update("free_chest_at", time.Now().UTC().Add(-time.Minute)).Error)

	res, err = svc.OpenFreeChest(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
}

func TestEquipSingleSlot(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	first := seedCollection(t, appCtx)

	second := db.Character{
		CollectionID: first.CollectionID,
		Name:         "Luna",
		Rarity:       db.RarityRare,
		DropRate:     0.0,
	}
	require.NoError(t, appCtx.DB.Create(&second).Error)

	user := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)
	svc := economy.NewService(appCtx)

	// Own both directly.
	owned := []db.UserCharacter{
		{UserID: user.ID, CharacterID: first.ID, Level: 1},
		{UserID: user.ID, CharacterID: second.ID, Level: 1},
	}
	require.NoError(t, appCtx.DB.Create(&owned).Error)

	require.NoError(t, svc.Equip(ctx, user.ID, first.ID))
	require.NoError(t, svc.Equip(ctx, user.ID, second.ID))

	var equipped []db.UserCharacter
	require.NoError(t, appCtx.DB.Where("user_id = ? AND equipped = ?", user.ID, true).Find(&equipped).Error)
	require.Len(t, equipped, 1)
	assert.Equal(t, second.ID, equipped[0].CharacterID)

	var p db.Profile
	require.NoError(t, appCtx.DB.First(&p, user.ID).Error)
	require.NotNil(t, p.EquippedCharacterID)
	assert.Equal(t, second.ID, *p.EquippedCharacterID)
}

// TestEquipUnownedCharacter is refused outright.
func TestEquipUnownedCharacter(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	character := seedCollection(t, appCtx)
	user := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)

	svc := economy.NewService(appCtx)
	err := svc.Equip(ctx, user.ID, character.ID)
	assert.Error(t, err)
}
