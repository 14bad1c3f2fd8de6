package match_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amorhq/amor-core/internal/apperr"
	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/repository"
	"github.com/amorhq/amor-core/internal/service/match"
	"github.com/amorhq/amor-core/internal/service/profile"
	"github.com/amorhq/amor-core/internal/testutil"
)

// TestMutualLikeCreatesSingleMatch walks the happy path: alice likes bob
// (no match yet), bob likes alice back (match), and the table holds
// exactly one row keyed by the sorted pair.
func TestMutualLikeCreatesSingleMatch(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	svc := match.NewService(appCtx)

	alice := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, []string{"a", "b"})
	bob := testutil.CreateProfile(t, appCtx, "bob", profile.PoolAdults, 26, []string{"a", "c"})

	res, err := svc.Swipe(ctx, alice.ID, bob.ID, db.SwipeLike)
	require.NoError(t, err)
	assert.False(t, res.Matched)

	res, err = svc.Swipe(ctx, bob.ID, alice.ID, db.SwipeLike)
	require.NoError(t, err)
	require.True(t, res.Matched)
	require.NotNil(t, res.Match)
	assert.Equal(t, alice.ID, res.Match.User1ID)
	assert.Equal(t, bob.ID, res.Match.User2ID)
	assert.Equal(t, 50, res.Match.VibeScore)
	assert.Equal(t, alice.ID, res.Other.ID)

	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// TestRepeatedMutualLikeIsIdempotent re-swipes after the match exists:
// the existing row comes back, no second row appears.
func TestRepeatedMutualLikeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	svc := match.NewService(appCtx)

	alice := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)
	bob := testutil.CreateProfile(t, appCtx, "bob", profile.PoolAdults, 26, nil)

	_, err := svc.Swipe(ctx, alice.ID, bob.ID, db.SwipeLike)
	require.NoError(t, err)
	first, err := svc.Swipe(ctx, bob.ID, alice.ID, db.SwipeLike)
	require.NoError(t, err)
	require.True(t, first.Matched)

	// Both directions again.
	again, err := svc.Swipe(ctx, alice.ID, bob.ID, db.SwipeLike)
	require.NoError(t, err)
	require.True(t, again.Matched)
	assert.Equal(t, first.Match.ID, again.Match.ID)

	again, err = svc.Swipe(ctx, bob.ID, alice.ID, db.SwipeSuperlike)
	require.NoError(t, err)
	require.True(t, again.Matched)
	assert.Equal(t, first.Match.ID, again.Match.ID)

	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

// TestMatchCreationRace exercises the losing side of the creation race
// at the repository level: the second insert for the same pair, in
// either argument order, hits the unique index and resolves to the
// existing row with isNew=false.
func TestMatchCreationRace(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	repo := repository.NewMatchRepository(appCtx.DB)

	alice := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)
	bob := testutil.CreateProfile(t, appCtx, "bob", profile.PoolAdults, 26, nil)

	winner, isNew, err := repo.Create(ctx, alice.ID, bob.ID, 50)
	require.NoError(t, err)
	require.True(t, isNew)

	// Same pair, reversed order, as the other client would send it.
	loser, isNew, err := repo.Create(ctx, bob.ID, alice.ID, 50)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, winner.ID, loser.ID)

	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSkipNeverMatches(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	svc := match.NewService(appCtx)

	alice := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)
	bob := testutil.CreateProfile(t, appCtx, "bob", profile.PoolAdults, 26, nil)

	_, err := svc.Swipe(ctx, alice.ID, bob.ID, db.SwipeLike)
	require.NoError(t, err)

	res, err := svc.Swipe(ctx, bob.ID, alice.ID, db.SwipeSkip)
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestSelfSwipeRejected(t *testing.T) {
	appCtx, _ := testutil.NewAppContext(t)
	svc := match.NewService(appCtx)

	alice := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)

	_, err := svc.Swipe(context.Background(), alice.ID, alice.ID, db.SwipeLike)
	rej, ok := apperr.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, apperr.RejectSelfSwipe, rej.Code)
}

func TestUnknownActionRejected(t *testing.T) {
	appCtx, _ := testutil.NewAppContext(t)
	svc := match.NewService(appCtx)

	alice := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)
	bob := testutil.CreateProfile(t, appCtx, "bob", profile.PoolAdults, 26, nil)

	_, err := svc.Swipe(context.Background(), alice.ID, bob.ID, "wink")
	assert.Error(t, err)
}

// TestSwipeCounterAdvances checks the advisory daily counter rides along
// with each swipe result.
func TestSwipeCounterAdvances(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	svc := match.NewService(appCtx)

	alice := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)
	bob := testutil.CreateProfile(t, appCtx, "bob", profile.PoolAdults, 26, nil)
	carol := testutil.CreateProfile(t, appCtx, "carol", profile.PoolAdults, 27, nil)

	res, err := svc.Swipe(ctx, alice.ID, bob.ID, db.SwipeSkip)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.SwipesToday)

	res, err = svc.Swipe(ctx, alice.ID, carol.ID, db.SwipeLike)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.SwipesToday)

	today, err := svc.SwipesToday(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), today)
}

func TestListAndUnmatch(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	svc := match.NewService(appCtx)

	alice := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)
	bob := testutil.CreateProfile(t, appCtx, "bob", profile.PoolAdults, 26, nil)
	mallory := testutil.CreateProfile(t, appCtx, "mallory", profile.PoolAdults, 27, nil)

	_, err := svc.Swipe(ctx, alice.ID, bob.ID, db.SwipeLike)
	require.NoError(t, err)
	res, err := svc.Swipe(ctx, bob.ID, alice.ID, db.SwipeLike)
	require.NoError(t, err)
	require.True(t, res.Matched)

	list, err := svc.List(ctx, alice.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, bob.ID, list[0].Other.ID)

	// Outsiders cannot unmatch someone else's pair.
	err = svc.Unmatch(ctx, mallory.ID, res.Match.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	require.NoError(t, svc.Unmatch(ctx, bob.ID, res.Match.ID))

	list, err = svc.List(ctx, alice.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
