package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/realtime"
	"github.com/amorhq/amor-core/internal/service/notify"
	"github.com/amorhq/amor-core/internal/service/profile"
	"github.com/amorhq/amor-core/internal/testutil"
)

func TestFetchAndMarkAllRead(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	svc := notify.NewService(appCtx)

	alice := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)
	bob := testutil.CreateProfile(t, appCtx, "bob", profile.PoolAdults, 26, nil)

	m := db.Match{User1ID: alice.ID, User2ID: bob.ID, VibeScore: 80}
	require.NoError(t, appCtx.DB.Create(&m).Error)
	msg := db.Message{
		ID: "m1", MatchID: m.ID, SenderID: bob.ID,
		Type: db.MessageText, Content: "hello",
	}
	require.NoError(t, appCtx.DB.Create(&msg).Error)

	items, err := svc.Fetch(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.False(t, item.Read)
		assert.Equal(t, bob.ID, item.OtherID)
		assert.Equal(t, "bob", item.OtherName)
	}

	_, err = svc.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)

	items, err = svc.Fetch(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.True(t, item.Read)
	}
}

// TestWatermarkIsPerUser: alice reading her feed leaves bob's unread.
func TestWatermarkIsPerUser(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	svc := notify.NewService(appCtx)

	alice := testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)
	bob := testutil.CreateProfile(t, appCtx, "bob", profile.PoolAdults, 26, nil)
	m := db.Match{User1ID: alice.ID, User2ID: bob.ID}
	require.NoError(t, appCtx.DB.Create(&m).Error)

	_, err := svc.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)

	bobItems, err := svc.Fetch(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobItems, 1)
	assert.False(t, bobItems[0].Read)
}

// TestSubscribeDelivers wires a handler to the user channel and pushes
// an event through the bus.
func TestSubscribeDelivers(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	svc := notify.NewService(appCtx)
	defer svc.Unsubscribe()

	got := make(chan realtime.Event, 1)
	require.NoError(t, svc.Subscribe(ctx, 42, func(ev realtime.Event) {
		select {
		case got <- ev:
		default:
		}
	}))

	ev, err := realtime.NewEvent(realtime.KindMatchNew, map[string]uint64{"match_id": 7})
	require.NoError(t, err)
	require.NoError(t, appCtx.Bus.Publish(ctx, realtime.UserChannel(42), ev))

	select {
	case received := <-got:
		assert.Equal(t, realtime.KindMatchNew, received.Kind)
	case <-time.After(3 * time.Second):
		t.Fatal("no event delivered")
	}
}
