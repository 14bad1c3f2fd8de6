package chat_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/apperr"
	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/media"
	"github.com/amorhq/amor-core/internal/service/chat"
	"github.com/amorhq/amor-core/internal/service/profile"
	"github.com/amorhq/amor-core/internal/testutil"
)

const eventWait = 3 * time.Second

// setupMatch seeds two profiles and a match row between them.
func setupMatch(t *testing.T, appCtx *app.AppContext) (alice, bob *db.Profile, m *db.Match) {
	t.Helper()
	alice = testutil.CreateProfile(t, appCtx, "alice", profile.PoolAdults, 25, nil)
	bob = testutil.CreateProfile(t, appCtx, "bob", profile.PoolAdults, 26, nil)
	m = &db.Match{User1ID: alice.ID, User2ID: bob.ID, VibeScore: 50}
	require.NoError(t, appCtx.DB.Create(m).Error)
	return alice, bob, m
}

func TestOpenRequiresParticipant(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	_, _, m := setupMatch(t, appCtx)
	mallory := testutil.CreateProfile(t, appCtx, "mallory", profile.PoolAdults, 27, nil)

	svc := chat.NewService(appCtx)
	_, err := svc.Open(ctx, mallory.ID, m.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

// TestSendReconcilesWithoutDuplicates sends from an open session and
// waits out the race between the realtime echo and the send response.
// Exactly one confirmed entry must remain.
func TestSendReconcilesWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	alice, _, m := setupMatch(t, appCtx)

	svc := chat.NewService(appCtx)
	sess, err := svc.Open(ctx, alice.ID, m.ID)
	require.NoError(t, err)
	defer sess.Close()

	msgID, err := sess.Send(ctx, "hey there")
	require.NoError(t, err)
	require.NotEmpty(t, msgID)

	// The subscription echo may still be in flight; after it lands the
	// list must hold exactly one confirmed entry.
	assert.Eventually(t, func() bool {
		entries := sess.Entries()
		if len(entries) != 1 {
			return false
		}
		e := entries[0]
		return !e.Pending && e.Message.ID == msgID && e.Message.Content == "hey there"
	}, eventWait, 10*time.Millisecond)

	// And it never degrades: give the echo extra time to double-apply.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, sess.Entries(), 1)
}

// TestPeerDeliveryAndReadReceipt runs both sides of a conversation over
// the bus: bob's open session receives alice's message and acks it, and
// alice sees the read stamp come back.
func TestPeerDeliveryAndReadReceipt(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	alice, bob, m := setupMatch(t, appCtx)

	aliceSvc := chat.NewService(appCtx)
	bobSvc := chat.NewService(appCtx)

	aliceSess, err := aliceSvc.Open(ctx, alice.ID, m.ID)
	require.NoError(t, err)
	defer aliceSess.Close()

	bobSess, err := bobSvc.Open(ctx, bob.ID, m.ID)
	require.NoError(t, err)
	defer bobSess.Close()

	msgID, err := aliceSess.Send(ctx, "dinner friday?")
	require.NoError(t, err)

	// Bob's session picks the message up off the wire.
	require.Eventually(t, func() bool {
		for _, e := range bobSess.Entries() {
			if e.Message.ID == msgID {
				return true
			}
		}
		return false
	}, eventWait, 10*time.Millisecond)

	// Receiving while open counts as reading, and alice's local view
	// gets the receipt.
	require.Eventually(t, func() bool {
		for _, e := range aliceSess.Entries() {
			if e.Message.ID == msgID && e.Message.ReadAt != nil {
				return true
			}
		}
		return false
	}, eventWait, 10*time.Millisecond)

	// The stamp is durable, not just local.
	var stored db.Message
	require.NoError(t, appCtx.DB.First(&stored, "id = ?", msgID).Error)
	assert.NotNil(t, stored.ReadAt)
}

// TestTypingIndicatorExpires covers the debounce: a pulse flips the
// indicator on, a second pulse extends it, silence clears it.
func TestTypingIndicatorExpires(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	appCtx.Cfg.Amor.TypingExpiry = 200 * time.Millisecond
	alice, bob, m := setupMatch(t, appCtx)

	aliceSvc := chat.NewService(appCtx)
	bobSvc := chat.NewService(appCtx)

	aliceSess, err := aliceSvc.Open(ctx, alice.ID, m.ID)
	require.NoError(t, err)
	defer aliceSess.Close()

	bobSess, err := bobSvc.Open(ctx, bob.ID, m.ID)
	require.NoError(t, err)
	defer bobSess.Close()

	bobSess.NotifyTyping(ctx)
	require.Eventually(t, aliceSess.OtherTyping, eventWait, 10*time.Millisecond)

	// A fresh pulse keeps it alive past the first deadline.
	time.Sleep(120 * time.Millisecond)
	bobSess.NotifyTyping(ctx)
	time.Sleep(120 * time.Millisecond)
	assert.True(t, aliceSess.OtherTyping())

	// Silence for the full window clears it.
	require.Eventually(t, func() bool { return !aliceSess.OtherTyping() },
		eventWait, 10*time.Millisecond)
}

// TestOwnTypingPulseIgnored: a session must not show its own pulses.
func TestOwnTypingPulseIgnored(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	alice, _, m := setupMatch(t, appCtx)

	svc := chat.NewService(appCtx)
	sess, err := svc.Open(ctx, alice.ID, m.ID)
	require.NoError(t, err)
	defer sess.Close()

	sess.NotifyTyping(ctx)
	time.Sleep(100 * time.Millisecond)
	assert.False(t, sess.OtherTyping())
}

func TestSendMedia(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	alice, _, m := setupMatch(t, appCtx)

	svc := chat.NewService(appCtx)
	sess, err := svc.Open(ctx, alice.ID, m.ID)
	require.NoError(t, err)
	defer sess.Close()

	msgID, err := sess.SendMedia(ctx, db.MessageImage, "image/jpeg", []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)

	var stored db.Message
	require.NoError(t, appCtx.DB.First(&stored, "id = ?", msgID).Error)
	assert.Equal(t, db.MessageImage, stored.Type)
	assert.NotEmpty(t, stored.MediaURL)
	assert.Empty(t, stored.Content)
	assert.Equal(t, 1, appCtx.Media.(*media.MemoryStore).Len())
}

func TestSendMediaValidation(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	appCtx.Cfg.Amor.MaxUploadBytes = 4
	alice, _, m := setupMatch(t, appCtx)

	svc := chat.NewService(appCtx)
	sess, err := svc.Open(ctx, alice.ID, m.ID)
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.SendMedia(ctx, db.MessageImage, "image/png", nil)
	rej, ok := apperr.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, apperr.RejectInvalidMedia, rej.Code)

	_, err = sess.SendMedia(ctx, db.MessageVoice, "audio/ogg", []byte("too large payload"))
	rej, ok = apperr.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, apperr.RejectInvalidMedia, rej.Code)

	_, err = sess.SendMedia(ctx, db.MessageText, "text/plain", []byte("x"))
	assert.Error(t, err)

	// Nothing was written.
	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

// TestSendMediaUploadFailureLeavesNoRow: failed uploads must not leave
// dangling message rows.
func TestSendMediaUploadFailureLeavesNoRow(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	alice, _, m := setupMatch(t, appCtx)

	svc := chat.NewService(appCtx)
	sess, err := svc.Open(ctx, alice.ID, m.ID)
	require.NoError(t, err)
	defer sess.Close()

	appCtx.Media.(*media.MemoryStore).FailNext = true
	_, err = sess.SendMedia(ctx, db.MessageImage, "image/png", []byte{1, 2, 3})
	require.Error(t, err)

	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

// TestOpenSecondChatClosesFirst: the manager holds at most one session.
func TestOpenSecondChatClosesFirst(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	alice, bob, m1 := setupMatch(t, appCtx)
	carol := testutil.CreateProfile(t, appCtx, "carol", profile.PoolAdults, 27, nil)
	m2 := &db.Match{User1ID: alice.ID, User2ID: carol.ID, VibeScore: 50}
	require.NoError(t, appCtx.DB.Create(m2).Error)
	_ = bob

	svc := chat.NewService(appCtx)
	first, err := svc.Open(ctx, alice.ID, m1.ID)
	require.NoError(t, err)

	second, err := svc.Open(ctx, alice.ID, m2.ID)
	require.NoError(t, err)
	defer second.Close()

	assert.Same(t, second, svc.Active())
	_, err = first.Send(ctx, "late")
	assert.ErrorIs(t, err, chat.ErrSessionClosed)
}

// TestHistoryPagination walks two pages backwards through an older
// conversation via the service surface.
func TestHistoryPagination(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := testutil.NewAppContext(t)
	alice, bob, m := setupMatch(t, appCtx)

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	for i := 0; i < 5; i++ {
		msg := db.Message{
			ID:        fmt.Sprintf("m%d", i),
			MatchID:   m.ID,
			SenderID:  alice.ID,
			Type:      db.MessageText,
			Content:   fmt.Sprintf("msg %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, appCtx.DB.Create(&msg).Error)
	}

	svc := chat.NewService(appCtx)

	page1, next, err := svc.History(ctx, bob.ID, m.ID, nil, 2)
	require.NoError(t, err)
	require.NotNil(t, next)
	require.Len(t, page1, 2)
	// Ascending within the page, newest page first.
	assert.Equal(t, "m3", page1[0].ID)
	assert.Equal(t, "m4", page1[1].ID)

	page2, next, err := svc.History(ctx, bob.ID, m.ID, next, 2)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "m1", page2[0].ID)
	assert.Equal(t, "m2", page2[1].ID)

	page3, next, err := svc.History(ctx, bob.ID, m.ID, next, 2)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, page3, 1)
	assert.Equal(t, "m0", page3[0].ID)
}
