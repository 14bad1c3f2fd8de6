package notify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/service/notify"
)

func at(minutes int) time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
}

func TestProjectMergesAndOrders(t *testing.T) {
	matches := []db.Match{
		{ID: 10, User1ID: 1, User2ID: 2, CreatedAt: at(0)},
		{ID: 11, User1ID: 3, User2ID: 1, CreatedAt: at(5)},
	}
	messages := []db.Message{
		{ID: "m1", MatchID: 10, SenderID: 2, Type: db.MessageText, Content: "hi", CreatedAt: at(2)},
		{ID: "m2", MatchID: 10, SenderID: 2, Type: db.MessageText, Content: "newer", CreatedAt: at(8)},
		{ID: "m3", MatchID: 11, SenderID: 3, Type: db.MessageImage, CreatedAt: at(3)},
	}

	items := notify.Project(1, matches, messages, at(4))

	// One item per match plus one per match's newest message.
	require.Len(t, items, 4)

	// Newest first: m2 (t+8), match 11 (t+5), m3 (t+3), match 10 (t+0).
	assert.Equal(t, notify.KindMessage, items[0].Kind)
	assert.Equal(t, "m2", items[0].MessageID)
	assert.Equal(t, "newer", items[0].Preview)
	assert.False(t, items[0].Read)

	assert.Equal(t, notify.KindMatch, items[1].Kind)
	assert.Equal(t, uint64(11), items[1].MatchID)
	assert.Equal(t, uint64(3), items[1].OtherID)
	assert.False(t, items[1].Read)

	assert.Equal(t, notify.KindMessage, items[2].Kind)
	assert.Equal(t, "m3", items[2].MessageID)
	assert.Equal(t, "sent a photo", items[2].Preview)
	assert.True(t, items[2].Read)

	assert.Equal(t, notify.KindMatch, items[3].Kind)
	assert.Equal(t, uint64(10), items[3].MatchID)
	assert.Equal(t, uint64(2), items[3].OtherID)
	assert.True(t, items[3].Read)
}

// TestProjectNewestMessagePerMatch: older messages of the same match
// never surface as separate items.
func TestProjectNewestMessagePerMatch(t *testing.T) {
	messages := []db.Message{
		{ID: "old", MatchID: 10, SenderID: 2, Content: "a", CreatedAt: at(1)},
		{ID: "mid", MatchID: 10, SenderID: 2, Content: "b", CreatedAt: at(2)},
		{ID: "new", MatchID: 10, SenderID: 2, Content: "c", CreatedAt: at(3)},
	}

	items := notify.Project(1, nil, messages, time.Time{})
	require.Len(t, items, 1)
	assert.Equal(t, "new", items[0].MessageID)
}

// TestProjectWatermark: the boundary item (at == watermark) counts as
// read; anything after it does not.
func TestProjectWatermark(t *testing.T) {
	matches := []db.Match{
		{ID: 10, User1ID: 1, User2ID: 2, CreatedAt: at(0)},
		{ID: 11, User1ID: 1, User2ID: 3, CreatedAt: at(10)},
	}

	items := notify.Project(1, matches, nil, at(0))
	require.Len(t, items, 2)
	assert.False(t, items[0].Read) // match 11, after the watermark
	assert.True(t, items[1].Read)  // match 10, exactly at it
}

func TestProjectVoicePreview(t *testing.T) {
	messages := []db.Message{
		{ID: "v1", MatchID: 10, SenderID: 2, Type: db.MessageVoice, CreatedAt: at(1)},
	}
	items := notify.Project(1, nil, messages, time.Time{})
	require.Len(t, items, 1)
	assert.Equal(t, "sent a voice message", items[0].Preview)
}

func TestProjectDeterministicTieBreak(t *testing.T) {
	matches := []db.Match{
		{ID: 10, User1ID: 1, User2ID: 2, CreatedAt: at(0)},
		{ID: 11, User1ID: 1, User2ID: 3, CreatedAt: at(0)},
	}
	items := notify.Project(1, matches, nil, time.Time{})
	require.Len(t, items, 2)
	assert.Equal(t, uint64(11), items[0].MatchID)
	assert.Equal(t, uint64(10), items[1].MatchID)
}

func TestProjectEmpty(t *testing.T) {
	assert.Empty(t, notify.Project(1, nil, nil, time.Now()))
}
