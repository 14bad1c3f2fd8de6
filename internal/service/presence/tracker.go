// Package presence maintains the set of currently-online user ids over
// a shared channel. The set is always recomputed from the authoritative
// snapshot on every sync pulse, never patched incrementally, so missed
// join/leave events cannot cause drift.
package presence

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/realtime"
)

const (
	setKey = "presence:online"

	// heartbeatTTL bounds how long a crashed client stays "online"
	// before the sweep removes it.
	heartbeatTTL = 90 * time.Second
)

func beatKey(userID uint64) string { return fmt.Sprintf("presence:beat:%d", userID) }

// SyncEvent is the pulse telling every subscriber to re-read the snapshot.
type SyncEvent struct {
	At int64 `json:"at"`
}

// Tracker is one client's view of who is online. At most one presence
// subscription exists per Tracker; Track tears down any prior one.
type Tracker struct {
	appCtx *app.AppContext

	mu     sync.Mutex
	userID uint64
	active bool
	online map[uint64]struct{}
	sub    *realtime.Subscription
}

// NewTracker creates a tracker with dependencies from AppContext.
func NewTracker(appCtx *app.AppContext) *Tracker {
	return &Tracker{appCtx: appCtx, online: make(map[uint64]struct{})}
}

// Track joins the shared presence channel, announces self and loads the
// initial snapshot. Calling Track while already tracking re-announces
// under the new user id.
func (t *Tracker) Track(ctx context.Context, userID uint64) error {
	t.Untrack(ctx)

	client := t.appCtx.Cache.Client
	if err := client.SAdd(ctx, setKey, strconv.FormatUint(userID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to announce presence: %w", err)
	}
	if err := client.Set(ctx, beatKey(userID), "1", heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("failed to set heartbeat: %w", err)
	}

	sub, err := t.appCtx.Bus.Subscribe(ctx, realtime.PresenceChannel, t.handleEvent)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.userID = userID
	t.active = true
	t.sub = sub
	t.mu.Unlock()

	t.publishSync(ctx)
	t.resync(ctx)
	return nil
}

// Heartbeat refreshes this client's liveness. Callers run it on an
// interval shorter than the heartbeat TTL.
func (t *Tracker) Heartbeat(ctx context.Context) error {
	t.mu.Lock()
	userID, active := t.userID, t.active
	t.mu.Unlock()
	if !active {
		return nil
	}

	client := t.appCtx.Cache.Client
	if err := client.SAdd(ctx, setKey, strconv.FormatUint(userID, 10)).Err(); err != nil {
		return err
	}
	return client.Set(ctx, beatKey(userID), "1", heartbeatTTL).Err()
}

// Untrack removes the local presence entry and tears the subscription
// down. Safe to call when not tracking.
func (t *Tracker) Untrack(ctx context.Context) {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	userID := t.userID
	sub := t.sub
	t.active = false
	t.sub = nil
	t.online = make(map[uint64]struct{})
	t.mu.Unlock()

	_ = sub.Close()

	client := t.appCtx.Cache.Client
	if err := client.SRem(ctx, setKey, strconv.FormatUint(userID, 10)).Err(); err != nil {
		t.appCtx.Logger.Warn("failed to withdraw presence", "user", userID, "err", err)
	}
	_ = client.Del(ctx, beatKey(userID)).Err()
	t.publishSync(ctx)
}

// IsOnline is a set-membership query against the last-synced snapshot.
// It may lag reality by one sync interval; that staleness is accepted.
func (t *Tracker) IsOnline(userID uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.online[userID]
	return ok
}

// Online returns the last-synced set of online ids.
func (t *Tracker) Online() []uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]uint64, 0, len(t.online))
	for id := range t.online {
		out = append(out, id)
	}
	return out
}

func (t *Tracker) handleEvent(ev realtime.Event) {
	if ev.Kind != realtime.KindPresenceSync {
		return
	}
	t.mu.Lock()
	active := t.active
	t.mu.Unlock()
	if !active {
		return
	}
	t.resync(context.Background())
}

// resync replaces the whole snapshot from the authoritative set.
func (t *Tracker) resync(ctx context.Context) {
	members, err := t.appCtx.Cache.Client.SMembers(ctx, setKey).Result()
	if err != nil {
		t.appCtx.Logger.Warn("presence resync failed", "err", err)
		return
	}

	fresh := make(map[uint64]struct{}, len(members))
	for _, member := range members {
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			continue
		}
		fresh[id] = struct{}{}
	}

	t.mu.Lock()
	if t.active {
		t.online = fresh
	}
	t.mu.Unlock()
}

func (t *Tracker) publishSync(ctx context.Context) {
	ev, err := realtime.NewEvent(realtime.KindPresenceSync, SyncEvent{At: time.Now().UnixMilli()})
	if err != nil {
		return
	}
	if err := t.appCtx.Bus.Publish(ctx, realtime.PresenceChannel, ev); err != nil {
		t.appCtx.Logger.Warn("failed to publish presence sync", "err", err)
	}
}

// Sweep removes entries whose heartbeat expired and notifies subscribers
// when anything changed. The scheduler runs it periodically and reports
// how many entries were reaped.
func (t *Tracker) Sweep(ctx context.Context) (int, error) {
	client := t.appCtx.Cache.Client
	members, err := client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, member := range members {
		id, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			_ = client.SRem(ctx, setKey, member).Err()
			removed++
			continue
		}
		alive, err := client.Exists(ctx, beatKey(id)).Result()
		if err != nil {
			return removed, err
		}
		if alive == 0 {
			if err := client.SRem(ctx, setKey, member).Err(); err != nil {
				return removed, err
			}
			removed++
		}
	}

	if removed > 0 {
		t.publishSync(ctx)
	}
	return removed, nil
}
