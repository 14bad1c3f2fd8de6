// Package realtime is the publish/subscribe layer the chat, presence,
// room and notification components fan events through. It is a thin
// envelope protocol over Redis pub/sub.
//
// Ordering holds within a single channel subscription only; consumers
// must not assume anything about ordering across channels.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Event kinds carried on the bus.
const (
	KindMessageInsert = "message.insert"
	KindMessageRead   = "message.read"
	KindTyping        = "typing"
	KindMatchNew      = "match.new"
	KindPresenceSync  = "presence.sync"
	KindRoomMessage   = "room.message"
)

// ChatChannel names the per-match channel carrying message inserts,
// read-receipt updates and typing pulses.
func ChatChannel(matchID uint64) string { return fmt.Sprintf("chat:%d", matchID) }

// UserChannel names the per-user channel carrying match notifications.
func UserChannel(userID uint64) string { return fmt.Sprintf("user:%d", userID) }

// RoomChannel names the per-room channel.
func RoomChannel(roomID string) string { return "room:" + roomID }

// PresenceChannel is shared by all clients; it carries sync pulses only,
// never incremental state.
const PresenceChannel = "presence"

// Event is the wire envelope. Data is the JSON-encoded payload for the
// given kind.
type Event struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// NewEvent wraps a payload into an Event.
func NewEvent(kind string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return Event{Kind: kind, Data: data}, nil
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// Handler receives events for one subscription. Handlers run on the
// subscription's delivery goroutine, in server emission order.
type Handler func(Event)

// Bus publishes and subscribes over Redis pub/sub.
type Bus struct {
	client *redis.Client
	log    *slog.Logger
}

func NewBus(client *redis.Client, log *slog.Logger) *Bus {
	return &Bus{client: client, log: log}
}

// Publish sends an event to everyone subscribed to the channel. Delivery
// is best-effort: there is no replay for subscribers that join later.
func (b *Bus) Publish(ctx context.Context, channel string, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe starts delivering the channel's events to handler until the
// returned Subscription is closed. Malformed payloads are logged and
// skipped.
func (b *Bus) Subscribe(ctx context.Context, channel string, handler Handler) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, channel)
	// Force the SUBSCRIBE round-trip so a failed connection surfaces
	// here instead of silently dropping events.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &Subscription{ps: ps, channel: channel}
	go func() {
		for msg := range ps.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("dropping malformed event", "channel", channel, "err", err)
				continue
			}
			handler(ev)
		}
	}()
	return sub, nil
}

// Subscription is an active channel subscription. Exclusively owned by
// the component that opened it.
type Subscription struct {
	ps      *redis.PubSub
	channel string
	once    sync.Once
}

// Channel returns the subscribed channel name.
func (s *Subscription) Channel() string { return s.channel }

// Close tears the subscription down. Safe to call more than once and
// safe on a nil subscription, so owner teardown paths stay idempotent.
func (s *Subscription) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	return err
}
