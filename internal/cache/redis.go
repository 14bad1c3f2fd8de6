package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/amorhq/amor-core/internal/config"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes a Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForSwipeCount generates the key for a user's daily swipe counter.
// The counter is advisory (UI display), not an authoritative quota.
func (c *RedisCache) KeyForSwipeCount(userID uint64) string {
	return fmt.Sprintf("swipes:count:%d", userID)
}

// IncrSwipeCount bumps today's swipe counter. The key expires on its own
// after a day; the scheduled reset job clears all counters at midnight.
func (c *RedisCache) IncrSwipeCount(ctx context.Context, userID uint64) (int64, error) {
	key := c.KeyForSwipeCount(userID)
	n, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = c.Client.Expire(ctx, key, 24*time.Hour).Err()
	return n, nil
}

func (c *RedisCache) GetSwipeCount(ctx context.Context, userID uint64) (int64, error) {
	val, err := c.Client.Get(ctx, c.KeyForSwipeCount(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil // no swipes today
	} else if err != nil {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}

// ResetSwipeCounts deletes every daily swipe counter. Called by the
// midnight job.
func (c *RedisCache) ResetSwipeCounts(ctx context.Context) error {
	iter := c.Client.Scan(ctx, 0, "swipes:count:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.Client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// KeyForWatermark generates the key for a user's "read up to here"
// notification watermark.
func (c *RedisCache) KeyForWatermark(userID uint64) string {
	return fmt.Sprintf("notify:watermark:%d", userID)
}

// GetWatermark returns the user's notification watermark, or the zero
// time when none was ever stored (everything unread).
func (c *RedisCache) GetWatermark(ctx context.Context, userID uint64) (time.Time, error) {
	val, err := c.Client.Get(ctx, c.KeyForWatermark(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	} else if err != nil {
		return time.Time{}, err
	}
	millis, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt watermark for user %d: %w", userID, err)
	}
	return time.UnixMilli(millis).UTC(), nil
}

// SetWatermark stores the watermark. It has no TTL: it is the one piece
// of aggregator state that must survive a reload.
func (c *RedisCache) SetWatermark(ctx context.Context, userID uint64, at time.Time) error {
	return c.Client.Set(ctx, c.KeyForWatermark(userID), strconv.FormatInt(at.UnixMilli(), 10), 0).Err()
}
