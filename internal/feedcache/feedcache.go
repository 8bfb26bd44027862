// Package feedcache keeps the most recent generated feed per user in
// Redis. A user has at most one live entry; writing a new feed supersedes
// the previous one and the TTL bounds staleness even if nothing else runs.
package feedcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hotstory/radar/config"
	"github.com/hotstory/radar/models"
)

// Entry wraps a cached feed with its validity window.
type Entry struct {
	Feed      models.FeedResponse `json:"feed"`
	CachedAt  time.Time           `json:"cached_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// Cache stores per-user feed entries in Redis.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration

	now func() time.Time
}

// New connects to Redis and verifies it answers.
func New(ctx context.Context, cfg config.RedisConfig, ttl time.Duration) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, ttl), nil
}

// NewWithClient wraps an existing client; used by tests and shared pools.
func NewWithClient(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, now: time.Now}
}

func key(userID string) string { return "feed:cache:" + userID }

// Get returns the live entry for a user, ErrCacheMiss when absent or
// expired.
func (c *Cache) Get(ctx context.Context, userID string) (Entry, error) {
	raw, err := c.rdb.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, models.ErrCacheMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("reading feed cache: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, fmt.Errorf("decoding feed cache: %w", err)
	}
	if c.now().After(entry.ExpiresAt) {
		return Entry{}, models.ErrCacheMiss
	}
	return entry, nil
}

// Set replaces the user's entry. SET on a single key is the supersede:
// the previous entry is gone the moment the new one lands.
func (c *Cache) Set(ctx context.Context, userID string, feed models.FeedResponse) error {
	now := c.now().UTC()
	entry := Entry{Feed: feed, CachedAt: now, ExpiresAt: now.Add(c.ttl)}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding feed cache: %w", err)
	}
	if err := c.rdb.Set(ctx, key(userID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing feed cache: %w", err)
	}
	return nil
}

// Invalidate drops the user's entry; the next read is a miss.
func (c *Cache) Invalidate(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, key(userID)).Err()
}

// AcquireLock takes a short-lived SetNX lock, e.g. one radar run at a
// time across processes. Returns false when another holder is live.
func (c *Cache) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, "radar:lock:"+name, "1", ttl).Result()
}

// ReleaseLock drops a lock taken by AcquireLock.
func (c *Cache) ReleaseLock(ctx context.Context, name string) error {
	return c.rdb.Del(ctx, "radar:lock:"+name).Err()
}
