// Package cache implements the fingerprint-keyed Result Cache: a
// read-through, best-effort-write cache in front of the Job Store.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"codereviewsvc/pkg/review"
)

// Options configures TTL and key namespacing.
type Options struct {
	TTL       time.Duration
	KeyPrefix string
}

// Cache is the Result Cache contract: get must not fail the caller
// (backend errors degrade to a miss) and put is best-effort.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (*review.Report, bool)
	Put(ctx context.Context, fingerprint string, report *review.Report)
}

// RedisCache implements Cache over go-redis/v9.
type RedisCache struct {
	client *redis.Client
	opts   Options
}

// NewRedisCache builds a RedisCache from a pre-constructed client.
func NewRedisCache(client *redis.Client, opts Options) *RedisCache {
	if opts.TTL == 0 {
		opts.TTL = time.Hour
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "review:cache:"
	}
	return &RedisCache{client: client, opts: opts}
}

func (c *RedisCache) key(fingerprint string) string {
	return c.opts.KeyPrefix + fingerprint
}

// Get returns the cached report, or (nil, false) on a miss or any
// backend error — callers must treat both identically (spec §4.2).
func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*review.Report, bool) {
	raw, err := c.client.Get(ctx, c.key(fingerprint)).Bytes()
	if err != nil {
		// redis.Nil (real miss) and any transient backend error both
		// degrade to a miss; this preserves liveness per spec §4.2.
		return nil, false
	}
	var report review.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		slog.Warn("cache: dropping unreadable entry", "fingerprint", fingerprint, "error", err)
		return nil, false
	}
	return &report, true
}

// Put writes best-effort; backend errors are logged, never surfaced.
func (c *RedisCache) Put(ctx context.Context, fingerprint string, report *review.Report) {
	raw, err := json.Marshal(report)
	if err != nil {
		slog.Warn("cache: failed to encode report", "fingerprint", fingerprint, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(fingerprint), raw, c.opts.TTL).Err(); err != nil {
		slog.Warn("cache: put failed", "fingerprint", fingerprint, "error", err)
	}
}
