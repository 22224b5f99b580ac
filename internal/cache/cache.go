// Package cache is a fail-open JSON cache over Redis. Backend and encoding
// errors are logged and counted here and never returned to callers.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/storefront/internal/logging"
)

const (
	DefaultTTL = 10 * time.Minute
	scanCount  = 100
)

type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	stats  stats
}

type stats struct {
	hits    atomic.Uint64
	misses  atomic.Uint64
	sets    atomic.Uint64
	deletes atomic.Uint64
	errors  atomic.Uint64
}

type Stats struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Sets      uint64  `json:"sets"`
	Deletes   uint64  `json:"deletes"`
	Errors    uint64  `json:"errors"`
	TotalGets uint64  `json:"totalGets"`
	HitRate   float64 `json:"hitRate"`
}

// New wraps client. A nil client yields a cache that always misses.
// ttl <= 0 selects DefaultTTL.
func New(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

func (c *Cache) enabled() bool { return c != nil && c.client != nil }

// Get decodes the value stored under key into dest and reports whether it was a hit.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if !c.enabled() {
		return false
	}
	l := logging.FromContext(ctx).With("component", "cache", "key", key)

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.stats.misses.Add(1)
			return false
		}
		c.stats.errors.Add(1)
		c.stats.misses.Add(1)
		l.Warn("cache_get_failed", "error", err)
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.stats.errors.Add(1)
		c.stats.misses.Add(1)
		l.Warn("cache_decode_failed", "error", err)
		return false
	}

	c.stats.hits.Add(1)
	return true
}

// Set stores value as JSON. ttl <= 0 uses the cache default.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.enabled() {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	l := logging.FromContext(ctx).With("component", "cache", "key", key)

	data, err := json.Marshal(value)
	if err != nil {
		c.stats.errors.Add(1)
		l.Warn("cache_encode_failed", "error", err)
		return
	}

	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		c.stats.errors.Add(1)
		l.Warn("cache_set_failed", "error", err)
		return
	}
	c.stats.sets.Add(1)
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) {
	if !c.enabled() {
		return
	}

	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.stats.errors.Add(1)
		logging.FromContext(ctx).Warn("cache_delete_failed", "component", "cache", "key", key, "error", err)
		return
	}
	c.stats.deletes.Add(1)
}

// DeletePattern scans for keys matching the glob pattern and deletes them one
// by one. It returns the number of keys removed before any failure.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) int {
	if !c.enabled() {
		return 0
	}
	l := logging.FromContext(ctx).With("component", "cache", "pattern", pattern)

	deleted := 0
	iter := c.client.Scan(ctx, 0, c.prefix+pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.stats.errors.Add(1)
			l.Warn("cache_pattern_delete_failed", "key", iter.Val(), "error", err)
			c.stats.deletes.Add(uint64(deleted))
			return deleted
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		c.stats.errors.Add(1)
		l.Warn("cache_scan_failed", "error", err)
	}

	c.stats.deletes.Add(uint64(deleted))
	return deleted
}

func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	hits := c.stats.hits.Load()
	misses := c.stats.misses.Load()
	total := hits + misses

	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total) * 100
	}

	return Stats{
		Hits:      hits,
		Misses:    misses,
		Sets:      c.stats.sets.Load(),
		Deletes:   c.stats.deletes.Load(),
		Errors:    c.stats.errors.Load(),
		TotalGets: total,
		HitRate:   rate,
	}
}

func (c *Cache) ResetStats() {
	if c == nil {
		return
	}
	c.stats.hits.Store(0)
	c.stats.misses.Store(0)
	c.stats.sets.Store(0)
	c.stats.deletes.Store(0)
	c.stats.errors.Store(0)
}

var ErrDisabled = errors.New("cache disabled")

func (c *Cache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return ErrDisabled
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if !c.enabled() {
		return nil
	}
	return c.client.Close()
}
