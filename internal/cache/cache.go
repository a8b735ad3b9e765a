// Package cache provides a Redis-backed response cache with graceful fallback.
// When Redis is unreachable the cache disables itself and every lookup misses.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Key prefixes
const (
	KeyTimings  = "prayer:cache:timings:"  // + place + date
	KeyCalendar = "prayer:cache:calendar:" // + year + month
	KeyQuran    = "prayer:cache:quran:"    // + path
	KeySearch   = "prayer:cache:geocode:"  // + query
)

// Cache stores JSON values in Redis
type Cache struct {
	client *redis.Client
	logger zerolog.Logger

	mu       sync.RWMutex
	disabled bool
}

// New wraps a Redis client. A failed ping starts the cache disabled.
func New(client *redis.Client, logger zerolog.Logger) *Cache {
	c := &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if client == nil {
		c.disabled = true
		return c
	}
	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		c.disabled = true
	}
	return c
}

// IsAvailable returns true if the cache is operational
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	c.mu.Lock()
	c.disabled = true
	c.mu.Unlock()
	c.logger.Warn().Msg("disabling cache due to Redis error")
}

// Get decodes the cached value of key into dest and reports whether it was found
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if !c.IsAvailable() {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.handleError(err, "get")
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false
	}

	c.logger.Debug().Str("key", key).Msg("cache hit")
	return true
}

// Set stores value under key for ttl. Failures are logged, never returned.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.IsAvailable() {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to marshal cache value")
		return
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
	}
}
