// Package cache provides Redis-backed signal deduplication with graceful
// degradation: when Redis is down the engine keeps scanning and treats every
// signal as unseen rather than failing.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Key layout and default TTL for seen-signal markers. The TTL outlives the
// longest pattern age so a restart cannot re-alert on the same setup.
const (
	seenKeyFormat   = "signal:seen:%s:%s:%d"
	DefaultSeenTTL  = 24 * time.Hour
	maxFailures     = 3
	recoveryBackoff = 30 * time.Second
)

// Config holds the Redis connection settings.
type Config struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// SignalCache deduplicates emitted signals across scanner restarts and
// replicas. All operations are safe to call when Redis is unreachable.
type SignalCache struct {
	client *redis.Client
	log    zerolog.Logger

	mu           sync.Mutex
	healthy      bool
	failureCount int
	downSince    time.Time
}

// New connects to Redis. A failed initial ping returns the cache in degraded
// mode instead of an error; connectivity is retried on use.
func New(cfg Config, log zerolog.Logger) *SignalCache {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	c := &SignalCache{client: client, log: log}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Address).Msg("redis unavailable, dedup degraded")
		c.markFailure()
		return c
	}
	c.healthy = true
	log.Info().Str("addr", cfg.Address).Msg("redis connected")
	return c
}

// Healthy reports whether Redis is currently considered reachable.
func (c *SignalCache) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

// MarkSeen records a signal fingerprint and reports whether it was already
// present. In degraded mode every signal reports unseen, which errs on the
// side of alerting twice rather than never.
func (c *SignalCache) MarkSeen(ctx context.Context, instrument, direction string, barTime time.Time) bool {
	if !c.allow() {
		return false
	}

	key := fmt.Sprintf(seenKeyFormat, instrument, direction, barTime.UTC().Unix())
	created, err := c.client.SetNX(ctx, key, 1, DefaultSeenTTL).Result()
	if err != nil {
		c.markFailure()
		c.log.Warn().Err(err).Str("key", key).Msg("redis setnx failed")
		return false
	}
	c.markSuccess()
	return !created
}

// Close releases the underlying connection pool.
func (c *SignalCache) Close() error {
	return c.client.Close()
}

// allow gates Redis calls while degraded, letting one probe through after
// the backoff so the cache can recover without a restart.
func (c *SignalCache) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.healthy {
		return true
	}
	return time.Since(c.downSince) >= recoveryBackoff
}

func (c *SignalCache) markFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureCount++
	if c.failureCount >= maxFailures || !c.healthy {
		c.healthy = false
		c.downSince = time.Now()
	}
}

func (c *SignalCache) markSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = true
	c.failureCount = 0
}
