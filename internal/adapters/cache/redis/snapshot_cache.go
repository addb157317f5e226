// Package redis keeps the ranked list snapshot in Redis so several server
// processes share one rebuilt view.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vncsmyrnk/curation/internal/core/domain"
)

const (
	snapshotKey    = "curation:lists:snapshot"
	DefaultTTL     = 30 * time.Second
	connectTimeout = 3 * time.Second
)

// SnapshotCache is a nil-safe cache: with no client every lookup misses and
// every write is a no-op.
type SnapshotCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	observe func(hit bool)
}

type Option func(*SnapshotCache)

func WithTTL(ttl time.Duration) Option {
	return func(c *SnapshotCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithObserver reports every lookup as a hit or a miss.
func WithObserver(fn func(hit bool)) Option {
	return func(c *SnapshotCache) {
		c.observe = fn
	}
}

// Connect parses redisURL and pings the server. An empty URL, a bad URL or a
// failed ping yields a disabled cache and a warning, never an error.
func Connect(ctx context.Context, redisURL string, logger zerolog.Logger, opts ...Option) *SnapshotCache {
	if redisURL == "" {
		logger.Info().Msg("redis: no URL configured, snapshot cache disabled")
		return NewSnapshotCache(nil, opts...)
	}

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis: invalid URL, snapshot cache disabled")
		return NewSnapshotCache(nil, opts...)
	}

	rdb := redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis: connection failed, snapshot cache disabled")
		_ = rdb.Close()
		return NewSnapshotCache(nil, opts...)
	}

	logger.Info().Msg("redis: connected, snapshot cache enabled")
	return NewSnapshotCache(rdb, opts...)
}

func NewSnapshotCache(rdb *redis.Client, opts ...Option) *SnapshotCache {
	c := &SnapshotCache{rdb: rdb, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SnapshotCache) Enabled() bool {
	return c.rdb != nil
}

func (c *SnapshotCache) GetSnapshot(ctx context.Context) ([]domain.List, bool, error) {
	if c.rdb == nil {
		c.report(false)
		return nil, false, nil
	}

	data, err := c.rdb.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		c.report(false)
		return nil, false, nil
	}
	if err != nil {
		c.report(false)
		return nil, false, err
	}

	var lists []domain.List
	if err := json.Unmarshal(data, &lists); err != nil {
		c.report(false)
		return nil, false, nil
	}
	c.report(true)
	return lists, true, nil
}

func (c *SnapshotCache) SetSnapshot(ctx context.Context, lists []domain.List) error {
	if c.rdb == nil {
		return nil
	}
	data, err := json.Marshal(lists)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, snapshotKey, data, c.ttl).Err()
}

func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, snapshotKey).Err()
}

func (c *SnapshotCache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *SnapshotCache) report(hit bool) {
	if c.observe != nil {
		c.observe(hit)
	}
}
