package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel/attribute"

	"ctchen222/tictactoe-history/internal/stats"
)

// StatsCache holds derived summaries. It is never a source of truth.
//
// Summaries are keyed by a per-user generation that Invalidate bumps. A
// summary computed from records read before an Invalidate is stored under
// the old generation and never served again.
type StatsCache interface {
	// Get returns the summary cached for the user's current generation, or
	// nil on a miss, together with that generation.
	Get(ctx context.Context, userID int64) (*stats.Summary, int64, error)
	// Set stores summary under generation gen, as returned by Get before the
	// summary was computed.
	Set(ctx context.Context, userID int64, gen int64, summary stats.Summary) error
	Invalidate(ctx context.Context, userID int64) error
}

type redisStatsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStatsCache creates a new Redis-based StatsCache.
func NewStatsCache(rdb *redis.Client, ttl time.Duration) StatsCache {
	return &redisStatsCache{rdb: rdb, ttl: ttl}
}

// The generation key has no TTL: if it expired and restarted at 0, summaries
// cached under a reused generation could come back.
func statsGenKey(userID int64) string {
	return fmt.Sprintf("stats:%d:gen", userID)
}

func statsKey(userID, gen int64) string {
	return fmt.Sprintf("stats:%d:%d", userID, gen)
}

func (c *redisStatsCache) Get(ctx context.Context, userID int64) (*stats.Summary, int64, error) {
	ctx, span := tracer.Start(ctx, "StatsCache.Get")
	defer span.End()

	gen, err := c.rdb.Get(ctx, statsGenKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("failed to get stats generation: %w", err)
	}
	span.SetAttributes(attribute.Int64("cache.generation", gen))

	raw, err := c.rdb.Get(ctx, statsKey(userID, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, gen, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get cached stats: %w", err)
	}

	var summary stats.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal cached stats: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &summary, gen, nil
}

func (c *redisStatsCache) Set(ctx context.Context, userID int64, gen int64, summary stats.Summary) error {
	ctx, span := tracer.Start(ctx, "StatsCache.Set")
	defer span.End()
	span.SetAttributes(attribute.Int64("cache.generation", gen))

	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	if err := c.rdb.Set(ctx, statsKey(userID, gen), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache stats: %w", err)
	}
	return nil
}

// Invalidate moves the user to a new generation. The old summary is left to
// expire.
func (c *redisStatsCache) Invalidate(ctx context.Context, userID int64) error {
	ctx, span := tracer.Start(ctx, "StatsCache.Invalidate")
	defer span.End()

	if err := c.rdb.Incr(ctx, statsGenKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached stats: %w", err)
	}
	return nil
}
