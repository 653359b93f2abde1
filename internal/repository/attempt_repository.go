package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// AttemptRepository counts requests per key inside a fixed window.
type AttemptRepository interface {
	// Hit records one attempt and returns the count in the current window
	// and the time left until the window resets.
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

type redisAttemptRepository struct {
	rdb *redis.Client
}

// NewAttemptRepository creates a new Redis-based AttemptRepository.
func NewAttemptRepository(rdb *redis.Client) AttemptRepository {
	return &redisAttemptRepository{rdb: rdb}
}

func attemptKey(key string) string {
	return fmt.Sprintf("ratelimit:%s", key)
}

func (r *redisAttemptRepository) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	ctx, span := tracer.Start(ctx, "AttemptRepository.Hit")
	defer span.End()

	k := attemptKey(key)
	count, err := r.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment attempts: %w", err)
	}
	// first hit opens the window
	if count == 1 {
		if err := r.rdb.Expire(ctx, k, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to set attempt window: %w", err)
		}
		return count, window, nil
	}

	ttl, err := r.rdb.TTL(ctx, k).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read attempt window: %w", err)
	}
	// a key without expiry would never reset
	if ttl < 0 {
		if err := r.rdb.Expire(ctx, k, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("failed to set attempt window: %w", err)
		}
		ttl = window
	}
	return count, ttl, nil
}
