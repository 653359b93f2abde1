package db

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"ctchen222/tictactoe-history/internal/config"
)

// NewRedisClient creates a Redis client from cfg and pings the server to
// ensure the connection is established.
func NewRedisClient(ctx context.Context, cfg config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}
