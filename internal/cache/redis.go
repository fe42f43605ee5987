package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eduyeet/authgate/internal/config"
	"github.com/redis/go-redis/v9"
)

// ConnectRedis creates a client from cfg and verifies connectivity with a 5-second ping.
func ConnectRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Redis connected successfully", "address", cfg.Address())
	return client, nil
}
