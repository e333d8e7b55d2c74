package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const memorySweepInterval = 5 * time.Minute

// NewIdempotencyStore returns a Redis store when Redis is enabled and
// reachable. Otherwise it falls back to the in-memory store if allowed.
func NewIdempotencyStore(cfg config.RedisConfig, allowFallback bool, logger *zap.Logger) (shared.IdempotencyStore, error) {
	if !cfg.Enabled {
		logger.Info("Redis disabled, using in-memory dedupe store")
		return NewInMemoryIdempotencyStore(memorySweepInterval), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !allowFallback {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr(), err)
		}
		logger.Warn("Redis unreachable, dedupe falls back to in-memory store; duplicates across instances are not detected",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		return NewInMemoryIdempotencyStore(memorySweepInterval), nil
	}

	return NewRedisIdempotencyStore(client, cfg.KeyPrefix), nil
}
