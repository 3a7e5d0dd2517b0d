package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type responseCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewResponseCache stores JSON documents on a shared client. The caller
// owns the client.
func NewResponseCache(client *redis.Client, logger *zap.Logger) Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &responseCache{client: client, logger: logger}
}

func (c *responseCache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", ErrMiss, key)
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		// a stale schema is treated as absent and evicted
		c.logger.Warn("evicting unreadable cache entry", zap.String("key", key), zap.Error(err))
		if delErr := c.client.Del(ctx, key).Err(); delErr != nil {
			c.logger.Warn("failed to evict cache entry", zap.String("key", key), zap.Error(delErr))
		}
		return fmt.Errorf("%w: %s", ErrMiss, key)
	}
	return nil
}

func (c *responseCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (c *responseCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
