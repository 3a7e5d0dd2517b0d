package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/config"
)

// Manager shares one Redis connection between the provider response cache
// and the scan quota limiter
type Manager struct {
	Cache       Cache
	RateLimiter RateLimiter
	client      *redis.Client
	logger      *zap.Logger
}

// NewManager connects to Redis and builds the cache services
func NewManager(cfg *config.RedisConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("cache manager initialized",
		zap.String("addr", client.Options().Addr),
		zap.Int("db", client.Options().DB),
		zap.Int("pool_size", cfg.PoolSize))

	return &Manager{
		Cache:       NewResponseCache(client, logger),
		RateLimiter: NewRedisRateLimiter(client, logger),
		client:      client,
		logger:      logger,
	}, nil
}

// HealthCheck pings Redis
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Close closes the shared connection
func (m *Manager) Close() error {
	if err := m.client.Close(); err != nil {
		return fmt.Errorf("redis close failed: %w", err)
	}
	m.logger.Info("redis connection closed")
	return nil
}
