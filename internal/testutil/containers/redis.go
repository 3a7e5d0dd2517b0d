package containers

import (
	"context"
	"fmt"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer is a disposable Redis instance for cache integration tests
type RedisContainer struct {
	*tcredis.RedisContainer
	URL string
}

// NewRedisContainer starts redis:7-alpine and returns its redis:// URL
func NewRedisContainer(ctx context.Context) (*RedisContainer, error) {
	c, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	url, err := c.ConnectionString(ctx)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, fmt.Errorf("failed to get redis connection string: %w", err)
	}

	return &RedisContainer{RedisContainer: c, URL: url}, nil
}
