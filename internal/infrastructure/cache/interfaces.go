package cache

import (
	"context"
	"errors"
	"time"
)

// Cache holds provider responses as JSON documents
type Cache interface {
	// GetJSON decodes the value at key into dest. A missing or unreadable
	// entry reports ErrMiss.
	GetJSON(ctx context.Context, key string, dest any) error

	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
}

// RateLimiter counts events per key over a sliding window
type RateLimiter interface {
	// Allow records one event and reports whether it fits under limit.
	// A rejected event is not recorded.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	Count(ctx context.Context, key string, window time.Duration) (int, error)

	Reset(ctx context.Context, key string) error
}

const (
	ProviderResponsePrefix = "cpb:provider:"
	RateLimitPrefix        = "cpb:ratelimit:"
	// ScanQuotaPrefix namespaces per-agent scan quotas under RateLimitPrefix
	ScanQuotaPrefix = "scan:"
)

// ErrMiss reports an absent cache entry
var ErrMiss = errors.New("cache miss")

// IsMiss reports whether err is a cache miss
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}
