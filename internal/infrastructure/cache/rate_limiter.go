package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// slidingWindow trims expired events, then admits the new one only when the
// window has room. Scores are unix milliseconds.
//
// KEYS[1] window key; ARGV: now_ms, window_ms, limit, member
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) >= limit then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window + 60000)
return 1
`)

// redisRateLimiter keeps one sorted set of event timestamps per key
type redisRateLimiter struct {
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisRateLimiter creates a sliding-window limiter on a shared client
func NewRedisRateLimiter(client *redis.Client, logger *zap.Logger) RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisRateLimiter{client: client, logger: logger, now: time.Now}
}

func (r *redisRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	admitted, err := slidingWindow.Run(ctx, r.client, []string{RateLimitPrefix + key},
		r.now().UnixMilli(), window.Milliseconds(), limit, uuid.NewString()).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if admitted == 0 {
		r.logger.Debug("rate limit exceeded", zap.String("key", key), zap.Int("limit", limit))
		return false, nil
	}
	return true, nil
}

func (r *redisRateLimiter) Count(ctx context.Context, key string, window time.Duration) (int, error) {
	k := RateLimitPrefix + key
	cutoff := strconv.FormatInt(r.now().Add(-window).UnixMilli(), 10)

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
	card := pipe.ZCard(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("rate limit count %s: %w", key, err)
	}
	return int(card.Val()), nil
}

func (r *redisRateLimiter) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, RateLimitPrefix+key).Err(); err != nil {
		return fmt.Errorf("rate limit reset %s: %w", key, err)
	}
	return nil
}
