package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter implements a fixed-window limit in Redis so that
// every API replica shares the same counters.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil || config.RequestsPerWindow <= 0 || config.WindowDuration <= 0 {
		config = DefaultLoginRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit:login"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

func (rl *DistributedRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow counts one request against key's current window
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := rl.key(key)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis rate limit: %w", err)
	}
	if count == 1 {
		// First hit opens the window
		if err := rl.redis.Expire(ctx, redisKey, rl.config.WindowDuration).Err(); err != nil {
			return false, 0, fmt.Errorf("redis rate limit: %w", err)
		}
	}

	if count <= int64(rl.config.capacity()) {
		return true, 0, nil
	}

	retryAfter, err := rl.redis.PTTL(ctx, redisKey).Result()
	if err != nil || retryAfter <= 0 {
		retryAfter = rl.config.WindowDuration
	}
	return false, retryAfter, nil
}

// Remaining returns the number of remaining requests in the window
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	count, err := rl.redis.Get(ctx, rl.key(key)).Int()
	if err == redis.Nil {
		return rl.config.capacity(), nil
	} else if err != nil {
		return 0, err
	}

	remaining := rl.config.capacity() - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset clears the counter for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.key(key)).Err()
}
