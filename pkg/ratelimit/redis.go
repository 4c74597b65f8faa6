package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter counts activations in Redis so the limit holds across
// engine instances. The counter key carries the window TTL; INCR followed
// by a conditional PEXPIRE keeps the fixed window consistent without a
// per-key record of the window start.
type RedisLimiter struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisLimiter creates a limiter on the given client.
func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{client: client, keyPrefix: "trigon:ratelimit:"}
}

func (l *RedisLimiter) TryAcquire(ctx context.Context, key string, max int64, window *time.Duration) (bool, error) {
	counterKey := l.keyPrefix + key

	count, err := l.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// First increment in a window owns setting the expiry.
	if count == 1 && window != nil {
		if err := l.client.PExpire(ctx, counterKey, *window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	if count > max {
		return false, nil
	}

	return true, nil
}
