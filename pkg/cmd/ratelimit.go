package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/trigonhq/trigon/pkg/ratelimit"
)

// NewRateLimiter returns a redis-backed limiter when a URL is given.
// The in-memory limiter only counts within a single process.
func NewRateLimiter(redisURL string) ratelimit.Limiter {
	if redisURL == "" {
		return ratelimit.NewMemoryLimiter()
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		panic(fmt.Errorf("failed to parse redis URL: %w", err))
	}

	return ratelimit.NewRedisLimiter(redis.NewClient(opts))
}
