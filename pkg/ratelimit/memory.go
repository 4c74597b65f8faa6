package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	count       int64
	windowStart time.Time
}

// MemoryLimiter is an in-process limiter for single-node deployments and
// tests. A mutex makes the check-and-increment atomic.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	nowFn   func() time.Time
}

// NewMemoryLimiter creates an empty in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		nowFn:   time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (l *MemoryLimiter) WithNow(nowFn func() time.Time) *MemoryLimiter {
	l.nowFn = nowFn

	return l
}

func (l *MemoryLimiter) TryAcquire(_ context.Context, key string, max int64, window *time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{windowStart: now}
		l.buckets[key] = b
	}

	if window != nil && now.Sub(b.windowStart) >= *window {
		b.count = 0
		b.windowStart = now
	}

	if b.count >= max {
		return false, nil
	}

	b.count++

	return true, nil
}
