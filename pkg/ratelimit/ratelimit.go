// Package ratelimit provides activation counting for rate-limit actions.
// A limiter answers one question: may another activation pass through the
// given key right now. Windowed limits reset after the window elapses;
// a nil window means the limit applies for the lifetime of the key.
package ratelimit

import (
	"context"
	"time"
)

// Limiter counts activations per key and enforces a maximum.
type Limiter interface {
	// TryAcquire increments the counter for key and reports whether the
	// activation is within the limit. The decision and the increment are
	// atomic: of N concurrent callers against max=M, exactly M succeed.
	TryAcquire(ctx context.Context, key string, max int64, window *time.Duration) (bool, error)
}
