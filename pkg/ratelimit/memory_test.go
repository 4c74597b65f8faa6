package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_EnforcesMax(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()

	for range 3 {
		ok, err := limiter.TryAcquire(ctx, "send_email:site-1", 3, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := limiter.TryAcquire(ctx, "send_email:site-1", 3, nil)
	require.NoError(t, err)
	assert.False(t, ok, "fourth acquire must exceed the limit")

	// Other keys are unaffected.
	ok, err = limiter.TryAcquire(ctx, "send_email:site-2", 3, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter().WithNow(func() time.Time { return current })
	ctx := context.Background()

	window := time.Hour

	ok, err := limiter.TryAcquire(ctx, "contact-1", 1, &window)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.TryAcquire(ctx, "contact-1", 1, &window)
	require.NoError(t, err)
	assert.False(t, ok)

	current = current.Add(window)

	ok, err = limiter.TryAcquire(ctx, "contact-1", 1, &window)
	require.NoError(t, err)
	assert.True(t, ok, "counter must reset once the window elapses")
}

func TestMemoryLimiter_ConcurrentAcquireIsAtomic(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()

	const callers = 32

	var (
		admitted atomic.Int64
		wg       sync.WaitGroup
	)

	for range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ok, err := limiter.TryAcquire(ctx, "shared", 1, nil)
			assert.NoError(t, err)

			if ok {
				admitted.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(1), admitted.Load(), "exactly one of the concurrent callers passes a max=1 limit")
}
