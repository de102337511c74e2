package ratelimit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/serroba/admission-gate/internal/ratelimit"
	"github.com/serroba/admission-gate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// windowStart is an exact multiple of one minute.
const windowStart int64 = 1_700_000_040_000

var errBackend = errors.New("backend unavailable")

type failingCounter struct {
	incrementErr error
	expireErr    error
	count        int64
}

func (f *failingCounter) Increment(_ context.Context, _ string) (int64, error) {
	if f.incrementErr != nil {
		return 0, f.incrementErr
	}

	f.count++

	return f.count, nil
}

func (f *failingCounter) Expire(_ context.Context, _ string, _ time.Duration) error {
	return f.expireErr
}

func newFixedWindow(clock *testClock, maxRequests int64) (*ratelimit.FixedWindowLimiter, *store.RateLimitMemoryStore) {
	memStore := store.NewRateLimitMemoryStore(clock.Now)
	limiter := ratelimit.NewFixedWindowLimiter(memStore,
		ratelimit.WindowConfig{Window: time.Minute, Max: maxRequests},
		ratelimit.WithClock(clock.Now),
	)

	return limiter, memStore
}

func TestFixedWindowLimiter(t *testing.T) {
	t.Run("admits up to max then rejects", func(t *testing.T) {
		clock := newTestClock(windowStart + 1000)
		limiter, _ := newFixedWindow(clock, 3)

		for i := range 3 {
			decision, err := limiter.Check(context.Background(), "client1")

			require.NoError(t, err)
			assert.True(t, decision.Allowed)
			assert.Equal(t, int64(2-i), decision.Remaining)
		}

		decision, err := limiter.Check(context.Background(), "client1")

		require.NoError(t, err)
		assert.False(t, decision.Allowed, "4th call should be rejected")
		assert.Equal(t, int64(0), decision.Remaining)
		assert.Equal(t, int64(3), decision.Limit)
		assert.Equal(t, ratelimit.StrategyFixedWindow, decision.Strategy)
		assert.Equal(t, 59*time.Second, decision.ResetAfter)
	})

	t.Run("starts a fresh count in the next window", func(t *testing.T) {
		clock := newTestClock(windowStart + 1000)
		limiter, _ := newFixedWindow(clock, 3)

		for range 4 {
			_, _ = limiter.Check(context.Background(), "client1")
		}

		clock.Set(windowStart + 60_000)

		decision, err := limiter.Check(context.Background(), "client1")

		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, int64(2), decision.Remaining, "count should restart at 1")
	})

	t.Run("boundary instant belongs to the new window", func(t *testing.T) {
		clock := newTestClock(windowStart + 59_999)
		limiter, _ := newFixedWindow(clock, 1)

		first, err := limiter.Check(context.Background(), "client1")
		require.NoError(t, err)
		assert.True(t, first.Allowed)
		assert.Equal(t, time.Millisecond, first.ResetAfter)

		clock.Set(windowStart + 60_000)

		second, err := limiter.Check(context.Background(), "client1")
		require.NoError(t, err)
		assert.True(t, second.Allowed, "boundary request must not count against the old window")
		assert.Equal(t, time.Minute, second.ResetAfter)
	})

	t.Run("bucket expires at the end of its window", func(t *testing.T) {
		clock := newTestClock(windowStart + 15_000)
		limiter, memStore := newFixedWindow(clock, 3)

		_, err := limiter.Check(context.Background(), "client1")
		require.NoError(t, err)

		ttl, ok := memStore.TTL("ratelimit:fixed_window:client1:28333334")

		require.True(t, ok, "first increment should set an expiry")
		assert.Equal(t, 45*time.Second, ttl)
	})

	t.Run("tracks identities independently", func(t *testing.T) {
		clock := newTestClock(windowStart)
		limiter, _ := newFixedWindow(clock, 2)

		for range 3 {
			_, _ = limiter.Check(context.Background(), "client1")
		}

		decision, err := limiter.Check(context.Background(), "client2")

		require.NoError(t, err)
		assert.True(t, decision.Allowed, "client2 should still be allowed")
	})

	t.Run("propagates increment failures", func(t *testing.T) {
		limiter := ratelimit.NewFixedWindowLimiter(&failingCounter{incrementErr: errBackend},
			ratelimit.WindowConfig{Window: time.Minute, Max: 3})

		_, err := limiter.Check(context.Background(), "client1")

		require.Error(t, err)
		assert.ErrorIs(t, err, errBackend)
		assert.NotErrorIs(t, err, ratelimit.ErrRateLimited)
	})

	t.Run("expiry failure does not change the decision", func(t *testing.T) {
		limiter := ratelimit.NewFixedWindowLimiter(&failingCounter{expireErr: errBackend},
			ratelimit.WindowConfig{Window: time.Minute, Max: 3})

		decision, err := limiter.Check(context.Background(), "client1")

		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})
}
