package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/admission-gate/internal/ratelimit"
)

// DefaultTxRetries bounds optimistic retries in AtomicRedisStateStore.Update.
const DefaultTxRetries = 5

// ErrTxConflict is returned when every optimistic attempt lost to a
// concurrent writer.
var ErrTxConflict = errors.New("rate limit state changed concurrently")

// AtomicRedisStateStore is a RateLimitRedisStore whose token bucket state
// updates run under WATCH/MULTI/EXEC, so concurrent checks on one identity
// cannot clobber each other's decrement.
type AtomicRedisStateStore struct {
	*RateLimitRedisStore
	retries int
}

// NewAtomicRedisStateStore wraps client. retries <= 0 uses DefaultTxRetries.
func NewAtomicRedisStateStore(client redis.UniversalClient, retries int) *AtomicRedisStateStore {
	if retries <= 0 {
		retries = DefaultTxRetries
	}

	return &AtomicRedisStateStore{
		RateLimitRedisStore: NewRateLimitRedisStore(client),
		retries:             retries,
	}
}

// Backends exposes the atomic store as the state capability and the plain
// store for the others.
func (a *AtomicRedisStateStore) Backends() ratelimit.Backends {
	return ratelimit.Backends{
		Counter:    a.RateLimitRedisStore,
		Timestamps: a.RateLimitRedisStore,
		State:      a,
	}
}

// Update reads key, lets fn compute the next value and writes it with ttl in
// one transaction. Only optimistic-lock conflicts are retried; I/O errors are
// returned immediately.
func (a *AtomicRedisStateStore) Update(
	ctx context.Context, key string, ttl time.Duration, fn ratelimit.StateUpdate,
) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()

		found := true

		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return err
			}

			found = false
		}

		next, write := fn(current, found)
		if !write {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)

			return nil
		})

		return err
	}

	for range a.retries {
		err := a.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}

		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}

	return fmt.Errorf("%w: %s after %d attempts", ErrTxConflict, key, a.retries)
}

// Compile-time check.
var _ ratelimit.AtomicStateStore = (*AtomicRedisStateStore)(nil)
