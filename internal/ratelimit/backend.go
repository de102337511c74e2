package ratelimit

import (
	"context"
	"time"
)

// Counter is the capability set of the fixed window limiter.
// Increment must be atomic across concurrent callers sharing a key.
type Counter interface {
	Increment(ctx context.Context, key string) (int64, error)
}

// Expirer is optional on every backend. Limiters use it on a best-effort
// basis to bound the lifetime of idle keys.
type Expirer interface {
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// TimestampSet is the capability set of the sliding window limiter: an
// ordered set per key whose scores are epoch milliseconds.
type TimestampSet interface {
	AddTimestamp(ctx context.Context, key string, score int64, member string) error
	// RemoveRange removes members with minScore <= score <= maxScore.
	RemoveRange(ctx context.Context, key string, minScore, maxScore int64) error
	Count(ctx context.Context, key string) (int64, error)
}

// StateStore is the capability set of the token bucket limiter. Values are
// opaque serialized state records.
//
// A Get followed by a Set is not atomic: two concurrent checks for the same
// identity can both read the same state and the last Set wins. Backends that
// can do better implement AtomicStateStore.
type StateStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// StateUpdate computes the next value from the current one. write=false
// leaves the stored value untouched. It may be called more than once when
// the backend retries after a conflicting write.
type StateUpdate func(current string, found bool) (next string, write bool)

// AtomicStateStore runs a read-modify-write as one atomic step and applies
// ttl together with the write.
type AtomicStateStore interface {
	StateStore
	Update(ctx context.Context, key string, ttl time.Duration, fn StateUpdate) error
}

// Backends bundles the capability sets a Dispatcher can draw from. Only the
// one required by the configured strategy has to be set.
type Backends struct {
	Counter    Counter
	Timestamps TimestampSet
	State      StateStore
}
