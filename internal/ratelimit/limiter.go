package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed  bool
	Identity string
	Strategy Strategy
	// Limit is the window max or the bucket capacity.
	Limit     int64
	Remaining int64
	// ResetAfter is how long until the caller regains capacity.
	ResetAfter time.Duration
}

// Limiter checks one identity against one algorithm.
type Limiter interface {
	Check(ctx context.Context, identity string) (Decision, error)
}

type options struct {
	prefix  string
	now     func() time.Time
	logger  *zap.Logger
	metrics *Metrics
}

// Option customizes limiters and the Dispatcher.
type Option func(*options)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records decisions on m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func newOptions(opts []Option) options {
	o := options{
		prefix: DefaultPrefix,
		now:    time.Now,
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// rateLimitKey builds <prefix>:<strategy>:<identity>. The strategy segment
// keeps counters of different algorithms apart.
func rateLimitKey(prefix string, strategy Strategy, identity string) string {
	return prefix + ":" + string(strategy) + ":" + identity
}

// expireBestEffort sets a TTL when the backend supports it. Failures are
// logged and otherwise ignored.
func expireBestEffort(ctx context.Context, backend any, key string, ttl time.Duration, logger *zap.Logger) {
	exp, ok := backend.(Expirer)
	if !ok {
		return
	}

	if err := exp.Expire(ctx, key, ttl); err != nil {
		logger.Warn("failed to set rate limit key expiry",
			zap.String("key", key),
			zap.Duration("ttl", ttl),
			zap.Error(err),
		)
	}
}
