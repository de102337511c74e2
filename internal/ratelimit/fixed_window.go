package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var _ Limiter = (*FixedWindowLimiter)(nil)

// FixedWindowLimiter counts requests in discrete, non-overlapping buckets of
// cfg.Window. A request landing exactly on a boundary belongs to the new
// bucket.
type FixedWindowLimiter struct {
	counter Counter
	cfg     WindowConfig
	prefix  string
	now     func() time.Time
	logger  *zap.Logger
}

// NewFixedWindowLimiter creates a fixed window limiter over counter.
func NewFixedWindowLimiter(counter Counter, cfg WindowConfig, opts ...Option) *FixedWindowLimiter {
	o := newOptions(opts)

	return &FixedWindowLimiter{
		counter: counter,
		cfg:     cfg,
		prefix:  o.prefix,
		now:     o.now,
		logger:  o.logger,
	}
}

func (l *FixedWindowLimiter) Check(ctx context.Context, identity string) (Decision, error) {
	nowMs := l.now().UnixMilli()
	windowMs := l.cfg.Window.Milliseconds()
	window := nowMs / windowMs
	key := fmt.Sprintf("%s:%d", rateLimitKey(l.prefix, StrategyFixedWindow, identity), window)

	count, err := l.counter.Increment(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("increment fixed window %s: %w", key, err)
	}

	resetAfter := time.Duration((window+1)*windowMs-nowMs) * time.Millisecond

	// The first increment created the bucket. If the process dies before the
	// expiry lands the bucket lingers, but it is never read again once the
	// window rotates.
	if count == 1 {
		expireBestEffort(ctx, l.counter, key, resetAfter, l.logger)
	}

	return Decision{
		Allowed:    count <= l.cfg.Max,
		Identity:   identity,
		Strategy:   StrategyFixedWindow,
		Limit:      l.cfg.Max,
		Remaining:  max(0, l.cfg.Max-count),
		ResetAfter: resetAfter,
	}, nil
}
