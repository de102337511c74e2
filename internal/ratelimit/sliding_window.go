package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

var _ Limiter = (*SlidingWindowLimiter)(nil)

// SlidingWindowLimiter counts requests in the trailing cfg.Window using one
// timestamp entry per attempt.
//
// Rejected attempts keep their entry, so retries hammering a rejected
// identity keep it rejected until traffic stops for a full window. Two
// attempts within the same millisecond share a member and count once.
type SlidingWindowLimiter struct {
	set    TimestampSet
	cfg    WindowConfig
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// NewSlidingWindowLimiter creates a sliding window limiter over set.
func NewSlidingWindowLimiter(set TimestampSet, cfg WindowConfig, opts ...Option) *SlidingWindowLimiter {
	o := newOptions(opts)

	return &SlidingWindowLimiter{
		set:    set,
		cfg:    cfg,
		prefix: o.prefix,
		now:    o.now,
		logger: o.logger,
	}
}

func (l *SlidingWindowLimiter) Check(ctx context.Context, identity string) (Decision, error) {
	nowMs := l.now().UnixMilli()
	key := rateLimitKey(l.prefix, StrategySlidingWindow, identity)

	// Order matters: trim, then insert, then count.
	if err := l.set.RemoveRange(ctx, key, 0, nowMs-l.cfg.Window.Milliseconds()); err != nil {
		return Decision{}, fmt.Errorf("trim sliding window %s: %w", key, err)
	}

	if err := l.set.AddTimestamp(ctx, key, nowMs, strconv.FormatInt(nowMs, 10)); err != nil {
		return Decision{}, fmt.Errorf("add to sliding window %s: %w", key, err)
	}

	count, err := l.set.Count(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("count sliding window %s: %w", key, err)
	}

	expireBestEffort(ctx, l.set, key, l.cfg.Window, l.logger)

	return Decision{
		Allowed:    count <= l.cfg.Max,
		Identity:   identity,
		Strategy:   StrategySlidingWindow,
		Limit:      l.cfg.Max,
		Remaining:  max(0, l.cfg.Max-count),
		ResetAfter: l.cfg.Window,
	}, nil
}
