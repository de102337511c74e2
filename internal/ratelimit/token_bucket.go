package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var _ Limiter = (*TokenBucketLimiter)(nil)

// TokenBucketLimiter models a pool of cfg.Capacity tokens that gains
// cfg.RefillTokens every cfg.RefillInterval. Each admitted request spends one.
//
// Rejections write nothing, so a burst of rejected checks does not move the
// refill clock. With a plain StateStore concurrent checks on one identity
// race (last write wins); an AtomicStateStore closes that gap.
type TokenBucketLimiter struct {
	store  StateStore
	cfg    TokenBucketConfig
	prefix string
	now    func() time.Time
	logger *zap.Logger
}

// NewTokenBucketLimiter creates a token bucket limiter over store.
func NewTokenBucketLimiter(store StateStore, cfg TokenBucketConfig, opts ...Option) *TokenBucketLimiter {
	o := newOptions(opts)

	return &TokenBucketLimiter{
		store:  store,
		cfg:    cfg,
		prefix: o.prefix,
		now:    o.now,
		logger: o.logger,
	}
}

func (l *TokenBucketLimiter) Check(ctx context.Context, identity string) (Decision, error) {
	now := l.now()
	key := rateLimitKey(l.prefix, StrategyTokenBucket, identity)
	ttl := 2 * l.cfg.RefillInterval

	if atomic, ok := l.store.(AtomicStateStore); ok {
		var decision Decision

		err := atomic.Update(ctx, key, ttl, func(current string, found bool) (string, bool) {
			var next string

			var write bool

			decision, next, write = l.step(identity, current, found, now)

			return next, write
		})
		if err != nil {
			return Decision{}, fmt.Errorf("update token bucket %s: %w", key, err)
		}

		return decision, nil
	}

	current, found, err := l.store.Get(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("read token bucket %s: %w", key, err)
	}

	decision, next, write := l.step(identity, current, found, now)
	if !write {
		return decision, nil
	}

	if err := l.store.Set(ctx, key, next); err != nil {
		return Decision{}, fmt.Errorf("write token bucket %s: %w", key, err)
	}

	expireBestEffort(ctx, l.store, key, ttl, l.logger)

	return decision, nil
}

// step applies refill and consumption to the stored value. It returns the
// value to persist and whether anything should be written.
func (l *TokenBucketLimiter) step(identity, current string, found bool, now time.Time) (Decision, string, bool) {
	nowMs := now.UnixMilli()
	state := l.load(identity, current, found, nowMs)
	intervalMs := l.cfg.RefillInterval.Milliseconds()

	// A clock that went backwards refills nothing.
	if elapsed := nowMs - state.UpdatedAt; elapsed > 0 {
		if intervals := elapsed / intervalMs; intervals > 0 {
			state.Tokens = l.refill(state.Tokens, intervals)
		}
	}

	decision := Decision{
		Identity: identity,
		Strategy: StrategyTokenBucket,
		Limit:    l.cfg.Capacity,
	}

	if state.Tokens <= 0 {
		decision.ResetAfter = l.untilNextRefill(state.UpdatedAt, nowMs)

		return decision, "", false
	}

	state.Tokens--
	state.UpdatedAt = nowMs

	decision.Allowed = true
	decision.Remaining = state.Tokens
	decision.ResetAfter = l.cfg.RefillInterval

	return decision, EncodeState(state), true
}

// load decodes the stored state. Misses and corrupt records both start from
// a full bucket.
func (l *TokenBucketLimiter) load(identity, current string, found bool, nowMs int64) TokenBucketState {
	full := TokenBucketState{Version: StateVersion, Tokens: l.cfg.Capacity, UpdatedAt: nowMs}

	if !found {
		return full
	}

	state, err := DecodeState(current)
	if err != nil {
		l.logger.Debug("resetting corrupt token bucket state",
			zap.String("identity", identity),
			zap.Error(err),
		)

		return full
	}

	// Capacity may have been lowered since the record was written.
	state.Tokens = min(state.Tokens, l.cfg.Capacity)

	return state
}

// refill adds intervals worth of tokens, capped at capacity. The cap is
// checked before multiplying so old records cannot overflow.
func (l *TokenBucketLimiter) refill(tokens, intervals int64) int64 {
	missing := l.cfg.Capacity - tokens
	if missing <= 0 {
		return l.cfg.Capacity
	}

	if intervals >= (missing+l.cfg.RefillTokens-1)/l.cfg.RefillTokens {
		return l.cfg.Capacity
	}

	return tokens + intervals*l.cfg.RefillTokens
}

func (l *TokenBucketLimiter) untilNextRefill(updatedAt, nowMs int64) time.Duration {
	intervalMs := l.cfg.RefillInterval.Milliseconds()
	passed := max(0, (nowMs-updatedAt)/intervalMs)
	next := updatedAt + (passed+1)*intervalMs

	return time.Duration(next-nowMs) * time.Millisecond
}
