package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Dispatcher runs the one limiter selected at construction for every
// inbound call.
type Dispatcher struct {
	strategy Strategy
	limiter  Limiter
	resolver KeyResolver
	logger   *zap.Logger
	metrics  *Metrics
}

// New validates cfg and builds the limiter it selects over the matching
// capability set in backends. All failures are *ConfigError.
func New(cfg Config, backends Backends, resolver KeyResolver, opts ...Option) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if resolver == nil {
		return nil, &ConfigError{Field: "resolver", Reason: "is required"}
	}

	// Caller options go last so an explicit WithPrefix wins over cfg.Prefix.
	opts = append([]Option{WithPrefix(cfg.Prefix)}, opts...)
	o := newOptions(opts)

	var limiter Limiter

	switch cfg.Strategy {
	case StrategyFixedWindow:
		if backends.Counter == nil {
			return nil, missingBackend("counter", cfg.Strategy)
		}

		limiter = NewFixedWindowLimiter(backends.Counter, *cfg.FixedWindow, opts...)
	case StrategySlidingWindow:
		if backends.Timestamps == nil {
			return nil, missingBackend("timestamps", cfg.Strategy)
		}

		limiter = NewSlidingWindowLimiter(backends.Timestamps, *cfg.SlidingWindow, opts...)
	case StrategyTokenBucket:
		if backends.State == nil {
			return nil, missingBackend("state", cfg.Strategy)
		}

		limiter = NewTokenBucketLimiter(backends.State, *cfg.TokenBucket, opts...)
	}

	return &Dispatcher{
		strategy: cfg.Strategy,
		limiter:  limiter,
		resolver: resolver,
		logger:   o.logger,
		metrics:  o.metrics,
	}, nil
}

func missingBackend(name string, strategy Strategy) error {
	return &ConfigError{
		Field:  "backends." + name,
		Reason: fmt.Sprintf("is required for %s", strategy),
	}
}

// Strategy returns the configured strategy.
func (d *Dispatcher) Strategy() Strategy {
	return d.strategy
}

// Admit resolves the caller identity and checks it. A nil error means the
// call may proceed. A reject is reported as *ExceededError together with
// the decision; backend and resolver failures are returned wrapped but
// otherwise untouched.
func (d *Dispatcher) Admit(ctx context.Context, meta RequestMeta, path string) (Decision, error) {
	identity, err := d.resolver(ctx, meta, path)
	if err != nil {
		return Decision{}, fmt.Errorf("resolve rate limit identity: %w", err)
	}

	start := time.Now()
	decision, err := d.limiter.Check(ctx, identity)
	d.metrics.observe(d.strategy, decision, err, time.Since(start))

	if err != nil {
		d.logger.Error("rate limit check failed",
			zap.String("strategy", string(d.strategy)),
			zap.String("identity", identity),
			zap.Error(err),
		)

		return Decision{}, err
	}

	if !decision.Allowed {
		d.logger.Debug("rate limit exceeded",
			zap.String("strategy", string(d.strategy)),
			zap.String("identity", identity),
			zap.String("path", path),
			zap.Duration("resetAfter", decision.ResetAfter),
		)

		return decision, &ExceededError{
			Identity: identity,
			Strategy: d.strategy,
			Decision: decision,
		}
	}

	return decision, nil
}
