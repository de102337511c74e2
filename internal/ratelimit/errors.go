package ratelimit

import (
	"errors"
	"fmt"
)

// ErrRateLimited matches any *ExceededError via errors.Is.
var ErrRateLimited = errors.New("rate limit exceeded")

// ConfigError reports an invalid limiter configuration. It is only ever
// returned from construction, never from Admit.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid rate limit config: %s %s", e.Field, e.Reason)
}

// ExceededError is returned by Admit when the admission decision is a reject.
type ExceededError struct {
	Identity string
	Strategy Strategy
	Decision Decision
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q (%s)", e.Identity, e.Strategy)
}

// Is lets callers branch with errors.Is(err, ErrRateLimited).
func (e *ExceededError) Is(target error) bool {
	return target == ErrRateLimited
}
