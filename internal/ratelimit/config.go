package ratelimit

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy names one of the supported limiting algorithms.
type Strategy string

const (
	StrategyFixedWindow   Strategy = "fixed_window"
	StrategySlidingWindow Strategy = "sliding_window"
	StrategyTokenBucket   Strategy = "token_bucket"
)

// DefaultPrefix is used when Config.Prefix is empty.
const DefaultPrefix = "ratelimit"

// WindowConfig parameterizes the fixed and sliding window limiters.
type WindowConfig struct {
	Window time.Duration `yaml:"window"`
	Max    int64         `yaml:"max"`
}

// TokenBucketConfig parameterizes the token bucket limiter.
type TokenBucketConfig struct {
	Capacity       int64         `yaml:"capacity"`
	RefillTokens   int64         `yaml:"refillTokens"`
	RefillInterval time.Duration `yaml:"refillInterval"`
}

// Config selects exactly one strategy. Only the variant matching Strategy is
// read; the others are ignored.
type Config struct {
	Strategy      Strategy           `yaml:"strategy"`
	Prefix        string             `yaml:"prefix"`
	FixedWindow   *WindowConfig      `yaml:"fixedWindow,omitempty"`
	SlidingWindow *WindowConfig      `yaml:"slidingWindow,omitempty"`
	TokenBucket   *TokenBucketConfig `yaml:"tokenBucket,omitempty"`
}

// Validate checks the selected variant. Every failure is a *ConfigError.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyFixedWindow:
		return validateWindow("fixedWindow", c.FixedWindow)
	case StrategySlidingWindow:
		return validateWindow("slidingWindow", c.SlidingWindow)
	case StrategyTokenBucket:
		return validateTokenBucket(c.TokenBucket)
	case "":
		return &ConfigError{Field: "strategy", Reason: "is required"}
	default:
		return &ConfigError{Field: "strategy", Reason: fmt.Sprintf("%q is not supported", c.Strategy)}
	}
}

func validateWindow(field string, cfg *WindowConfig) error {
	if cfg == nil {
		return &ConfigError{Field: field, Reason: "is required"}
	}

	// Windows are computed in whole milliseconds.
	if cfg.Window < time.Millisecond {
		return &ConfigError{Field: field + ".window", Reason: "must be at least 1ms"}
	}

	if cfg.Max < 1 {
		return &ConfigError{Field: field + ".max", Reason: "must be at least 1"}
	}

	return nil
}

func validateTokenBucket(cfg *TokenBucketConfig) error {
	if cfg == nil {
		return &ConfigError{Field: "tokenBucket", Reason: "is required"}
	}

	if cfg.Capacity < 1 {
		return &ConfigError{Field: "tokenBucket.capacity", Reason: "must be at least 1"}
	}

	if cfg.RefillTokens < 1 {
		return &ConfigError{Field: "tokenBucket.refillTokens", Reason: "must be at least 1"}
	}

	if cfg.RefillInterval < time.Millisecond {
		return &ConfigError{Field: "tokenBucket.refillInterval", Reason: "must be at least 1ms"}
	}

	return nil
}

// ParseConfig decodes and validates a YAML limits document.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &ConfigError{Field: "limits file", Reason: err.Error()}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadConfig reads a YAML limits file from disk.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read limits file: %w", err)
	}

	return ParseConfig(data)
}
