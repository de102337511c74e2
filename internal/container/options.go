package container

import (
	"fmt"
	"time"

	"github.com/serroba/admission-gate/internal/ratelimit"
)

// Options are the CLI flags of the server. humacli also reads them from
// SERVICE_* environment variables.
type Options struct {
	Port        int    `default:"8888"           help:"Port to listen on"                          short:"p"`
	RedisAddr   string `default:"localhost:6379" help:"Redis server address"                       short:"r"`
	PostgresDSN string `default:""               help:"Postgres DSN for rejection storage"`
	LogFormat   string `default:"json"           help:"Log format: json or console"`

	// TrustProxyHeaders honors X-Authenticated-Subject and X-Forwarded-For
	// and enables the decision API. Only set it behind a proxy that
	// overwrites those headers.
	TrustProxyHeaders bool `default:"false" help:"Trust subject and forwarded-for headers set by a fronting proxy"`

	Strategy         string `default:"fixed_window" help:"Limiter: fixed_window, sliding_window or token_bucket" short:"s"`
	Prefix           string `default:"ratelimit"    help:"Key prefix in Redis"`
	WindowMS         int    `default:"60000"        help:"Window length in milliseconds"`
	Max              int    `default:"100"          help:"Calls allowed per window"`
	Capacity         int    `default:"100"          help:"Token bucket capacity"`
	RefillTokens     int    `default:"10"           help:"Tokens added per refill interval"`
	RefillIntervalMS int    `default:"1000"         help:"Token bucket refill interval in milliseconds"`
	Atomic           bool   `default:"true"         help:"Update token bucket state in a Redis transaction"`
	PerPath          bool   `default:"false"        help:"Give every route its own budget"`
	LimitsFile       string `default:""             help:"YAML limits file; replaces the limiter flags"`
}

// RateLimitConfig builds the limiter configuration, from LimitsFile when it
// is set and from the flags otherwise.
func (o *Options) RateLimitConfig() (ratelimit.Config, error) {
	if o.LimitsFile != "" {
		cfg, err := ratelimit.LoadConfig(o.LimitsFile)
		if err != nil {
			return ratelimit.Config{}, fmt.Errorf("load limits file: %w", err)
		}

		return cfg, nil
	}

	cfg := ratelimit.Config{
		Strategy: ratelimit.Strategy(o.Strategy),
		Prefix:   o.Prefix,
	}

	window := &ratelimit.WindowConfig{
		Window: time.Duration(o.WindowMS) * time.Millisecond,
		Max:    int64(o.Max),
	}

	switch cfg.Strategy {
	case ratelimit.StrategyFixedWindow:
		cfg.FixedWindow = window
	case ratelimit.StrategySlidingWindow:
		cfg.SlidingWindow = window
	case ratelimit.StrategyTokenBucket:
		cfg.TokenBucket = &ratelimit.TokenBucketConfig{
			Capacity:       int64(o.Capacity),
			RefillTokens:   int64(o.RefillTokens),
			RefillInterval: time.Duration(o.RefillIntervalMS) * time.Millisecond,
		}
	}

	if err := cfg.Validate(); err != nil {
		return ratelimit.Config{}, err
	}

	return cfg, nil
}
