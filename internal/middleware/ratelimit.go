package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/admission-gate/internal/ratelimit"
	"github.com/serroba/admission-gate/internal/telemetry"
	"go.uber.org/zap"
)

// Admitter decides whether a caller may proceed. *ratelimit.Dispatcher
// implements it.
type Admitter interface {
	Admit(ctx context.Context, meta ratelimit.RequestMeta, path string) (ratelimit.Decision, error)
}

// RejectionPublisher receives an event for every rejected request.
type RejectionPublisher interface {
	PublishRejection(ctx context.Context, event *telemetry.RejectionEvent) error
}

// RateLimiter returns a Huma middleware that asks admitter about every
// request. Rejected requests get 429 with Retry-After, backend failures 500.
// Operations carrying ratelimit.Exempt metadata are passed through untouched.
// publisher may be nil.
func RateLimiter(
	api huma.API,
	admitter Admitter,
	publisher RejectionPublisher,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if cfg := ratelimit.GetEndpointConfig(ctx); cfg != nil && cfg.Disabled {
			next(ctx)

			return
		}

		path := ratelimit.OperationPath(ctx)
		if path == "" {
			u := ctx.URL()
			path = u.Path
		}

		meta := ratelimit.RequestMetaFromContext(ctx.Context())
		if meta.ClientIP == "" {
			meta.ClientIP = remoteIP(ctx)
		}

		decision, err := admitter.Admit(ctx.Context(), meta, path)

		var exceeded *ratelimit.ExceededError

		switch {
		case errors.As(err, &exceeded):
			rejectRequest(api, ctx, exceeded.Decision, meta, path, publisher, logger)

			return
		case err != nil:
			logger.Error("rate limit check failed",
				zap.String("path", path),
				zap.String("requestId", meta.RequestID),
				zap.Error(err),
			)
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error")

			return
		}

		SetRateLimitHeaders(ctx, decision)
		next(ctx)
	}
}

// SetRateLimitHeaders writes the headers of decision to the response.
func SetRateLimitHeaders(ctx huma.Context, decision ratelimit.Decision) {
	for name, values := range decision.Headers() {
		ctx.SetHeader(name, values[0])
	}
}

func rejectRequest(
	api huma.API,
	ctx huma.Context,
	decision ratelimit.Decision,
	meta ratelimit.RequestMeta,
	path string,
	publisher RejectionPublisher,
	logger *zap.Logger,
) {
	logger.Warn("rate limit exceeded",
		zap.String("identity", decision.Identity),
		zap.String("strategy", string(decision.Strategy)),
		zap.String("method", ctx.Method()),
		zap.String("path", path),
		zap.Duration("resetAfter", decision.ResetAfter),
		zap.String("requestId", meta.RequestID),
	)

	if publisher != nil {
		event := telemetry.NewRejectionEvent(decision, meta, ctx.Method(), path, time.Now())
		if err := publisher.PublishRejection(ctx.Context(), event); err != nil {
			logger.Error("failed to publish rejection event",
				zap.String("identity", decision.Identity),
				zap.Error(err),
			)
		}
	}

	SetRateLimitHeaders(ctx, decision)

	msg := fmt.Sprintf("rate limit exceeded: %d requests allowed, retry in %s",
		decision.Limit, decision.ResetAfter)
	_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)
}
