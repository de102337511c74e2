package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/admission-gate/internal/ratelimit"
	"go.uber.org/zap"
)

// Admitter decides whether a caller may proceed.
type Admitter interface {
	Admit(ctx context.Context, meta ratelimit.RequestMeta, path string) (ratelimit.Decision, error)
}

// DecisionHandler exposes the dispatcher to other services.
type DecisionHandler struct {
	admitter Admitter
	logger   *zap.Logger
}

// NewDecisionHandler creates a new decision handler.
func NewDecisionHandler(admitter Admitter, logger *zap.Logger) *DecisionHandler {
	return &DecisionHandler{admitter: admitter, logger: logger}
}

// Decide runs one admission check for the caller described in the body.
// A reject is reported as 429 with Retry-After.
func (h *DecisionHandler) Decide(ctx context.Context, req *DecisionRequest) (*DecisionResponse, error) {
	meta := ratelimit.RequestMetaFromContext(ctx)
	meta.Subject = req.Body.Subject
	meta.ClientIP = req.Body.ClientIP

	decision, err := h.admitter.Admit(ctx, meta, req.Body.Path)

	var exceeded *ratelimit.ExceededError

	switch {
	case errors.As(err, &exceeded):
		return nil, huma.ErrorWithHeaders(
			huma.Error429TooManyRequests(fmt.Sprintf("rate limit exceeded for %s", exceeded.Decision.Identity)),
			exceeded.Decision.Headers(),
		)
	case err != nil:
		h.logger.Error("admission decision failed",
			zap.String("subject", req.Body.Subject),
			zap.String("clientIp", req.Body.ClientIP),
			zap.Error(err),
		)

		return nil, huma.Error500InternalServerError("failed to decide")
	}

	resp := &DecisionResponse{Body: decisionBody(decision)}
	headers := decision.Headers()
	resp.Headers.Limit = headers.Get(ratelimit.HeaderLimit)
	resp.Headers.Remaining = headers.Get(ratelimit.HeaderRemaining)
	resp.Headers.Reset = headers.Get(ratelimit.HeaderReset)

	return resp, nil
}

func decisionBody(d ratelimit.Decision) DecisionBody {
	return DecisionBody{
		Allowed:      d.Allowed,
		Identity:     d.Identity,
		Strategy:     string(d.Strategy),
		Limit:        d.Limit,
		Remaining:    d.Remaining,
		ResetAfterMs: d.ResetAfter.Milliseconds(),
	}
}
