package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/admission-gate/internal/ratelimit"
)

// RegisterRoutes registers the gated demo endpoint.
func RegisterRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/v1/ping",
		Summary:     "Gated ping",
		Description: "Answers pong while the caller is within its rate limit.",
		Tags:        []string{"Demo"},
	}, Ping)
}

// RegisterDecisionRoutes registers the decision API. Callers name the
// subject to charge, so it must only be reachable by trusted services.
func RegisterDecisionRoutes(api huma.API, decisions *DecisionHandler) {
	// The body names who is charged; the middleware must not charge the
	// HTTP caller a second time.
	huma.Register(api, huma.Operation{
		OperationID: "create-decision",
		Method:      http.MethodPost,
		Path:        "/v1/decisions",
		Summary:     "Request an admission decision",
		Description: "Runs the configured limiter for the subject, client IP and path in the body.",
		Tags:        []string{"Decisions"},
		Metadata:    ratelimit.Exempt(),
		Errors:      []int{http.StatusTooManyRequests},
	}, decisions.Decide)
}
