package middleware

import (
	"net"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/admission-gate/internal/messaging"
	"github.com/serroba/admission-gate/internal/ratelimit"
)

const (
	// SubjectHeader carries the caller identity set by an upstream authenticator.
	SubjectHeader = "X-Authenticated-Subject"
	// RequestIDHeader is read from the request and echoed on the response.
	RequestIDHeader = "X-Request-ID"
)

// RequestMeta is a middleware that adds the caller subject, client IP,
// user-agent and a request id to the request context. newID generates ids
// for requests that arrive without one.
//
// The subject and forwarded-for headers are only honored when
// trustProxyHeaders is set, i.e. when every request passes a proxy that
// overwrites them. Otherwise the client IP is the connection's remote
// address and there is no subject.
func RequestMeta(
	_ huma.API, newID func() string, trustProxyHeaders bool,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		requestID := ctx.Header(RequestIDHeader)
		if requestID == "" && newID != nil {
			requestID = newID()
		}

		meta := ratelimit.RequestMeta{
			ClientIP:  remoteIP(ctx),
			UserAgent: ctx.Header("User-Agent"),
			RequestID: requestID,
		}

		if trustProxyHeaders {
			meta.Subject = strings.TrimSpace(ctx.Header(SubjectHeader))
			meta.ClientIP = forwardedIP(ctx, meta.ClientIP)
		}

		if requestID != "" {
			ctx.SetHeader(RequestIDHeader, requestID)
		}

		newCtx := ratelimit.ContextWithRequestMeta(ctx.Context(), meta)
		newCtx = messaging.WithCorrelationID(newCtx, requestID)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}

// forwardedIP returns the first X-Forwarded-For address, then X-Real-IP,
// then fallback.
func forwardedIP(ctx huma.Context, fallback string) string {
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	if xri := ctx.Header("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	return fallback
}

func remoteIP(ctx huma.Context) string {
	addr := ctx.RemoteAddr()

	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return ip
}
