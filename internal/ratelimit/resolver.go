package ratelimit

import "context"

// AnonymousIdentity is the shared bucket for callers with no usable identity.
const AnonymousIdentity = "anonymous"

// RequestMeta is the request metadata a KeyResolver can draw on.
type RequestMeta struct {
	// Subject is the authenticated caller, if an upstream authenticator set one.
	Subject   string
	ClientIP  string
	UserAgent string
	RequestID string
}

type requestMetaKey struct{}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}

// KeyResolver maps a caller to a stable identity string. It must return the
// same identity for the same logical caller for at least one window.
type KeyResolver func(ctx context.Context, meta RequestMeta, path string) (string, error)

// FallbackResolver resolves the authenticated subject, then the client IP,
// then AnonymousIdentity.
func FallbackResolver() KeyResolver {
	return func(_ context.Context, meta RequestMeta, _ string) (string, error) {
		switch {
		case meta.Subject != "":
			return "subject:" + meta.Subject, nil
		case meta.ClientIP != "":
			return "ip:" + meta.ClientIP, nil
		default:
			return AnonymousIdentity, nil
		}
	}
}

// PathScopedResolver gives each operation path its own budget by appending
// the path to the identity produced by inner.
func PathScopedResolver(inner KeyResolver) KeyResolver {
	return func(ctx context.Context, meta RequestMeta, path string) (string, error) {
		identity, err := inner(ctx, meta, path)
		if err != nil {
			return "", err
		}

		if path == "" {
			return identity, nil
		}

		return identity + "|" + path, nil
	}
}
