package common

import "context"

type ctxKey string

const (
	principalKey  ctxKey = "auth/principal"
	authSchemeKey ctxKey = "auth/scheme"
)

// WithPrincipal stores the authenticated username and the scheme that proved it.
func WithPrincipal(ctx context.Context, username, scheme string) context.Context {
	ctx = context.WithValue(ctx, principalKey, username)
	return context.WithValue(ctx, authSchemeKey, scheme)
}

// Principal extracts the authenticated username from the context if present.
func Principal(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(principalKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// AuthScheme returns "basic" or "bearer" for authenticated requests.
func AuthScheme(ctx context.Context) string {
	v, _ := ctx.Value(authSchemeKey).(string)
	return v
}
