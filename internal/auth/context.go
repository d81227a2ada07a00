package auth

import "context"

type contextKey int

const (
	tokenKey contextKey = iota
	userKey
)

// WithToken returns a context carrying the caller's token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

// TokenFromContext returns the caller's token, or "" when anonymous.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// WithUser returns a context carrying the resolved user id.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the resolved user id, or "" when anonymous.
func UserFromContext(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}
