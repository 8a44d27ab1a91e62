package auth

import "context"

type callerKey struct{}

// WithCaller returns a context carrying the authenticated user id.
func WithCaller(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, callerKey{}, userID)
}

// CallerFromContext returns the authenticated user id, or "" for anonymous requests.
func CallerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}
