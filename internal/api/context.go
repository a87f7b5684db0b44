package api

import "context"

type contextKey string

const userContextKey contextKey = "user_id"

// UserFromContext returns the caller's user id, or "" when unauthenticated
func UserFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userContextKey).(string)
	return userID
}

// ContextWithUser adds the caller's user id to context
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}
