package auth

import (
	"context"
	"net/http"

	"traktical/models"
)

// ContextKey is the type used for context keys
type ContextKey string

const (
	// ContextKeyUser is the key for the resolved feed owner in the context
	ContextKeyUser ContextKey = "user"
	// ContextKeyRequestID is the key for the per-request id
	ContextKeyRequestID ContextKey = "requestID"
)

// WithUser returns a copy of ctx carrying the resolved user.
func WithUser(ctx context.Context, user *models.UserRecord) context.Context {
	return context.WithValue(ctx, ContextKeyUser, user)
}

// GetUser retrieves the user resolved from the capability key.
func GetUser(r *http.Request) *models.UserRecord {
	if user, ok := r.Context().Value(ContextKeyUser).(*models.UserRecord); ok {
		return user
	}
	return nil
}

// GetRequestID retrieves the request id assigned by the logging middleware.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return id
	}
	return ""
}
