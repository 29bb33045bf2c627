package internal

import (
	"context"
)

type contextKey string

const SessionContextKey contextKey = "survey_session"

// WithSessionID stores the browser session id in the request context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionContextKey, sessionID)
}

// GetSessionIDFromContext extracts the browser session id from request context
func GetSessionIDFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(SessionContextKey).(string)
	if !ok || sessionID == "" {
		return "", false
	}

	return sessionID, true
}
