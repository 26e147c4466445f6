package middleware

import "context"

type contextKey string

const (
	RequestIDKey contextKey = "request_id"

	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
)

// GetRequestID returns the request id stored by RequestID, or "" when the
// context carries none.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
