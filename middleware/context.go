package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// LoggerKey is the context key for the request-scoped logger
	LoggerKey contextKey = "logger"
)

// GetRequestIDFromContext retrieves the request ID from context. IDs set by
// chi's RequestID middleware are found as well.
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return chimw.GetReqID(ctx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger stores a request-scoped logger in the context
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// LoggerFromContext returns the request-scoped logger, or fallback when none is set
func LoggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if val := ctx.Value(LoggerKey); val != nil {
		if logger, ok := val.(*zap.Logger); ok {
			return logger
		}
	}
	return fallback
}
