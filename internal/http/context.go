package http

import (
	"context"
	"log/slog"

	"github.com/example/ground-booking/internal/logging"
)

type contextKey string

const (
	bookingIDContextKey contextKey = "booking_id"
	groundIDContextKey  contextKey = "ground_id"
	requestIDContextKey contextKey = "request_id"
)

// ContextWithLogger attaches a request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext returns the request scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// ContextWithBookingID injects the booking identifier resolved from the request path.
func ContextWithBookingID(ctx context.Context, bookingID string) context.Context {
	return context.WithValue(ctx, bookingIDContextKey, bookingID)
}

// BookingIDFromContext extracts a booking identifier previously associated with the context.
func BookingIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(bookingIDContextKey).(string)
	return id, ok
}

// ContextWithGroundID injects the ground identifier resolved from the request path.
func ContextWithGroundID(ctx context.Context, groundID string) context.Context {
	return context.WithValue(ctx, groundIDContextKey, groundID)
}

// GroundIDFromContext extracts a ground identifier previously associated with the context.
func GroundIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(groundIDContextKey).(string)
	return id, ok
}

// RequestIDFromContext returns the id assigned by RequestLogger.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}
