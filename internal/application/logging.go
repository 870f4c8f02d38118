package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/ground-booking/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrProbeSuperseded):
		return "superseded"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	var (
		vErr      *ValidationError
		conflict  *ConflictError
		stateErr  *InvalidStateError
		policyErr *PolicyViolationError
		storeErr  *StorageError
	)
	switch {
	case errors.As(err, &vErr):
		return "validation"
	case errors.As(err, &conflict):
		return "conflict"
	case errors.As(err, &stateErr):
		return "invalid_state"
	case errors.As(err, &policyErr):
		return "policy_violation"
	case errors.As(err, &storeErr):
		return "storage"
	}

	return "unexpected"
}

// logOutcome logs a failed operation. Caller errors log at warn, storage and
// unknown failures at error.
func logOutcome(ctx context.Context, logger *slog.Logger, msg string, err error) {
	switch kind := ErrorKind(err); kind {
	case "storage", "unexpected":
		logger.ErrorContext(ctx, msg, "error", err, "error_kind", kind)
	default:
		logger.WarnContext(ctx, msg, "error", err, "error_kind", kind)
	}
}
