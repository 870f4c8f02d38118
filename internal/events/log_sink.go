package events

import (
	"context"
	"log/slog"

	"github.com/example/ground-booking/internal/application"
)

// LogSink writes every event to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(ctx context.Context, event application.Event) error {
	attrs := []any{
		"event", string(event.Type),
		"booking_id", event.BookingID,
		"ground_id", event.ResourceID,
		"slot", event.SlotNumber,
		"date", event.Date,
		"start_time", event.StartTime,
		"end_time", event.EndTime,
		"status", string(event.Status),
	}
	if event.Reason != "" {
		attrs = append(attrs, "reason", event.Reason)
	}
	if event.Replaces != "" {
		attrs = append(attrs, "replaces", event.Replaces)
	}
	s.logger.InfoContext(ctx, "booking event", attrs...)
	return nil
}
