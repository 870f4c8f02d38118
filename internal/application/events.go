package application

import (
	"context"
	"time"

	"github.com/example/ground-booking/internal/scheduler"
)

// EventType names a booking status change relayed to notification writers.
type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingCompleted EventType = "booking.completed"
)

// Event is published after a booking change has been committed.
type Event struct {
	Type       EventType        `json:"type"`
	BookingID  string           `json:"booking_id"`
	ResourceID string           `json:"ground_id"`
	SlotNumber int              `json:"slot"`
	Date       string           `json:"date"`
	StartTime  string           `json:"start_time"`
	EndTime    string           `json:"end_time"`
	CustomerID string           `json:"customer_id"`
	Status     scheduler.Status `json:"status"`
	Amount     int64            `json:"amount"`
	Currency   string           `json:"currency,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	Replaces   string           `json:"replaces,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// EventPublisher relays booking events. Implementations should not block the
// caller for delivery.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NewBookingEvent describes b after a change of the given type.
func NewBookingEvent(eventType EventType, b Booking, at time.Time) Event {
	event := Event{
		Type:       eventType,
		BookingID:  b.ID,
		ResourceID: b.ResourceID,
		SlotNumber: b.SlotNumber,
		Date:       b.Interval.DateString(),
		StartTime:  b.Interval.Start.String(),
		EndTime:    b.Interval.End.String(),
		CustomerID: b.CustomerID,
		Status:     b.Status,
		Amount:     b.Amount,
		Currency:   b.Currency,
		Replaces:   b.RescheduledFrom,
		OccurredAt: at,
	}
	if eventType == EventBookingCancelled {
		event.Reason = b.CancelReason
	}
	return event
}
