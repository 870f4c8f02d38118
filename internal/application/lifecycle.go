package application

import (
	"time"

	"github.com/example/ground-booking/internal/scheduler"
)

// DefaultLeadTime is the notice required before a booking may be cancelled or rescheduled.
const DefaultLeadTime = 24 * time.Hour

const (
	// ReasonRescheduled marks the booking replaced by a reschedule.
	ReasonRescheduled = "rescheduled"
	// ReasonAbandoned marks a pending booking whose interval passed unconfirmed.
	ReasonAbandoned = "abandoned"
)

// BookingStateMachine owns the guarded transitions of a single booking. It
// never persists anything; callers store the returned value.
type BookingStateMachine struct {
	leadTime time.Duration
	location *time.Location
}

// NewBookingStateMachine builds a state machine. Booking intervals are
// interpreted as wall-clock times in loc.
func NewBookingStateMachine(leadTime time.Duration, loc *time.Location) *BookingStateMachine {
	if leadTime < 0 {
		leadTime = 0
	}
	if loc == nil {
		loc = time.UTC
	}
	return &BookingStateMachine{leadTime: leadTime, location: loc}
}

// LeadTime returns the configured cancellation and reschedule notice.
func (m *BookingStateMachine) LeadTime() time.Duration {
	return m.leadTime
}

// Location returns the facility time zone.
func (m *BookingStateMachine) Location() *time.Location {
	return m.location
}

// Create returns a new pending booking with its amount snapshotted from the
// resource price.
func (m *BookingStateMachine) Create(id string, resource Resource, slotNumber int, interval scheduler.Interval, customerID string, bookingType BookingType, notes string, now time.Time) Booking {
	return Booking{
		ID:          id,
		ResourceID:  resource.ID,
		SlotNumber:  slotNumber,
		Interval:    interval,
		CustomerID:  customerID,
		Status:      scheduler.StatusPending,
		BookingType: bookingType,
		Notes:       notes,
		Amount:      BookingAmount(resource.PricePerSlotHour, interval.Minutes()),
		Currency:    resource.Currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Confirm moves a pending booking to confirmed.
func (m *BookingStateMachine) Confirm(b Booking, now time.Time) (Booking, error) {
	if b.Status != scheduler.StatusPending {
		return Booking{}, &InvalidStateError{BookingID: b.ID, Status: b.Status, Action: "confirm"}
	}
	return m.move(b, scheduler.StatusConfirmed, "", now), nil
}

// Cancel frees the booking's slot. Only pending and confirmed bookings may be
// cancelled, and only while the start is more than the lead time away.
func (m *BookingStateMachine) Cancel(b Booking, reason string, now time.Time) (Booking, error) {
	if err := m.guard(b, "cancel", now); err != nil {
		return Booking{}, err
	}
	return m.move(b, scheduler.StatusCancelled, reason, now), nil
}

// GuardReschedule applies the cancellation guard to a reschedule request.
func (m *BookingStateMachine) GuardReschedule(b Booking, now time.Time) error {
	return m.guard(b, "reschedule", now)
}

// Complete marks a confirmed booking whose interval has elapsed as completed.
func (m *BookingStateMachine) Complete(b Booking, now time.Time) (Booking, error) {
	if b.Status != scheduler.StatusConfirmed {
		return Booking{}, &InvalidStateError{BookingID: b.ID, Status: b.Status, Action: "complete"}
	}
	if !m.Elapsed(b, now) {
		return Booking{}, &InvalidStateError{BookingID: b.ID, Status: b.Status, Action: "complete", Reason: "interval has not ended"}
	}
	return m.move(b, scheduler.StatusCompleted, "", now), nil
}

// Abandon cancels a pending booking whose interval elapsed without
// confirmation. It is system driven and not subject to the lead time.
func (m *BookingStateMachine) Abandon(b Booking, now time.Time) (Booking, error) {
	if b.Status != scheduler.StatusPending {
		return Booking{}, &InvalidStateError{BookingID: b.ID, Status: b.Status, Action: "abandon"}
	}
	if !m.Elapsed(b, now) {
		return Booking{}, &InvalidStateError{BookingID: b.ID, Status: b.Status, Action: "abandon", Reason: "interval has not ended"}
	}
	return m.move(b, scheduler.StatusCancelled, ReasonAbandoned, now), nil
}

// Elapsed reports whether the booking's interval has fully passed.
func (m *BookingStateMachine) Elapsed(b Booking, now time.Time) bool {
	return !now.Before(b.Interval.EndAt(m.location))
}

// StartsIn returns the time remaining until the booking starts.
func (m *BookingStateMachine) StartsIn(b Booking, now time.Time) time.Duration {
	return b.Interval.StartAt(m.location).Sub(now)
}

func (m *BookingStateMachine) guard(b Booking, action string, now time.Time) error {
	if b.Status != scheduler.StatusPending && b.Status != scheduler.StatusConfirmed {
		return &InvalidStateError{BookingID: b.ID, Status: b.Status, Action: action}
	}
	if startsIn := m.StartsIn(b, now); startsIn <= m.leadTime {
		return &PolicyViolationError{BookingID: b.ID, Action: action, LeadTime: m.leadTime, StartsIn: startsIn}
	}
	return nil
}

func (m *BookingStateMachine) move(b Booking, to scheduler.Status, reason string, now time.Time) Booking {
	b.Status = to
	if reason != "" {
		b.CancelReason = reason
	}
	b.UpdatedAt = now
	return b
}

// BookingAmount prices an interval of minutes at pricePerHour minor units per
// hour, rounding half up to the nearest minor unit.
func BookingAmount(pricePerHour int64, minutes int) int64 {
	if pricePerHour <= 0 || minutes <= 0 {
		return 0
	}
	return (pricePerHour*int64(minutes) + 30) / 60
}
