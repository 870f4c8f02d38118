package application

import (
	"time"

	"github.com/example/ground-booking/internal/scheduler"
)

// Resource is a bookable ground as exposed by the facility catalog.
type Resource struct {
	ID        string
	Name      string
	SlotCount int
	// PricePerSlotHour is expressed in minor currency units.
	PricePerSlotHour int64
	Currency         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HasSlot reports whether slotNumber is within 1..SlotCount.
func (r Resource) HasSlot(slotNumber int) bool {
	return slotNumber >= 1 && slotNumber <= r.SlotCount
}

// Customer is the identity owning a booking.
type Customer struct {
	ID    string
	Name  string
	Email string
}

// BookingType classifies what a ground is booked for.
type BookingType string

const (
	BookingTypePractice BookingType = "practice"
	BookingTypeMatch    BookingType = "match"
	BookingTypeCoaching BookingType = "coaching"
	BookingTypeEvent    BookingType = "event"
)

// ParseBookingType validates a booking type. Empty input defaults to practice.
func ParseBookingType(value string) (BookingType, bool) {
	switch bookingType := BookingType(value); bookingType {
	case "":
		return BookingTypePractice, true
	case BookingTypePractice, BookingTypeMatch, BookingTypeCoaching, BookingTypeEvent:
		return bookingType, true
	}
	return "", false
}

// Booking is a reservation of one slot of one ground for one interval.
type Booking struct {
	ID          string
	ResourceID  string
	SlotNumber  int
	Interval    scheduler.Interval
	CustomerID  string
	Status      scheduler.Status
	BookingType BookingType
	Notes       string
	// Amount is the price snapshot taken at creation, in minor currency units.
	Amount          int64
	Currency        string
	CancelReason    string
	RescheduledFrom string
	SeriesID        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Key returns the serialization key of the booking's slot and date.
func (b Booking) Key() scheduler.SlotKey {
	return scheduler.KeyFor(b.ResourceID, b.SlotNumber, b.Interval)
}

func (b Booking) reservation() scheduler.Reservation {
	return scheduler.Reservation{
		ID:         b.ID,
		ResourceID: b.ResourceID,
		SlotNumber: b.SlotNumber,
		Interval:   b.Interval,
		Status:     b.Status,
	}
}

// IntervalInput carries an interval as supplied by callers.
type IntervalInput struct {
	Date      string
	StartTime string
	EndTime   string
}

// AvailabilityQuery identifies a candidate interval on a ground slot.
type AvailabilityQuery struct {
	ResourceID string
	SlotNumber int
	Interval   IntervalInput
}

// AvailabilityResult is the outcome of an availability check.
type AvailabilityResult struct {
	Available bool
	Message   string
	Conflicts []ConflictDetail
}

// ConflictDetail explains why a slot is blocked.
type ConflictDetail struct {
	BookingID    string
	CustomerID   string
	CustomerName string
	Date         string
	StartTime    string
	EndTime      string
	Status       scheduler.Status
}

// ReserveParams wraps the data required to create a booking.
type ReserveParams struct {
	ResourceID  string
	SlotNumber  int
	Interval    IntervalInput
	CustomerID  string
	BookingType string
	Notes       string
}

// SeriesParams requests a recurring set of bookings sharing one slot and time.
type SeriesParams struct {
	ReserveParams
	Frequency string
	Weekdays  []string
	Until     string
}

// RescheduleParams moves a booking to a new interval. A zero SlotNumber keeps
// the current slot.
type RescheduleParams struct {
	BookingID  string
	SlotNumber int
	Interval   IntervalInput
}

// ListBookingsParams narrows booking listings. Empty fields do not filter.
type ListBookingsParams struct {
	ResourceID string
	SlotNumber int
	Date       string
	CustomerID string
	Status     string
}

// SweepReport summarises a lifecycle sweep.
type SweepReport struct {
	Completed int
	Abandoned int
}
