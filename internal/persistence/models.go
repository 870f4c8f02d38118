package persistence

import "time"

// StatusCancelled is the only booking status that does not block its slot.
const StatusCancelled = "cancelled"

// DateLayout is the storage format of booking dates.
const DateLayout = "2006-01-02"

// Ground represents a bookable cricket ground.
type Ground struct {
	ID               string
	Name             string
	SlotCount        int
	PricePerSlotHour int64
	Currency         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Customer represents the owner of bookings.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Booking represents a reservation row. Date is midnight UTC; StartMinute and
// EndMinute count minutes since midnight of that date.
type Booking struct {
	ID              string
	GroundID        string
	SlotNumber      int
	Date            time.Time
	StartMinute     int
	EndMinute       int
	CustomerID      string
	Status          string
	BookingType     string
	Notes           string
	Amount          int64
	Currency        string
	CancelReason    string
	RescheduledFrom string
	SeriesID        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Blocking reports whether the booking occupies its slot.
func (b Booking) Blocking() bool {
	return b.Status != StatusCancelled
}

// Overlaps reports whether both bookings occupy the same ground slot and date
// with intersecting half-open minute ranges.
func (b Booking) Overlaps(other Booking) bool {
	return b.GroundID == other.GroundID &&
		b.SlotNumber == other.SlotNumber &&
		b.Date.Equal(other.Date) &&
		b.StartMinute < other.EndMinute &&
		other.StartMinute < b.EndMinute
}
