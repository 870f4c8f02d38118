package persistence

import (
	"context"
	"time"
)

// GroundRepository exposes catalog operations for grounds.
type GroundRepository interface {
	UpsertGround(ctx context.Context, ground Ground) error
	GetGround(ctx context.Context, id string) (Ground, error)
	ListGrounds(ctx context.Context) ([]Ground, error)
}

// CustomerRepository exposes directory operations for customers.
type CustomerRepository interface {
	UpsertCustomer(ctx context.Context, customer Customer) error
	GetCustomer(ctx context.Context, id string) (Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
}

// BookingFilter narrows booking queries. Zero values do not filter.
type BookingFilter struct {
	GroundID   string
	SlotNumber int
	Date       *time.Time
	OnOrBefore *time.Time
	CustomerID string
	Statuses   []string
}

// StatusUpdate moves a booking from FromStatus to ToStatus. Reason, when set,
// is stored as the cancel reason.
type StatusUpdate struct {
	BookingID  string
	FromStatus string
	ToStatus   string
	Reason     string
	At         time.Time
}

// BookingRepository persists bookings. Implementations re-check overlaps
// inside their write transaction and report them as ErrOverlap.
type BookingRepository interface {
	CreateBookings(ctx context.Context, bookings []Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	UpdateBookingStatus(ctx context.Context, update StatusUpdate) (Booking, error)
	ReplaceBooking(ctx context.Context, update StatusUpdate, replacement Booking) error
}

// Store bundles the repositories a storage driver provides.
type Store interface {
	GroundRepository
	CustomerRepository
	BookingRepository
	Ping(ctx context.Context) error
	Close() error
}
