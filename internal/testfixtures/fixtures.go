package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/ground-booking/internal/application"
	"github.com/example/ground-booking/internal/persistence"
	"github.com/example/ground-booking/internal/scheduler"
)

var (
	groundCounter   uint64
	customerCounter uint64
	bookingCounter  uint64
)

var referenceTime = time.Date(2024, time.January, 8, 12, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the default booking date, two days after ReferenceTime.
func ReferenceDate() time.Time {
	return time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
}

// ----------------------------- Ground fixtures -----------------------------

// GroundFixture represents a deterministic ground that can be materialised for
// application or persistence tests.
type GroundFixture struct {
	ID               string
	Name             string
	SlotCount        int
	PricePerSlotHour int64
	Currency         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// GroundOption configures the generated ground fixture.
type GroundOption func(*GroundFixture)

// NewGroundFixture returns a three-slot ground priced at 6000 minor units per
// slot hour unless overridden.
func NewGroundFixture(opts ...GroundOption) GroundFixture {
	idx := atomic.AddUint64(&groundCounter, 1)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	fixture := GroundFixture{
		ID:               fmt.Sprintf("ground-%03d", idx),
		Name:             fmt.Sprintf("Ground %03d", idx),
		SlotCount:        3,
		PricePerSlotHour: 6000,
		Currency:         "INR",
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithGroundID overrides the generated ground ID.
func WithGroundID(id string) GroundOption {
	return func(f *GroundFixture) { f.ID = id }
}

// WithGroundName overrides the generated name.
func WithGroundName(name string) GroundOption {
	return func(f *GroundFixture) { f.Name = name }
}

// WithGroundSlots sets the number of pitches.
func WithGroundSlots(count int) GroundOption {
	return func(f *GroundFixture) { f.SlotCount = count }
}

// WithGroundPrice sets the price per slot hour and currency.
func WithGroundPrice(minorUnits int64, currency string) GroundOption {
	return func(f *GroundFixture) {
		f.PricePerSlotHour = minorUnits
		f.Currency = currency
	}
}

// Application converts the fixture into an application resource.
func (f GroundFixture) Application() application.Resource {
	return application.Resource{
		ID:               f.ID,
		Name:             f.Name,
		SlotCount:        f.SlotCount,
		PricePerSlotHour: f.PricePerSlotHour,
		Currency:         f.Currency,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

// Persistence converts the fixture into a persistence ground.
func (f GroundFixture) Persistence() persistence.Ground {
	return persistence.Ground{
		ID:               f.ID,
		Name:             f.Name,
		SlotCount:        f.SlotCount,
		PricePerSlotHour: f.PricePerSlotHour,
		Currency:         f.Currency,
		CreatedAt:        f.CreatedAt,
		UpdatedAt:        f.UpdatedAt,
	}
}

// ---------------------------- Customer fixtures ----------------------------

// CustomerFixture represents a deterministic customer.
type CustomerFixture struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CustomerOption configures the generated customer fixture.
type CustomerOption func(*CustomerFixture)

// NewCustomerFixture returns a deterministic customer fixture.
func NewCustomerFixture(opts ...CustomerOption) CustomerFixture {
	idx := atomic.AddUint64(&customerCounter, 1)
	id := fmt.Sprintf("customer-%03d", idx)
	fixture := CustomerFixture{
		ID:        id,
		Name:      fmt.Sprintf("Customer %03d", idx),
		Email:     id + "@example.com",
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithCustomerID overrides the generated customer ID.
func WithCustomerID(id string) CustomerOption {
	return func(f *CustomerFixture) { f.ID = id }
}

// WithCustomerName overrides the generated display name.
func WithCustomerName(name string) CustomerOption {
	return func(f *CustomerFixture) { f.Name = name }
}

// Application converts the fixture into an application customer.
func (f CustomerFixture) Application() application.Customer {
	return application.Customer{ID: f.ID, Name: f.Name, Email: f.Email}
}

// Persistence converts the fixture into a persistence customer.
func (f CustomerFixture) Persistence() persistence.Customer {
	return persistence.Customer{
		ID:        f.ID,
		Name:      f.Name,
		Email:     f.Email,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ----------------------------- Booking fixtures -----------------------------

// BookingFixture represents a deterministic booking. Start and End are
// minutes since midnight of Date.
type BookingFixture struct {
	ID              string
	GroundID        string
	SlotNumber      int
	Date            time.Time
	Start           int
	End             int
	CustomerID      string
	Status          scheduler.Status
	BookingType     application.BookingType
	Notes           string
	Amount          int64
	Currency        string
	CancelReason    string
	RescheduledFrom string
	SeriesID        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture returns a pending 10:00-12:00 practice booking on slot 1
// of ground-001 on ReferenceDate unless overridden.
func NewBookingFixture(opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	fixture := BookingFixture{
		ID:          fmt.Sprintf("booking-%03d", idx),
		GroundID:    "ground-001",
		SlotNumber:  1,
		Date:        ReferenceDate(),
		Start:       10 * 60,
		End:         12 * 60,
		CustomerID:  "customer-001",
		Status:      scheduler.StatusPending,
		BookingType: application.BookingTypePractice,
		Amount:      12000,
		Currency:    "INR",
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookingID overrides the generated booking ID.
func WithBookingID(id string) BookingOption {
	return func(f *BookingFixture) { f.ID = id }
}

// WithBookingGround sets the ground and slot.
func WithBookingGround(groundID string, slotNumber int) BookingOption {
	return func(f *BookingFixture) {
		f.GroundID = groundID
		f.SlotNumber = slotNumber
	}
}

// WithBookingDate sets the booking date.
func WithBookingDate(date time.Time) BookingOption {
	return func(f *BookingFixture) { f.Date = scheduler.TruncateDate(date) }
}

// WithBookingHours sets whole-hour start and end times.
func WithBookingHours(startHour, endHour int) BookingOption {
	return func(f *BookingFixture) {
		f.Start = startHour * 60
		f.End = endHour * 60
	}
}

// WithBookingCustomer sets the owning customer.
func WithBookingCustomer(customerID string) BookingOption {
	return func(f *BookingFixture) { f.CustomerID = customerID }
}

// WithBookingStatus sets the lifecycle status.
func WithBookingStatus(status scheduler.Status) BookingOption {
	return func(f *BookingFixture) { f.Status = status }
}

// WithBookingSeries marks the booking as part of a series.
func WithBookingSeries(seriesID string) BookingOption {
	return func(f *BookingFixture) { f.SeriesID = seriesID }
}

// Interval returns the booking window.
func (f BookingFixture) Interval() scheduler.Interval {
	return scheduler.Interval{
		Date:  scheduler.TruncateDate(f.Date),
		Start: scheduler.TimeOfDay(f.Start),
		End:   scheduler.TimeOfDay(f.End),
	}
}

// Application converts the fixture into an application booking.
func (f BookingFixture) Application() application.Booking {
	return application.Booking{
		ID:              f.ID,
		ResourceID:      f.GroundID,
		SlotNumber:      f.SlotNumber,
		Interval:        f.Interval(),
		CustomerID:      f.CustomerID,
		Status:          f.Status,
		BookingType:     f.BookingType,
		Notes:           f.Notes,
		Amount:          f.Amount,
		Currency:        f.Currency,
		CancelReason:    f.CancelReason,
		RescheduledFrom: f.RescheduledFrom,
		SeriesID:        f.SeriesID,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// Persistence converts the fixture into a persistence booking.
func (f BookingFixture) Persistence() persistence.Booking {
	return persistence.Booking{
		ID:              f.ID,
		GroundID:        f.GroundID,
		SlotNumber:      f.SlotNumber,
		Date:            scheduler.TruncateDate(f.Date),
		StartMinute:     f.Start,
		EndMinute:       f.End,
		CustomerID:      f.CustomerID,
		Status:          string(f.Status),
		BookingType:     string(f.BookingType),
		Notes:           f.Notes,
		Amount:          f.Amount,
		Currency:        f.Currency,
		CancelReason:    f.CancelReason,
		RescheduledFrom: f.RescheduledFrom,
		SeriesID:        f.SeriesID,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}
