// Package memory provides an in-process implementation of the persistence
// repositories. It is used by tests and by deployments that do not need
// bookings to survive a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/ground-booking/internal/persistence"
)

var _ persistence.Store = (*Storage)(nil)

// Storage keeps grounds, customers and bookings in maps guarded by one lock.
type Storage struct {
	mu        sync.RWMutex
	grounds   map[string]persistence.Ground
	customers map[string]persistence.Customer
	bookings  map[string]persistence.Booking
	now       func() time.Time
}

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		grounds:   make(map[string]persistence.Ground),
		customers: make(map[string]persistence.Customer),
		bookings:  make(map[string]persistence.Booking),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// --- GroundRepository implementation ---

// UpsertGround stores or replaces a ground, keeping the original CreatedAt.
func (s *Storage) UpsertGround(ctx context.Context, ground persistence.Ground) error {
	if strings.TrimSpace(ground.ID) == "" || ground.SlotCount <= 0 || ground.PricePerSlotHour < 0 {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ground.CreatedAt, ground.UpdatedAt = s.stamp(ground.CreatedAt, ground.UpdatedAt)
	if existing, ok := s.grounds[ground.ID]; ok {
		ground.CreatedAt = existing.CreatedAt
	}
	s.grounds[ground.ID] = ground
	return nil
}

// GetGround retrieves a ground by ID.
func (s *Storage) GetGround(ctx context.Context, id string) (persistence.Ground, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ground, ok := s.grounds[id]
	if !ok {
		return persistence.Ground{}, persistence.ErrNotFound
	}
	return ground, nil
}

// ListGrounds returns all grounds ordered by name then ID.
func (s *Storage) ListGrounds(ctx context.Context) ([]persistence.Ground, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grounds := make([]persistence.Ground, 0, len(s.grounds))
	for _, ground := range s.grounds {
		grounds = append(grounds, ground)
	}
	sort.Slice(grounds, func(i, j int) bool {
		if grounds[i].Name == grounds[j].Name {
			return grounds[i].ID < grounds[j].ID
		}
		return grounds[i].Name < grounds[j].Name
	})
	return grounds, nil
}

// --- CustomerRepository implementation ---

// UpsertCustomer stores or replaces a customer.
func (s *Storage) UpsertCustomer(ctx context.Context, customer persistence.Customer) error {
	if strings.TrimSpace(customer.ID) == "" || strings.TrimSpace(customer.Name) == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	customer.CreatedAt, customer.UpdatedAt = s.stamp(customer.CreatedAt, customer.UpdatedAt)
	if existing, ok := s.customers[customer.ID]; ok {
		customer.CreatedAt = existing.CreatedAt
	}
	s.customers[customer.ID] = customer
	return nil
}

// GetCustomer retrieves a customer by ID.
func (s *Storage) GetCustomer(ctx context.Context, id string) (persistence.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return persistence.Customer{}, persistence.ErrNotFound
	}
	return customer, nil
}

// ListCustomers returns all customers ordered by name then ID.
func (s *Storage) ListCustomers(ctx context.Context) ([]persistence.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]persistence.Customer, 0, len(s.customers))
	for _, customer := range s.customers {
		customers = append(customers, customer)
	}
	sort.Slice(customers, func(i, j int) bool {
		if customers[i].Name == customers[j].Name {
			return customers[i].ID < customers[j].ID
		}
		return customers[i].Name < customers[j].Name
	})
	return customers, nil
}

// --- BookingRepository implementation ---

// CreateBookings stores every booking or none of them.
func (s *Storage) CreateBookings(ctx context.Context, bookings []persistence.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make([]persistence.Booking, 0, len(bookings))
	for _, booking := range bookings {
		prepared, err := s.prepareLocked(booking, "", staged)
		if err != nil {
			return err
		}
		staged = append(staged, prepared)
	}
	for _, booking := range staged {
		s.bookings[booking.ID] = booking
	}
	return nil
}

// ReplaceBooking applies update and stores replacement atomically.
func (s *Storage) ReplaceBooking(ctx context.Context, update persistence.StatusUpdate, replacement persistence.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.applyLocked(update)
	if err != nil {
		return err
	}
	prepared, err := s.prepareLocked(replacement, update.BookingID, nil)
	if err != nil {
		return err
	}
	s.bookings[updated.ID] = updated
	s.bookings[prepared.ID] = prepared
	return nil
}

// UpdateBookingStatus applies a guarded status change.
func (s *Storage) UpdateBookingStatus(ctx context.Context, update persistence.StatusUpdate) (persistence.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated, err := s.applyLocked(update)
	if err != nil {
		return persistence.Booking{}, err
	}
	s.bookings[updated.ID] = updated
	return updated, nil
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	booking, ok := s.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return booking, nil
}

// ListBookings returns bookings matching filter ordered by date, start
// minute, then ID.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bookings []persistence.Booking
	for _, booking := range s.bookings {
		if matchesFilter(booking, filter) {
			bookings = append(bookings, booking)
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.StartMinute != b.StartMinute {
			return a.StartMinute < b.StartMinute
		}
		return a.ID < b.ID
	})
	return bookings, nil
}

func matchesFilter(booking persistence.Booking, filter persistence.BookingFilter) bool {
	if filter.GroundID != "" && booking.GroundID != filter.GroundID {
		return false
	}
	if filter.SlotNumber > 0 && booking.SlotNumber != filter.SlotNumber {
		return false
	}
	if filter.Date != nil && !booking.Date.Equal(*filter.Date) {
		return false
	}
	if filter.OnOrBefore != nil && booking.Date.After(*filter.OnOrBefore) {
		return false
	}
	if filter.CustomerID != "" && booking.CustomerID != filter.CustomerID {
		return false
	}
	if len(filter.Statuses) > 0 {
		for _, status := range filter.Statuses {
			if booking.Status == status {
				return true
			}
		}
		return false
	}
	return true
}

// prepareLocked validates booking against stored rows and staged ones.
func (s *Storage) prepareLocked(booking persistence.Booking, ignoreID string, staged []persistence.Booking) (persistence.Booking, error) {
	if booking.ID == "" || booking.StartMinute >= booking.EndMinute {
		return persistence.Booking{}, persistence.ErrConstraintViolation
	}
	if _, ok := s.bookings[booking.ID]; ok {
		return persistence.Booking{}, fmt.Errorf("%w: booking %s", persistence.ErrDuplicate, booking.ID)
	}
	if _, ok := s.grounds[booking.GroundID]; !ok {
		return persistence.Booking{}, fmt.Errorf("%w: ground %s", persistence.ErrForeignKeyViolation, booking.GroundID)
	}

	if booking.Blocking() {
		for _, existing := range s.bookings {
			if existing.ID != ignoreID && existing.Blocking() && existing.Overlaps(booking) {
				return persistence.Booking{}, fmt.Errorf("%w: booking %s overlaps %s", persistence.ErrOverlap, booking.ID, existing.ID)
			}
		}
		for _, other := range staged {
			if other.ID == booking.ID {
				return persistence.Booking{}, fmt.Errorf("%w: booking %s", persistence.ErrDuplicate, booking.ID)
			}
			if other.Blocking() && other.Overlaps(booking) {
				return persistence.Booking{}, fmt.Errorf("%w: booking %s overlaps %s", persistence.ErrOverlap, booking.ID, other.ID)
			}
		}
	}

	booking.CreatedAt, booking.UpdatedAt = s.stamp(booking.CreatedAt, booking.UpdatedAt)
	return booking, nil
}

func (s *Storage) applyLocked(update persistence.StatusUpdate) (persistence.Booking, error) {
	booking, ok := s.bookings[update.BookingID]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	if booking.Status != update.FromStatus {
		return persistence.Booking{}, fmt.Errorf("%w: booking %s is %s, expected %s",
			persistence.ErrStaleWrite, booking.ID, booking.Status, update.FromStatus)
	}

	booking.Status = update.ToStatus
	if update.Reason != "" {
		booking.CancelReason = update.Reason
	}
	booking.UpdatedAt = update.At
	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = s.now()
	}
	return booking, nil
}

func (s *Storage) stamp(created, updated time.Time) (time.Time, time.Time) {
	if created.IsZero() {
		created = s.now()
	}
	if updated.IsZero() {
		updated = created
	}
	return created, updated
}
