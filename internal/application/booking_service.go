package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/ground-booking/internal/locking"
	"github.com/example/ground-booking/internal/persistence"
	"github.com/example/ground-booking/internal/scheduler"
)

const maxNotesLength = 500

// BookingRepository captures the persistence interactions needed by the service.
type BookingRepository interface {
	// CreateBookings inserts all bookings atomically. It returns
	// persistence.ErrOverlap when any of them overlaps a blocking booking.
	CreateBookings(ctx context.Context, bookings []Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	// UpdateBookingStatus applies change only while the stored status still
	// equals change.From, returning persistence.ErrStaleWrite otherwise.
	UpdateBookingStatus(ctx context.Context, change StatusChange) (Booking, error)
	// ReplaceBooking applies change and inserts replacement in one transaction.
	ReplaceBooking(ctx context.Context, change StatusChange, replacement Booking) error
}

// BookingFilter narrows queries issued to the booking repository.
type BookingFilter struct {
	ResourceID string
	SlotNumber int
	Date       *time.Time
	OnOrBefore *time.Time
	CustomerID string
	Statuses   []scheduler.Status
}

// StatusChange describes a guarded status update.
type StatusChange struct {
	BookingID string
	From      scheduler.Status
	To        scheduler.Status
	Reason    string
	At        time.Time
}

// ResourceCatalog exposes read-only ground lookups.
type ResourceCatalog interface {
	GetResource(ctx context.Context, id string) (Resource, error)
	ListResources(ctx context.Context) ([]Resource, error)
}

// CustomerDirectory resolves booking owners.
type CustomerDirectory interface {
	GetCustomer(ctx context.Context, id string) (Customer, error)
}

// Locker serializes work on reservation keys.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (locking.Unlock, error)
}

// BookingServiceDeps captures the collaborators of a BookingService.
type BookingServiceDeps struct {
	Bookings    BookingRepository
	Catalog     ResourceCatalog
	Customers   CustomerDirectory
	Locker      Locker
	Events      EventPublisher
	LeadTime    time.Duration
	Increment   time.Duration
	Location    *time.Location
	MaxSeries   int
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// BookingService is the scheduling engine: it checks availability, creates
// bookings and drives their lifecycle.
type BookingService struct {
	bookings    BookingRepository
	catalog     ResourceCatalog
	customers   CustomerDirectory
	locker      Locker
	events      EventPublisher
	machine     *BookingStateMachine
	increment   time.Duration
	maxSeries   int
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService wires dependencies for booking operations.
func NewBookingService(deps BookingServiceDeps) *BookingService {
	if deps.IDGenerator == nil {
		deps.IDGenerator = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Locker == nil {
		deps.Locker = locking.NewKeyedMutex()
	}
	if deps.Increment <= 0 {
		deps.Increment = time.Hour
	}
	if deps.MaxSeries <= 0 {
		deps.MaxSeries = 52
	}
	return &BookingService{
		bookings:    deps.Bookings,
		catalog:     deps.Catalog,
		customers:   deps.Customers,
		locker:      deps.Locker,
		events:      deps.Events,
		machine:     NewBookingStateMachine(deps.LeadTime, deps.Location),
		increment:   deps.Increment,
		maxSeries:   deps.MaxSeries,
		idGenerator: deps.IDGenerator,
		now:         deps.Now,
		logger:      defaultLogger(deps.Logger),
	}
}

// StateMachine exposes the lifecycle rules the service enforces.
func (s *BookingService) StateMachine() *BookingStateMachine {
	return s.machine
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

// CheckAvailability reports whether the queried interval is free on the
// ground slot, against a fresh read of current bookings.
func (s *BookingService) CheckAvailability(ctx context.Context, query AvailabilityQuery) (result AvailabilityResult, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CheckAvailability", "ground_id", query.ResourceID, "slot", query.SlotNumber)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "availability check failed", err)
			return
		}
		logger.DebugContext(ctx, "availability checked", "available", result.Available, "conflicts", len(result.Conflicts))
	}()

	_, interval, err := s.resolveTarget(ctx, query.ResourceID, query.SlotNumber, query.Interval)
	if err != nil {
		return
	}

	conflicts, err := s.findConflicts(ctx, query.ResourceID, query.SlotNumber, interval, "")
	if err != nil {
		return
	}

	result.Conflicts, err = s.describeConflicts(ctx, conflicts)
	if err != nil {
		return
	}
	result.Available = len(result.Conflicts) == 0
	result.Message = availabilityMessage(result.Conflicts)
	return
}

// ListConflicts returns the bookings that block the queried interval.
func (s *BookingService) ListConflicts(ctx context.Context, query AvailabilityQuery) ([]ConflictDetail, error) {
	result, err := s.CheckAvailability(ctx, query)
	if err != nil {
		return nil, err
	}
	return result.Conflicts, nil
}

// Reserve creates a pending booking if, and only if, the interval is free at
// the moment of creation. Concurrent reservations for the same ground, slot
// and date are serialized.
func (s *BookingService) Reserve(ctx context.Context, params ReserveParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Reserve",
		"ground_id", params.ResourceID,
		"slot", params.SlotNumber,
		"customer_id", params.CustomerID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to reserve booking", err)
			return
		}
		logger.With("booking_id", booking.ID).InfoContext(ctx, "booking reserved")
	}()

	resource, interval, bookingType, err := s.validateReservation(ctx, params)
	if err != nil {
		return
	}

	key := scheduler.KeyFor(resource.ID, params.SlotNumber, interval)
	unlock, err := s.locker.Lock(ctx, key.String())
	if err != nil {
		return
	}
	defer unlock()

	conflicts, err := s.findConflicts(ctx, resource.ID, params.SlotNumber, interval, "")
	if err != nil {
		return
	}
	if len(conflicts) > 0 {
		err = s.conflictError(ctx, conflicts)
		return
	}

	now := s.now()
	candidate := s.machine.Create(s.idGenerator(), resource, params.SlotNumber, interval, params.CustomerID, bookingType, strings.TrimSpace(params.Notes), now)

	if err = s.bookings.CreateBookings(ctx, []Booking{candidate}); err != nil {
		err = s.mapWriteError(ctx, "create booking", err, []Booking{candidate}, "")
		return
	}

	booking = candidate
	s.publish(ctx, logger, NewBookingEvent(EventBookingCreated, booking, now))
	return
}

// Reschedule replaces a booking with a new pending booking on a new interval,
// optionally on another slot of the same ground. The old booking is cancelled
// with reason "rescheduled" in the same write; when the new interval is not
// available nothing changes.
func (s *BookingService) Reschedule(ctx context.Context, params RescheduleParams) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Reschedule", "booking_id", params.BookingID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to reschedule booking", err)
			return
		}
		logger.With("replacement_id", booking.ID).InfoContext(ctx, "booking rescheduled")
	}()

	current, err := s.getBooking(ctx, params.BookingID)
	if err != nil {
		return
	}

	slotNumber := params.SlotNumber
	if slotNumber == 0 {
		slotNumber = current.SlotNumber
	}
	resource, interval, err := s.resolveTarget(ctx, current.ResourceID, slotNumber, params.Interval)
	if err != nil {
		return
	}

	unlock, err := s.locker.Lock(ctx, current.Key().String(), scheduler.KeyFor(resource.ID, slotNumber, interval).String())
	if err != nil {
		return
	}
	defer unlock()

	// Re-read under the lock; the status may have moved since the first read.
	current, err = s.getBooking(ctx, params.BookingID)
	if err != nil {
		return
	}

	now := s.now()
	if err = s.machine.GuardReschedule(current, now); err != nil {
		return
	}
	if err = s.ensureFuture(interval, now); err != nil {
		return
	}

	conflicts, err := s.findConflicts(ctx, resource.ID, slotNumber, interval, current.ID)
	if err != nil {
		return
	}
	if len(conflicts) > 0 {
		err = s.conflictError(ctx, conflicts)
		return
	}

	cancelled, err := s.machine.Cancel(current, ReasonRescheduled, now)
	if err != nil {
		return
	}
	replacement := s.machine.Create(s.idGenerator(), resource, slotNumber, interval, current.CustomerID, current.BookingType, current.Notes, now)
	replacement.RescheduledFrom = current.ID

	change := StatusChange{BookingID: current.ID, From: current.Status, To: cancelled.Status, Reason: ReasonRescheduled, At: now}
	if err = s.bookings.ReplaceBooking(ctx, change, replacement); err != nil {
		err = s.mapWriteError(ctx, "replace booking", err, []Booking{replacement}, current.ID)
		return
	}

	booking = replacement
	s.publish(ctx, logger, NewBookingEvent(EventBookingCancelled, cancelled, now))
	s.publish(ctx, logger, NewBookingEvent(EventBookingCreated, replacement, now))
	return
}

// GetBooking returns a booking by id.
func (s *BookingService) GetBooking(ctx context.Context, id string) (Booking, error) {
	if s == nil {
		return Booking{}, fmt.Errorf("BookingService is nil")
	}
	return s.getBooking(ctx, id)
}

// ListBookings enumerates bookings matching params ordered by date and start time.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) ([]Booking, error) {
	if s == nil {
		return nil, fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil {
		return nil, fmt.Errorf("booking repository not configured")
	}

	filter := BookingFilter{
		ResourceID: strings.TrimSpace(params.ResourceID),
		SlotNumber: params.SlotNumber,
		CustomerID: strings.TrimSpace(params.CustomerID),
	}
	vErr := &ValidationError{}
	if params.SlotNumber < 0 {
		vErr.add("slot", "slot must be positive")
	}
	if params.Date != "" {
		date, err := scheduler.ParseDate(params.Date)
		if err != nil {
			vErr.add("date", "date must be formatted as YYYY-MM-DD")
		} else {
			filter.Date = &date
		}
	}
	if params.Status != "" {
		status, ok := scheduler.ParseStatus(params.Status)
		if !ok {
			vErr.add("status", "unknown status")
		} else {
			filter.Statuses = []scheduler.Status{status}
		}
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	bookings, err := s.bookings.ListBookings(ctx, filter)
	if err != nil {
		return nil, storageError("list bookings", err)
	}
	sortBookings(bookings)
	return bookings, nil
}

func (s *BookingService) getBooking(ctx context.Context, id string) (Booking, error) {
	if strings.TrimSpace(id) == "" {
		return Booking{}, newValidationError("booking_id", "booking id is required")
	}
	booking, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		if isNotFoundError(err) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, storageError("get booking", err)
	}
	return booking, nil
}

// resolveTarget validates a ground slot and interval, collecting every field error.
func (s *BookingService) resolveTarget(ctx context.Context, resourceID string, slotNumber int, input IntervalInput) (Resource, scheduler.Interval, error) {
	vErr := &ValidationError{}

	interval, iErr := s.parseInterval(input)
	vErr.merge(iErr)

	resource, err := s.lookupResource(ctx, resourceID)
	if err != nil {
		var inner *ValidationError
		if !errors.As(err, &inner) {
			return Resource{}, scheduler.Interval{}, err
		}
		vErr.merge(inner)
	} else if !resource.HasSlot(slotNumber) {
		vErr.add("slot", fmt.Sprintf("slot must be between 1 and %d", resource.SlotCount))
	}

	if vErr.HasErrors() {
		return Resource{}, scheduler.Interval{}, vErr
	}
	return resource, interval, nil
}

func (s *BookingService) lookupResource(ctx context.Context, resourceID string) (Resource, error) {
	if strings.TrimSpace(resourceID) == "" {
		return Resource{}, newValidationError("ground_id", "ground is required")
	}
	if s.catalog == nil {
		return Resource{}, fmt.Errorf("resource catalog not configured")
	}
	resource, err := s.catalog.GetResource(ctx, resourceID)
	if err != nil {
		if isNotFoundError(err) {
			return Resource{}, newValidationError("ground_id", "ground does not exist")
		}
		return Resource{}, storageError("get resource", err)
	}
	return resource, nil
}

func (s *BookingService) parseInterval(input IntervalInput) (scheduler.Interval, *ValidationError) {
	vErr := &ValidationError{}

	date, err := scheduler.ParseDate(input.Date)
	if err != nil {
		vErr.add("date", "date must be formatted as YYYY-MM-DD")
	}
	start, err := scheduler.ParseTimeOfDay(input.StartTime)
	if err != nil {
		vErr.add("start_time", "start time must be formatted as HH:MM")
	}
	end, err := scheduler.ParseTimeOfDay(input.EndTime)
	if err != nil {
		vErr.add("end_time", "end time must be formatted as HH:MM")
	}
	if vErr.HasErrors() {
		return scheduler.Interval{}, vErr
	}

	interval, err := scheduler.NewInterval(date, start, end, s.increment)
	switch {
	case err == nil:
		return interval, nil
	case errors.Is(err, scheduler.ErrEmptyInterval):
		vErr.add("time", "start time must be before end time")
	case errors.Is(err, scheduler.ErrIncrement):
		vErr.add("time", fmt.Sprintf("duration must be a multiple of %s", formatIncrement(s.increment)))
	case errors.Is(err, scheduler.ErrInvalidTime):
		vErr.add("time", "times must fall within a single day")
	default:
		vErr.add("date", "date is required")
	}
	return scheduler.Interval{}, vErr
}

func (s *BookingService) validateReservation(ctx context.Context, params ReserveParams) (Resource, scheduler.Interval, BookingType, error) {
	vErr := &ValidationError{}

	resource, interval, err := s.resolveTarget(ctx, params.ResourceID, params.SlotNumber, params.Interval)
	if err != nil {
		var inner *ValidationError
		if !errors.As(err, &inner) {
			return Resource{}, scheduler.Interval{}, "", err
		}
		vErr.merge(inner)
	} else if fErr := s.ensureFuture(interval, s.now()); fErr != nil {
		var inner *ValidationError
		if errors.As(fErr, &inner) {
			vErr.merge(inner)
		}
	}

	bookingType, ok := ParseBookingType(strings.TrimSpace(params.BookingType))
	if !ok {
		vErr.add("booking_type", "booking type must be one of practice, match, coaching, event")
	}
	if len([]rune(params.Notes)) > maxNotesLength {
		vErr.add("notes", fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
	}

	if err := s.ensureCustomerExists(ctx, params.CustomerID); err != nil {
		var inner *ValidationError
		if !errors.As(err, &inner) {
			return Resource{}, scheduler.Interval{}, "", err
		}
		vErr.merge(inner)
	}

	if vErr.HasErrors() {
		return Resource{}, scheduler.Interval{}, "", vErr
	}
	return resource, interval, bookingType, nil
}

func (s *BookingService) ensureFuture(interval scheduler.Interval, now time.Time) error {
	if interval.StartAt(s.machine.Location()).After(now) {
		return nil
	}
	return newValidationError("start_time", "start time must be in the future")
}

func (s *BookingService) ensureCustomerExists(ctx context.Context, customerID string) error {
	if strings.TrimSpace(customerID) == "" {
		return newValidationError("customer_id", "customer is required")
	}
	if s.customers == nil {
		return nil
	}
	if _, err := s.customers.GetCustomer(ctx, customerID); err != nil {
		if isNotFoundError(err) {
			return newValidationError("customer_id", "customer does not exist")
		}
		return storageError("get customer", err)
	}
	return nil
}

// findConflicts reads the bookings of one ground slot and date and returns
// those blocking interval, ignoring excludeID.
func (s *BookingService) findConflicts(ctx context.Context, resourceID string, slotNumber int, interval scheduler.Interval, excludeID string) ([]Booking, error) {
	if s.bookings == nil {
		return nil, fmt.Errorf("booking repository not configured")
	}
	date := interval.Date
	existing, err := s.bookings.ListBookings(ctx, BookingFilter{
		ResourceID: resourceID,
		SlotNumber: slotNumber,
		Date:       &date,
	})
	if err != nil {
		return nil, storageError("list bookings", err)
	}

	byID := make(map[string]Booking, len(existing))
	reservations := make([]scheduler.Reservation, 0, len(existing))
	for _, booking := range existing {
		byID[booking.ID] = booking
		reservations = append(reservations, booking.reservation())
	}

	result := scheduler.Check(resourceID, slotNumber, interval, scheduler.Without(reservations, excludeID))
	if result.Available {
		return nil, nil
	}
	conflicts := make([]Booking, 0, len(result.Conflicts))
	for _, reservation := range result.Conflicts {
		conflicts = append(conflicts, byID[reservation.ID])
	}
	return conflicts, nil
}

func (s *BookingService) conflictError(ctx context.Context, conflicts []Booking) error {
	details, err := s.describeConflicts(ctx, conflicts)
	if err != nil {
		return err
	}
	return &ConflictError{Conflicts: details}
}

// describeConflicts renders conflicting bookings for operators. Customers the
// directory cannot resolve are shown by id.
func (s *BookingService) describeConflicts(ctx context.Context, conflicts []Booking) ([]ConflictDetail, error) {
	if len(conflicts) == 0 {
		return nil, nil
	}

	names := make(map[string]string)
	details := make([]ConflictDetail, 0, len(conflicts))
	for _, booking := range conflicts {
		name, ok := names[booking.CustomerID]
		if !ok {
			name = s.customerName(ctx, booking.CustomerID)
			names[booking.CustomerID] = name
		}
		details = append(details, ConflictDetail{
			BookingID:    booking.ID,
			CustomerID:   booking.CustomerID,
			CustomerName: name,
			Date:         booking.Interval.DateString(),
			StartTime:    booking.Interval.Start.String(),
			EndTime:      booking.Interval.End.String(),
			Status:       booking.Status,
		})
	}
	return details, nil
}

func (s *BookingService) customerName(ctx context.Context, customerID string) string {
	if s.customers == nil || customerID == "" {
		return customerID
	}
	customer, err := s.customers.GetCustomer(ctx, customerID)
	if err != nil {
		if !isNotFoundError(err) {
			s.loggerWith(ctx, "customerName").WarnContext(ctx, "customer lookup failed", "customer_id", customerID, "error", err)
		}
		return customerID
	}
	if strings.TrimSpace(customer.Name) == "" {
		return customerID
	}
	return customer.Name
}

// overlapRereads bounds how often a store-detected overlap is re-queried for
// detail before it is reported as a concurrent write.
const overlapRereads = 2

// mapWriteError converts repository write failures. An overlap detected by
// the store is re-queried so the caller gets concrete conflict detail.
func (s *BookingService) mapWriteError(ctx context.Context, op string, err error, attempted []Booking, excludeID string) error {
	switch {
	case errors.Is(err, persistence.ErrOverlap):
		for attempt := 0; attempt < overlapRereads; attempt++ {
			var conflicts []Booking
			for _, booking := range attempted {
				found, qErr := s.findConflicts(ctx, booking.ResourceID, booking.SlotNumber, booking.Interval, excludeID)
				if qErr != nil {
					return qErr
				}
				conflicts = append(conflicts, found...)
			}
			if len(conflicts) > 0 {
				return s.conflictError(ctx, dedupeBookings(conflicts))
			}
		}
		s.loggerWith(ctx, op).WarnContext(ctx, "store reported overlap without a visible conflict", "error", err)
		return &ConflictError{Reason: ConcurrentWriteReason}
	case errors.Is(err, persistence.ErrStaleWrite):
		if excludeID != "" {
			if current, gErr := s.getBooking(ctx, excludeID); gErr == nil {
				return &InvalidStateError{BookingID: current.ID, Status: current.Status, Action: "reschedule", Reason: "booking changed concurrently"}
			}
		}
		return storageError(op, err)
	case isNotFoundError(err):
		return ErrNotFound
	default:
		return storageError(op, err)
	}
}

func (s *BookingService) publish(ctx context.Context, logger *slog.Logger, event Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logger.WarnContext(ctx, "failed to publish booking event", "event", event.Type, "booking_id", event.BookingID, "error", err)
	}
}

func availabilityMessage(conflicts []ConflictDetail) string {
	switch len(conflicts) {
	case 0:
		return "slot is available"
	case 1:
		c := conflicts[0]
		return fmt.Sprintf("slot is already booked from %s to %s by %s", c.StartTime, c.EndTime, c.CustomerName)
	default:
		return fmt.Sprintf("slot overlaps %d existing bookings", len(conflicts))
	}
}

func formatIncrement(increment time.Duration) string {
	if increment%time.Hour == 0 {
		hours := int(increment / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d minutes", int(increment/time.Minute))
}

func sortBookings(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i], bookings[j]
		if !a.Interval.Date.Equal(b.Interval.Date) {
			return a.Interval.Date.Before(b.Interval.Date)
		}
		if a.Interval.Start != b.Interval.Start {
			return a.Interval.Start < b.Interval.Start
		}
		if a.SlotNumber != b.SlotNumber {
			return a.SlotNumber < b.SlotNumber
		}
		return a.ID < b.ID
	})
}

func dedupeBookings(bookings []Booking) []Booking {
	seen := make(map[string]struct{}, len(bookings))
	out := make([]Booking, 0, len(bookings))
	for _, booking := range bookings {
		if _, ok := seen[booking.ID]; ok {
			continue
		}
		seen[booking.ID] = struct{}{}
		out = append(out, booking)
	}
	return out
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
