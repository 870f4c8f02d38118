package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/ground-booking/internal/persistence"
	"github.com/example/ground-booking/internal/recurrence"
	"github.com/example/ground-booking/internal/scheduler"
)

// ReasonRequested is recorded when a cancellation carries no reason.
const ReasonRequested = "requested"

// staleWriteRetries bounds how often a transition re-reads after losing a
// guarded update to a concurrent writer.
const staleWriteRetries = 2

type transitionFunc func(Booking, time.Time) (Booking, error)

// Confirm moves a pending booking to confirmed.
func (s *BookingService) Confirm(ctx context.Context, bookingID string) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Confirm", "booking_id", bookingID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to confirm booking", err)
			return
		}
		logger.InfoContext(ctx, "booking confirmed")
	}()

	booking, err = s.transition(ctx, bookingID, s.machine.Confirm)
	if err != nil {
		return
	}
	s.publish(ctx, logger, NewBookingEvent(EventBookingConfirmed, booking, booking.UpdatedAt))
	return
}

// Cancel frees the booking's slot, subject to the lead-time policy.
func (s *BookingService) Cancel(ctx context.Context, bookingID, reason string) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ReasonRequested
	}

	logger := s.loggerWith(ctx, "Cancel", "booking_id", bookingID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to cancel booking", err)
			return
		}
		logger.InfoContext(ctx, "booking cancelled", "reason", reason)
	}()

	booking, err = s.transition(ctx, bookingID, func(b Booking, now time.Time) (Booking, error) {
		return s.machine.Cancel(b, reason, now)
	})
	if err != nil {
		return
	}
	s.publish(ctx, logger, NewBookingEvent(EventBookingCancelled, booking, booking.UpdatedAt))
	return
}

// Complete marks a confirmed booking whose interval has elapsed as completed.
func (s *BookingService) Complete(ctx context.Context, bookingID string) (booking Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "Complete", "booking_id", bookingID)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to complete booking", err)
			return
		}
		logger.InfoContext(ctx, "booking completed")
	}()

	booking, err = s.transition(ctx, bookingID, s.machine.Complete)
	if err != nil {
		return
	}
	s.publish(ctx, logger, NewBookingEvent(EventBookingCompleted, booking, booking.UpdatedAt))
	return
}

// SweepElapsed completes confirmed bookings and abandons pending bookings
// whose interval has ended. Bookings that change concurrently are skipped.
func (s *BookingService) SweepElapsed(ctx context.Context) (report SweepReport, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}
	if s.bookings == nil {
		err = fmt.Errorf("booking repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SweepElapsed")
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "lifecycle sweep failed", err)
		}
		if report.Completed > 0 || report.Abandoned > 0 {
			logger.InfoContext(ctx, "lifecycle sweep finished", "completed", report.Completed, "abandoned", report.Abandoned)
		}
	}()

	now := s.now()
	today := scheduler.DateIn(now, s.machine.Location())
	candidates, err := s.bookings.ListBookings(ctx, BookingFilter{
		OnOrBefore: &today,
		Statuses:   []scheduler.Status{scheduler.StatusPending, scheduler.StatusConfirmed},
	})
	if err != nil {
		err = storageError("list elapsed bookings", err)
		return
	}
	sortBookings(candidates)

	var failures []error
	for _, candidate := range candidates {
		if ctxErr := ctx.Err(); ctxErr != nil {
			failures = append(failures, ctxErr)
			break
		}
		if !s.machine.Elapsed(candidate, now) {
			continue
		}

		var (
			eventType EventType
			apply     transitionFunc
		)
		switch candidate.Status {
		case scheduler.StatusConfirmed:
			eventType, apply = EventBookingCompleted, s.machine.Complete
		case scheduler.StatusPending:
			eventType, apply = EventBookingCancelled, s.machine.Abandon
		default:
			continue
		}

		updated, tErr := s.transition(ctx, candidate.ID, apply)
		if tErr != nil {
			var stateErr *InvalidStateError
			if errors.As(tErr, &stateErr) || errors.Is(tErr, ErrNotFound) {
				logger.DebugContext(ctx, "skipping booking changed during sweep", "booking_id", candidate.ID, "error", tErr)
				continue
			}
			failures = append(failures, tErr)
			continue
		}

		if eventType == EventBookingCompleted {
			report.Completed++
		} else {
			report.Abandoned++
		}
		s.publish(ctx, logger, NewBookingEvent(eventType, updated, updated.UpdatedAt))
	}

	err = errors.Join(failures...)
	return
}

// transition applies fn to a fresh read of the booking under its key lock and
// stores the result guarded by the status that was read.
func (s *BookingService) transition(ctx context.Context, bookingID string, fn transitionFunc) (Booking, error) {
	current, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}

	unlock, err := s.locker.Lock(ctx, current.Key().String())
	if err != nil {
		return Booking{}, err
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		current, err = s.getBooking(ctx, bookingID)
		if err != nil {
			return Booking{}, err
		}

		now := s.now()
		next, err := fn(current, now)
		if err != nil {
			return Booking{}, err
		}

		change := StatusChange{BookingID: current.ID, From: current.Status, To: next.Status, At: now}
		if next.Status == scheduler.StatusCancelled {
			change.Reason = next.CancelReason
		}
		stored, err := s.bookings.UpdateBookingStatus(ctx, change)
		if err == nil {
			return stored, nil
		}
		if errors.Is(err, persistence.ErrStaleWrite) && attempt < staleWriteRetries {
			continue
		}
		if isNotFoundError(err) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, storageError("update booking status", err)
	}
}

// ReserveSeries creates one pending booking per date selected by the
// recurrence rule, all on the same ground slot and time of day. Either every
// occurrence is reserved or none is.
func (s *BookingService) ReserveSeries(ctx context.Context, params SeriesParams) (bookings []Booking, err error) {
	if s == nil {
		err = fmt.Errorf("BookingService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ReserveSeries",
		"ground_id", params.ResourceID,
		"slot", params.SlotNumber,
		"customer_id", params.CustomerID,
	)
	defer func() {
		if err != nil {
			logOutcome(ctx, logger, "failed to reserve series", err)
			return
		}
		logger.InfoContext(ctx, "series reserved", "series_id", bookings[0].SeriesID, "occurrences", len(bookings))
	}()

	intervals, resource, bookingType, err := s.expandSeries(ctx, params)
	if err != nil {
		return
	}

	keys := make([]string, 0, len(intervals))
	for _, interval := range intervals {
		keys = append(keys, scheduler.KeyFor(resource.ID, params.SlotNumber, interval).String())
	}
	unlock, err := s.locker.Lock(ctx, keys...)
	if err != nil {
		return
	}
	defer unlock()

	var conflicts []Booking
	for _, interval := range intervals {
		found, fErr := s.findConflicts(ctx, resource.ID, params.SlotNumber, interval, "")
		if fErr != nil {
			err = fErr
			return
		}
		conflicts = append(conflicts, found...)
	}
	if len(conflicts) > 0 {
		err = s.conflictError(ctx, dedupeBookings(conflicts))
		return
	}

	now := s.now()
	seriesID := s.idGenerator()
	notes := strings.TrimSpace(params.Notes)
	candidates := make([]Booking, 0, len(intervals))
	for _, interval := range intervals {
		booking := s.machine.Create(s.idGenerator(), resource, params.SlotNumber, interval, params.CustomerID, bookingType, notes, now)
		booking.SeriesID = seriesID
		candidates = append(candidates, booking)
	}

	if err = s.bookings.CreateBookings(ctx, candidates); err != nil {
		err = s.mapWriteError(ctx, "create series", err, candidates, "")
		return
	}

	bookings = candidates
	for _, booking := range bookings {
		s.publish(ctx, logger, NewBookingEvent(EventBookingCreated, booking, now))
	}
	return
}

func (s *BookingService) expandSeries(ctx context.Context, params SeriesParams) ([]scheduler.Interval, Resource, BookingType, error) {
	vErr := &ValidationError{}

	resource, first, bookingType, err := s.validateReservation(ctx, params.ReserveParams)
	if err != nil {
		var inner *ValidationError
		if !errors.As(err, &inner) {
			return nil, Resource{}, "", err
		}
		vErr.merge(inner)
	}

	frequency, fErr := recurrence.ParseFrequency(params.Frequency)
	if fErr != nil {
		vErr.add("frequency", "frequency must be daily or weekly")
	}
	weekdays, wErr := recurrence.ParseWeekdays(params.Weekdays)
	if wErr != nil {
		vErr.add("weekdays", "weekdays must be names such as mon or monday")
	}
	until, uErr := scheduler.ParseDate(params.Until)
	if uErr != nil {
		vErr.add("until", "until must be formatted as YYYY-MM-DD")
	}
	if vErr.HasErrors() {
		return nil, Resource{}, "", vErr
	}

	dates, err := recurrence.NewEngine(s.maxSeries).Dates(recurrence.Rule{
		Frequency: frequency,
		Weekdays:  weekdays,
		StartsOn:  first.Date,
		EndsOn:    until,
	})
	switch {
	case errors.Is(err, recurrence.ErrTooManyOccurrences):
		return nil, Resource{}, "", newValidationError("until", fmt.Sprintf("series may not exceed %d occurrences", s.maxSeries))
	case errors.Is(err, recurrence.ErrInvalidWindow):
		return nil, Resource{}, "", newValidationError("until", "until must not be before the first date")
	case err != nil:
		return nil, Resource{}, "", newValidationError("frequency", err.Error())
	case len(dates) == 0:
		return nil, Resource{}, "", newValidationError("weekdays", "series selects no dates")
	}

	intervals := make([]scheduler.Interval, 0, len(dates))
	for _, date := range dates {
		interval, iErr := scheduler.NewInterval(date, first.Start, first.End, s.increment)
		if iErr != nil {
			return nil, Resource{}, "", newValidationError("time", iErr.Error())
		}
		intervals = append(intervals, interval)
	}
	return intervals, resource, bookingType, nil
}

// ListResources returns every ground in the catalog.
func (s *BookingService) ListResources(ctx context.Context) ([]Resource, error) {
	if s == nil || s.catalog == nil {
		return nil, fmt.Errorf("resource catalog not configured")
	}
	resources, err := s.catalog.ListResources(ctx)
	if err != nil {
		return nil, storageError("list resources", err)
	}
	return resources, nil
}

// GetResource returns one ground from the catalog.
func (s *BookingService) GetResource(ctx context.Context, id string) (Resource, error) {
	if s == nil || s.catalog == nil {
		return Resource{}, fmt.Errorf("resource catalog not configured")
	}
	resource, err := s.catalog.GetResource(ctx, id)
	if err != nil {
		if isNotFoundError(err) {
			return Resource{}, ErrNotFound
		}
		return Resource{}, storageError("get resource", err)
	}
	return resource, nil
}
