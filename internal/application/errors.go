package application

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/ground-booking/internal/scheduler"
)

var (
	// ErrNotFound is returned when the requested booking, ground or customer does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrProbeSuperseded is returned to an availability probe that a newer probe
	// from the same client replaced before it finished.
	ErrProbeSuperseded = errors.New("application: availability probe superseded")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	if len(v.FieldErrors) == 1 {
		for field, msg := range v.FieldErrors {
			return fmt.Sprintf("validation failed: %s: %s", field, msg)
		}
	}
	return fmt.Sprintf("validation failed: %d fields", len(v.FieldErrors))
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

func newValidationError(field, message string) *ValidationError {
	vErr := &ValidationError{}
	vErr.add(field, message)
	return vErr
}

// ConflictError reports that the requested interval collides with existing bookings.
type ConflictError struct {
	Conflicts []ConflictDetail
	// Reason explains a conflict reported without detail.
	Reason string
}

// ConcurrentWriteReason is used when storage rejected a write as overlapping
// but the competing booking could not be read back.
const ConcurrentWriteReason = "the slot was taken by a concurrent booking; check availability and retry"

func (e *ConflictError) Error() string {
	if e == nil {
		return "slot unavailable"
	}
	if len(e.Conflicts) == 0 {
		if e.Reason != "" {
			return "slot unavailable: " + e.Reason
		}
		return "slot unavailable"
	}
	first := e.Conflicts[0]
	if len(e.Conflicts) == 1 {
		return fmt.Sprintf("slot unavailable: overlaps booking %s (%s %s-%s)", first.BookingID, first.Date, first.StartTime, first.EndTime)
	}
	return fmt.Sprintf("slot unavailable: overlaps %d bookings starting with %s", len(e.Conflicts), first.BookingID)
}

// InvalidStateError reports a transition attempted from a status that does not allow it.
type InvalidStateError struct {
	BookingID string
	Status    scheduler.Status
	Action    string
	Reason    string
}

func (e *InvalidStateError) Error() string {
	msg := fmt.Sprintf("cannot %s booking %s in status %s", e.Action, e.BookingID, e.Status)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// PolicyViolationError reports a cancellation or reschedule inside the lead-time window.
type PolicyViolationError struct {
	BookingID string
	Action    string
	LeadTime  time.Duration
	StartsIn  time.Duration
}

// LeadTimeHours returns the required notice in hours.
func (e *PolicyViolationError) LeadTimeHours() float64 {
	return e.LeadTime.Hours()
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("cannot %s booking %s: at least %g hours notice is required", e.Action, e.BookingID, e.LeadTimeHours())
}

// StorageError wraps an unexpected persistence failure. The failed operation
// leaves no partial writes behind.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var sErr *StorageError
	if errors.As(err, &sErr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
