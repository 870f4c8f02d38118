package application

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/ground-booking/internal/scheduler"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withField := &ValidationError{FieldErrors: map[string]string{"field": "invalid"}}
	if got := withField.Error(); got != "validation failed: field: invalid" {
		t.Fatalf("expected single field message, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"a": "x", "b": "y"}}
	if got := withFields.Error(); got != "validation failed: 2 fields" {
		t.Fatalf("expected field count message, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	if err := (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors(); !err {
		t.Fatalf("expected HasErrors to report true when fields are present")
	}
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	if got := base.FieldErrors["first"]; got != "value" {
		t.Fatalf("expected add to populate map, got %q", got)
	}

	other := &ValidationError{FieldErrors: map[string]string{"second": "another"}}
	base.merge(other)
	if got := base.FieldErrors["second"]; got != "another" {
		t.Fatalf("expected merge to copy field, got %q", got)
	}

	base.merge(nil)
	if len(base.FieldErrors) != 2 {
		t.Fatalf("expected merge with nil to leave fields unchanged")
	}
}

func TestConflictError_Error(t *testing.T) {
	t.Parallel()

	single := &ConflictError{Conflicts: []ConflictDetail{{BookingID: "b-1", Date: "2024-01-10", StartTime: "08:00", EndTime: "10:00"}}}
	if got := single.Error(); got != "slot unavailable: overlaps booking b-1 (2024-01-10 08:00-10:00)" {
		t.Fatalf("unexpected single conflict message %q", got)
	}

	many := &ConflictError{Conflicts: []ConflictDetail{{BookingID: "b-1"}, {BookingID: "b-2"}}}
	if got := many.Error(); !strings.Contains(got, "2 bookings") {
		t.Fatalf("expected count in message, got %q", got)
	}

	raced := &ConflictError{Reason: ConcurrentWriteReason}
	if got := raced.Error(); got != "slot unavailable: "+ConcurrentWriteReason {
		t.Fatalf("unexpected race message %q", got)
	}
}

func TestPolicyViolationError_LeadTimeHours(t *testing.T) {
	t.Parallel()

	err := &PolicyViolationError{BookingID: "b-1", Action: "cancel", LeadTime: 24 * time.Hour, StartsIn: time.Hour}
	if got := err.LeadTimeHours(); got != 24 {
		t.Fatalf("expected 24 hours, got %v", got)
	}
	if got := err.Error(); got != "cannot cancel booking b-1: at least 24 hours notice is required" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestInvalidStateError_Error(t *testing.T) {
	t.Parallel()

	err := &InvalidStateError{BookingID: "b-1", Status: scheduler.StatusCompleted, Action: "confirm"}
	if got := err.Error(); got != "cannot confirm booking b-1 in status completed" {
		t.Fatalf("unexpected message %q", got)
	}
	err.Reason = "interval has not ended"
	if got := err.Error(); !strings.HasSuffix(got, ": interval has not ended") {
		t.Fatalf("expected reason suffix, got %q", got)
	}
}

func TestStorageErrorWrapsOnce(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	wrapped := storageError("create booking", cause)
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected storage error to unwrap to cause")
	}
	if again := storageError("other", wrapped); again != wrapped {
		t.Fatalf("expected storage error not to be wrapped twice")
	}
	if storageError("noop", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
}
