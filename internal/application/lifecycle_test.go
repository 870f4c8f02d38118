package application

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ground-booking/internal/scheduler"
)

func lifecycleBooking(t *testing.T, status scheduler.Status) Booking {
	t.Helper()
	return Booking{
		ID:         "b-1",
		ResourceID: "G1",
		SlotNumber: 1,
		Interval:   mustServiceInterval(t, "2024-01-10", "08:00", "10:00"),
		Status:     status,
	}
}

func TestBookingStateMachine_Transitions(t *testing.T) {
	t.Parallel()

	machine := NewBookingStateMachine(24*time.Hour, time.UTC)
	early := time.Date(2024, time.January, 8, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, time.January, 10, 10, 0, 0, 0, time.UTC)

	type outcome int
	const (
		ok outcome = iota
		invalid
		policy
	)

	tests := []struct {
		name   string
		from   scheduler.Status
		now    time.Time
		apply  func(Booking, time.Time) (Booking, error)
		to     scheduler.Status
		expect outcome
	}{
		{"confirm pending", scheduler.StatusPending, early, machine.Confirm, scheduler.StatusConfirmed, ok},
		{"confirm confirmed", scheduler.StatusConfirmed, early, machine.Confirm, "", invalid},
		{"confirm cancelled", scheduler.StatusCancelled, early, machine.Confirm, "", invalid},
		{"complete confirmed after end", scheduler.StatusConfirmed, late, machine.Complete, scheduler.StatusCompleted, ok},
		{"complete confirmed before end", scheduler.StatusConfirmed, early, machine.Complete, "", invalid},
		{"complete pending after end", scheduler.StatusPending, late, machine.Complete, "", invalid},
		{"abandon pending after end", scheduler.StatusPending, late, machine.Abandon, scheduler.StatusCancelled, ok},
		{"abandon confirmed", scheduler.StatusConfirmed, late, machine.Abandon, "", invalid},
		{"abandon pending before end", scheduler.StatusPending, early, machine.Abandon, "", invalid},
		{"cancel pending early", scheduler.StatusPending, early, cancelWith(machine, "weather"), scheduler.StatusCancelled, ok},
		{"cancel confirmed early", scheduler.StatusConfirmed, early, cancelWith(machine, "weather"), scheduler.StatusCancelled, ok},
		{"cancel confirmed late", scheduler.StatusConfirmed, late, cancelWith(machine, "weather"), "", policy},
		{"cancel completed", scheduler.StatusCompleted, early, cancelWith(machine, "weather"), "", invalid},
		{"cancel cancelled", scheduler.StatusCancelled, early, cancelWith(machine, "weather"), "", invalid},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := tc.apply(lifecycleBooking(t, tc.from), tc.now)
			var (
				stateErr  *InvalidStateError
				policyErr *PolicyViolationError
			)
			switch tc.expect {
			case ok:
				require.NoError(t, err)
				assert.Equal(t, tc.to, got.Status)
				assert.Equal(t, tc.now, got.UpdatedAt)
			case invalid:
				require.True(t, errors.As(err, &stateErr), "expected InvalidStateError, got %v", err)
				assert.Equal(t, tc.from, stateErr.Status)
			case policy:
				require.True(t, errors.As(err, &policyErr), "expected PolicyViolationError, got %v", err)
			}
		})
	}
}

func cancelWith(machine *BookingStateMachine, reason string) func(Booking, time.Time) (Booking, error) {
	return func(b Booking, now time.Time) (Booking, error) {
		return machine.Cancel(b, reason, now)
	}
}

func TestBookingStateMachine_LeadTimeBoundary(t *testing.T) {
	t.Parallel()

	machine := NewBookingStateMachine(24*time.Hour, time.UTC)
	booking := lifecycleBooking(t, scheduler.StatusConfirmed)
	start := booking.Interval.StartAt(time.UTC)

	_, err := machine.Cancel(booking, "x", start.Add(-24*time.Hour))
	var policyErr *PolicyViolationError
	require.ErrorAs(t, err, &policyErr, "exactly the lead time is inside the window")
	assert.Equal(t, 24*time.Hour, policyErr.StartsIn)

	require.ErrorAs(t, machine.GuardReschedule(booking, start.Add(-23*time.Hour)), &policyErr)
	require.NoError(t, machine.GuardReschedule(booking, start.Add(-25*time.Hour)))

	cancelled, err := machine.Cancel(booking, "x", start.Add(-24*time.Hour-time.Second))
	require.NoError(t, err)
	assert.Equal(t, "x", cancelled.CancelReason)
}

func TestBookingStateMachine_UsesFacilityTimeZone(t *testing.T) {
	t.Parallel()

	ist := time.FixedZone("IST", 5*60*60+30*60)
	machine := NewBookingStateMachine(24*time.Hour, ist)
	booking := lifecycleBooking(t, scheduler.StatusConfirmed)

	// 08:00 IST on 2024-01-10 is 02:30 UTC.
	assert.False(t, machine.Elapsed(booking, time.Date(2024, time.January, 10, 4, 29, 0, 0, time.UTC)))
	assert.True(t, machine.Elapsed(booking, time.Date(2024, time.January, 10, 4, 30, 0, 0, time.UTC)))
	assert.Equal(t, 90*time.Minute, machine.StartsIn(booking, time.Date(2024, time.January, 10, 1, 0, 0, 0, time.UTC)))
}

func TestBookingStateMachine_Create(t *testing.T) {
	t.Parallel()

	machine := NewBookingStateMachine(DefaultLeadTime, nil)
	now := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	interval := mustServiceInterval(t, "2024-01-10", "08:00", "09:30")
	resource := Resource{ID: "G1", SlotCount: 2, PricePerSlotHour: 1001, Currency: "INR"}

	booking := machine.Create("b-9", resource, 2, interval, "C1", BookingTypeEvent, "final", now)
	assert.Equal(t, scheduler.StatusPending, booking.Status)
	assert.Equal(t, int64(1502), booking.Amount)
	assert.Equal(t, "INR", booking.Currency)
	assert.Equal(t, time.UTC, machine.Location())
	assert.Equal(t, DefaultLeadTime, machine.LeadTime())
}

func TestBookingAmount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(6000), BookingAmount(6000, 60))
	assert.Equal(t, int64(9000), BookingAmount(6000, 90))
	assert.Equal(t, int64(1), BookingAmount(1, 30))
	assert.Equal(t, int64(0), BookingAmount(1, 29))
	assert.Equal(t, int64(0), BookingAmount(0, 120))
	assert.Equal(t, int64(0), BookingAmount(100, 0))
}
