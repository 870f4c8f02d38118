package scheduler

import "sort"

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus converts a raw value into a known Status.
func ParseStatus(value string) (Status, bool) {
	switch status := Status(value); status {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return status, true
	}
	return "", false
}

// Blocking reports whether a booking in this status occupies its slot.
func (s Status) Blocking() bool {
	return s != StatusCancelled
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Reservation is the view of a booking the availability checker works on.
type Reservation struct {
	ID         string
	ResourceID string
	SlotNumber int
	Interval   Interval
	Status     Status
}

// Result reports whether a candidate interval is free and, if not, every
// reservation it collides with ordered by start time.
type Result struct {
	Available bool
	Conflicts []Reservation
}

// Check tests candidate against the existing reservations of one resource
// slot. Reservations on other resources, slots or dates are ignored even when
// the caller passes them, as are cancelled reservations.
func Check(resourceID string, slotNumber int, candidate Interval, existing []Reservation) Result {
	conflicts := make([]Reservation, 0)
	for _, reservation := range existing {
		if reservation.ResourceID != resourceID || reservation.SlotNumber != slotNumber {
			continue
		}
		if !reservation.Status.Blocking() {
			continue
		}
		if Overlaps(candidate, reservation.Interval) {
			conflicts = append(conflicts, reservation)
		}
	}

	if len(conflicts) == 0 {
		return Result{Available: true}
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].Interval.Start == conflicts[j].Interval.Start {
			return conflicts[i].ID < conflicts[j].ID
		}
		return conflicts[i].Interval.Start < conflicts[j].Interval.Start
	})

	return Result{Available: false, Conflicts: conflicts}
}

// Without returns the reservations excluding the one with the given id.
func Without(existing []Reservation, id string) []Reservation {
	if id == "" {
		return existing
	}
	out := make([]Reservation, 0, len(existing))
	for _, reservation := range existing {
		if reservation.ID == id {
			continue
		}
		out = append(out, reservation)
	}
	return out
}
