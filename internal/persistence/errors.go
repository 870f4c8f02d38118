package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same key already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a write breaks a schema constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrForeignKeyViolation is returned when a booking references an unknown ground.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrOverlap is returned when a booking write would overlap a blocking
	// booking on the same ground slot and date.
	ErrOverlap = errors.New("persistence: overlapping booking")
	// ErrStaleWrite is returned when a guarded status update finds the booking
	// in a different status than expected.
	ErrStaleWrite = errors.New("persistence: stale write")
)
