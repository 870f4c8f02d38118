package migration

import (
	"errors"
	"fmt"
)

var (
	ErrMigrationFailed      = errors.New("migration execution failed")
	ErrInvalidMigrationFile = errors.New("invalid migration file")
	// ErrMigrationNotFound means the database recorded a version that no
	// embedded file provides.
	ErrMigrationNotFound = errors.New("migration file not found")
	ErrVersionGap        = errors.New("migration version gap")
	ErrDuplicateVersion  = errors.New("duplicate migration version")
	// ErrChecksumMismatch means an applied file was edited after it ran.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// StepError records which migration step failed. Version and File are empty
// for steps that are not tied to one migration.
type StepError struct {
	Version string
	File    string
	Step    string
	Err     error
}

func (e *StepError) Error() string {
	switch {
	case e.Version != "" && e.File != "":
		return fmt.Sprintf("migration %s (%s): %s: %v", e.Version, e.File, e.Step, e.Err)
	case e.Version != "":
		return fmt.Sprintf("migration %s: %s: %v", e.Version, e.Step, e.Err)
	case e.File != "":
		return fmt.Sprintf("migration %s: %s: %v", e.File, e.Step, e.Err)
	default:
		return fmt.Sprintf("migration: %s: %v", e.Step, e.Err)
	}
}

func (e *StepError) Unwrap() error { return e.Err }

func stepError(version, file, step string, err error) error {
	return &StepError{Version: version, File: file, Step: step, Err: err}
}
