package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a read or update target does not exist
	// (or is soft-deleted).
	ErrNotFound = errors.New("record not found")

	// ErrNoID is returned when an update or delete is requested without a
	// resolvable record identifier.
	ErrNoID = errors.New("no record id given")

	// ErrStaleRecord is returned when the optimistic version check fails
	// because another operation updated the record first.
	ErrStaleRecord = errors.New("record was modified concurrently")
)

// BlacklistedError reports a field value rejected by the deny-list.
type BlacklistedError struct {
	Field string
	Value string
}

func (e *BlacklistedError) Error() string {
	return fmt.Sprintf("value %q for %s is blacklisted", e.Value, e.Field)
}

// DuplicateError reports a unique-index violation, translated from the
// backing store's own constraint failure.
type DuplicateError struct {
	Table string
	Err   error
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate value for a unique field of %s", e.Table)
}

func (e *DuplicateError) Unwrap() error { return e.Err }
