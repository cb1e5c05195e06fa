package ledger

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record with the given ID is not found.
var ErrNotFound = errors.New("sale record not found")

// ErrSlotOccupied is returned when a reading targets an (date, machine, hour)
// slot that already holds a record and the caller did not confirm replacement.
var ErrSlotOccupied = errors.New("slot already has a record; replacement must be confirmed")

// ValidationError is a user-input error: the reading violates monotonicity,
// range or future-date rules. Never retried, never auto-corrected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// PersistenceError wraps a failure of the backing store. The ledger does not
// retry; that is the storage collaborator's business.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "persistence: " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CascadeError reports a recompute cascade that failed partway. Applied counts
// the writes that succeeded before the failure, so the caller knows exactly
// which suffix of the day is still stale.
type CascadeError struct {
	Applied int
	Total   int
	Err     error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade stopped after %d of %d writes: %v", e.Applied, e.Total, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }
