package reprimand

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid reprimand input")
	ErrInvalidTransition = errors.New("invalid reprimand transition")
	ErrNotFound          = errors.New("reprimand not found")
	ErrPersistenceWrite  = errors.New("reprimand write failed")
)

// PersistenceError is a retryable store failure. The service has already
// rolled back any optimistic state when it is returned.
type PersistenceError struct {
	Op  string
	ID  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("reprimand %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("reprimand %s %s failed: %v", e.Op, e.ID, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistenceWrite, e.Err} }

func invalidInput(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, reason)
}

func invalidTransition(from Status, action ActionKind) error {
	return fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, from)
}
