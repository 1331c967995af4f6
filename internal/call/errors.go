package call

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition means the caller drove an event that is not legal
	// from the attempt's current status. No state change happened.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrAttemptAlreadyTerminal means a mutation other than an equivalent
	// duplicate session-end was attempted on a terminal attempt.
	ErrAttemptAlreadyTerminal = errors.New("attempt already terminal")
)

// PersistenceError wraps a failed upsert of an attempt snapshot. The
// in-memory state it was built from is already frozen; only the write should
// be retried.
type PersistenceError struct {
	AttemptID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist attempt %s: %v", e.AttemptID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
