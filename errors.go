package vecstore

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a required input is empty where
	// emptiness is semantically invalid: an empty query list, or a
	// Delete call with no selectors. Empty batches handed to batch
	// operations are valid no-ops, not errors.
	ErrInvalidInput = errors.New("vecstore: invalid input")

	// ErrLengthMismatch is the base of every LengthMismatchError; match
	// it with errors.Is.
	ErrLengthMismatch = errors.New("vecstore: length mismatch")

	// ErrBackend wraps failures surfaced from the storage backend. They
	// propagate unmodified underneath this wrapper; the store never
	// retries.
	ErrBackend = errors.New("vecstore: backend error")
)

// LengthMismatchError reports a caller-supplied parallel array whose
// length disagrees with the primary array of the call.
type LengthMismatchError struct {
	Field string
	Want  int
	Got   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("vecstore: length of %s must be %d, got %d", e.Field, e.Want, e.Got)
}

func (e *LengthMismatchError) Unwrap() error { return ErrLengthMismatch }

// checkLength validates one optional parallel array against the primary
// length. Present means the caller supplied the array at all.
func checkLength(field string, got, want int, present bool) error {
	if !present || got == want {
		return nil
	}
	return &LengthMismatchError{Field: field, Want: want, Got: got}
}

func wrapBackend(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrBackend, op, err)
}
