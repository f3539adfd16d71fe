package store

import (
	"errors"
	"fmt"

	"github.com/wardenlabs/atomica/pkg/types"
)

var (
	// ErrNotFound indicates that the requested row was not found.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidInput indicates that the caller supplied invalid arguments.
	ErrInvalidInput = errors.New("store: invalid input")

	// ErrConflict indicates a write that could not be reconciled, e.g. a
	// constraint violation surfaced by the underlying driver.
	ErrConflict = errors.New("store: conflict")
)

// Error wraps a driver-level failure with the conceptual StoreError kind
// named in the error-handling design (IO, Conflict, Corruption).
type Error struct {
	Kind types.ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// wrapIO marks err as an IO-kind StoreError for the named operation.
func wrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: types.KindIO, Op: op, Err: err}
}
