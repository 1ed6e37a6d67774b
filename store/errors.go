package store

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is returned when a write precondition is violated: the id already
	// exists on create, or a supersede transaction was cancelled by either condition.
	ErrConflict = errors.New("pointers: conflicting write")

	// ErrNotFound is returned when an item that must exist is absent.
	ErrNotFound = errors.New("pointers: item not found")

	// ErrInvalidFilter is returned for unsupported search filters and for cursors
	// that cannot be decoded.
	ErrInvalidFilter = errors.New("pointers: invalid search filter")

	// ErrTooManyResults is returned when a single fetch exceeds the result ceiling.
	ErrTooManyResults = errors.New("pointers: too many results in a single fetch")

	// ErrCodec is returned when a value cannot be converted to or from its stored form.
	ErrCodec = errors.New("pointers: codec error")

	// ErrStorageFault matches any *Fault.
	ErrStorageFault = errors.New("pointers: storage fault")
)

// Repository operation names, as reported in Fault.Op, logs and metrics.
const (
	OpCreate     = "create"
	OpRead       = "read"
	OpUpdate     = "update"
	OpHardDelete = "hard_delete"
	OpSupersede  = "supersede"
	OpSearch     = "search"
	OpCount      = "count"
)

// Fault wraps an engine-side failure that is not a precondition violation
// (throttling, internal server errors, cancelled transactions that did not fail a condition).
type Fault struct {
	// Op is the repository operation that failed, one of the Op constants.
	Op string

	// Err is the underlying DynamoDB error.
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("pointers: %s: storage fault: %v", f.Op, f.Err)
}

// Unwrap returns the underlying engine error.
func (f *Fault) Unwrap() error { return f.Err }

// Is lets errors.Is(err, ErrStorageFault) match any Fault.
func (f *Fault) Is(target error) bool { return target == ErrStorageFault }

// codecError wraps err so that it matches ErrCodec.
func codecError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCodec, fmt.Sprintf(format, args...))
}
