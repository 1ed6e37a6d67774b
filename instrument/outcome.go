// Package instrument decorates a store.Repository with structured logging and
// Prometheus metrics. The core store does neither.
package instrument

import (
	"errors"

	"github.com/jacentio/pointers/store"
)

// Outcomes reported in logs and metric labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Outcome classifies err. Failures are caller-visible rejections (a failed
// precondition, a bad filter or record); anything else non-nil is an error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrInvalidFilter),
		errors.Is(err, store.ErrTooManyResults),
		errors.Is(err, store.ErrCodec):
		return OutcomeFailure
	default:
		return OutcomeError
	}
}

// errorKind names the store error err matches, for log attributes.
func errorKind(err error) string {
	for _, k := range []struct {
		err  error
		name string
	}{
		{store.ErrConflict, "conflict"},
		{store.ErrNotFound, "not_found"},
		{store.ErrInvalidFilter, "invalid_filter"},
		{store.ErrTooManyResults, "too_many_results"},
		{store.ErrCodec, "codec"},
		{store.ErrStorageFault, "storage_fault"},
	} {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}
