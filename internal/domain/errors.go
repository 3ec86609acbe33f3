package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIndex        = errors.New("invalid stop index")
	ErrLocationUnavailable = errors.New("location unavailable: waiting for position")
	ErrOptimizationFailed  = errors.New("route optimization failed")
	ErrNoUpload            = errors.New("no stop file uploaded")
)

// DataError reports a malformed or incomplete uploaded row.
// Row is the file line of the record, as in RawStopRecord, or 0 when the
// problem concerns the file as a whole (e.g. a missing column).
type DataError struct {
	Row    int
	Field  string
	Reason string
}

func (e *DataError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("invalid stop file: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid stop file: row %d: %s: %s", e.Row, e.Field, e.Reason)
}

// OptimizationFailure reports that no usable visiting order was produced.
type OptimizationFailure struct {
	Stops int
	Err   error
}

func (e *OptimizationFailure) Error() string {
	return fmt.Sprintf("%v for %d stops: %v", ErrOptimizationFailed, e.Stops, e.Err)
}

func (e *OptimizationFailure) Unwrap() []error { return []error{ErrOptimizationFailed, e.Err} }
