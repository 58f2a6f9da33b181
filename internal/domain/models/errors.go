package models

import (
	"errors"
	"fmt"
)

var (
	// ErrComputationTimeout is returned when a single computation does not
	// finalize within the per-computation timeout.
	ErrComputationTimeout = errors.New("computation timed out")
	// ErrComputationUnavailable is returned once retries are exhausted.
	ErrComputationUnavailable = errors.New("computation unavailable")
	// ErrInvalidResult is returned for a finalized result that fails validation.
	ErrInvalidResult = errors.New("invalid computation result")
	// ErrBusy is returned when the session already has a computation in flight.
	ErrBusy = errors.New("session busy")
	// ErrInvalidPrice is returned by the position sizer for a non-positive price.
	ErrInvalidPrice = errors.New("invalid price")
	// ErrPrivateField is returned when a private value is serialized.
	ErrPrivateField = errors.New("private value must not be serialized")
	// ErrNotFound is returned by stores for unknown keys.
	ErrNotFound = errors.New("not found")
)

// ConfigurationError is fatal at construction and never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// DataError aborts the current run only.
type DataError struct {
	Index  int // offending point, -1 for the whole series
	Reason string
}

func (e *DataError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("market data: %s", e.Reason)
	}
	return fmt.Sprintf("market data: point %d: %s", e.Index, e.Reason)
}

// UnavailableError wraps the last cause after retries are exhausted.
// errors.Is(err, ErrComputationUnavailable) holds for it.
type UnavailableError struct {
	Attempts int
	Last     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%v after %d attempts: %v", ErrComputationUnavailable, e.Attempts, e.Last)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrComputationUnavailable }
func (e *UnavailableError) Unwrap() error        { return e.Last }

// IsComputationError reports whether err is absorbed by the backtest driver
// as a failed window rather than aborting the run. ErrBusy is not: a busy
// session means two callers share it.
func IsComputationError(err error) bool {
	return errors.Is(err, ErrComputationUnavailable) ||
		errors.Is(err, ErrComputationTimeout) ||
		errors.Is(err, ErrInvalidResult)
}
