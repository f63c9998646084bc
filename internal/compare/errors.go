package compare

import (
	"fmt"

	"github.com/lazypower/palace/internal/retention"
	"github.com/lazypower/palace/internal/schedule"
	"github.com/lazypower/palace/internal/simulate"
)

// InsufficientSampleError is returned when a statistic has no records to
// work from.
type InsufficientSampleError = simulate.InsufficientSampleError

// RangeViolationError surfaces a probability outside [0, 1].
type RangeViolationError = retention.RangeViolationError

// ConfigurationError rejects a comparator configuration before any trial runs.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TrialError records a trial that was aborted. The batch carries on without it.
type TrialError struct {
	Trial      int
	Algorithm  schedule.Algorithm
	Day        int
	Checkpoint int
	Err        error
}

func (e *TrialError) Error() string {
	msg := fmt.Sprintf("trial %d (%s)", e.Trial, e.Algorithm)
	if e.Day > 0 {
		msg += fmt.Sprintf(" day %d", e.Day)
	}
	if e.Checkpoint > 0 {
		msg += fmt.Sprintf(" checkpoint %d", e.Checkpoint)
	}
	return msg + ": " + e.Err.Error()
}

func (e *TrialError) Unwrap() error { return e.Err }
