package simulate

import "fmt"

// InsufficientSampleError means a statistic was requested over zero records.
// Every ratio derived from such a sample is undefined.
type InsufficientSampleError struct {
	What string
	Have int
	Need int
}

func (e *InsufficientSampleError) Error() string {
	need := max(e.Need, 1)
	return fmt.Sprintf("insufficient sample: %s has %d, need at least %d", e.What, e.Have, need)
}

// DayError gives a failure inside a run its simulated-day context.
type DayError struct {
	Day        int
	Checkpoint int // zero unless the failure happened during a checkpoint
	MemoryID   string
	Err        error
}

func (e *DayError) Error() string {
	if e.Checkpoint > 0 {
		return fmt.Sprintf("day %d checkpoint: %v", e.Day, e.Err)
	}
	return fmt.Sprintf("day %d review of %s: %v", e.Day, e.MemoryID, e.Err)
}

func (e *DayError) Unwrap() error { return e.Err }
