package compare

import (
	"fmt"
	"slices"

	"github.com/lazypower/palace/internal/schedule"
)

// Config describes a comparison batch.
type Config struct {
	DurationDays int                   `json:"duration_days"`
	SampleSize   int                   `json:"sample_size"`
	Iterations   int                   `json:"iterations"`
	Checkpoints  []int                 `json:"checkpoints"`
	Algorithms   [2]schedule.Algorithm `json:"algorithms"`
	Seed         uint64                `json:"seed"`
	Workers      int                   `json:"workers"`
}

// DefaultConfig is the 90 day, 50 memory, 100 trial batch comparing
// fibonacci against exponential.
func DefaultConfig() Config {
	return Config{
		DurationDays: 90,
		SampleSize:   50,
		Iterations:   100,
		Checkpoints:  []int{30, 60, 90},
		Algorithms:   [2]schedule.Algorithm{schedule.Fibonacci, schedule.Exponential},
		Workers:      1,
	}
}

// Validate reports the first problem with c as a *ConfigurationError.
func (c Config) Validate() error {
	if c.DurationDays <= 0 {
		return &ConfigurationError{Field: "duration_days", Value: c.DurationDays, Reason: "must be > 0"}
	}
	if c.SampleSize <= 0 {
		return &ConfigurationError{
			Field:  "sample_size",
			Value:  c.SampleSize,
			Reason: "must be > 0",
			Err:    &InsufficientSampleError{What: "population", Have: max(c.SampleSize, 0), Need: 1},
		}
	}
	if c.Iterations <= 0 {
		return &ConfigurationError{Field: "iterations", Value: c.Iterations, Reason: "must be > 0"}
	}
	if len(c.Checkpoints) == 0 {
		return &ConfigurationError{Field: "checkpoints", Value: c.Checkpoints, Reason: "at least one checkpoint is required"}
	}
	seen := make(map[int]bool, len(c.Checkpoints))
	for _, d := range c.Checkpoints {
		if d < 1 || d > c.DurationDays {
			return &ConfigurationError{
				Field:  "checkpoints",
				Value:  d,
				Reason: fmt.Sprintf("must be within [1, %d]", c.DurationDays),
			}
		}
		if seen[d] {
			return &ConfigurationError{Field: "checkpoints", Value: d, Reason: "duplicate checkpoint"}
		}
		seen[d] = true
	}
	for i, a := range c.Algorithms {
		if _, err := schedule.Intervals(a); err != nil {
			return &ConfigurationError{Field: fmt.Sprintf("algorithms[%d]", i), Value: a, Reason: "unknown algorithm", Err: err}
		}
	}
	if c.Algorithms[0] == c.Algorithms[1] {
		return &ConfigurationError{Field: "algorithms", Value: c.Algorithms, Reason: "must name two different algorithms"}
	}
	if c.Workers < 0 {
		return &ConfigurationError{Field: "workers", Value: c.Workers, Reason: "must be >= 0"}
	}
	return nil
}

// FinalCheckpoint is the latest checkpoint day.
func (c Config) FinalCheckpoint() int {
	return slices.Max(c.Checkpoints)
}

// normalized returns a copy with sorted checkpoints and at least one worker.
func (c Config) normalized() Config {
	c.Checkpoints = slices.Clone(c.Checkpoints)
	slices.Sort(c.Checkpoints)
	c.Workers = max(c.Workers, 1)
	return c
}
