// Package simulate drives a population of memories through simulated days
// of spaced review and snapshots retention at checkpoint days.
package simulate

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/lazypower/palace/internal/retention"
	"github.com/lazypower/palace/internal/schedule"
)

// Options control a single run.
type Options struct {
	DurationDays int
	Checkpoints  []int
}

// Validate checks the duration and that every checkpoint falls inside it.
func (o Options) Validate() error {
	if o.DurationDays <= 0 {
		return fmt.Errorf("duration %d days, want > 0", o.DurationDays)
	}
	if len(o.Checkpoints) == 0 {
		return fmt.Errorf("no checkpoints")
	}
	for _, c := range o.Checkpoints {
		if c < 1 || c > o.DurationDays {
			return fmt.Errorf("checkpoint day %d outside [1, %d]", c, o.DurationDays)
		}
	}
	return nil
}

// Observation is one record's result at a checkpoint.
type Observation struct {
	ID         string  `json:"id"`
	Recalled   bool    `json:"recalled"`
	Confidence float64 `json:"confidence"`
	Reviews    int     `json:"reviews"`
}

// Run is the state and output of one simulated population.
type Run struct {
	Algorithm    schedule.Algorithm
	Population   Population
	Day          int
	TotalReviews int
	Snapshots    map[int][]Observation
}

// Simulate advances pop through opts.DurationDays days under model. The run
// takes ownership of pop. On failure the partial run is returned alongside a
// *DayError.
func Simulate(model *retention.Model, pop Population, opts Options) (*Run, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	run := &Run{
		Algorithm:  model.Algorithm(),
		Population: pop,
		Snapshots:  make(map[int][]Observation, len(opts.Checkpoints)),
	}

	for day := 1; day <= opts.DurationDays; day++ {
		run.Day = day

		for _, i := range pop.Due(day) {
			r, err := model.AttemptRecall(pop[i], day)
			if err != nil {
				return run, &DayError{Day: day, MemoryID: pop[i].ID, Err: err}
			}
			pop[i] = model.Review(pop[i], r.Recalled, day)
			run.TotalReviews++
		}

		if slices.Contains(opts.Checkpoints, day) {
			obs, err := Evaluate(model, pop, day)
			if err != nil {
				return run, &DayError{Day: day, Checkpoint: day, Err: err}
			}
			run.Snapshots[day] = obs
		}
	}
	return run, nil
}

// Evaluate attempts recall of every record on day without changing any of
// them. Records never reviewed are measured from day 0.
func Evaluate(model *retention.Model, pop Population, day int) ([]Observation, error) {
	obs := make([]Observation, 0, len(pop))
	for _, m := range pop {
		r, err := model.AttemptRecall(m, day)
		if err != nil {
			return nil, err
		}
		obs = append(obs, Observation{
			ID:         m.ID,
			Recalled:   r.Recalled,
			Confidence: r.Probability,
			Reviews:    m.ReviewCount,
		})
	}
	return obs, nil
}

// CheckpointStats summarizes one snapshot.
type CheckpointStats struct {
	RetentionRate  float64 `json:"retention_rate"` // percent
	MeanConfidence float64 `json:"mean_confidence"`
	MeanReviews    float64 `json:"mean_reviews"`
	SampleSize     int     `json:"sample_size"`
}

// Summarize aggregates a snapshot. An empty snapshot has no defined rates and
// returns *InsufficientSampleError.
func Summarize(obs []Observation) (CheckpointStats, error) {
	if len(obs) == 0 {
		return CheckpointStats{}, &InsufficientSampleError{What: "checkpoint snapshot"}
	}
	recalled := make([]float64, len(obs))
	confidence := make([]float64, len(obs))
	reviews := make([]float64, len(obs))
	for i, o := range obs {
		if o.Recalled {
			recalled[i] = 1
		}
		confidence[i] = o.Confidence
		reviews[i] = float64(o.Reviews)
	}
	return CheckpointStats{
		RetentionRate:  stat.Mean(recalled, nil) * 100,
		MeanConfidence: stat.Mean(confidence, nil),
		MeanReviews:    stat.Mean(reviews, nil),
		SampleSize:     len(obs),
	}, nil
}

// Stats summarizes every checkpoint snapshot of the run.
func (r *Run) Stats() (map[int]CheckpointStats, error) {
	out := make(map[int]CheckpointStats, len(r.Snapshots))
	for day, obs := range r.Snapshots {
		s, err := Summarize(obs)
		if err != nil {
			return nil, fmt.Errorf("checkpoint day %d: %w", day, err)
		}
		out[day] = s
	}
	return out, nil
}
