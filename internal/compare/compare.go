// Package compare runs paired spaced-repetition simulations under two
// interval algorithms and tests whether their retention differs.
package compare

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lazypower/palace/internal/logger"
	"github.com/lazypower/palace/internal/retention"
	"github.com/lazypower/palace/internal/schedule"
	"github.com/lazypower/palace/internal/simulate"
)

// modelStreamKey separates the model streams from the population streams
// derived from the same seed.
const modelStreamKey = 0x9e3779b97f4a7c15

// Comparator runs trial batches for one Config. It holds no state between
// trials and is safe to share across goroutines.
type Comparator struct {
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
	created time.Time
	// populate builds the starting population for a trial.
	populate func(trial int, rng retention.Source, created time.Time) simulate.Population
}

// Option configures a Comparator.
type Option func(*Comparator)

// WithLogger sets the comparator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Comparator) {
		c.log = l
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Comparator) {
		c.now = now
	}
}

// withPopulation replaces the per-trial population generator.
func withPopulation(f func(trial int, rng retention.Source, created time.Time) simulate.Population) Option {
	return func(c *Comparator) {
		c.populate = f
	}
}

// New validates cfg and returns a Comparator. A zero Seed is replaced with a
// random one, which is reported back in Config() and the Result.
func New(cfg Config, opts ...Option) (*Comparator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()
	if cfg.Seed == 0 {
		cfg.Seed = rand.Uint64() | 1
	}

	c := &Comparator{
		cfg: cfg,
		log: logger.Nop(),
		now: time.Now,
	}
	c.populate = func(_ int, rng retention.Source, created time.Time) simulate.Population {
		return simulate.NewPopulation(c.cfg.SampleSize, rng, created)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "compare")
	c.created = c.now()
	return c, nil
}

// Config returns the effective configuration, including the resolved seed.
func (c *Comparator) Config() Config { return c.cfg }

// AlgorithmTrial is one algorithm's outcome within a trial.
type AlgorithmTrial struct {
	Algorithm    schedule.Algorithm
	TotalReviews int
	Checkpoints  map[int]simulate.CheckpointStats
}

// TrialResult pairs both algorithms' runs over the same starting population.
type TrialResult struct {
	Trial int
	Runs  [2]AlgorithmTrial
}

// RunTrial runs trial number trial. The population comes from stream
// (seed, trial) and both models draw from identically seeded streams, so the
// two algorithms see the same memories and the same noise.
func (c *Comparator) RunTrial(trial int) (TrialResult, error) {
	opts := simulate.Options{
		DurationDays: c.cfg.DurationDays,
		Checkpoints:  c.cfg.Checkpoints,
	}
	pop := c.populate(trial, retention.NewSource(c.cfg.Seed, uint64(trial)), c.created)

	tr := TrialResult{Trial: trial}
	for i, a := range c.cfg.Algorithms {
		model, err := retention.NewModel(a,
			retention.NewSource(c.cfg.Seed^modelStreamKey, uint64(trial)),
			retention.WithLogger(c.log.With("algorithm", string(a), "trial", trial)))
		if err != nil {
			return TrialResult{}, &TrialError{Trial: trial, Algorithm: a, Err: err}
		}

		run, err := simulate.Simulate(model, pop.Clone(), opts)
		if err != nil {
			te := &TrialError{Trial: trial, Algorithm: a, Err: err}
			var de *simulate.DayError
			if errors.As(err, &de) {
				te.Day, te.Checkpoint = de.Day, de.Checkpoint
			}
			return TrialResult{}, te
		}

		stats, err := run.Stats()
		if err != nil {
			return TrialResult{}, &TrialError{Trial: trial, Algorithm: a, Day: run.Day, Err: err}
		}
		tr.Runs[i] = AlgorithmTrial{
			Algorithm:    a,
			TotalReviews: run.TotalReviews,
			Checkpoints:  stats,
		}
	}
	return tr, nil
}

// Run executes the batch. Trials run on up to Workers goroutines and are
// collected by index, so the result does not depend on scheduling. The
// context is checked before each trial starts; trials not started when it
// ends are counted as skipped and the result is marked truncated. A failed
// trial is recorded and the batch continues. Run returns an error only when
// no trial completed.
func (c *Comparator) Run(ctx context.Context) (*Result, error) {
	n := c.cfg.Iterations
	started := c.now()
	trials := make([]*TrialResult, n)
	errs := make([]error, n)

	c.log.Info("comparison started",
		"algorithms", fmt.Sprintf("%s vs %s", c.cfg.Algorithms[0], c.cfg.Algorithms[1]),
		"iterations", n, "sample_size", c.cfg.SampleSize,
		"days", c.cfg.DurationDays, "seed", c.cfg.Seed, "workers", c.cfg.Workers)

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i := range n {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			tr, err := c.RunTrial(i)
			if err != nil {
				errs[i] = err
				c.log.Warn("trial failed", "trial", i, "err", err)
				return nil
			}
			trials[i] = &tr
			return nil
		})
	}
	_ = g.Wait()

	var done []TrialResult
	var failures []error
	for i := range n {
		switch {
		case trials[i] != nil:
			done = append(done, *trials[i])
		case errs[i] != nil:
			failures = append(failures, errs[i])
		}
	}
	summary := TrialSummary{
		Requested: n,
		Completed: len(done),
		Failed:    len(failures),
	}
	summary.Skipped = n - summary.Completed - summary.Failed
	summary.Truncated = summary.Skipped > 0

	if len(done) == 0 {
		if err := ctx.Err(); err != nil && len(failures) == 0 {
			return nil, fmt.Errorf("compare: no trials completed: %w", err)
		}
		return nil, fmt.Errorf("compare: all %d trials failed: %w", len(failures), errors.Join(failures...))
	}
	if summary.Truncated {
		c.log.Warn("comparison truncated", "completed", summary.Completed, "skipped", summary.Skipped, "err", ctx.Err())
	}

	res, err := c.aggregate(done, summary)
	if err != nil {
		return nil, err
	}
	for _, e := range failures {
		res.Failures = append(res.Failures, newFailure(e))
	}
	res.Elapsed = c.now().Sub(started)

	c.log.Info("comparison finished",
		"completed", summary.Completed, "failed", summary.Failed,
		"verdict", res.Decision.Verdict, "elapsed", res.Elapsed)
	return res, nil
}

func (c *Comparator) aggregate(trials []TrialResult, summary TrialSummary) (*Result, error) {
	res := &Result{
		SchemaVersion: SchemaVersion,
		ID:            uuid.NewString(),
		Timestamp:     c.created.UTC(),
		Hypothesis:    fmt.Sprintf("Spaced repetition: %s vs %s", c.cfg.Algorithms[0], c.cfg.Algorithms[1]),
		Config:        c.cfg,
		Trials:        summary,
		TotalReviews:  make(map[schedule.Algorithm]float64, 2),
	}

	for _, day := range c.cfg.Checkpoints {
		cp := CheckpointResult{Day: day, Algorithms: make(map[schedule.Algorithm]AlgorithmStats, 2)}
		for i, a := range c.cfg.Algorithms {
			var rate, conf, reviews float64
			size := 0
			for _, tr := range trials {
				s := tr.Runs[i].Checkpoints[day]
				rate += s.RetentionRate
				conf += s.MeanConfidence
				reviews += s.MeanReviews
				size = s.SampleSize
			}
			k := float64(len(trials))
			cp.Algorithms[a] = AlgorithmStats{
				RetentionRate:  round(rate/k, 1),
				MeanConfidence: round(conf/k, 3),
				MeanReviews:    round(reviews/k, 1),
				SampleSize:     size,
			}
		}
		res.Checkpoints = append(res.Checkpoints, cp)
	}

	final := FinalStats{
		Day:         c.cfg.FinalCheckpoint(),
		Descriptive: make(map[schedule.Algorithm]Descriptive, 2),
	}
	var rates [2][]float64
	for i, a := range c.cfg.Algorithms {
		total := 0
		rates[i] = make([]float64, len(trials))
		for j, tr := range trials {
			total += tr.Runs[i].TotalReviews
			rates[i][j] = tr.Runs[i].Checkpoints[final.Day].RetentionRate
		}
		res.TotalReviews[a] = round(float64(total)/float64(len(trials)), 1)

		d, err := Describe(rates[i])
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", a, err)
		}
		final.Descriptive[a] = Descriptive{
			N:    d.N,
			Mean: round(d.Mean, 2),
			Std:  round(d.Std, 2),
			Min:  round(d.Min, 1),
			Max:  round(d.Max, 1),
		}
	}

	sig, err := Welch(rates[0], rates[1])
	switch {
	case err == nil:
		final.Significance = &sig
	default:
		var ise *InsufficientSampleError
		if !errors.As(err, &ise) {
			return nil, fmt.Errorf("significance: %w", err)
		}
		c.log.Warn("significance not computed", "err", err)
	}
	res.Final = final
	res.Decision = Decide(res)
	return res, nil
}
