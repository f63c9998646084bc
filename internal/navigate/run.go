package navigate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/lazypower/palace/internal/compare"
	"github.com/lazypower/palace/internal/logger"
	"github.com/lazypower/palace/internal/retention"
)

// Config describes a navigation batch.
type Config struct {
	Iterations int      `json:"iterations"`
	Queries    int      `json:"queries"`
	ErrorRate  float64  `json:"error_rate"`
	Seed       uint64   `json:"seed"`
	Layouts    []Layout `json:"layouts"`
	Workers    int      `json:"workers"`
}

// DefaultConfig runs 100 iterations of 100 queries against every built-in
// layout with a 15% wrong-turn rate.
func DefaultConfig() Config {
	return Config{
		Iterations: 100,
		Queries:    100,
		ErrorRate:  0.15,
		Layouts:    Layouts(),
		Workers:    4,
	}
}

// Validate reports the first problem with c as a *compare.ConfigurationError.
func (c Config) Validate() error {
	if c.Iterations <= 0 {
		return &compare.ConfigurationError{Field: "iterations", Value: c.Iterations, Reason: "must be > 0"}
	}
	if c.Queries <= 0 {
		return &compare.ConfigurationError{Field: "queries", Value: c.Queries, Reason: "must be > 0"}
	}
	if c.ErrorRate < 0 || c.ErrorRate > 1 || math.IsNaN(c.ErrorRate) {
		return &compare.ConfigurationError{Field: "error_rate", Value: c.ErrorRate, Reason: "must be within [0, 1]"}
	}
	for _, l := range c.Layouts {
		if _, err := ParseLayout(string(l)); err != nil {
			return &compare.ConfigurationError{Field: "layouts", Value: l, Reason: "unknown layout", Err: err}
		}
	}
	if c.Workers < 0 {
		return &compare.ConfigurationError{Field: "workers", Value: c.Workers, Reason: "must be >= 0"}
	}
	return nil
}

// LayoutStats summarizes every trip through one palace. Steps and visits
// average the successful trips; the other means cover all trips.
// Utilization and SuccessRate are percentages.
type LayoutStats struct {
	Layout         Layout  `json:"layout,omitempty"`
	Name           string  `json:"name"`
	Loci           int     `json:"loci"`
	Capacity       int     `json:"capacity"`
	Trips          int     `json:"trips"`
	SuccessRate    float64 `json:"success_rate"`
	MeanSteps      float64 `json:"mean_steps"`
	MeanVisits     float64 `json:"mean_visits"`
	MeanWrongTurns float64 `json:"mean_wrong_turns"`
	MeanBacktracks float64 `json:"mean_backtracks"`
	Utilization    float64 `json:"utilization"`
	Pressure       float64 `json:"pressure"`
	Score          float64 `json:"score"`

	// per-iteration success rates, for significance
	rates []float64
}

// Result is a ranked navigation batch, best score first.
type Result struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Config    Config        `json:"config"`
	Layouts   []LayoutStats `json:"layouts"`
	Decision  Decision      `json:"decision"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Runner executes navigation batches.
type Runner struct {
	cfg Config
	log *slog.Logger
	now func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New validates cfg and returns a Runner. A zero Seed is replaced with a
// random one.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Layouts) == 0 {
		cfg.Layouts = Layouts()
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = rand.Uint64() | 1
	}
	r := &Runner{cfg: cfg, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("component", "navigate")
	return r, nil
}

// Config returns the effective configuration, including the resolved seed.
func (r *Runner) Config() Config { return r.cfg }

// Run navigates each palace, or the configured built-in layouts when none
// are given. Palace i draws from stream (seed, i), so results do not depend
// on the number of workers.
func (r *Runner) Run(ctx context.Context, palaces ...*Palace) (*Result, error) {
	started := r.now()
	if len(palaces) == 0 {
		for _, l := range r.cfg.Layouts {
			p, err := Build(l)
			if err != nil {
				return nil, err
			}
			palaces = append(palaces, p)
		}
	}
	if len(palaces) < 2 {
		return nil, &compare.ConfigurationError{Field: "layouts", Value: len(palaces), Reason: "need at least two palaces to rank"}
	}

	r.log.Info("navigation started", "palaces", len(palaces),
		"iterations", r.cfg.Iterations, "queries", r.cfg.Queries, "seed", r.cfg.Seed)

	stats := make([]LayoutStats, len(palaces))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, p := range palaces {
		g.Go(func() error {
			s, err := r.runPalace(ctx, p, retention.NewSource(r.cfg.Seed, uint64(i)))
			if err != nil {
				return fmt.Errorf("navigate %s: %w", p.Name, err)
			}
			stats[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(stats, func(a, b LayoutStats) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	res := &Result{
		ID:        uuid.NewString(),
		Timestamp: started.UTC(),
		Config:    r.cfg,
		Layouts:   stats,
	}
	res.Decision = Decide(stats, r.log)
	res.Elapsed = r.now().Sub(started)

	r.log.Info("navigation finished", "winner", res.Decision.Winner, "verdict", res.Decision.Verdict, "elapsed", res.Elapsed)
	return res, nil
}

func (r *Runner) runPalace(ctx context.Context, p *Palace, rng retention.Source) (LayoutStats, error) {
	if err := p.Validate(); err != nil {
		return LayoutStats{}, err
	}
	trips := make([]Trip, 0, r.cfg.Iterations*r.cfg.Queries)
	rates := make([]float64, r.cfg.Iterations)
	for it := range r.cfg.Iterations {
		if err := ctx.Err(); err != nil {
			return LayoutStats{}, err
		}
		nav := NewNavigator(p, r.cfg.ErrorRate, rng)
		found := 0
		for range r.cfg.Queries {
			t := nav.Navigate(int(rng.Float64() * float64(len(p.Loci))))
			if t.Found {
				found++
			}
			trips = append(trips, t)
		}
		rates[it] = float64(found) / float64(r.cfg.Queries) * 100
	}
	s := Summarize(p, trips)
	s.rates = rates
	return s, nil
}

// Summarize aggregates trips through p and scores the layout. Figures are
// rounded the way they are reported before the score is computed. When no
// trip succeeds, steps and visits are charged at the step limit.
func Summarize(p *Palace, trips []Trip) LayoutStats {
	s := LayoutStats{
		Layout:   p.Layout,
		Name:     p.Name,
		Loci:     len(p.Loci),
		Capacity: p.Capacity,
		Trips:    len(trips),
	}
	if len(trips) == 0 {
		return s
	}

	var steps, visits, wrong, back, util, pressure []float64
	for _, t := range trips {
		if t.Found {
			steps = append(steps, float64(t.Steps))
			visits = append(visits, float64(t.Visits))
		}
		wrong = append(wrong, float64(t.WrongTurns))
		back = append(back, float64(t.Backtracks))
		util = append(util, t.Utilization)
		pressure = append(pressure, float64(t.Pressure))
	}

	s.SuccessRate = round(float64(len(steps))/float64(len(trips))*100, 1)
	if len(steps) > 0 {
		s.MeanSteps = round(stat.Mean(steps, nil), 1)
		s.MeanVisits = round(stat.Mean(visits, nil), 1)
	} else {
		limit := float64(len(p.Loci) * 3)
		s.MeanSteps, s.MeanVisits = limit, limit
	}
	s.MeanWrongTurns = round(stat.Mean(wrong, nil), 2)
	s.MeanBacktracks = round(stat.Mean(back, nil), 2)
	s.Utilization = round(stat.Mean(util, nil)*100, 1)
	s.Pressure = round(stat.Mean(pressure, nil), 1)
	s.Score = Score(s)
	return s
}

// Score weighs success (40%), step efficiency (25%), accuracy (20%) and
// spare working memory (15%). Higher is better.
func Score(s LayoutStats) float64 {
	efficiency := 100 - s.MeanSteps*2
	accuracy := 100 - (s.MeanWrongTurns+s.MeanBacktracks)*10
	cognitive := 100 - s.Utilization
	return round(s.SuccessRate*0.4+efficiency*0.25+accuracy*0.2+cognitive*0.15, 1)
}

// Verdict grades the winner's margin over the runner-up.
type Verdict string

const (
	VerdictDecisive Verdict = "decisive"
	VerdictModerate Verdict = "moderate"
	VerdictTie      Verdict = "tie"
)

// Score margins separating the verdicts.
const (
	decisiveMargin = 50.0
	moderateMargin = 20.0
)

// Decision names the best layout and how clearly it won.
type Decision struct {
	Winner       string                `json:"winner"`
	RunnerUp     string                `json:"runner_up"`
	Margin       float64               `json:"margin"`
	Verdict      Verdict               `json:"verdict"`
	Finding      string                `json:"finding"`
	Significance *compare.Significance `json:"significance,omitempty"`
}

// Decide reads the verdict off stats, which must be sorted best first. The
// winner's and runner-up's per-iteration success rates are compared with
// Welch's t-test when both have at least two iterations.
func Decide(stats []LayoutStats, log *slog.Logger) Decision {
	if len(stats) < 2 {
		return Decision{Verdict: VerdictTie}
	}
	w, r := stats[0], stats[1]
	d := Decision{
		Winner:   w.Name,
		RunnerUp: r.Name,
		Margin:   round(w.Score-r.Score, 1),
	}

	switch {
	case d.Margin > decisiveMargin:
		d.Verdict = VerdictDecisive
	case d.Margin > moderateMargin:
		d.Verdict = VerdictModerate
	default:
		d.Verdict = VerdictTie
	}

	switch {
	case d.Verdict == VerdictTie:
		d.Finding = "no clear winner: every layout is viable depending on use"
	case w.Layout == Medium:
		d.Finding = "a working-memory sized palace (7±2 loci) navigates best"
	case w.Layout == Hierarchical:
		d.Finding = "chunking loci into wings overcomes working-memory limits"
	case w.Layout == Small:
		d.Finding = "small palaces are the most reliable but hold the least"
	case w.Layout == Large:
		d.Finding = "a long flat palace navigates best"
	default:
		d.Finding = fmt.Sprintf("%s navigates best", w.Name)
	}

	sig, err := compare.Welch(w.rates, r.rates)
	switch {
	case err == nil:
		d.Significance = &sig
	default:
		var ise *compare.InsufficientSampleError
		if !errors.As(err, &ise) && log != nil {
			log.Warn("significance not computed", "err", err)
		}
	}
	return d
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
