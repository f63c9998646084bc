// Package retention models recall probability with a modified Ebbinghaus
// forgetting curve and applies the state change of a completed review.
package retention

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/lazypower/palace/internal/logger"
	"github.com/lazypower/palace/internal/schedule"
)

const (
	strengthPerReview = 0.15
	decayScale        = 10.0
	floorBase         = 0.1
	floorPerReview    = 0.02
	jitterWidth       = 0.15 // jitter spans [-0.075, +0.075)
	ceiling           = 0.98

	maxBaseStrength = 0.95
	successGain     = 0.10
	failureGain     = 0.03
)

// Source is a uniform [0, 1) random stream. It is the model's only source of
// randomness.
type Source interface {
	Float64() float64
}

// NewSource returns a seeded PCG stream. Equal (seed, stream) pairs produce
// equal sequences.
func NewSource(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// Recall is the outcome of one recall attempt.
type Recall struct {
	Recalled        bool    `json:"recalled"`
	Probability     float64 `json:"probability"`
	DaysSinceReview int     `json:"days_since_review"`
	Strength        int     `json:"strength"`
}

// Model computes retention for one algorithm's interval table.
type Model struct {
	algorithm schedule.Algorithm
	table     schedule.Table
	rng       Source
	log       *slog.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the model's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		m.log = l
	}
}

// NewModel builds a model for algorithm a drawing from rng.
func NewModel(a schedule.Algorithm, rng Source, opts ...Option) (*Model, error) {
	if rng == nil {
		return nil, fmt.Errorf("retention model: nil random source")
	}
	table, err := schedule.Intervals(a)
	if err != nil {
		return nil, fmt.Errorf("retention model: %w", err)
	}
	m := &Model{
		algorithm: a,
		table:     table,
		rng:       rng,
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Algorithm returns the interval table variant the model schedules with.
func (m *Model) Algorithm() schedule.Algorithm { return m.algorithm }

// Table returns a copy of the model's interval table.
func (m *Model) Table() schedule.Table { return slices.Clone(m.table) }

// Next reports the schedule position for a memory reviewed reviewCount times.
func (m *Model) Next(reviewCount int) schedule.NextReview {
	return schedule.Next(m.algorithm, m.table, reviewCount)
}

// Floor is the minimum retention for a memory reviewed reviewCount times,
// capped at the ceiling.
func Floor(reviewCount int) float64 {
	return math.Min(ceiling, floorBase+float64(reviewCount)*floorPerReview)
}

// Ceiling is the maximum retention the model ever reports.
func Ceiling() float64 { return ceiling }

// CalculateRetention returns the probability of recalling a memory
// daysSinceReview days after its last review.
//
// Strength grows by 15% per review; decay is exp(-t / (strength * 10)). A
// review-count dependent floor keeps memories from vanishing entirely and a
// symmetric jitter stands in for real-world noise. The result is clamped to
// [floor, 0.98].
func (m *Model) CalculateRetention(daysSinceReview, reviewCount int, baseStrength float64) (float64, error) {
	if daysSinceReview < 0 {
		return 0, &RangeViolationError{Quantity: "days_since_review", Value: float64(daysSinceReview), Min: 0, Max: math.Inf(1)}
	}
	if reviewCount < 0 {
		return 0, &RangeViolationError{Quantity: "review_count", Value: float64(reviewCount), Min: 0, Max: math.Inf(1)}
	}
	if math.IsNaN(baseStrength) || baseStrength < 0 || baseStrength > 1 {
		return 0, &RangeViolationError{Quantity: "base_strength", Value: baseStrength, Min: 0, Max: 1}
	}

	effective := baseStrength * (1 + float64(reviewCount)*strengthPerReview)

	var decay float64
	switch {
	case daysSinceReview == 0:
		decay = 1
	case effective <= 0:
		decay = 0
	default:
		decay = math.Exp(-float64(daysSinceReview) / (effective * decayScale))
	}

	floor := floorBase + float64(reviewCount)*floorPerReview
	jitter := (m.rng.Float64() - 0.5) * jitterWidth
	raw := decay + jitter
	p := math.Min(ceiling, math.Max(floor, raw))

	if raw < 0 || raw > 1 {
		m.log.Debug("retention clamped",
			"raw", raw, "p", p, "days", daysSinceReview, "reviews", reviewCount)
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		m.log.Error("retention out of range",
			"p", p, "days", daysSinceReview, "reviews", reviewCount, "base", baseStrength)
		return 0, &RangeViolationError{Quantity: "probability", Value: p, Min: 0, Max: 1}
	}
	return p, nil
}

// AttemptRecall simulates trying to recall mem on currentDay. It draws the
// retention jitter first and the recall outcome second. mem is not modified.
func (m *Model) AttemptRecall(mem Memory, currentDay int) (Recall, error) {
	days := currentDay - mem.LastReviewDay
	p, err := m.CalculateRetention(days, mem.ReviewCount, mem.BaseStrength)
	if err != nil {
		return Recall{}, fmt.Errorf("attempt recall %s on day %d: %w", mem.ID, currentDay, err)
	}
	return Recall{
		Recalled:        m.rng.Float64() < p,
		Probability:     p,
		DaysSinceReview: days,
		Strength:        mem.ReviewCount,
	}, nil
}

// Review returns mem updated for a review on currentDay. Success strengthens
// the memory more than failure. The returned record owns its history; mem is
// left untouched.
func (m *Model) Review(mem Memory, success bool, currentDay int) Memory {
	updated := mem
	updated.ReviewCount = mem.ReviewCount + 1
	updated.LastReviewDay = currentDay

	gain := failureGain
	if success {
		gain = successGain
	}
	updated.BaseStrength = math.Max(0, math.Min(maxBaseStrength, mem.BaseStrength+gain))

	var confidence float64
	if success {
		confidence = 0.7 + m.rng.Float64()*0.3
	} else {
		confidence = m.rng.Float64() * 0.4
	}
	// Clip forces append onto a fresh array so mem.History is never shared.
	updated.History = append(slices.Clip(mem.History), ReviewEntry{
		Day:        currentDay,
		Success:    success,
		Confidence: confidence,
	})

	updated.NextReviewDay = currentDay + m.table.Offset(updated.ReviewCount)
	return updated
}
