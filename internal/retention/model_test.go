package retention

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/palace/internal/schedule"
)

// fixedSource replays a sequence of draws, repeating the last one.
type fixedSource struct {
	vals []float64
	i    int
}

func (f *fixedSource) Float64() float64 {
	v := f.vals[min(f.i, len(f.vals)-1)]
	f.i++
	return v
}

func newModel(t *testing.T, a schedule.Algorithm, rng Source) *Model {
	t.Helper()
	m, err := NewModel(a, rng)
	require.NoError(t, err)
	return m
}

func TestNewModelRejectsNilSource(t *testing.T) {
	_, err := NewModel(schedule.Fibonacci, nil)
	assert.Error(t, err)
}

func TestNewModelRejectsUnknownAlgorithm(t *testing.T) {
	_, err := NewModel("leitner", NewSource(1, 1))
	assert.Error(t, err)
}

func TestCalculateRetentionInRangeExhaustive(t *testing.T) {
	m := newModel(t, schedule.Fibonacci, NewSource(7, 11))

	for days := 0; days <= 400; days += 3 {
		for reviews := 0; reviews <= 60; reviews++ {
			for step := 0; step <= 20; step++ {
				base := float64(step) / 20
				p, err := m.CalculateRetention(days, reviews, base)
				require.NoError(t, err, "days=%d reviews=%d base=%v", days, reviews, base)
				require.GreaterOrEqual(t, p, Floor(reviews), "days=%d reviews=%d base=%v", days, reviews, base)
				require.LessOrEqual(t, p, 0.98, "days=%d reviews=%d base=%v", days, reviews, base)
				require.GreaterOrEqual(t, p, 0.1)
			}
		}
	}
}

func TestCalculateRetentionJitterExtremes(t *testing.T) {
	// u=0 gives -0.075, u just below 1 gives ~+0.075.
	low := newModel(t, schedule.Fibonacci, &fixedSource{vals: []float64{0}})
	high := newModel(t, schedule.Fibonacci, &fixedSource{vals: []float64{0.9999999}})

	// strength 0.5, 5 days: exp(-5/5) = 0.3679
	decay := math.Exp(-1)

	p, err := low.CalculateRetention(5, 0, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, decay-0.075, p, 1e-9)

	p, err = high.CalculateRetention(5, 0, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, decay+0.075, p, 1e-6)
}

func TestCalculateRetentionFloorAndCeiling(t *testing.T) {
	mid := newModel(t, schedule.Exponential, &fixedSource{vals: []float64{0.5}})

	// Day 0: decay 1, capped at the ceiling.
	p, err := mid.CalculateRetention(0, 0, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.98, p)

	// Long gap: decay ~0, held at floor 0.1 + 3*0.02.
	p, err = mid.CalculateRetention(10_000, 3, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 0.16, p, 1e-12)

	// Floor above the ceiling still reports the ceiling.
	p, err = mid.CalculateRetention(10_000, 100, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 0.98, p)
}

func TestCalculateRetentionZeroStrength(t *testing.T) {
	m := newModel(t, schedule.Fibonacci, &fixedSource{vals: []float64{0.5}})

	p, err := m.CalculateRetention(0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.98, p)

	p, err = m.CalculateRetention(4, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.1, p)
}

func TestCalculateRetentionRejectsInvalidInputs(t *testing.T) {
	m := newModel(t, schedule.Fibonacci, NewSource(1, 2))

	cases := []struct {
		name     string
		days     int
		reviews  int
		base     float64
		quantity string
	}{
		{"negative days", -1, 0, 0.5, "days_since_review"},
		{"negative reviews", 1, -2, 0.5, "review_count"},
		{"base above one", 1, 0, 1.5, "base_strength"},
		{"base negative", 1, 0, -0.1, "base_strength"},
		{"base NaN", 1, 0, math.NaN(), "base_strength"},
	}
	for _, tc := range cases {
		_, err := m.CalculateRetention(tc.days, tc.reviews, tc.base)
		var rv *RangeViolationError
		require.True(t, errors.As(err, &rv), tc.name)
		assert.Equal(t, tc.quantity, rv.Quantity, tc.name)
	}
}

func TestAttemptRecallUsesDraws(t *testing.T) {
	// jitter draw 0.5 (no jitter), recall draw 0.2 < p.
	m := newModel(t, schedule.Fibonacci, &fixedSource{vals: []float64{0.5, 0.2}})
	mem := Memory{ID: "mem-0", BaseStrength: 0.5, LastReviewDay: 0}

	r, err := m.AttemptRecall(mem, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, r.DaysSinceReview)
	assert.InDelta(t, math.Exp(-1), r.Probability, 1e-9)
	assert.True(t, r.Recalled)
	assert.Equal(t, 0, r.Strength)

	// recall draw 0.9 > p.
	m = newModel(t, schedule.Fibonacci, &fixedSource{vals: []float64{0.5, 0.9}})
	r, err = m.AttemptRecall(mem, 5)
	require.NoError(t, err)
	assert.False(t, r.Recalled)
}

func TestAttemptRecallDoesNotMutate(t *testing.T) {
	m := newModel(t, schedule.Fibonacci, NewSource(3, 4))
	mem := Memory{ID: "mem-1", BaseStrength: 0.6, ReviewCount: 2, LastReviewDay: 3, NextReviewDay: 6}
	before := mem.Clone()

	_, err := m.AttemptRecall(mem, 10)
	require.NoError(t, err)
	assert.Equal(t, before, mem)
}

func TestAttemptRecallSurfacesRangeViolation(t *testing.T) {
	m := newModel(t, schedule.Fibonacci, NewSource(3, 4))
	mem := Memory{ID: "mem-2", BaseStrength: 0.5, LastReviewDay: 10}

	_, err := m.AttemptRecall(mem, 4)
	var rv *RangeViolationError
	require.ErrorAs(t, err, &rv)
	assert.Contains(t, err.Error(), "mem-2")
}

func TestReviewSuccess(t *testing.T) {
	m := newModel(t, schedule.Fibonacci, &fixedSource{vals: []float64{0.5}})
	mem := NewMemory("mem-0", 0.5, time.Now())

	got := m.Review(mem, true, 1)
	assert.Equal(t, 1, got.ReviewCount)
	assert.Greater(t, got.BaseStrength, 0.5)
	assert.InDelta(t, 0.6, got.BaseStrength, 1e-12)
	assert.Equal(t, 1, got.LastReviewDay)
	// fibonacci[1] = 2
	assert.Equal(t, 3, got.NextReviewDay)
	require.Len(t, got.History, 1)
	assert.True(t, got.History[0].Success)
	assert.InDelta(t, 0.85, got.History[0].Confidence, 1e-12)
}

func TestReviewFailure(t *testing.T) {
	m := newModel(t, schedule.Exponential, &fixedSource{vals: []float64{0.5}})
	mem := NewMemory("mem-0", 0.5, time.Now())

	got := m.Review(mem, false, 1)
	assert.InDelta(t, 0.53, got.BaseStrength, 1e-12)
	// exponential[1] = 3
	assert.Equal(t, 4, got.NextReviewDay)
	require.Len(t, got.History, 1)
	assert.False(t, got.History[0].Success)
	assert.InDelta(t, 0.2, got.History[0].Confidence, 1e-12)
}

func TestReviewConfidenceRanges(t *testing.T) {
	m := newModel(t, schedule.Fibonacci, NewSource(99, 1))
	mem := NewMemory("mem-0", 0.5, time.Now())
	for i := 0; i < 500; i++ {
		ok := m.Review(mem, true, 1).History[0].Confidence
		assert.True(t, ok >= 0.7 && ok < 1.0, "success confidence %v", ok)
		bad := m.Review(mem, false, 1).History[0].Confidence
		assert.True(t, bad >= 0 && bad < 0.4, "failure confidence %v", bad)
	}
}

func TestReviewStrengthCapped(t *testing.T) {
	m := newModel(t, schedule.Fibonacci, NewSource(1, 1))
	mem := NewMemory("mem-0", 0.9, time.Now())
	for day := 1; day <= 10; day++ {
		mem = m.Review(mem, true, day)
		assert.LessOrEqual(t, mem.BaseStrength, 0.95)
	}
	assert.Equal(t, 0.95, mem.BaseStrength)
}

func TestReviewIsCopyOnWrite(t *testing.T) {
	m := newModel(t, schedule.Fibonacci, NewSource(5, 5))
	mem := NewMemory("mem-0", 0.5, time.Now())
	mem = m.Review(mem, true, 1)
	orig := mem.Clone()

	// Two reviews branching from the same record must not share history.
	a := m.Review(mem, true, 3)
	b := m.Review(mem, false, 3)

	assert.Equal(t, orig, mem)
	require.Len(t, a.History, 2)
	require.Len(t, b.History, 2)
	assert.True(t, a.History[1].Success)
	assert.False(t, b.History[1].Success)
}

func TestReviewInvariants(t *testing.T) {
	m := newModel(t, schedule.Exponential, NewSource(12, 34))
	mem := NewMemory("mem-0", 0.4, time.Now())
	day := 1
	for i := 0; i < 30; i++ {
		before := mem.ReviewCount
		mem = m.Review(mem, i%3 != 0, day)
		assert.Equal(t, before+1, mem.ReviewCount)
		assert.GreaterOrEqual(t, mem.NextReviewDay, mem.LastReviewDay)
		assert.GreaterOrEqual(t, mem.BaseStrength, 0.0)
		assert.LessOrEqual(t, mem.BaseStrength, 0.95)
		day = mem.NextReviewDay
	}
}

func TestNextMatchesTable(t *testing.T) {
	m := newModel(t, schedule.Fibonacci, NewSource(1, 1))
	assert.Equal(t, 3, m.Next(2).DaysFromNow)
	assert.Equal(t, schedule.Fibonacci, m.Algorithm())

	tbl := m.Table()
	tbl[0] = 100
	assert.Equal(t, 1, m.Table()[0])
}

func TestNewSourceDeterministic(t *testing.T) {
	a, b := NewSource(42, 7), NewSource(42, 7)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float64(), b.Float64())
	}
}

func TestMemoryDueDay(t *testing.T) {
	assert.Equal(t, 1, Memory{}.DueDay())
	assert.Equal(t, 9, Memory{NextReviewDay: 9}.DueDay())
}
