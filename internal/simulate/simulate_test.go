package simulate

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/palace/internal/retention"
	"github.com/lazypower/palace/internal/schedule"
)

var created = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newModel(t *testing.T, a schedule.Algorithm, seed uint64) *retention.Model {
	t.Helper()
	m, err := retention.NewModel(a, retention.NewSource(seed, 1))
	require.NoError(t, err)
	return m
}

func TestNewPopulation(t *testing.T) {
	pop := NewPopulation(100, retention.NewSource(1, 1), created)
	require.Len(t, pop, 100)
	for i, m := range pop {
		assert.Equal(t, "mem-"+strconv.Itoa(i), m.ID)
		assert.GreaterOrEqual(t, m.BaseStrength, 0.4)
		assert.Less(t, m.BaseStrength, 0.8)
		assert.Zero(t, m.ReviewCount)
		assert.Zero(t, m.NextReviewDay)
		assert.Equal(t, created, m.CreatedAt)
	}
}

func TestNewPopulationDeterministic(t *testing.T) {
	a := NewPopulation(20, retention.NewSource(9, 3), created)
	b := NewPopulation(20, retention.NewSource(9, 3), created)
	assert.Equal(t, a, b)
}

func TestPopulationCloneIsDeep(t *testing.T) {
	m := newModel(t, schedule.Fibonacci, 1)
	pop := NewPopulation(3, retention.NewSource(1, 1), created)
	pop[0] = m.Review(pop[0], true, 1)

	c := pop.Clone()
	c[0] = m.Review(c[0], false, 3)
	c[1].BaseStrength = 0

	assert.Len(t, pop[0].History, 1)
	assert.Len(t, c[0].History, 2)
	assert.NotZero(t, pop[1].BaseStrength)
}

func TestPopulationDue(t *testing.T) {
	pop := Population{
		{ID: "a", NextReviewDay: 5},
		{ID: "b"}, // never scheduled, due day 1
		{ID: "c", NextReviewDay: 3},
		{ID: "d", NextReviewDay: 9},
		{ID: "e", NextReviewDay: 3},
	}
	assert.Equal(t, []int{1}, pop.Due(1))
	assert.Equal(t, []int{1, 2, 4}, pop.Due(3))
	assert.Equal(t, []int{1, 2, 4, 0}, pop.Due(8))
	assert.Len(t, pop.Due(100), 5)
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, Options{DurationDays: 90, Checkpoints: []int{30, 60, 90}}.Validate())
	assert.Error(t, Options{DurationDays: 0, Checkpoints: []int{1}}.Validate())
	assert.Error(t, Options{DurationDays: 10}.Validate())
	assert.Error(t, Options{DurationDays: 10, Checkpoints: []int{11}}.Validate())
	assert.Error(t, Options{DurationDays: 10, Checkpoints: []int{0}}.Validate())
}

func TestSimulateNinetyDays(t *testing.T) {
	for _, a := range schedule.Algorithms() {
		t.Run(string(a), func(t *testing.T) {
			pop := NewPopulation(50, retention.NewSource(42, 0), created)
			run, err := Simulate(newModel(t, a, 42), pop, Options{
				DurationDays: 90,
				Checkpoints:  []int{30, 60, 90},
			})
			require.NoError(t, err)
			assert.Equal(t, 90, run.Day)
			assert.Equal(t, a, run.Algorithm)
			require.Len(t, run.Snapshots, 3)

			reviews := 0
			for _, m := range run.Population {
				reviews += m.ReviewCount
				assert.Len(t, m.History, m.ReviewCount)
				assert.GreaterOrEqual(t, m.NextReviewDay, m.LastReviewDay)
				assert.LessOrEqual(t, m.BaseStrength, 0.95)
			}
			assert.Equal(t, reviews, run.TotalReviews)

			// Per-record review counts never go down between checkpoints.
			prev := map[string]int{}
			prevMean := 0.0
			for _, day := range []int{30, 60, 90} {
				obs := run.Snapshots[day]
				require.Len(t, obs, 50)
				for _, o := range obs {
					assert.GreaterOrEqual(t, o.Reviews, prev[o.ID], "%s day %d", o.ID, day)
					prev[o.ID] = o.Reviews
					assert.GreaterOrEqual(t, o.Confidence, 0.1)
					assert.LessOrEqual(t, o.Confidence, 0.98)
				}
				s, err := Summarize(obs)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, s.MeanReviews, prevMean)
				assert.GreaterOrEqual(t, s.RetentionRate, 0.0)
				assert.LessOrEqual(t, s.RetentionRate, 100.0)
				prevMean = s.MeanReviews
			}
		})
	}
}

func TestSimulateFibonacciReviewsMoreOften(t *testing.T) {
	fib := NewPopulation(50, retention.NewSource(7, 0), created)
	exp := fib.Clone()
	opts := Options{DurationDays: 90, Checkpoints: []int{90}}

	rf, err := Simulate(newModel(t, schedule.Fibonacci, 7), fib, opts)
	require.NoError(t, err)
	re, err := Simulate(newModel(t, schedule.Exponential, 7), exp, opts)
	require.NoError(t, err)

	assert.Greater(t, rf.TotalReviews, re.TotalReviews)
}

func TestSimulateDeterministic(t *testing.T) {
	opts := Options{DurationDays: 45, Checkpoints: []int{15, 45}}
	r1, err := Simulate(newModel(t, schedule.Fibonacci, 5), NewPopulation(10, retention.NewSource(5, 0), created), opts)
	require.NoError(t, err)
	r2, err := Simulate(newModel(t, schedule.Fibonacci, 5), NewPopulation(10, retention.NewSource(5, 0), created), opts)
	require.NoError(t, err)
	assert.Equal(t, r1.Snapshots, r2.Snapshots)
	assert.Equal(t, r1.TotalReviews, r2.TotalReviews)
}

func TestCheckpointDoesNotMutate(t *testing.T) {
	m := newModel(t, schedule.Fibonacci, 3)
	pop := NewPopulation(5, retention.NewSource(3, 0), created)
	before := pop.Clone()

	_, err := Evaluate(m, pop, 30)
	require.NoError(t, err)
	assert.Equal(t, before, pop)
}

func TestSimulateDayError(t *testing.T) {
	pop := Population{{ID: "bad", BaseStrength: 2}}
	run, err := Simulate(newModel(t, schedule.Fibonacci, 1), pop, Options{DurationDays: 5, Checkpoints: []int{5}})
	require.Error(t, err)
	require.NotNil(t, run)

	var de *DayError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 1, de.Day)
	assert.Equal(t, "bad", de.MemoryID)

	var rv *retention.RangeViolationError
	assert.True(t, errors.As(err, &rv))
}

func TestSummarize(t *testing.T) {
	s, err := Summarize([]Observation{
		{ID: "a", Recalled: true, Confidence: 0.9, Reviews: 4},
		{ID: "b", Recalled: false, Confidence: 0.3, Reviews: 2},
		{ID: "c", Recalled: true, Confidence: 0.6, Reviews: 3},
		{ID: "d", Recalled: true, Confidence: 0.6, Reviews: 3},
	})
	require.NoError(t, err)
	assert.InDelta(t, 75.0, s.RetentionRate, 1e-9)
	assert.InDelta(t, 0.6, s.MeanConfidence, 1e-9)
	assert.InDelta(t, 3.0, s.MeanReviews, 1e-9)
	assert.Equal(t, 4, s.SampleSize)
}

func TestSummarizeEmpty(t *testing.T) {
	_, err := Summarize(nil)
	var ise *InsufficientSampleError
	require.ErrorAs(t, err, &ise)
	assert.Contains(t, err.Error(), "insufficient sample")
}
