// Package schedule holds the fixed review interval tables used by the
// retention simulator.
package schedule

import (
	"fmt"
	"strings"
)

// Algorithm names an interval table variant.
type Algorithm string

const (
	Fibonacci   Algorithm = "fibonacci"
	Exponential Algorithm = "exponential"
)

// Table is an ordered, strictly increasing sequence of day offsets indexed by
// review count.
type Table []int

var (
	fibonacciIntervals   = Table{1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144, 233}
	exponentialIntervals = Table{1, 3, 7, 14, 30, 60, 120, 240, 480}
)

// Algorithms returns every known algorithm in a stable order.
func Algorithms() []Algorithm {
	return []Algorithm{Fibonacci, Exponential}
}

// ParseAlgorithm resolves a case-insensitive algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case Fibonacci, Exponential:
		return a, nil
	}
	return "", fmt.Errorf("unknown algorithm %q (available: fibonacci, exponential)", s)
}

// Intervals returns a copy of the canonical table for a.
func Intervals(a Algorithm) (Table, error) {
	var src Table
	switch a {
	case Fibonacci:
		src = fibonacciIntervals
	case Exponential:
		src = exponentialIntervals
	default:
		return nil, fmt.Errorf("unknown algorithm %q", a)
	}
	return append(Table(nil), src...), nil
}

// Validate checks that t is non-empty, positive and strictly increasing.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("interval table is empty")
	}
	for i, d := range t {
		if d <= 0 {
			return fmt.Errorf("interval %d is %d, want > 0", i, d)
		}
		if i > 0 && d <= t[i-1] {
			return fmt.Errorf("interval %d (%d) does not increase over %d", i, d, t[i-1])
		}
	}
	return nil
}

// Level clamps a review count to a valid table index.
func (t Table) Level(reviewCount int) int {
	if reviewCount < 0 {
		return 0
	}
	return min(reviewCount, len(t)-1)
}

// Offset returns the day offset for a memory reviewed reviewCount times.
// Once the count exceeds the table it sticks to the last entry.
func (t Table) Offset(reviewCount int) int {
	return t[t.Level(reviewCount)]
}

// NextReview describes where a memory sits on its schedule.
type NextReview struct {
	Algorithm     Algorithm `json:"algorithm"`
	DaysFromNow   int       `json:"days_from_now"`
	IntervalIndex int       `json:"interval_index"`
	TotalReviews  int       `json:"total_reviews"`
	ScheduledDays int       `json:"scheduled_days"`
}

// Next computes the next review for a memory with the given review count.
// ScheduledDays is the sum of every interval up to and including the current
// level.
func Next(a Algorithm, t Table, reviewCount int) NextReview {
	level := t.Level(reviewCount)
	scheduled := 0
	for _, d := range t[:level+1] {
		scheduled += d
	}
	return NextReview{
		Algorithm:     a,
		DaysFromNow:   t[level],
		IntervalIndex: level,
		TotalReviews:  max(reviewCount, 0) + 1,
		ScheduledDays: scheduled,
	}
}
