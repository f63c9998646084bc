package simulate

import (
	"fmt"
	"slices"
	"time"

	"github.com/lazypower/palace/internal/retention"
)

// Population is an arena of memory records addressed by index. A run owns
// its population exclusively and replaces slots in place after each review.
type Population []retention.Memory

// NewPopulation generates size unreviewed memories with base strength drawn
// uniformly from [0.4, 0.8).
func NewPopulation(size int, rng retention.Source, created time.Time) Population {
	pop := make(Population, size)
	for i := range pop {
		pop[i] = retention.NewMemory(fmt.Sprintf("mem-%d", i), 0.4+rng.Float64()*0.4, created)
	}
	return pop
}

// Clone deep-copies the population so two runs can start from the same state.
func (p Population) Clone() Population {
	c := make(Population, len(p))
	for i, m := range p {
		c[i] = m.Clone()
	}
	return c
}

// Due returns the indices of records due on or before day, ordered by due
// day. Ties keep arena order.
func (p Population) Due(day int) []int {
	var due []int
	for i, m := range p {
		if m.DueDay() <= day {
			due = append(due, i)
		}
	}
	slices.SortStableFunc(due, func(a, b int) int {
		return p[a].DueDay() - p[b].DueDay()
	})
	return due
}
