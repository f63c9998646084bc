package navigate

import (
	"slices"

	"github.com/lazypower/palace/internal/retention"
)

const (
	// overloadUtilization is the working-memory fill above which the
	// navigator may lose the path.
	overloadUtilization = 0.9
	// overloadChance is the chance of a random move when overloaded.
	overloadChance = 0.3
)

// Trip is the outcome of one search for a locus.
type Trip struct {
	Target      int     `json:"target"`
	Found       bool    `json:"found"`
	Steps       int     `json:"steps"`
	WrongTurns  int     `json:"wrong_turns"`
	Backtracks  int     `json:"backtracks"`
	Utilization float64 `json:"utilization"`
	Pressure    int     `json:"pressure"`
	Visits      int     `json:"visits"`
}

// Navigator walks one palace like a person would: it heads for rooms whose
// id is close to the target, avoids rooms already visited, sometimes takes a
// wrong turn and sometimes loses the path when its working memory is nearly
// full. A Navigator is not safe for concurrent use.
type Navigator struct {
	palace    *Palace
	wm        *WorkingMemory
	visits    map[int]bool
	errorRate float64
	rng       retention.Source
}

// NewNavigator returns a navigator for p that errs with probability
// errorRate at each junction and draws from rng.
func NewNavigator(p *Palace, errorRate float64, rng retention.Source) *Navigator {
	return &Navigator{
		palace:    p,
		wm:        NewWorkingMemory(p.Capacity),
		visits:    make(map[int]bool),
		errorRate: errorRate,
		rng:       rng,
	}
}

// Navigate walks from the entrance toward target. A dead end sends the
// navigator back to the entrance with a cleared memory. The walk gives up
// after three moves per locus.
func (n *Navigator) Navigate(target int) Trip {
	n.wm.Clear()
	clear(n.visits)
	trip := Trip{Target: target}

	current := 0
	limit := len(n.palace.Loci) * 3
	for current != target && trip.Steps < limit {
		trip.Steps++
		n.visits[current] = true
		n.wm.Add(current)

		next, ok := n.decide(current, target)
		switch {
		case !ok:
			trip.Backtracks++
			current = 0
			n.wm.Clear()
		default:
			if n.visits[next] {
				trip.WrongTurns++
			}
			current = next
		}
	}

	trip.Found = current == target
	trip.Utilization = n.wm.Utilization()
	trip.Pressure = n.wm.Forgotten()
	trip.Visits = len(n.visits)
	return trip
}

type option struct {
	id    int
	score float64
}

// decide picks the next locus from current, or reports a dead end.
func (n *Navigator) decide(current, target int) (int, bool) {
	conns := n.palace.Loci[current].Connections
	if len(conns) == 0 {
		return 0, false
	}
	opts := make([]option, len(conns))
	for i, id := range conns {
		opts[i] = option{id: id, score: n.score(id, target)}
	}
	slices.SortStableFunc(opts, func(a, b option) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})

	if n.rng.Float64() < n.errorRate && len(opts) > 1 {
		return n.pick(opts), true
	}
	if n.wm.Utilization() > overloadUtilization && n.rng.Float64() < overloadChance {
		return n.pick(opts), true
	}
	return opts[0].id, true
}

func (n *Navigator) pick(opts []option) int {
	return opts[int(n.rng.Float64()*float64(len(opts)))].id
}

// score rates moving to id. Closer ids score higher, unvisited rooms get a
// bonus and, in a winged palace, rooms in the target's wing get another.
func (n *Navigator) score(id, target int) float64 {
	s := 100.0
	d := id - target
	if d < 0 {
		d = -d
	}
	s -= float64(d) * 10
	if n.visits[id] {
		s -= 50
	} else {
		s += 20
	}
	if wing := n.palace.Loci[target].Wing; wing != "" && n.palace.Loci[id].Wing == wing {
		s += 30
	}
	return max(0, s)
}
