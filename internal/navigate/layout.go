// Package navigate simulates a person walking a memory palace to find a
// locus, holding recent rooms in a bounded working memory, and ranks palace
// layouts by how reliably and cheaply they are navigated.
package navigate

import (
	"fmt"
	"strings"

	"github.com/lazypower/palace/internal/palace"
)

// Layout names a palace architecture.
type Layout string

const (
	Small        Layout = "small"
	Medium       Layout = "medium"
	Large        Layout = "large"
	Hierarchical Layout = "hierarchical"
)

// Layouts returns every built-in layout in report order.
func Layouts() []Layout {
	return []Layout{Small, Medium, Large, Hierarchical}
}

// ParseLayout validates a layout name.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(s); l {
	case Small, Medium, Large, Hierarchical:
		return l, nil
	}
	return "", fmt.Errorf("unknown layout %q (want small, medium, large or hierarchical)", s)
}

// Locus is one room. Its ID is its index in Palace.Loci.
type Locus struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Wing        string `json:"wing,omitempty"`
	Connections []int  `json:"connections,omitempty"`
}

// Palace is a navigable graph of loci. Navigation always starts at locus 0.
// Capacity is the navigator's working-memory span for this palace.
type Palace struct {
	Layout   Layout  `json:"layout"`
	Name     string  `json:"name"`
	Capacity int     `json:"capacity"`
	Loci     []Locus `json:"loci"`
}

// Validate checks that IDs match positions and connections stay in range.
func (p *Palace) Validate() error {
	if len(p.Loci) == 0 {
		return fmt.Errorf("palace %q has no loci", p.Name)
	}
	if p.Capacity <= 0 {
		return fmt.Errorf("palace %q: capacity %d, want > 0", p.Name, p.Capacity)
	}
	for i, l := range p.Loci {
		if l.ID != i {
			return fmt.Errorf("palace %q: locus %d has id %d", p.Name, i, l.ID)
		}
		for _, c := range l.Connections {
			if c < 0 || c >= len(p.Loci) {
				return fmt.Errorf("palace %q: locus %d connects to unknown locus %d", p.Name, i, c)
			}
		}
	}
	return nil
}

// Build returns the built-in palace for l.
func Build(l Layout) (*Palace, error) {
	var p *Palace
	switch l {
	case Small:
		p = &Palace{Name: "Small (5 loci)", Capacity: 5}
		for i, name := range []string{"Entrance", "Hallway", "Kitchen", "Living Room", "Bedroom"} {
			loc := Locus{ID: i, Name: name}
			if i < 4 {
				loc.Connections = []int{i + 1}
			}
			p.Loci = append(p.Loci, loc)
		}
	case Medium:
		// a central hub with two branched wings
		p = &Palace{Name: "Medium (9 loci)", Capacity: 7, Loci: []Locus{
			{ID: 0, Name: "Entrance", Connections: []int{1, 2}},
			{ID: 1, Name: "Left Wing", Connections: []int{0, 3, 4}},
			{ID: 2, Name: "Right Wing", Connections: []int{0, 5, 6}},
			{ID: 3, Name: "Kitchen", Connections: []int{1}},
			{ID: 4, Name: "Dining", Connections: []int{1}},
			{ID: 5, Name: "Study", Connections: []int{2}},
			{ID: 6, Name: "Living Room", Connections: []int{2, 7}},
			{ID: 7, Name: "Bedroom", Connections: []int{6, 8}},
			{ID: 8, Name: "Bathroom", Connections: []int{7}},
		}}
	case Large:
		p = &Palace{Name: "Large (15 loci, flat)", Capacity: 7}
		for i := range 15 {
			loc := Locus{ID: i, Name: fmt.Sprintf("Room %d", i+1)}
			if i > 0 {
				loc.Connections = append(loc.Connections, i-1)
			}
			if i < 14 {
				loc.Connections = append(loc.Connections, i+1)
			}
			p.Loci = append(p.Loci, loc)
		}
	case Hierarchical:
		// a main wing of four rooms chunking three sub-wings of three
		p = &Palace{Name: "Hierarchical (4 + 3x3 wings)", Capacity: 4}
		for i := range 4 {
			loc := Locus{ID: i, Name: fmt.Sprintf("Main %d", i+1), Wing: "main"}
			for _, c := range []int{i + 1, 4, 7, 10} {
				if c > i {
					loc.Connections = append(loc.Connections, c)
				}
			}
			p.Loci = append(p.Loci, loc)
		}
		for w, wing := range []string{"East", "West", "North"} {
			base := 4 + w*3
			for i := range 3 {
				loc := Locus{ID: base + i, Name: fmt.Sprintf("%s %d", wing, i+1), Wing: strings.ToLower(wing)}
				if i < 2 {
					loc.Connections = []int{base + i + 1}
				}
				p.Loci = append(p.Loci, loc)
			}
		}
	default:
		return nil, fmt.Errorf("unknown layout %q", l)
	}
	p.Layout = l
	return p, p.Validate()
}

// FromPalace builds a navigable graph from a stored palace. Loci keep their
// order and each child link becomes a connection. Links to unknown loci are
// dropped.
func FromPalace(src *palace.Palace, capacity int) (*Palace, error) {
	index := make(map[string]int, len(src.Loci))
	for i, l := range src.Loci {
		index[l.ID] = i
	}
	p := &Palace{Name: src.Name, Capacity: capacity}
	for i, l := range src.Loci {
		loc := Locus{ID: i, Name: l.Name}
		for _, child := range l.Children {
			if c, ok := index[child]; ok {
				loc.Connections = append(loc.Connections, c)
			}
		}
		p.Loci = append(p.Loci, loc)
	}
	return p, p.Validate()
}
