// Package linker discovers related memories across palaces by keyword
// overlap and navigates the resulting link graph.
package linker

import (
	"cmp"
	"slices"

	"github.com/lazypower/palace/internal/palace"
)

const (
	defaultThreshold = 0.6
	defaultMaxLinks  = 5

	suggestMinRelevance = 0.3
	suggestLimit        = 5
	pathMinRelevance    = 0.7
)

type entry struct {
	key      string
	palace   string
	locus    string
	memory   palace.Memory
	keywords []string
}

// Link points from one memory to a similar memory in another palace.
type Link struct {
	Target     string  `json:"target"`
	Palace     string  `json:"palace"`
	Locus      string  `json:"locus"`
	Subject    string  `json:"subject"`
	Similarity float64 `json:"similarity"`
}

// Linker holds the keyword index and link graph for a set of palaces. It is
// immutable after New.
type Linker struct {
	threshold float64
	maxLinks  int

	order []string
	index map[string]*entry
	links map[string][]Link
}

// Option configures a Linker.
type Option func(*Linker)

// WithThreshold sets the minimum similarity for a link.
func WithThreshold(v float64) Option {
	return func(l *Linker) { l.threshold = v }
}

// WithMaxLinks caps the links kept per memory.
func WithMaxLinks(n int) Option {
	return func(l *Linker) { l.maxLinks = n }
}

// Key identifies a memory across palaces.
func Key(palaceName, memoryID string) string {
	return palaceName + "::" + memoryID
}

// New indexes palaces and builds the cross-palace link graph. Memories are
// never linked to others in the same palace.
func New(palaces []*palace.Palace, opts ...Option) *Linker {
	l := &Linker{
		threshold: defaultThreshold,
		maxLinks:  defaultMaxLinks,
		index:     make(map[string]*entry),
		links:     make(map[string][]Link),
	}
	for _, opt := range opts {
		opt(l)
	}

	for _, p := range palaces {
		for _, loc := range p.Loci {
			for _, m := range loc.Memories {
				key := Key(p.Name, m.ID)
				if _, dup := l.index[key]; !dup {
					l.order = append(l.order, key)
				}
				l.index[key] = &entry{
					key:      key,
					palace:   p.Name,
					locus:    loc.Name,
					memory:   m,
					keywords: Keywords(m),
				}
			}
		}
	}
	l.build()
	return l
}

func (l *Linker) build() {
	for _, ka := range l.order {
		a := l.index[ka]
		var links []Link
		for _, kb := range l.order {
			b := l.index[kb]
			if ka == kb || a.palace == b.palace {
				continue
			}
			sim := Jaccard(a.keywords, b.keywords)
			if sim >= l.threshold {
				links = append(links, Link{
					Target:     kb,
					Palace:     b.palace,
					Locus:      b.locus,
					Subject:    b.memory.Subject,
					Similarity: sim,
				})
			}
		}
		slices.SortStableFunc(links, func(x, y Link) int { return cmp.Compare(y.Similarity, x.Similarity) })
		if len(links) > l.maxLinks {
			links = links[:l.maxLinks]
		}
		l.links[ka] = links
	}
}

// Memories returns the number of indexed memories.
func (l *Linker) Memories() int { return len(l.order) }

// LinkCount returns the number of edges in the graph.
func (l *Linker) LinkCount() int {
	n := 0
	for _, links := range l.links {
		n += len(links)
	}
	return n
}

// Related returns up to limit links from a memory, strongest first.
func (l *Linker) Related(palaceName, memoryID string, limit int) []Link {
	links := l.links[Key(palaceName, memoryID)]
	if limit > 0 && len(links) > limit {
		links = links[:limit]
	}
	return slices.Clone(links)
}

// Suggestion is a memory in another palace relevant to a topic.
type Suggestion struct {
	Palace    string        `json:"palace"`
	Locus     string        `json:"locus"`
	Memory    palace.Memory `json:"memory"`
	Relevance float64       `json:"relevance"`
}

// Suggest finds memories outside fromPalace relevant to topic.
func (l *Linker) Suggest(fromPalace, topic string) []Suggestion {
	topicKW := Keywords(palace.Memory{Subject: topic})
	var out []Suggestion
	for _, key := range l.order {
		e := l.index[key]
		if e.palace == fromPalace {
			continue
		}
		if r := relevance(topicKW, e.keywords); r > suggestMinRelevance {
			out = append(out, Suggestion{Palace: e.palace, Locus: e.locus, Memory: e.memory, Relevance: r})
		}
	}
	slices.SortStableFunc(out, func(a, b Suggestion) int { return cmp.Compare(b.Relevance, a.Relevance) })
	if len(out) > suggestLimit {
		out = out[:suggestLimit]
	}
	return out
}

// relevance is the share of topic keywords found in the memory, measured
// against the larger of the two keyword sets.
func relevance(topic, memory []string) float64 {
	denom := max(len(topic), len(memory))
	if denom == 0 {
		return 0
	}
	matches := 0
	for _, k := range topic {
		if slices.Contains(memory, k) {
			matches++
		}
	}
	return float64(matches) / float64(denom)
}

// Node is a memory in the exported graph.
type Node struct {
	ID     string `json:"id"`
	Palace string `json:"palace"`
	Locus  string `json:"locus"`
	Label  string `json:"label"`
}

// Edge is a directed similarity link.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// Graph is the link graph in node/edge form.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Graph exports every indexed memory and link.
func (l *Linker) Graph() Graph {
	g := Graph{Nodes: make([]Node, 0, len(l.order)), Edges: []Edge{}}
	for _, key := range l.order {
		e := l.index[key]
		g.Nodes = append(g.Nodes, Node{ID: key, Palace: e.palace, Locus: e.locus, Label: e.memory.Subject})
	}
	for _, key := range l.order {
		for _, link := range l.links[key] {
			g.Edges = append(g.Edges, Edge{Source: key, Target: link.Target, Weight: link.Similarity})
		}
	}
	return g
}

// Step is one hop on a navigation path.
type Step struct {
	Palace  string `json:"palace"`
	Locus   string `json:"locus"`
	Subject string `json:"subject"`
}

// FindPath searches breadth-first from the memory with key from for a linked
// memory strongly relevant to topic, following at most maxHops links. It
// returns nil when no such memory is reachable.
func (l *Linker) FindPath(from, topic string, maxHops int) []Step {
	topicKW := Keywords(palace.Memory{Subject: topic})
	visited := map[string]bool{from: true}
	queue := [][]string{{from}}

	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		if len(path) > maxHops {
			continue
		}
		for _, link := range l.links[path[len(path)-1]] {
			if visited[link.Target] {
				continue
			}
			next := append(slices.Clip(path), link.Target)
			if target, ok := l.index[link.Target]; ok && relevance(topicKW, target.keywords) > pathMinRelevance {
				return l.steps(next)
			}
			visited[link.Target] = true
			queue = append(queue, next)
		}
	}
	return nil
}

func (l *Linker) steps(keys []string) []Step {
	out := make([]Step, 0, len(keys))
	for _, k := range keys {
		if e, ok := l.index[k]; ok {
			out = append(out, Step{Palace: e.palace, Locus: e.locus, Subject: e.memory.Subject})
		}
	}
	return out
}
