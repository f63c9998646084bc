// Package palace is the on-disk memory palace model: named palaces made of
// loci, each holding memories. Palaces are stored as one JSON file apiece.
package palace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

// MaxConfidence is the top of the 1-5 self-rated confidence scale.
const MaxConfidence = 5

// Palace is a named collection of loci.
type Palace struct {
	Name    string    `json:"name"`
	Theme   string    `json:"theme,omitempty"`
	Created time.Time `json:"created,omitzero"`
	Loci    []Locus   `json:"loci"`
}

// Locus is a location inside a palace. Children name the loci reachable from
// it.
type Locus struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Anchor   string   `json:"anchor,omitempty"`
	Children []string `json:"children,omitempty"`
	Memories []Memory `json:"memories,omitempty"`
}

// Memory is one fact placed at a locus.
type Memory struct {
	ID           string     `json:"id"`
	Subject      string     `json:"subject"`
	Content      string     `json:"content,omitempty"`
	Image        string     `json:"image,omitempty"`
	Confidence   int        `json:"confidence,omitempty"` // 1-5, 0 when unrated
	LastRecalled *time.Time `json:"lastRecalled,omitempty"`
	ReviewCount  int        `json:"reviewCount,omitempty"`
	Created      time.Time  `json:"created,omitzero"`
}

// UnmarshalJSON also accepts the older recallCount field name.
func (m *Memory) UnmarshalJSON(data []byte) error {
	type plain Memory
	var raw struct {
		plain
		RecallCount int `json:"recallCount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Memory(raw.plain)
	if m.ReviewCount == 0 {
		m.ReviewCount = raw.RecallCount
	}
	return nil
}

// Record applies a recall at time at. A confidence of 0 keeps the existing
// rating.
func (m *Memory) Record(confidence int, at time.Time) error {
	if confidence < 0 || confidence > MaxConfidence {
		return fmt.Errorf("confidence %d outside [0, %d]", confidence, MaxConfidence)
	}
	if confidence > 0 {
		m.Confidence = confidence
	}
	m.ReviewCount++
	t := at
	m.LastRecalled = &t
	return nil
}

// DaysSinceRecall returns whole-and-fractional days since the last recall,
// and false if the memory was never recalled.
func (m Memory) DaysSinceRecall(now time.Time) (float64, bool) {
	if m.LastRecalled == nil {
		return 0, false
	}
	return now.Sub(*m.LastRecalled).Hours() / 24, true
}

// Load reads one palace file.
func Load(path string) (*Palace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read palace: %w", err)
	}
	var p Palace
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse palace %s: %w", filepath.Base(path), err)
	}
	return &p, nil
}

// LoadDir reads every *.json file in dir, sorted by palace name. A missing
// directory yields no palaces.
func LoadDir(dir string) ([]*Palace, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read palace dir: %w", err)
	}

	var out []*Palace
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		p, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Palace) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Save writes p to dir/<slug>.json and returns the path.
func Save(dir string, p *Palace) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create palace dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal palace: %w", err)
	}
	path := filepath.Join(dir, Slug(p.Name)+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write palace: %w", err)
	}
	return path, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a palace name into a file-safe identifier.
func Slug(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "palace"
	}
	return s
}

// Validate checks names, id uniqueness and confidence ratings.
func (p *Palace) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("palace name is required")
	}
	loci := make(map[string]bool, len(p.Loci))
	memories := make(map[string]bool)
	for i, l := range p.Loci {
		if l.ID == "" {
			return fmt.Errorf("locus %d (%q): id is required", i, l.Name)
		}
		if loci[l.ID] {
			return fmt.Errorf("duplicate locus id %q", l.ID)
		}
		loci[l.ID] = true
		for _, m := range l.Memories {
			if m.ID == "" {
				return fmt.Errorf("locus %q: memory %q has no id", l.ID, m.Subject)
			}
			if memories[m.ID] {
				return fmt.Errorf("duplicate memory id %q", m.ID)
			}
			memories[m.ID] = true
			if m.Confidence < 0 || m.Confidence > MaxConfidence {
				return fmt.Errorf("memory %q: confidence %d outside [0, %d]", m.ID, m.Confidence, MaxConfidence)
			}
		}
	}
	return nil
}

// Count returns the number of memories across all loci.
func (p *Palace) Count() int {
	n := 0
	for _, l := range p.Loci {
		n += len(l.Memories)
	}
	return n
}

// Walk calls fn for every memory in locus order. The pointers refer into p,
// so fn may modify the memory. Returning an error stops the walk.
func (p *Palace) Walk(fn func(l *Locus, m *Memory) error) error {
	for i := range p.Loci {
		l := &p.Loci[i]
		for j := range l.Memories {
			if err := fn(l, &l.Memories[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Find returns the memory with id and its locus.
func (p *Palace) Find(id string) (*Locus, *Memory, bool) {
	for i := range p.Loci {
		l := &p.Loci[i]
		for j := range l.Memories {
			if l.Memories[j].ID == id {
				return l, &l.Memories[j], true
			}
		}
	}
	return nil, nil, false
}
