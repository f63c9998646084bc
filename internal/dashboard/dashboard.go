// Package dashboard scores memory strength and renders palace heat maps,
// maps and progress summaries for the terminal.
package dashboard

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/lazypower/palace/internal/palace"
)

// Category buckets a strength score.
type Category string

const (
	Strong   Category = "strong"
	Moderate Category = "moderate"
	Weak     Category = "weak"
)

const (
	strongScore   = 70
	moderateScore = 40

	// dueAfterDays marks a reviewed memory as due for another pass.
	dueAfterDays = 7
)

// Strength scores a memory from 0 to 100. Confidence moves the base of 50 by
// 10 a point around 3, each recall adds 5 up to 25, and recency adds 10 under
// a week or takes 20 past a month. Never recalled costs 15.
func Strength(m palace.Memory, now time.Time) int {
	score := 50
	if m.Confidence > 0 {
		score += (m.Confidence - 3) * 10
	}
	if m.ReviewCount > 0 {
		score += min(m.ReviewCount*5, 25)
	}
	if days, ok := m.DaysSinceRecall(now); ok {
		switch {
		case days < 7:
			score += 10
		case days > 30:
			score -= 20
		}
	} else {
		score -= 15
	}
	return max(0, min(100, score))
}

// CategoryOf buckets a score, which may be a locus average.
func CategoryOf(score float64) Category {
	switch {
	case score >= strongScore:
		return Strong
	case score >= moderateScore:
		return Moderate
	}
	return Weak
}

// Entry is one scored memory.
type Entry struct {
	ID       string   `json:"id"`
	Subject  string   `json:"subject"`
	Strength int      `json:"strength"`
	Category Category `json:"category"`
}

// LocusHeat groups the scored memories of one locus.
type LocusHeat struct {
	Name    string  `json:"name"`
	Entries []Entry `json:"entries"`
}

// Summary counts memories per category. Health is the strong share in
// percent.
type Summary struct {
	Total    int     `json:"total"`
	Strong   int     `json:"strong"`
	Moderate int     `json:"moderate"`
	Weak     int     `json:"weak"`
	Health   float64 `json:"health"`
}

// Pct returns n as a percentage of the total, 0 for an empty palace.
func (s Summary) Pct(n int) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(n) / float64(s.Total) * 100
}

// HeatMap is every memory of a palace scored by locus.
type HeatMap struct {
	Palace  string      `json:"palace"`
	Loci    []LocusHeat `json:"loci"`
	Summary Summary     `json:"summary"`
}

// BuildHeatMap scores every memory in p.
func BuildHeatMap(p *palace.Palace, now time.Time) HeatMap {
	hm := HeatMap{Palace: p.Name, Loci: make([]LocusHeat, 0, len(p.Loci))}
	for _, loc := range p.Loci {
		lh := LocusHeat{Name: loc.Name, Entries: make([]Entry, 0, len(loc.Memories))}
		for _, m := range loc.Memories {
			s := Strength(m, now)
			cat := CategoryOf(float64(s))
			lh.Entries = append(lh.Entries, Entry{ID: m.ID, Subject: m.Subject, Strength: s, Category: cat})
			hm.Summary.Total++
			switch cat {
			case Strong:
				hm.Summary.Strong++
			case Moderate:
				hm.Summary.Moderate++
			default:
				hm.Summary.Weak++
			}
		}
		hm.Loci = append(hm.Loci, lh)
	}
	hm.Summary.Health = round1(hm.Summary.Pct(hm.Summary.Strong))
	return hm
}

// LocusHealth is one row of the palace map.
type LocusHealth struct {
	Index    int      `json:"index"`
	Name     string   `json:"name"`
	Memories int      `json:"memories"`
	Average  float64  `json:"average"`
	Category Category `json:"category,omitempty"`
	Children []string `json:"children,omitempty"`
}

// Empty reports whether the locus holds no memories.
func (l LocusHealth) Empty() bool { return l.Memories == 0 }

// BuildPalaceMap averages memory strength per locus. Index is 1-based.
func BuildPalaceMap(p *palace.Palace, now time.Time) []LocusHealth {
	out := make([]LocusHealth, 0, len(p.Loci))
	for i, loc := range p.Loci {
		lh := LocusHealth{Index: i + 1, Name: loc.Name, Memories: len(loc.Memories), Children: loc.Children}
		if len(loc.Memories) > 0 {
			sum := 0
			for _, m := range loc.Memories {
				sum += Strength(m, now)
			}
			lh.Average = float64(sum) / float64(len(loc.Memories))
			lh.Category = CategoryOf(lh.Average)
		}
		out = append(out, lh)
	}
	return out
}

// Progress summarizes review coverage for a palace.
type Progress struct {
	Total         int     `json:"total"`
	Reviewed      int     `json:"reviewed"`
	Due           int     `json:"due"`
	NeverReviewed int     `json:"never_reviewed"`
	AvgConfidence float64 `json:"avg_confidence"`
	Mastery       float64 `json:"mastery"`
}

// BuildProgress counts reviewed, due and untouched memories. Unrated memories
// count as zero confidence in the average. Mastery is the reviewed share
// weighted by average confidence, in percent.
func BuildProgress(p *palace.Palace, now time.Time) Progress {
	var pr Progress
	conf := 0
	for _, loc := range p.Loci {
		for _, m := range loc.Memories {
			pr.Total++
			if days, ok := m.DaysSinceRecall(now); ok {
				pr.Reviewed++
				if days > dueAfterDays {
					pr.Due++
				}
			} else {
				pr.NeverReviewed++
			}
			conf += m.Confidence
		}
	}
	if pr.Total > 0 {
		pr.AvgConfidence = float64(conf) / float64(pr.Total)
		pr.Mastery = float64(pr.Reviewed) / float64(pr.Total) * pr.AvgConfidence / palace.MaxConfidence * 100
	}
	return pr
}

// Priority is a memory ranked for review.
type Priority struct {
	Locus    string        `json:"locus"`
	Memory   palace.Memory `json:"memory"`
	Strength int           `json:"strength"`
}

// ReviewList returns up to limit memories, weakest first. Ties keep palace
// order. A limit of zero or less returns every memory.
func ReviewList(p *palace.Palace, now time.Time, limit int) []Priority {
	var out []Priority
	for _, loc := range p.Loci {
		for _, m := range loc.Memories {
			out = append(out, Priority{Locus: loc.Name, Memory: m, Strength: Strength(m, now)})
		}
	}
	slices.SortStableFunc(out, func(a, b Priority) int { return cmp.Compare(a.Strength, b.Strength) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
