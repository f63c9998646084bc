package analytics

import (
	"fmt"
	"time"

	"github.com/lazypower/palace/internal/palace"
)

// Retention classifies a palace's memories by how recently and confidently
// they were recalled.
type Retention struct {
	Palace           string   `json:"palace"`
	Total            int      `json:"total"`
	Reviewed         int      `json:"reviewed"`
	Strong           int      `json:"strong"`
	Weak             int      `json:"weak"`
	NeverReviewed    int      `json:"never_reviewed"`
	RetentionPct     float64  `json:"retention_pct"`
	StrongPct        float64  `json:"strong_pct"`
	WeakPct          float64  `json:"weak_pct"`
	NeverReviewedPct float64  `json:"never_reviewed_pct"`
	Recommendations  []string `json:"recommendations"`
}

// A reviewed memory is strong with confidence >= 4 and a recall inside two
// weeks, and weak with confidence <= 2 or no recall for a month.
const (
	strongConfidence = 4
	strongWithinDays = 14
	weakConfidence   = 2
	weakAfterDays    = 30
)

// RetentionAnalysis classifies every memory in p as of now.
func RetentionAnalysis(p *palace.Palace, now time.Time) Retention {
	r := Retention{Palace: p.Name}
	_ = p.Walk(func(_ *palace.Locus, m *palace.Memory) error {
		r.Total++
		days, ok := m.DaysSinceRecall(now)
		if !ok {
			r.NeverReviewed++
			return nil
		}
		r.Reviewed++
		switch {
		case m.Confidence >= strongConfidence && days < strongWithinDays:
			r.Strong++
		case m.Confidence <= weakConfidence || days > weakAfterDays:
			r.Weak++
		}
		return nil
	})

	if r.Total == 0 {
		r.Recommendations = []string{"Palace has no memories yet."}
		return r
	}
	pct := func(n int) float64 { return float64(n) / float64(r.Total) * 100 }
	r.RetentionPct = pct(r.Reviewed)
	r.StrongPct = pct(r.Strong)
	r.WeakPct = pct(r.Weak)
	r.NeverReviewedPct = pct(r.NeverReviewed)
	r.Recommendations = recommend(r)
	return r
}

func recommend(r Retention) []string {
	var recs []string
	total := float64(r.Total)
	if float64(r.NeverReviewed) > total*0.3 {
		recs = append(recs, fmt.Sprintf("High priority: %d memories never reviewed. Start with `palace heatmap %s`.", r.NeverReviewed, r.Palace))
	}
	if float64(r.Weak) > total*0.2 {
		recs = append(recs, fmt.Sprintf("%d weak memories identified. Consider reviewing this week.", r.Weak))
	}
	if float64(r.Strong) < total*0.3 {
		recs = append(recs, fmt.Sprintf("Only %d strong memories. Keep reviewing to build mastery.", r.Strong))
	}
	if len(recs) == 0 {
		recs = append(recs, fmt.Sprintf("Palace is in good shape with %d strong memories.", r.Strong))
	}
	return recs
}
