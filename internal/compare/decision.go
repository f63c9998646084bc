package compare

import (
	"fmt"
	"math"
)

// Verdict is the recommendation drawn from a comparison. The first configured
// algorithm is the challenger and the second is the incumbent.
type Verdict string

const (
	VerdictChallengerWins Verdict = "challenger_wins"
	VerdictPartialWin     Verdict = "partial_win"
	VerdictNoDifference   Verdict = "no_difference"
	VerdictIncumbentWins  Verdict = "incumbent_wins"
	VerdictKeepIncumbent  Verdict = "keep_incumbent"
)

// Retention differences, in percentage points, that separate the verdicts.
const (
	clearMargin = 5.0
	noiseMargin = 2.0
)

// Decision is the outcome of the decision framework.
type Decision struct {
	Verdict          Verdict `json:"verdict"`
	Summary          string  `json:"summary"`
	Reason           string  `json:"reason"`
	RetentionDiff    float64 `json:"retention_diff"`
	ReviewEfficiency float64 `json:"review_efficiency"`
	Significant      bool    `json:"significant"`
}

// Decide applies the decision framework to a result's final checkpoint.
//
// Review efficiency is retention per review of the challenger divided by
// that of the incumbent; 1.0 means equal. It is 0 when either side has no
// reviews or no retention to compare.
func Decide(r *Result) Decision {
	a, b := r.Config.Algorithms[0], r.Config.Algorithms[1]
	cp, _ := r.Checkpoint(r.Final.Day)
	retA, retB := cp.Algorithms[a].RetentionRate, cp.Algorithms[b].RetentionRate
	revA, revB := r.TotalReviews[a], r.TotalReviews[b]

	d := Decision{
		RetentionDiff: round(retA-retB, 1),
		Significant:   r.Significant(),
	}
	if revA > 0 && revB > 0 && retB > 0 {
		d.ReviewEfficiency = round((retA/revA)/(retB/revB), 2)
	}
	diff := retA - retB

	switch {
	case diff > clearMargin && d.Significant:
		d.Verdict = VerdictChallengerWins
		d.Summary = fmt.Sprintf("%s wins: replace %s as default", a, b)
		d.Reason = fmt.Sprintf("superior retention (%.1f%% vs %.1f%%) with statistical significance", retA, retB)
	case diff > 0 && diff <= clearMargin && d.Significant:
		d.Verdict = VerdictPartialWin
		d.Summary = fmt.Sprintf("%s partial win: offer as an intensive mode", a)
		d.Reason = fmt.Sprintf("modest improvement (%.1f%%) but requires %s more reviews", diff, extraReviews(revA, revB))
	case math.Abs(diff) <= noiseMargin && !d.Significant:
		d.Verdict = VerdictNoDifference
		d.Summary = fmt.Sprintf("no significant difference: keep %s", b)
		d.Reason = "performance equal within margin of error"
	case diff < -clearMargin && d.Significant:
		d.Verdict = VerdictIncumbentWins
		d.Summary = fmt.Sprintf("%s wins: confirm as default", b)
		d.Reason = fmt.Sprintf("%s significantly outperforms (%.1f%% vs %.1f%%)", b, retB, retA)
	default:
		d.Verdict = VerdictKeepIncumbent
		d.Summary = fmt.Sprintf("keep %s: no compelling reason to change", b)
		d.Reason = fmt.Sprintf("difference of %.1f%% is not decisive", diff)
	}
	return d
}

func extraReviews(revA, revB float64) string {
	if revB <= 0 {
		return "an unknown number of"
	}
	return fmt.Sprintf("%.0f%%", (revA/revB-1)*100)
}
