package compare

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Render writes a plain-text report of r.
func Render(w io.Writer, r *Result) error {
	a, b := r.Config.Algorithms[0], r.Config.Algorithms[1]
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s\n", r.Hypothesis)
	fmt.Fprintf(&sb, "Duration %d days, %d memories per algorithm, %d/%d trials completed (seed %d)\n",
		r.Config.DurationDays, r.Config.SampleSize, r.Trials.Completed, r.Trials.Requested, r.Config.Seed)
	if r.Trials.Failed > 0 {
		fmt.Fprintf(&sb, "Failed trials: %d\n", r.Trials.Failed)
	}
	if r.Trials.Truncated {
		fmt.Fprintf(&sb, "Truncated: %d trials skipped\n", r.Trials.Skipped)
	}

	sb.WriteString("\nCheckpoint retention\n")
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Day\t%s\t%s\tDifference\t\n", a, b)
	for _, cp := range r.Checkpoints {
		ra, rb := cp.Algorithms[a].RetentionRate, cp.Algorithms[b].RetentionRate
		fmt.Fprintf(tw, "%d\t%.1f%%\t%.1f%%\t%+.1f%%\t\n", cp.Day, ra, rb, ra-rb)
	}
	tw.Flush()

	revA, revB := r.TotalReviews[a], r.TotalReviews[b]
	fmt.Fprintf(&sb, "\nAverage review sessions (%d days)\n", r.Config.DurationDays)
	fmt.Fprintf(&sb, "  %-12s %.1f\n", a, revA)
	fmt.Fprintf(&sb, "  %-12s %.1f\n", b, revB)
	if revB > 0 {
		fmt.Fprintf(&sb, "  difference   %+.1f (%+.0f%%)\n", revA-revB, (revA-revB)/revB*100)
	}

	fmt.Fprintf(&sb, "\nStatistics (day %d)\n", r.Final.Day)
	for _, alg := range r.Config.Algorithms {
		d := r.Final.Descriptive[alg]
		fmt.Fprintf(&sb, "  %-12s mean %.2f%% (std %.2f, range %.1f-%.1f)\n", alg, d.Mean, d.Std, d.Min, d.Max)
	}
	if s := r.Final.Significance; s != nil {
		fmt.Fprintf(&sb, "  welch t      t=%.3f df=%.0f p=%.4f\n", s.T, s.DF, s.P)
		fmt.Fprintf(&sb, "  significant  %s (|t| > %.0f)\n", yesNo(s.Significant), s.Threshold)
	} else {
		sb.WriteString("  significance not computed (need at least 2 trials)\n")
	}

	d := r.Decision
	sb.WriteString("\nDecision\n")
	fmt.Fprintf(&sb, "  retention difference  %+.1f%%\n", d.RetentionDiff)
	fmt.Fprintf(&sb, "  review efficiency     %.2f (1.0 = equal)\n", d.ReviewEfficiency)
	fmt.Fprintf(&sb, "  verdict               %s\n", d.Summary)
	fmt.Fprintf(&sb, "  reason                %s\n", d.Reason)

	_, err := io.WriteString(w, sb.String())
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
