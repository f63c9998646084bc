package navigate

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Render writes a plain-text ranking of r.
func Render(w io.Writer, r *Result) error {
	var sb strings.Builder
	c := r.Config
	fmt.Fprintf(&sb, "Palace navigation: %d iterations x %d queries, %.0f%% wrong-turn rate (seed %d)\n\n",
		c.Iterations, c.Queries, c.ErrorRate*100, c.Seed)

	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "#\tPalace\tSuccess\tSteps\tWrong\tBack\tWM\tPressure\tScore\t\n")
	for i, s := range r.Layouts {
		fmt.Fprintf(tw, "%d\t%s\t%.1f%%\t%.1f\t%.2f\t%.2f\t%.1f%%\t%.1f\t%.1f\t\n",
			i+1, s.Name, s.SuccessRate, s.MeanSteps, s.MeanWrongTurns, s.MeanBacktracks, s.Utilization, s.Pressure, s.Score)
	}
	tw.Flush()

	d := r.Decision
	sb.WriteString("\nDecision\n")
	fmt.Fprintf(&sb, "  winner    %s (+%.1f over %s)\n", d.Winner, d.Margin, d.RunnerUp)
	fmt.Fprintf(&sb, "  verdict   %s\n", d.Verdict)
	fmt.Fprintf(&sb, "  finding   %s\n", d.Finding)
	if s := d.Significance; s != nil {
		fmt.Fprintf(&sb, "  success   welch t=%.3f df=%.0f p=%.4f\n", s.T, s.DF, s.P)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
