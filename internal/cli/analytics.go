package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/palace/internal/analytics"
)

var (
	reportRange string
	reportJSON  bool
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Usage and retention reports",
}

var analyticsReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize recorded usage",
	Args:  cobra.NoArgs,
	RunE:  runAnalyticsReport,
}

var analyticsRetentionCmd = &cobra.Command{
	Use:   "retention <palace>",
	Short: "Classify a palace's memories and suggest next steps",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyticsRetention,
}

func init() {
	analyticsReportCmd.Flags().StringVarP(&reportRange, "range", "r", "7d", "Time range: Nd, Nh, Nm or all")
	analyticsReportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
	analyticsCmd.AddCommand(analyticsReportCmd)
	analyticsCmd.AddCommand(analyticsRetentionCmd)
}

func runAnalyticsReport(cmd *cobra.Command, args []string) error {
	db, _, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	t := analytics.NewTracker(db, analytics.WithLogger(log), analytics.Disabled())
	rep, err := t.Report(reportRange)
	if err != nil {
		return err
	}
	if reportJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Printf("Usage report (%s)\n", rep.TimeRange)
	if !rep.Since.IsZero() {
		fmt.Printf("  since %s (%s)\n", rep.Since.Local().Format(time.DateTime), humanize.Time(rep.Since))
	}
	fmt.Printf("  events            %s\n", humanize.Comma(int64(rep.TotalEvents)))
	fmt.Printf("  sessions          %d\n", rep.UniqueSessions)
	fmt.Printf("  memories reviewed %d\n", rep.MemoriesReviewed)
	fmt.Printf("  reviews / minute  %.2f\n", rep.ReviewsPerMinute)
	fmt.Printf("  top command       %s\n", rep.MostUsedCommand)
	fmt.Printf("  top palace        %s\n", rep.MostViewedPalace)

	printCounts("Commands", rep.Commands)
	printCounts("Palaces", rep.Palaces)
	return nil
}

func printCounts(title string, counts []analytics.Count) {
	if len(counts) == 0 {
		return
	}
	fmt.Printf("\n%s\n", title)
	for _, c := range counts {
		fmt.Printf("  %-20s %5d  %5.1f%%\n", c.Name, c.Count, c.Percentage)
	}
}

func runAnalyticsRetention(cmd *cobra.Command, args []string) error {
	db, _, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	p, err := loadPalace(db, args[0])
	if err != nil {
		return err
	}
	r := analytics.RetentionAnalysis(p, time.Now())

	fmt.Printf("Retention for %s (%d memories)\n", r.Palace, r.Total)
	fmt.Printf("  reviewed        %3d  (%.1f%%)\n", r.Reviewed, r.RetentionPct)
	fmt.Printf("  strong          %3d  (%.1f%%)\n", r.Strong, r.StrongPct)
	fmt.Printf("  weak            %3d  (%.1f%%)\n", r.Weak, r.WeakPct)
	fmt.Printf("  never reviewed  %3d  (%.1f%%)\n", r.NeverReviewed, r.NeverReviewedPct)
	if len(r.Recommendations) > 0 {
		fmt.Println("\nRecommendations")
		for _, rec := range r.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
	return nil
}
