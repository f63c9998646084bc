package gamify

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

// Bar draws pct (0 to 100) as a fixed-width progress bar.
func Bar(pct int) string {
	filled := min(max(pct, 0), 100) * progressBarCells / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", progressBarCells-filled)
}

// RenderStatus writes a gamified profile.
func RenderStatus(w io.Writer, s *Stats) error {
	var sb strings.Builder
	p := s.Progress()
	fmt.Fprintf(&sb, "Level %d  %s XP\n", max(s.Level, 1), humanize.Comma(int64(s.XP)))
	fmt.Fprintf(&sb, "  %s %d%% to level %d (%d/%d)\n", Bar(p.Percentage), p.Percentage, p.NextLevel, p.Current, p.Needed)
	fmt.Fprintf(&sb, "  streak %d days (longest %d)\n", s.Streak, s.LongestStreak)
	fmt.Fprintf(&sb, "  reviews %s, perfect %s\n", humanize.Comma(int64(s.TotalReviews)), humanize.Comma(int64(s.PerfectRecalls)))
	fmt.Fprintf(&sb, "  achievements %d/%d\n", len(s.Achievements), len(achievements))
	for _, id := range s.Achievements {
		if a, ok := achievementByID(id); ok {
			fmt.Fprintf(&sb, "    %s: %s\n", a.Name, a.Description)
		}
	}
	if a, ok := s.NextAchievement(); ok {
		fmt.Fprintf(&sb, "  next: %s (%s)\n", a.Name, a.Description)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// RenderUtility writes a utility profile's weekly report and load check.
func RenderUtility(w io.Writer, u *UtilityStats, pending int, now time.Time) error {
	var sb strings.Builder
	r := u.WeeklyReport(now)
	e := r.Efficiency

	sb.WriteString("Efficiency\n")
	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  reviews\t%s\n", humanize.Comma(int64(e.TotalReviews)))
	fmt.Fprintf(tw, "  per day\t%.1f\n", e.ReviewsPerDay)
	if e.MemoriesPerMinute > 0 {
		fmt.Fprintf(tw, "  per minute\t%.1f (%.1fs each)\n", e.MemoriesPerMinute, e.AverageReviewSecs)
	}
	fmt.Fprintf(tw, "  active days\t%.0f%% of %d\n", e.ActiveDaysPercent, e.DaysTracked)
	fmt.Fprintf(tw, "  longest streak\t%d days\n", e.LongestStreak)
	fmt.Fprintf(tw, "  retention\t%.0f%%\n", e.RetentionPercent)
	tw.Flush()

	fmt.Fprintf(&sb, "\nThis week: %d reviews (%.1f a day, %+d%% vs last week)\n", r.Reviews, r.DailyAverage, r.ChangePercent)

	load := u.CognitiveLoad(pending, now)
	if load.Healthy {
		fmt.Fprintf(&sb, "Load: healthy, %d pending\n", pending)
	} else {
		for _, warn := range load.Warnings {
			fmt.Fprintf(&sb, "Load: %s\n", warn)
		}
	}
	for _, g := range u.Goals {
		state := "open"
		if g.Completed {
			state = "done"
		}
		fmt.Fprintf(&sb, "Goal %s: %s %.0f/%.0f (%s)\n", g.ID, g.Type, g.Progress, g.Target, state)
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&sb, "  - %s\n", rec)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// RenderAB writes an A/B report.
func RenderAB(w io.Writer, r *ABResult) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Gamification vs utility: %d users over %d days (seed %d)\n\n",
		r.Config.Users, r.Config.Days, r.Config.Seed)

	tw := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Metric\tGamified\tUtility\tDifference\t\n")
	row := func(name string, d Diff, unit string) {
		fmt.Fprintf(tw, "%s\t%.1f%s\t%.1f%s\t%+.1f%%\t\n", name, d.Gamified, unit, d.Utility, unit, d.Difference)
	}
	row("reviews", r.Comparison.Reviews, "")
	row("retention", r.Comparison.Retention, "%")
	row("satisfaction", r.Comparison.Satisfaction, "")
	row("completion", r.Comparison.Completion, "%")
	tw.Flush()

	fmt.Fprintf(&sb, "\nUsers: %d gamified, %d utility\n", r.Groups[GroupGamified].Users, r.Groups[GroupUtility].Users)
	if s := r.Significance; s != nil {
		fmt.Fprintf(&sb, "Reviews welch t=%.3f df=%.0f p=%.4f, significant %s\n", s.T, s.DF, s.P, yesNo(s.Significant))
	} else {
		sb.WriteString("Significance not computed (need at least 2 users per group)\n")
	}
	fmt.Fprintf(&sb, "\nVerdict  %s\n", r.Verdict)
	fmt.Fprintf(&sb, "  %s\n", r.Recommendation)

	_, err := io.WriteString(w, sb.String())
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
