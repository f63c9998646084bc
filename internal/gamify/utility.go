package gamify

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	retentionAlpha = 0.1
	utilityWindow  = 30 * 24 * time.Hour

	overloadPending   = 50
	overloadPerDay    = 20
	lowRetention      = 0.6
	lowRetentionAfter = 20
	slowPerMinute     = 3
	sparsePerDay      = 3
	masteryReviews    = 100
	masteryRetention  = 0.8
)

// Goal types accepted by SetGoal.
const (
	GoalDailyReviews   = "daily_reviews"
	GoalWeeklyMemories = "weekly_memories"
	GoalRetentionRate  = "retention_rate"
)

// Goal is a user-set target.
type Goal struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Target    float64    `json:"target"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	Created   time.Time  `json:"created"`
	Progress  float64    `json:"progress"`
	Completed bool       `json:"completed"`
}

// ReviewLog is one review as the utility tracker sees it. A nil Retention
// leaves the running retention rate alone.
type ReviewLog struct {
	At        time.Time     `json:"at"`
	Duration  time.Duration `json:"duration_ns"`
	Retention *float64      `json:"retention,omitempty"`
}

// UtilityStats is a utility-mode profile. Days are UTC dates.
type UtilityStats struct {
	Started          time.Time      `json:"started"`
	TotalReviews     int            `json:"total_reviews"`
	TotalReviewTime  time.Duration  `json:"total_review_time_ns"`
	RetentionRate    float64        `json:"retention_rate"`
	RetentionSamples int            `json:"retention_samples"`
	ReviewsByDay     map[string]int `json:"reviews_by_day"`
	ActiveDays       []string       `json:"active_days"`
	LongestStreak    int            `json:"longest_streak"`
	Goals            []Goal         `json:"goals,omitempty"`
	History          []ReviewLog    `json:"history,omitempty"`
}

// NewUtilityStats returns an empty profile started at now.
func NewUtilityStats(now time.Time) *UtilityStats {
	return &UtilityStats{Started: now, ReviewsByDay: map[string]int{}}
}

// LogReview records r and returns the efficiency numbers that follow from it.
// Retention is an exponential moving average seeded by the first sample.
func (u *UtilityStats) LogReview(r ReviewLog) Efficiency {
	if u.ReviewsByDay == nil {
		u.ReviewsByDay = map[string]int{}
	}
	u.TotalReviews++
	u.TotalReviewTime += r.Duration

	day := r.At.UTC().Format(time.DateOnly)
	u.ReviewsByDay[day]++
	if i, found := slices.BinarySearch(u.ActiveDays, day); !found {
		u.ActiveDays = slices.Insert(u.ActiveDays, i, day)
		u.LongestStreak = longestRun(u.ActiveDays)
	}

	if r.Retention != nil {
		if u.RetentionSamples == 0 {
			u.RetentionRate = *r.Retention
		} else {
			u.RetentionRate = u.RetentionRate*(1-retentionAlpha) + *r.Retention*retentionAlpha
		}
		u.RetentionSamples++
	}

	u.History = append(u.History, r)
	cutoff := r.At.Add(-utilityWindow)
	u.History = slices.DeleteFunc(u.History, func(l ReviewLog) bool { return !l.At.After(cutoff) })

	return u.Efficiency(r.At)
}

// longestRun returns the longest run of consecutive dates in sorted days.
func longestRun(days []string) int {
	best, run := 0, 0
	var prev time.Time
	for i, d := range days {
		t, err := time.Parse(time.DateOnly, d)
		if err != nil {
			continue
		}
		if i > 0 && t.Sub(prev) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		best = max(best, run)
		prev = t
	}
	return best
}

// Efficiency is the utility report card. Percentages are 0 to 100.
type Efficiency struct {
	TotalReviews      int     `json:"total_reviews"`
	MemoriesPerMinute float64 `json:"memories_per_minute"`
	AverageReviewSecs float64 `json:"average_review_secs"`
	ReviewsPerDay     float64 `json:"reviews_per_day"`
	ActiveDaysPercent float64 `json:"active_days_percent"`
	LongestStreak     int     `json:"longest_streak"`
	RetentionPercent  float64 `json:"retention_percent"`
	DaysTracked       int     `json:"days_tracked"`
}

// Efficiency reports u as of now. Speed is zero until review time has been
// logged.
func (u *UtilityStats) Efficiency(now time.Time) Efficiency {
	days := max(1, now.Sub(u.Started).Hours()/24)
	e := Efficiency{
		TotalReviews:      u.TotalReviews,
		ReviewsPerDay:     round(float64(u.TotalReviews)/days, 1),
		ActiveDaysPercent: round(float64(len(u.ActiveDays))/days*100, 0),
		LongestStreak:     u.LongestStreak,
		RetentionPercent:  round(u.RetentionRate*100, 0),
		DaysTracked:       int(math.Ceil(days)),
	}
	if u.TotalReviews > 0 && u.TotalReviewTime > 0 {
		e.MemoriesPerMinute = round(float64(u.TotalReviews)/u.TotalReviewTime.Minutes(), 1)
		e.AverageReviewSecs = round(u.TotalReviewTime.Seconds()/float64(u.TotalReviews), 1)
	}
	return e
}

// Load describes whether the review queue is sustainable.
type Load struct {
	Pending  int      `json:"pending"`
	Warnings []string `json:"warnings,omitempty"`
	Healthy  bool     `json:"healthy"`
}

// CognitiveLoad checks the pending queue and recent pace for overload.
func (u *UtilityStats) CognitiveLoad(pending int, now time.Time) Load {
	e := u.Efficiency(now)
	l := Load{Pending: pending}
	if pending > overloadPending {
		l.Warnings = append(l.Warnings, fmt.Sprintf("%d memories pending review, consider a focused session", pending))
	}
	if e.ReviewsPerDay > overloadPerDay {
		l.Warnings = append(l.Warnings, fmt.Sprintf("averaging %.1f reviews a day, pace may not hold", e.ReviewsPerDay))
	}
	if u.RetentionRate < lowRetention && u.TotalReviews > lowRetentionAfter {
		l.Warnings = append(l.Warnings, "retention is low, review fewer memories more often")
	}
	l.Healthy = len(l.Warnings) == 0
	return l
}

// reviewsSince sums reviews on days after now minus n days.
func (u *UtilityStats) reviewsSince(n int, now time.Time) int {
	cutoff := now.UTC().AddDate(0, 0, -n)
	total := 0
	for day, count := range u.ReviewsByDay {
		t, err := time.Parse(time.DateOnly, day)
		if err != nil {
			continue
		}
		if t.After(cutoff) {
			total += count
		}
	}
	return total
}

// WeeklyReport compares the last seven days with the seven before.
type WeeklyReport struct {
	Reviews         int        `json:"reviews"`
	PreviousReviews int        `json:"previous_reviews"`
	ChangePercent   int        `json:"change_percent"`
	DailyAverage    float64    `json:"daily_average"`
	Efficiency      Efficiency `json:"efficiency"`
	Recommendations []string   `json:"recommendations,omitempty"`
}

// WeeklyReport builds the report as of now.
func (u *UtilityStats) WeeklyReport(now time.Time) WeeklyReport {
	week := u.reviewsSince(7, now)
	prev := u.reviewsSince(14, now) - week
	r := WeeklyReport{
		Reviews:         week,
		PreviousReviews: prev,
		DailyAverage:    round(float64(week)/7, 1),
		Efficiency:      u.Efficiency(now),
	}
	if prev > 0 {
		r.ChangePercent = int(math.Round(float64(week-prev) / float64(prev) * 100))
	}
	r.Recommendations = u.Recommendations(r.Efficiency)
	return r
}

// Recommendations turns e into advice.
func (u *UtilityStats) Recommendations(e Efficiency) []string {
	var recs []string
	if e.ReviewsPerDay < sparsePerDay {
		recs = append(recs, "Short daily sessions beat occasional long ones")
	}
	if u.RetentionSamples > 0 && u.RetentionRate < lowRetention {
		recs = append(recs, "Strengthen images for weak memories before adding new ones")
	}
	if e.MemoriesPerMinute > 0 && e.MemoriesPerMinute < slowPerMinute {
		recs = append(recs, "Walk the palace route faster, recall speed improves with fluency")
	}
	if u.TotalReviews > masteryReviews && u.RetentionRate > masteryRetention {
		recs = append(recs, "Retention is strong, consider longer review intervals")
	}
	return recs
}

// SetGoal adds a goal of a known type.
func (u *UtilityStats) SetGoal(typ string, target float64, deadline *time.Time, now time.Time) (Goal, error) {
	switch typ {
	case GoalDailyReviews, GoalWeeklyMemories, GoalRetentionRate:
	default:
		return Goal{}, fmt.Errorf("set goal: unknown type %q", typ)
	}
	if target <= 0 {
		return Goal{}, fmt.Errorf("set goal: target must be > 0, got %v", target)
	}
	g := Goal{
		ID:       "goal-" + uuid.NewString()[:8],
		Type:     typ,
		Target:   target,
		Deadline: deadline,
		Created:  now,
	}
	u.Goals = append(u.Goals, g)
	return g, nil
}

// UpdateGoal sets a goal's progress, completing it once the target is met.
func (u *UtilityStats) UpdateGoal(id string, progress float64) (Goal, bool) {
	for i := range u.Goals {
		if u.Goals[i].ID != id {
			continue
		}
		u.Goals[i].Progress = progress
		u.Goals[i].Completed = progress >= u.Goals[i].Target
		return u.Goals[i], true
	}
	return Goal{}, false
}

// RefreshGoals recomputes every open goal's progress as of now: today's
// reviews, the last seven days' reviews, or the retention percentage.
func (u *UtilityStats) RefreshGoals(now time.Time) {
	for _, g := range u.Goals {
		if g.Completed {
			continue
		}
		var progress float64
		switch g.Type {
		case GoalDailyReviews:
			progress = float64(u.ReviewsByDay[now.UTC().Format(time.DateOnly)])
		case GoalWeeklyMemories:
			progress = float64(u.reviewsSince(7, now))
		case GoalRetentionRate:
			progress = round(u.RetentionRate*100, 0)
		}
		u.UpdateGoal(g.ID, progress)
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
