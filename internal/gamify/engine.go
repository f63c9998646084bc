// Package gamify tracks review progress two ways: an XP engine with levels,
// streaks and achievements, and a utility tracker that reports plain
// efficiency numbers. ABTest compares the two on a simulated population.
package gamify

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// Action is something a user does that earns XP.
type Action string

const (
	ActionReview        Action = "review"
	ActionPerfectRecall Action = "perfect_recall"
	ActionNewPalace     Action = "new_palace"
	ActionNewMemory     Action = "new_memory"
	ActionDailyLogin    Action = "daily_login"
	ActionSharePalace   Action = "share_palace"
)

var xpValues = map[Action]int{
	ActionReview:        10,
	ActionPerfectRecall: 20,
	ActionNewPalace:     50,
	ActionNewMemory:     15,
	ActionDailyLogin:    5,
	ActionSharePalace:   25,
}

const (
	weekStreakXP     = 100
	monthStreakXP    = 500
	achievementXP    = 50
	maxStreakBonus   = 20
	historyLimit     = 100
	weekStreakDays   = 7
	monthStreakDays  = 30
	progressBarCells = 20
)

// levelThresholds[i] is the XP needed to reach level i+1.
var levelThresholds = []int{0, 100, 250, 500, 1000, 2000, 5000, 10000, 20000, 40000}

// Level returns the level reached with xp.
func Level(xp int) int {
	for i := len(levelThresholds) - 1; i >= 0; i-- {
		if xp >= levelThresholds[i] {
			return i + 1
		}
	}
	return 1
}

// HistoryEntry is one awarded action.
type HistoryEntry struct {
	At     time.Time `json:"at"`
	Action Action    `json:"action"`
	XP     int       `json:"xp"`
}

// Stats is a gamified profile.
type Stats struct {
	XP             int            `json:"xp"`
	Level          int            `json:"level"`
	Streak         int            `json:"streak"`
	LongestStreak  int            `json:"longest_streak"`
	LastReview     *time.Time     `json:"last_review,omitempty"`
	TotalReviews   int            `json:"total_reviews"`
	PerfectRecalls int            `json:"perfect_recalls"`
	Achievements   []string       `json:"achievements"`
	History        []HistoryEntry `json:"history"`
}

// NewStats returns an empty level 1 profile.
func NewStats() *Stats {
	return &Stats{Level: 1, Achievements: []string{}}
}

// Achievement is an unlockable badge.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	check func(s *Stats) bool
}

var achievements = []Achievement{
	{ID: "first_steps", Name: "First Steps", Description: "Complete your first review",
		check: func(s *Stats) bool { return s.TotalReviews >= 1 }},
	{ID: "getting_warmer", Name: "Getting Warmer", Description: "Keep a 3 day streak",
		check: func(s *Stats) bool { return s.Streak >= 3 || s.LongestStreak >= 3 }},
	{ID: "week_streak", Name: "Week Warrior", Description: "Keep a 7 day streak",
		check: func(s *Stats) bool { return s.Streak >= weekStreakDays || s.LongestStreak >= weekStreakDays }},
	{ID: "month_streak", Name: "Monthly Master", Description: "Keep a 30 day streak",
		check: func(s *Stats) bool { return s.Streak >= monthStreakDays || s.LongestStreak >= monthStreakDays }},
	{ID: "perfect_10", Name: "Perfect Ten", Description: "Recall 10 memories perfectly",
		check: func(s *Stats) bool { return s.PerfectRecalls >= 10 }},
	{ID: "century", Name: "Century", Description: "Complete 100 reviews",
		check: func(s *Stats) bool { return s.TotalReviews >= 100 }},
	{ID: "thousand", Name: "Dedicated", Description: "Complete 1000 reviews",
		check: func(s *Stats) bool { return s.TotalReviews >= 1000 }},
	{ID: "novice", Name: "Novice", Description: "Reach level 3",
		check: func(s *Stats) bool { return s.Level >= 3 }},
	{ID: "adept", Name: "Adept", Description: "Reach level 5",
		check: func(s *Stats) bool { return s.Level >= 5 }},
	{ID: "master", Name: "Master", Description: "Reach level 10",
		check: func(s *Stats) bool { return s.Level >= 10 }},
}

// Achievements lists every achievement in unlock-check order.
func Achievements() []Achievement { return slices.Clone(achievements) }

func achievementByID(id string) (Achievement, bool) {
	for _, a := range achievements {
		if a.ID == id {
			return a, true
		}
	}
	return Achievement{}, false
}

// Progress is the XP position within the current level.
type Progress struct {
	Current    int `json:"current"`
	Needed     int `json:"needed"`
	Percentage int `json:"percentage"`
	NextLevel  int `json:"next_level"`
}

// Award is the outcome of one action.
type Award struct {
	XPGained        int           `json:"xp_gained"`
	TotalXP         int           `json:"total_xp"`
	Level           int           `json:"level"`
	LeveledUp       bool          `json:"leveled_up"`
	Streak          int           `json:"streak"`
	NewAchievements []Achievement `json:"new_achievements,omitempty"`
	Progress        Progress      `json:"progress"`
}

// Award credits action at the given time. Reviews earn a streak bonus of two
// XP per streak day, capped at 20. Every action counts toward the streak,
// which advances once per calendar day in at's location.
func (s *Stats) Award(action Action, at time.Time) (Award, error) {
	base, ok := xpValues[action]
	if !ok {
		return Award{}, fmt.Errorf("award: unknown action %q", action)
	}
	if s.Level == 0 {
		s.Level = 1
	}
	before := s.Level

	gained := base
	if action == ActionReview && s.Streak > 0 {
		gained += min(s.Streak*2, maxStreakBonus)
	}
	s.XP += gained
	s.TotalReviews++
	if action == ActionPerfectRecall {
		s.PerfectRecalls++
	}

	var unlocked []Achievement
	s.advanceStreak(at, &unlocked)
	s.History = append(s.History, HistoryEntry{At: at, Action: action, XP: gained})
	if n := len(s.History); n > historyLimit {
		s.History = slices.Clone(s.History[n-historyLimit:])
	}

	s.Level = Level(s.XP)
	unlocked = append(unlocked, s.checkAchievements()...)
	s.Level = Level(s.XP)

	return Award{
		XPGained:        gained,
		TotalXP:         s.XP,
		Level:           s.Level,
		LeveledUp:       s.Level > before,
		Streak:          s.Streak,
		NewAchievements: unlocked,
		Progress:        s.Progress(),
	}, nil
}

func (s *Stats) advanceStreak(at time.Time, unlocked *[]Achievement) {
	last := at
	defer func() { s.LastReview = &last }()

	today := at.Format(time.DateOnly)
	if s.LastReview != nil && s.LastReview.In(at.Location()).Format(time.DateOnly) == today {
		return
	}
	yesterday := at.AddDate(0, 0, -1).Format(time.DateOnly)
	if s.LastReview != nil && s.LastReview.In(at.Location()).Format(time.DateOnly) == yesterday {
		s.Streak++
		switch s.Streak {
		case weekStreakDays:
			if s.unlock("week_streak") {
				s.XP += weekStreakXP
				a, _ := achievementByID("week_streak")
				*unlocked = append(*unlocked, a)
			}
		case monthStreakDays:
			if s.unlock("month_streak") {
				s.XP += monthStreakXP
				a, _ := achievementByID("month_streak")
				*unlocked = append(*unlocked, a)
			}
		}
	} else {
		s.Streak = 1
	}
	s.LongestStreak = max(s.LongestStreak, s.Streak)
}

// unlock records id and reports whether it was new. It does not grant XP.
func (s *Stats) unlock(id string) bool {
	if slices.Contains(s.Achievements, id) {
		return false
	}
	s.Achievements = append(s.Achievements, id)
	return true
}

func (s *Stats) checkAchievements() []Achievement {
	var unlocked []Achievement
	for _, a := range achievements {
		if slices.Contains(s.Achievements, a.ID) || !a.check(s) {
			continue
		}
		s.unlock(a.ID)
		s.XP += achievementXP
		unlocked = append(unlocked, a)
	}
	return unlocked
}

// Progress reports how far s is through its level. Past the last threshold
// the next target doubles it.
func (s *Stats) Progress() Progress {
	level := max(Level(s.XP), 1)
	current := levelThresholds[level-1]
	next := levelThresholds[len(levelThresholds)-1] * 2
	if level < len(levelThresholds) {
		next = levelThresholds[level]
	}
	needed := next - current
	in := s.XP - current
	return Progress{
		Current:    in,
		Needed:     needed,
		Percentage: min(100, int(math.Round(float64(in)/float64(needed)*100))),
		NextLevel:  level + 1,
	}
}

// NextAchievement returns the first achievement s has not unlocked.
func (s *Stats) NextAchievement() (Achievement, bool) {
	for _, a := range achievements {
		if !slices.Contains(s.Achievements, a.ID) {
			return a, true
		}
	}
	return Achievement{}, false
}
