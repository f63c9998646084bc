package gamify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/lazypower/palace/internal/compare"
	"github.com/lazypower/palace/internal/logger"
	"github.com/lazypower/palace/internal/retention"
)

// Group is an A/B arm.
type Group string

const (
	GroupGamified Group = "gamified"
	GroupUtility  Group = "utility"
)

// AssignGroup places userID in an arm by the parity of a 31-multiplier
// string hash over its UTF-16 code units, so assignment is stable across
// runs and processes.
func AssignGroup(userID string) Group {
	var h int32
	for _, c := range utf16.Encode([]rune(userID)) {
		h = (h << 5) - h + int32(c)
	}
	if h%2 == 0 {
		return GroupGamified
	}
	return GroupUtility
}

// UserType is a simulated usage pattern.
type UserType string

const (
	UserCasual  UserType = "casual"
	UserRegular UserType = "regular"
	UserPower   UserType = "power"
)

// pickUserType splits users 50/35/15 casual, regular, power.
func pickUserType(r float64) UserType {
	switch {
	case r < 0.5:
		return UserCasual
	case r < 0.85:
		return UserRegular
	default:
		return UserPower
	}
}

var dailyProbability = map[UserType]float64{
	UserCasual:  0.3,
	UserRegular: 0.7,
	UserPower:   0.95,
}

func reviewsPerSession(t UserType, r float64) int {
	switch t {
	case UserCasual:
		return int(r*3) + 1
	case UserRegular:
		return int(r*8) + 3
	default:
		return int(r*15) + 10
	}
}

const (
	streakPull      = 0.05
	maxStreakPull   = 0.2
	baseSatisfy     = 3.0
	achievementLift = 0.3
	levelUpLift     = 0.5
	strongRecall    = 0.8
	strongLift      = 0.2
	missedDayDrop   = 0.1

	reviewLiftNeeded  = 20.0
	satisfactionFloor = -5.0
	satisfactionLead  = 10.0
	reviewTie         = 10.0
	satisfactionTie   = 5.0
)

// ABConfig describes an A/B simulation.
type ABConfig struct {
	Days    int       `json:"days"`
	Users   int       `json:"users"`
	Seed    uint64    `json:"seed"`
	Start   time.Time `json:"start"`
	Workers int       `json:"workers"`
}

// DefaultABConfig simulates 200 users for 30 days.
func DefaultABConfig() ABConfig {
	return ABConfig{Days: 30, Users: 200, Workers: 4}
}

// Validate reports the first problem with c as a *compare.ConfigurationError.
func (c ABConfig) Validate() error {
	if c.Days <= 0 {
		return &compare.ConfigurationError{Field: "days", Value: c.Days, Reason: "must be > 0"}
	}
	if c.Users < 2 {
		return &compare.ConfigurationError{Field: "users", Value: c.Users, Reason: "must be >= 2"}
	}
	if c.Workers < 0 {
		return &compare.ConfigurationError{Field: "workers", Value: c.Workers, Reason: "must be >= 0"}
	}
	return nil
}

// UserResult is one simulated user's outcome. Retention is the fraction of
// days the user was active.
type UserResult struct {
	ID              string   `json:"id"`
	Group           Group    `json:"group"`
	Type            UserType `json:"type"`
	TotalReviews    int      `json:"total_reviews"`
	ActiveDays      int      `json:"active_days"`
	MaxStreak       int      `json:"max_streak"`
	AvgDailyReviews float64  `json:"avg_daily_reviews"`
	Retention       float64  `json:"retention"`
	Satisfaction    float64  `json:"satisfaction"`
	Completed       bool     `json:"completed"`
}

// GroupMetrics averages one arm. Retention and Completion are percentages.
type GroupMetrics struct {
	Users        int     `json:"users"`
	Reviews      float64 `json:"reviews"`
	ActiveDays   float64 `json:"active_days"`
	Retention    float64 `json:"retention"`
	Satisfaction float64 `json:"satisfaction"`
	Completion   float64 `json:"completion"`
	MaxStreak    float64 `json:"max_streak"`
}

// Diff compares one metric across arms. Difference is the gamified arm's
// lead as a percentage of the utility arm.
type Diff struct {
	Gamified   float64 `json:"gamified"`
	Utility    float64 `json:"utility"`
	Difference float64 `json:"difference"`
}

func diff(g, u float64) Diff {
	d := Diff{Gamified: g, Utility: u}
	if u != 0 {
		d.Difference = round((g-u)/u*100, 1)
	}
	return d
}

// Comparison holds the compared metrics.
type Comparison struct {
	Reviews      Diff `json:"reviews"`
	Retention    Diff `json:"retention"`
	Satisfaction Diff `json:"satisfaction"`
	Completion   Diff `json:"completion"`
}

// ABVerdict names the winning approach.
type ABVerdict string

const (
	VerdictGamification ABVerdict = "gamification_wins"
	VerdictUtility      ABVerdict = "utility_wins"
	VerdictNoDifference ABVerdict = "no_difference"
	VerdictHybrid       ABVerdict = "hybrid"
)

var recommendations = map[ABVerdict]string{
	VerdictGamification: "Gamification drives significantly more reviews without hurting satisfaction. Keep XP and streaks on by default.",
	VerdictUtility:      "Users are happier with plain efficiency metrics. Default to utility mode.",
	VerdictNoDifference: "No meaningful difference. Offer both modes and let users choose.",
	VerdictHybrid:       "Mixed results. Lead with utility metrics and make light gamification optional.",
}

// ABResult is a completed A/B simulation.
type ABResult struct {
	ID             string                 `json:"id"`
	Timestamp      time.Time              `json:"timestamp"`
	Config         ABConfig               `json:"config"`
	Groups         map[Group]GroupMetrics `json:"groups"`
	Comparison     Comparison             `json:"comparison"`
	Significance   *compare.Significance  `json:"significance,omitempty"`
	Verdict        ABVerdict              `json:"verdict"`
	Recommendation string                 `json:"recommendation"`
	Elapsed        time.Duration          `json:"elapsed_ns"`

	Users []UserResult `json:"-"`
}

// ABTest runs A/B simulations.
type ABTest struct {
	cfg ABConfig
	log *slog.Logger
	now func() time.Time
}

// ABOption configures an ABTest.
type ABOption func(*ABTest)

// WithLogger sets the test's logger.
func WithLogger(l *slog.Logger) ABOption {
	return func(t *ABTest) { t.log = l }
}

// WithClock overrides the clock used for timestamps and the default start.
func WithClock(now func() time.Time) ABOption {
	return func(t *ABTest) { t.now = now }
}

// NewABTest validates cfg. A zero Seed is replaced with a random one and a
// zero Start with today's UTC midnight.
func NewABTest(cfg ABConfig, opts ...ABOption) (*ABTest, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = rand.Uint64() | 1
	}
	t := &ABTest{cfg: cfg, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	if t.cfg.Start.IsZero() {
		t.cfg.Start = t.now().UTC().Truncate(24 * time.Hour)
	}
	t.log = t.log.With("component", "abtest")
	return t, nil
}

// Config returns the effective configuration.
func (t *ABTest) Config() ABConfig { return t.cfg }

// Run simulates every user. User i draws from stream (seed, i), so results
// do not depend on the number of workers.
func (t *ABTest) Run(ctx context.Context) (*ABResult, error) {
	started := t.now()
	t.log.Info("ab test started", "users", t.cfg.Users, "days", t.cfg.Days, "seed", t.cfg.Seed)

	users := make([]UserResult, t.cfg.Users)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Workers)
	for i := range users {
		g.Go(func() error {
			u, err := t.simulateUser(ctx, i, retention.NewSource(t.cfg.Seed, uint64(i)))
			if err != nil {
				return fmt.Errorf("simulate user %d: %w", i, err)
			}
			users[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &ABResult{
		ID:        uuid.NewString(),
		Timestamp: started.UTC(),
		Config:    t.cfg,
		Users:     users,
	}
	t.analyze(res)
	res.Elapsed = t.now().Sub(started)
	t.log.Info("ab test finished", "verdict", res.Verdict, "elapsed", res.Elapsed)
	return res, nil
}

func (t *ABTest) simulateUser(ctx context.Context, i int, rng retention.Source) (UserResult, error) {
	u := UserResult{ID: fmt.Sprintf("user-%d", i)}
	u.Group = AssignGroup(u.ID)
	u.Type = pickUserType(rng.Float64())

	var (
		gamified = NewStats()
		utility  = NewUtilityStats(t.cfg.Start)

		satisfaction = baseSatisfy
		streak       int
		lastActive   = -1
	)
	for day := range t.cfg.Days {
		if err := ctx.Err(); err != nil {
			return u, err
		}
		at := t.cfg.Start.AddDate(0, 0, day)
		p := dailyProbability[u.Type] + min(float64(streak)*streakPull, maxStreakPull)
		if rng.Float64() >= p {
			streak = 0
			satisfaction -= missedDayDrop
			satisfaction = min(max(satisfaction, 1), 5)
			continue
		}

		n := reviewsPerSession(u.Type, rng.Float64())
		duration := time.Duration((rng.Float64()*10 + 2) * float64(time.Second))
		recall := rng.Float64()*0.4 + 0.5
		perfect := rng.Float64() > 0.7

		for r := range n {
			when := at.Add(time.Duration(r) * time.Minute)
			switch u.Group {
			case GroupGamified:
				action := ActionReview
				if perfect {
					action = ActionPerfectRecall
				}
				a, err := gamified.Award(action, when)
				if err != nil {
					return u, err
				}
				if len(a.NewAchievements) > 0 {
					satisfaction += achievementLift
				}
				if a.LeveledUp {
					satisfaction += levelUpLift
				}
			case GroupUtility:
				utility.LogReview(ReviewLog{At: when, Duration: duration, Retention: &recall})
				if recall > strongRecall {
					satisfaction += strongLift
				}
			}
		}

		u.TotalReviews += n
		u.ActiveDays++
		if day == lastActive+1 {
			streak++
		} else {
			streak = 1
		}
		u.MaxStreak = max(u.MaxStreak, streak)
		lastActive = day
		satisfaction = min(max(satisfaction, 1), 5)
	}

	u.AvgDailyReviews = float64(u.TotalReviews) / float64(t.cfg.Days)
	u.Retention = float64(u.ActiveDays) / float64(t.cfg.Days)
	u.Satisfaction = round(satisfaction, 1)
	u.Completed = u.TotalReviews > 0
	return u, nil
}

func (t *ABTest) analyze(res *ABResult) {
	var reviews [2][]float64
	res.Groups = map[Group]GroupMetrics{}
	for gi, g := range []Group{GroupGamified, GroupUtility} {
		var active, ret, sat, done, streak []float64
		for _, u := range res.Users {
			if u.Group != g {
				continue
			}
			reviews[gi] = append(reviews[gi], float64(u.TotalReviews))
			active = append(active, float64(u.ActiveDays))
			ret = append(ret, u.Retention*100)
			sat = append(sat, u.Satisfaction)
			streak = append(streak, float64(u.MaxStreak))
			completed := 0.0
			if u.Completed {
				completed = 100
			}
			done = append(done, completed)
		}
		res.Groups[g] = GroupMetrics{
			Users:        len(reviews[gi]),
			Reviews:      mean(reviews[gi]),
			ActiveDays:   mean(active),
			Retention:    mean(ret),
			Satisfaction: mean(sat),
			Completion:   mean(done),
			MaxStreak:    mean(streak),
		}
	}

	gm, um := res.Groups[GroupGamified], res.Groups[GroupUtility]
	res.Comparison = Comparison{
		Reviews:      diff(gm.Reviews, um.Reviews),
		Retention:    diff(gm.Retention, um.Retention),
		Satisfaction: diff(gm.Satisfaction, um.Satisfaction),
		Completion:   diff(gm.Completion, um.Completion),
	}

	sig, err := compare.Welch(reviews[0], reviews[1])
	if err != nil {
		t.log.Warn("significance skipped", "err", err)
	} else {
		res.Significance = &sig
	}
	res.Verdict = Decide(res.Comparison, res.Significance != nil && res.Significance.Significant)
	res.Recommendation = recommendations[res.Verdict]
}

// Decide picks the verdict. A significant review lift wins for gamification
// only if satisfaction holds; a significant result with a clear satisfaction
// lead goes to utility.
func Decide(c Comparison, significant bool) ABVerdict {
	rd, sd := c.Reviews.Difference, c.Satisfaction.Difference
	switch {
	case significant && rd > reviewLiftNeeded && sd > satisfactionFloor:
		return VerdictGamification
	case significant && sd > satisfactionLead:
		return VerdictUtility
	case math.Abs(rd) < reviewTie && math.Abs(sd) < satisfactionTie:
		return VerdictNoDifference
	default:
		return VerdictHybrid
	}
}

// Recommendation returns the advice attached to v.
func Recommendation(v ABVerdict) string { return recommendations[v] }

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}
