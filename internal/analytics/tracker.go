// Package analytics records usage events and derives usage and retention
// reports from them.
package analytics

import (
	"cmp"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/palace/internal/logger"
	"github.com/lazypower/palace/internal/store"
)

// Recorder persists and replays events. *store.DB satisfies it.
type Recorder interface {
	AddEvent(e store.Event) error
	ListEvents(since time.Time) ([]store.Event, error)
}

// Tracker records events for one session.
type Tracker struct {
	rec      Recorder
	session  string
	started  time.Time
	now      func() time.Time
	disabled bool
	log      *slog.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the tracker's clock.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithSession sets the session id instead of generating one.
func WithSession(id string) Option {
	return func(t *Tracker) { t.session = id }
}

// WithLogger sets the tracker's logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// Disabled turns Track into a no-op. Reports still read stored events.
func Disabled() Option {
	return func(t *Tracker) { t.disabled = true }
}

// NewTracker starts a session over rec.
func NewTracker(rec Recorder, opts ...Option) *Tracker {
	t := &Tracker{
		rec: rec,
		now: time.Now,
		log: logger.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.session == "" {
		t.session = "session-" + uuid.NewString()
	}
	t.started = t.now()
	return t
}

// Session returns the tracker's session id.
func (t *Tracker) Session() string { return t.session }

// Track records an event of typ with data.
func (t *Tracker) Track(typ string, data map[string]string) error {
	if t.disabled {
		return nil
	}
	err := t.rec.AddEvent(store.Event{
		SessionID: t.session,
		Type:      typ,
		Data:      data,
		CreatedAt: t.now(),
	})
	if err != nil {
		return fmt.Errorf("track %s: %w", typ, err)
	}
	t.log.Debug("event tracked", "type", typ, "session", t.session)
	return nil
}

// Count is one row of a frequency table.
type Count struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Report summarizes usage over a time range.
type Report struct {
	TimeRange        string        `json:"time_range"`
	Since            time.Time     `json:"since,omitzero"`
	TotalEvents      int           `json:"total_events"`
	UniqueSessions   int           `json:"unique_sessions"`
	Commands         []Count       `json:"commands"`
	Palaces          []Count       `json:"palaces"`
	MemoriesReviewed int           `json:"memories_reviewed"`
	MostUsedCommand  string        `json:"most_used_command"`
	MostViewedPalace string        `json:"most_viewed_palace"`
	SessionDuration  time.Duration `json:"session_duration_ns"`
	ReviewsPerMinute float64       `json:"reviews_per_minute"`
}

var rangePattern = regexp.MustCompile(`^(\d+)([dhm])$`)

// ParseRange turns "7d", "12h", "30m" or "all" into a lookback window. "all"
// returns 0.
func ParseRange(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "all" {
		return 0, nil
	}
	m := rangePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid time range %q (want e.g. 7d, 12h, 30m or all)", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid time range %q", s)
	}
	unit := map[string]time.Duration{"d": 24 * time.Hour, "h": time.Hour, "m": time.Minute}[m[2]]
	return time.Duration(n) * unit, nil
}

// Report builds a usage report over timeRange.
func (t *Tracker) Report(timeRange string) (*Report, error) {
	window, err := ParseRange(timeRange)
	if err != nil {
		return nil, err
	}
	now := t.now()
	var since time.Time
	if window > 0 {
		since = now.Add(-window)
	}
	events, err := t.rec.ListEvents(since)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	r := &Report{
		TimeRange:       timeRange,
		Since:           since,
		TotalEvents:     len(events),
		SessionDuration: now.Sub(t.started),
	}
	sessions := make(map[string]bool)
	commands := make(map[string]int)
	palaces := make(map[string]int)
	for _, e := range events {
		sessions[e.SessionID] = true
		switch e.Type {
		case store.EventCommand:
			commands[e.Data["command"]]++
		case store.EventPalaceView:
			palaces[e.Data["palace"]]++
		case store.EventMemoryReview:
			r.MemoriesReviewed++
		}
	}
	r.UniqueSessions = len(sessions)
	r.Commands = summarize(commands)
	r.Palaces = summarize(palaces)
	r.MostUsedCommand = top(r.Commands)
	r.MostViewedPalace = top(r.Palaces)

	if len(events) > 1 {
		span := events[len(events)-1].CreatedAt.Sub(events[0].CreatedAt).Minutes()
		if span > 0 {
			r.ReviewsPerMinute = float64(r.MemoriesReviewed) / span
		}
	}
	return r, nil
}

// summarize orders counts by frequency, then name.
func summarize(m map[string]int) []Count {
	total := 0
	for _, n := range m {
		total += n
	}
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{
			Name:       name,
			Count:      n,
			Percentage: float64(n) / float64(total) * 100,
		})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func top(counts []Count) string {
	if len(counts) == 0 {
		return "none"
	}
	return counts[0].Name
}
