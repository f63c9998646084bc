package hooks

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/lazypower/palace/internal/palace"
	"github.com/lazypower/palace/internal/schedule"
)

const (
	// recallThreshold is the match confidence above which a prompt is taken
	// to be about a stored memory.
	recallThreshold = 0.7
	// matchThreshold drops weak keyword overlaps before ranking.
	matchThreshold = 0.5
	// offerWindow suppresses a repeat store offer for the same topic.
	offerWindow = 5 * time.Minute
	// weakConfidence marks a memory as a weak spot. Unrated memories count
	// as middling.
	weakConfidence = 3
)

// reviewIntervals are the day offsets used for session-start reminders,
// indexed by review count.
var reviewIntervals = schedule.Table{1, 3, 7, 14, 30, 60}

// Action names what a hook offers the user.
type Action string

const (
	ActionRecall Action = "offer_recall"
	ActionStore  Action = "offer_store"
	ActionReview Action = "suggest_review"
)

// Candidate is a stored memory the classifier may match a prompt against.
type Candidate struct {
	Palace string
	Memory palace.Memory
}

// Candidates flattens palaces into match candidates in locus order.
func Candidates(palaces []*palace.Palace) []Candidate {
	var out []Candidate
	for _, p := range palaces {
		p.Walk(func(_ *palace.Locus, m *palace.Memory) error {
			out = append(out, Candidate{Palace: p.Name, Memory: *m})
			return nil
		})
	}
	return out
}

// Match is a candidate scored against a prompt.
type Match struct {
	Candidate
	Confidence float64
}

// MatchTopics scores each candidate by how many of its subject and content
// keywords the text mentions. Recently recalled memories are damped so the
// user is not quizzed on what they just reviewed. Matches at or below 0.5
// are dropped; the rest are sorted by confidence, highest first.
func MatchTopics(text string, candidates []Candidate, now time.Time) []Match {
	lower := strings.ToLower(text)
	var matches []Match
	for _, c := range candidates {
		score, matched := 0.0, 0
		for _, w := range strings.Fields(strings.ToLower(c.Memory.Subject)) {
			if utf8.RuneCountInString(w) > 3 && strings.Contains(lower, w) {
				score += 0.3
				matched++
			}
		}
		content := 0
		for _, w := range strings.Fields(strings.ToLower(c.Memory.Content)) {
			if utf8.RuneCountInString(w) <= 4 {
				continue
			}
			if content++; content > 5 {
				break
			}
			if strings.Contains(lower, w) {
				score += 0.1
			}
		}
		if matched >= 2 {
			score += 0.2
		}
		if days, ok := c.Memory.DaysSinceRecall(now); ok {
			switch {
			case days < 1:
				score *= 0.3
			case days < 3:
				score *= 0.7
			}
		}
		if score > matchThreshold {
			matches = append(matches, Match{Candidate: c, Confidence: min(score, 1)})
		}
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})
	return matches
}

var (
	learningPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bhow\s+(do|does|can|to)\b`),
		regexp.MustCompile(`(?i)\bwhat\s+is\b`),
		regexp.MustCompile(`(?i)\b(explain|describe|clarify)\b`),
		regexp.MustCompile(`(?i)\b(learn\s+about|study|understand)\b`),
		regexp.MustCompile(`(?i)\b(teach\s+me|show\s+me)\b`),
		regexp.MustCompile(`(?i)\b(documentation|tutorial|guide|reference)\b`),
		regexp.MustCompile(`(?i)\b(best\s+practice|how\s+to|pattern|approach)\b`),
		regexp.MustCompile(`(?i)\b(what's\s+the|how\s+does.*work)\b`),
	}
	technicalTerms = regexp.MustCompile(`(?i)\b(api|function|class|method|database|cache|server|client|async|algorithm|data\s+structure)\b`)
)

// DetectLearningIntent reports whether text reads like the user is trying to
// learn something: a learning phrase plus either a question mark, a
// technical term, or a long detailed message.
func DetectLearningIntent(text string) bool {
	pattern := slices.ContainsFunc(learningPatterns, func(re *regexp.Regexp) bool {
		return re.MatchString(text)
	})
	if !pattern {
		return false
	}
	if strings.Contains(text, "?") || technicalTerms.MatchString(text) {
		return true
	}
	return utf8.RuneCountInString(text) > 100 && len(strings.Split(text, " ")) > 15
}

var (
	quotedTopic      = regexp.MustCompile(`"([^"]+)"`)
	capitalizedTopic = regexp.MustCompile(`\b([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+){0,2})\b`)
	technicalTopic   = regexp.MustCompile(`(?i)\b([a-z]+(?:-[a-z]+)?)\s+(?:pattern|system|architecture|design|algorithm)\b`)
	howToTopic       = regexp.MustCompile(`(?i)how\s+(?:to|do|does)\s+(\w+(?:\s+\w+){0,2})`)
	whatIsTopic      = regexp.MustCompile(`(?i)what\s+(?:is|are)\s+(\w+(?:\s+\w+){0,2})`)
)

// sentenceOpeners are capitalized words that start a question or request
// rather than name a topic.
var sentenceOpeners = map[string]bool{
	"how": true, "what": true, "why": true, "when": true, "where": true,
	"which": true, "who": true, "can": true, "could": true, "should": true,
	"would": true, "does": true, "explain": true, "describe": true,
	"tell": true, "show": true, "teach": true, "please": true, "the": true,
}

// ExtractTopic pulls a short topic out of text. It prefers, in order, a
// quoted string, a run of capitalized words, a "<word> pattern/system/..."
// phrase, then the words after "how to" or "what is". It returns "" when
// nothing looks like a topic.
func ExtractTopic(text string) string {
	if m := quotedTopic.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	for _, m := range capitalizedTopic.FindAllStringSubmatch(text, -1) {
		words := strings.Fields(m[1])
		for len(words) > 0 && sentenceOpeners[strings.ToLower(words[0])] {
			words = words[1:]
		}
		if phrase := strings.Join(words, " "); len(phrase) > 3 {
			return phrase
		}
	}
	if m := technicalTopic.FindString(text); m != "" {
		return m
	}
	if m := howToTopic.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := whatIsTopic.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// Due returns the candidates whose next review, counted from the last recall
// (or creation when never recalled), is at or before now. Candidates with
// neither timestamp are never due.
func Due(candidates []Candidate, now time.Time) []Candidate {
	var due []Candidate
	for _, c := range candidates {
		from := c.Memory.Created
		if c.Memory.LastRecalled != nil {
			from = *c.Memory.LastRecalled
		}
		if from.IsZero() {
			continue
		}
		if !from.AddDate(0, 0, reviewIntervals.Offset(c.Memory.ReviewCount)).After(now) {
			due = append(due, c)
		}
	}
	return due
}

// SuggestedAction is one button on a suggestion. An empty Command dismisses.
type SuggestedAction struct {
	Label   string `json:"label"`
	Command string `json:"command,omitempty"`
}

// Suggestion is what a hook shows the user when it interrupts.
type Suggestion struct {
	Type        Action            `json:"type"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Actions     []SuggestedAction `json:"actions"`
	AutoDismiss int               `json:"auto_dismiss_ms"`
}

// Text renders the suggestion as plain lines for hook output.
func (s *Suggestion) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", s.Title, s.Message)
	for _, a := range s.Actions {
		if a.Command == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", a.Label, a.Command)
	}
	return b.String()
}

func recallSuggestion(c Candidate) *Suggestion {
	return &Suggestion{
		Type:    ActionRecall,
		Title:   fmt.Sprintf("Topic: %q", c.Memory.Subject),
		Message: fmt.Sprintf("You mentioned a topic stored in palace %q.", c.Palace),
		Actions: []SuggestedAction{
			{Label: "Recall now", Command: fmt.Sprintf("palace recall %q %s", c.Palace, c.Memory.ID)},
			{Label: "Got it"},
		},
		AutoDismiss: 30000,
	}
}

func storeSuggestion(topic string) *Suggestion {
	return &Suggestion{
		Type:    ActionStore,
		Title:   "Learning detected",
		Message: fmt.Sprintf("Store %q in your memory palace?", topic),
		Actions: []SuggestedAction{
			{Label: "Store now", Command: "palace import <palace.json>"},
			{Label: "Already stored"},
			{Label: "Not now"},
		},
		AutoDismiss: 20000,
	}
}

func reviewSuggestion(due []Candidate) *Suggestion {
	weak := 0
	for _, c := range due {
		conf := c.Memory.Confidence
		if conf == 0 {
			conf = weakConfidence
		}
		if conf < weakConfidence {
			weak++
		}
	}
	msg := fmt.Sprintf("%d memories ready for review", len(due))
	if weak > 0 {
		msg += fmt.Sprintf(" (%d weak spots)", weak)
	}
	p := due[0].Palace
	return &Suggestion{
		Type:    ActionReview,
		Title:   "Review due",
		Message: msg,
		Actions: []SuggestedAction{
			{Label: "Review weak spots", Command: fmt.Sprintf("palace heatmap %q", p)},
			{Label: "Quick review", Command: fmt.Sprintf("palace show %q", p)},
			{Label: "Dismiss"},
		},
		AutoDismiss: 60000,
	}
}

// Result is the outcome of classifying one prompt.
type Result struct {
	Triggered  bool        `json:"triggered"`
	Action     Action      `json:"action,omitempty"`
	Confidence float64     `json:"confidence,omitempty"`
	Topic      string      `json:"topic,omitempty"`
	Palace     string      `json:"palace,omitempty"`
	MemoryID   string      `json:"memory_id,omitempty"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

// Orchestrator decides, per session, whether a prompt earns an interruption.
// It is safe for concurrent use.
type Orchestrator struct {
	mu     sync.Mutex
	budget *Budget
	offers map[string]time.Time
	now    func() time.Time
}

// NewOrchestrator starts a session with a fresh budget.
func NewOrchestrator(now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		budget: NewBudget(now()),
		offers: make(map[string]time.Time),
		now:    now,
	}
}

// Process classifies prompt. A strong match against a stored memory offers
// recall; otherwise a learning prompt (or learning forced by the caller)
// offers to store its topic unless the same topic was offered in the last
// five minutes. Either offer spends the interruption budget.
func (o *Orchestrator) Process(prompt string, learning bool, candidates []Candidate) Result {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	if !o.budget.CanInterrupt(now) {
		return Result{}
	}

	if matches := MatchTopics(prompt, candidates, now); len(matches) > 0 && matches[0].Confidence > recallThreshold {
		top := matches[0]
		o.budget.Record(now)
		return Result{
			Triggered:  true,
			Action:     ActionRecall,
			Confidence: top.Confidence,
			Topic:      top.Memory.Subject,
			Palace:     top.Palace,
			MemoryID:   top.Memory.ID,
			Suggestion: recallSuggestion(top.Candidate),
		}
	}

	if !learning && !DetectLearningIntent(prompt) {
		return Result{}
	}
	topic := ExtractTopic(prompt)
	if topic == "" {
		return Result{}
	}
	if at, ok := o.offers[topic]; ok && now.Sub(at) < offerWindow {
		return Result{}
	}
	o.offers[topic] = now
	o.budget.Record(now)
	return Result{
		Triggered:  true,
		Action:     ActionStore,
		Topic:      topic,
		Suggestion: storeSuggestion(topic),
	}
}

// Start resets the budget and returns a review reminder when memories are
// due, or nil.
func (o *Orchestrator) Start(candidates []Candidate) *Suggestion {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	o.budget.Reset(now)
	due := Due(candidates, now)
	if len(due) == 0 || !o.budget.CanInterrupt(now) {
		return nil
	}
	o.budget.Record(now)
	return reviewSuggestion(due)
}

// Status reports the session's interruption budget.
func (o *Orchestrator) Status() BudgetStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.budget.Status(o.now())
}
