package hooks

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/palace/internal/palace"
)

var classifyNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := classifyNow.Add(-d)
	return &t
}

func shardingCandidate() Candidate {
	return Candidate{
		Palace: "Systems Hall",
		Memory: palace.Memory{
			ID:      "db-1",
			Subject: "Database Sharding",
			Content: "Split rows across nodes by key",
			Created: classifyNow.AddDate(0, -1, 0),
		},
	}
}

func TestMatchTopics(t *testing.T) {
	prompt := "How should I approach database sharding for the users table?"

	matches := MatchTopics(prompt, []Candidate{shardingCandidate()}, classifyNow)
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	// two subject words plus the multi-word boost
	if math.Abs(matches[0].Confidence-0.8) > 1e-9 {
		t.Errorf("confidence = %v, want 0.8", matches[0].Confidence)
	}

	recent := shardingCandidate()
	recent.Memory.LastRecalled = ago(12 * time.Hour)
	if got := MatchTopics(prompt, []Candidate{recent}, classifyNow); len(got) != 0 {
		t.Errorf("recalled today: matches = %v, want none", got)
	}

	recent.Memory.LastRecalled = ago(48 * time.Hour)
	got := MatchTopics(prompt, []Candidate{recent}, classifyNow)
	if len(got) != 1 || math.Abs(got[0].Confidence-0.56) > 1e-9 {
		t.Errorf("recalled two days ago: matches = %v, want one at 0.56", got)
	}
}

func TestMatchTopicsOrdersAndCaps(t *testing.T) {
	weak := Candidate{Palace: "p", Memory: palace.Memory{ID: "w", Subject: "Consistent Hashing ring"}}
	strong := Candidate{Palace: "p", Memory: palace.Memory{
		ID:      "s",
		Subject: "Raft leader election",
		Content: "terms votes heartbeat timeout quorum",
	}}
	prompt := "raft leader election with heartbeat timeout quorum votes terms, and consistent hashing"

	got := MatchTopics(prompt, []Candidate{weak, strong}, classifyNow)
	if len(got) != 2 {
		t.Fatalf("matches = %d, want 2", len(got))
	}
	if got[0].Memory.ID != "s" || got[0].Confidence != 1 {
		t.Errorf("top = %s at %v, want s capped at 1", got[0].Memory.ID, got[0].Confidence)
	}
	if got[1].Memory.ID != "w" {
		t.Errorf("second = %s, want w", got[1].Memory.ID)
	}
}

func TestDetectLearningIntent(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"What is a bloom filter?", true},
		{"how does the cache invalidation work", true},
		{"explain the server handshake", true},
		{"explain yourself", false},
		{"fix the typo in README", false},
		{"Can you walk me through it?", false},
		{strings.Repeat("word ", 20) + "I would like to understand the overall shape of this codebase before I change it", true},
	}
	for _, tt := range tests {
		if got := DetectLearningIntent(tt.text); got != tt.want {
			t.Errorf("DetectLearningIntent(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestExtractTopic(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{`Store "two-phase commit" for me`, "two-phase commit"},
		{"How does Kubernetes Scheduling work?", "Kubernetes Scheduling"},
		{"What is the Raft Consensus algorithm?", "Raft Consensus"},
		{"explain the observer pattern to me", "observer pattern"},
		{"how to reverse a linked list", "reverse a linked"},
		{"what are monads", "monads"},
		{"ok thanks", ""},
	}
	for _, tt := range tests {
		if got := ExtractTopic(tt.text); got != tt.want {
			t.Errorf("ExtractTopic(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestDue(t *testing.T) {
	fresh := Candidate{Palace: "p", Memory: palace.Memory{ID: "fresh", Created: classifyNow.AddDate(0, 0, -2)}}
	reviewed := Candidate{Palace: "p", Memory: palace.Memory{ID: "reviewed", ReviewCount: 1, LastRecalled: ago(48 * time.Hour)}}
	veteran := Candidate{Palace: "p", Memory: palace.Memory{ID: "veteran", ReviewCount: 12, LastRecalled: ago(61 * 24 * time.Hour)}}
	undated := Candidate{Palace: "p", Memory: palace.Memory{ID: "undated"}}

	due := Due([]Candidate{fresh, reviewed, veteran, undated}, classifyNow)
	var ids []string
	for _, c := range due {
		ids = append(ids, c.Memory.ID)
	}
	if strings.Join(ids, ",") != "fresh,veteran" {
		t.Errorf("due = %v, want [fresh veteran]", ids)
	}
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestOrchestratorOffersRecallThenStore(t *testing.T) {
	clock := &testClock{t: classifyNow}
	o := NewOrchestrator(clock.now)
	candidates := []Candidate{shardingCandidate()}

	res := o.Process("How should I approach database sharding here?", false, candidates)
	if !res.Triggered || res.Action != ActionRecall {
		t.Fatalf("result = %+v, want offer_recall", res)
	}
	if res.Palace != "Systems Hall" || res.MemoryID != "db-1" || res.Topic != "Database Sharding" {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(res.Suggestion.Text(), `palace recall "Systems Hall" db-1`) {
		t.Errorf("suggestion = %q", res.Suggestion.Text())
	}

	// cooldown
	clock.advance(time.Minute)
	if res := o.Process("What is the Raft Consensus algorithm?", false, candidates); res.Triggered {
		t.Errorf("within cooldown: result = %+v, want none", res)
	}

	clock.advance(15 * time.Minute)
	res = o.Process("What is the Raft Consensus algorithm?", false, candidates)
	if !res.Triggered || res.Action != ActionStore || res.Topic != "Raft Consensus" {
		t.Fatalf("result = %+v, want offer_store of Raft Consensus", res)
	}

	st := o.Status()
	if st.Used != 2 || st.Remaining != 1 || st.CanInterrupt {
		t.Errorf("status = %+v", st)
	}
}

func TestOrchestratorIgnoresChatter(t *testing.T) {
	o := NewOrchestrator(func() time.Time { return classifyNow })
	if res := o.Process("thanks, that worked", false, nil); res.Triggered {
		t.Errorf("result = %+v, want none", res)
	}
	// forced learning still needs a topic
	if res := o.Process("ok", true, nil); res.Triggered {
		t.Errorf("result = %+v, want none", res)
	}
	res := o.Process("remember this: Dijkstra computes shortest paths", true, nil)
	if !res.Triggered || res.Topic != "Dijkstra" {
		t.Errorf("result = %+v, want store offer for Dijkstra", res)
	}
}

func TestOrchestratorSuppressesRepeatOffers(t *testing.T) {
	clock := &testClock{t: classifyNow}
	o := NewOrchestrator(clock.now)
	o.budget.Cooldown = 0
	o.budget.Max = 10

	prompt := "How does Kubernetes Scheduling work?"
	if res := o.Process(prompt, false, nil); !res.Triggered {
		t.Fatalf("first offer not made")
	}
	clock.advance(4 * time.Minute)
	if res := o.Process(prompt, false, nil); res.Triggered {
		t.Errorf("repeat within window: result = %+v", res)
	}
	clock.advance(2 * time.Minute)
	if res := o.Process(prompt, false, nil); !res.Triggered {
		t.Errorf("offer after window not made")
	}
}

func TestBudget(t *testing.T) {
	start := classifyNow
	b := NewBudget(start)

	now := start
	for i := range DefaultMaxInterruptions {
		if !b.CanInterrupt(now) {
			t.Fatalf("interruption %d refused", i)
		}
		b.Record(now)
		now = now.Add(DefaultCooldown)
	}
	if b.CanInterrupt(now) {
		t.Error("budget exhausted but CanInterrupt = true")
	}

	st := b.Status(now)
	if st.Remaining != 0 || st.Used != 3 || st.LastInterruption == nil {
		t.Errorf("status = %+v", st)
	}

	// the session expires after two hours
	later := start.Add(DefaultSessionTTL + time.Minute)
	if !b.CanInterrupt(later) {
		t.Error("expired session not reset")
	}
	if st := b.Status(later); st.Used != 0 || st.LastInterruption != nil {
		t.Errorf("status after reset = %+v", st)
	}
}

func TestStartSuggestsReview(t *testing.T) {
	o := NewOrchestrator(func() time.Time { return classifyNow })
	weak := Candidate{Palace: "Anatomy", Memory: palace.Memory{ID: "a", Confidence: 2, Created: classifyNow.AddDate(0, 0, -3)}}
	unrated := Candidate{Palace: "Anatomy", Memory: palace.Memory{ID: "b", Created: classifyNow.AddDate(0, 0, -3)}}

	s := o.Start([]Candidate{weak, unrated})
	if s == nil {
		t.Fatal("no suggestion")
	}
	if s.Type != ActionReview || s.Message != "2 memories ready for review (1 weak spots)" {
		t.Errorf("suggestion = %+v", s)
	}
	if !strings.Contains(s.Text(), `palace heatmap "Anatomy"`) {
		t.Errorf("text = %q", s.Text())
	}
	if st := o.Status(); st.Used != 1 {
		t.Errorf("used = %d, want 1", st.Used)
	}

	if s := o.Start(nil); s != nil {
		t.Errorf("nothing due: suggestion = %+v", s)
	}
}

func TestCandidates(t *testing.T) {
	p := &palace.Palace{Name: "Hall", Loci: []palace.Locus{
		{ID: "door", Memories: []palace.Memory{{ID: "a"}, {ID: "b"}}},
		{ID: "stair", Memories: []palace.Memory{{ID: "c"}}},
	}}
	got := Candidates([]*palace.Palace{p})
	if len(got) != 3 || got[2].Memory.ID != "c" || got[2].Palace != "Hall" {
		t.Errorf("candidates = %+v", got)
	}
}
