package hooks

import "time"

// Interruption budget defaults.
const (
	DefaultMaxInterruptions = 3
	DefaultCooldown         = 15 * time.Minute
	DefaultSessionTTL       = 2 * time.Hour
)

// Budget limits how often hooks may interrupt within a session: at most Max
// times, never within Cooldown of the previous interruption. A session older
// than SessionTTL starts over.
type Budget struct {
	Max        int
	Cooldown   time.Duration
	SessionTTL time.Duration

	used    int
	last    time.Time
	started time.Time
}

// BudgetStatus is a snapshot of a Budget.
type BudgetStatus struct {
	Remaining        int        `json:"remaining"`
	Used             int        `json:"used"`
	Max              int        `json:"max"`
	LastInterruption *time.Time `json:"last_interruption,omitempty"`
	CanInterrupt     bool       `json:"can_interrupt"`
}

// NewBudget returns a budget with the default limits, starting at now.
func NewBudget(now time.Time) *Budget {
	return &Budget{
		Max:        DefaultMaxInterruptions,
		Cooldown:   DefaultCooldown,
		SessionTTL: DefaultSessionTTL,
		started:    now,
	}
}

// Reset starts a new session at now.
func (b *Budget) Reset(now time.Time) {
	b.used = 0
	b.last = time.Time{}
	b.started = now
}

// CanInterrupt reports whether an interruption is allowed at now. An expired
// session is reset first.
func (b *Budget) CanInterrupt(now time.Time) bool {
	if now.Sub(b.started) > b.SessionTTL {
		b.Reset(now)
	}
	if b.used >= b.Max {
		return false
	}
	if !b.last.IsZero() && now.Sub(b.last) < b.Cooldown {
		return false
	}
	return true
}

// Record spends one interruption at now.
func (b *Budget) Record(now time.Time) {
	b.used++
	b.last = now
}

// Status reports the budget at now.
func (b *Budget) Status(now time.Time) BudgetStatus {
	can := b.CanInterrupt(now)
	s := BudgetStatus{
		Remaining:    b.Max - b.used,
		Used:         b.used,
		Max:          b.Max,
		CanInterrupt: can,
	}
	if !b.last.IsZero() {
		t := b.last
		s.LastInterruption = &t
	}
	return s
}
