package retention

import "time"

// Memory is one fact under spaced repetition. It only changes through
// Model.Review.
type Memory struct {
	ID            string        `json:"id"`
	CreatedAt     time.Time     `json:"created_at"`
	BaseStrength  float64       `json:"base_strength"`
	ReviewCount   int           `json:"review_count"`
	LastReviewDay int           `json:"last_review_day"`
	NextReviewDay int           `json:"next_review_day"` // 0 until first scheduled
	History       []ReviewEntry `json:"history,omitempty"`
}

// ReviewEntry records one completed review.
type ReviewEntry struct {
	Day        int     `json:"day"`
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
}

// NewMemory returns an unreviewed memory.
func NewMemory(id string, baseStrength float64, created time.Time) Memory {
	return Memory{
		ID:           id,
		CreatedAt:    created,
		BaseStrength: baseStrength,
	}
}

// DueDay is the simulated day the memory is next due. A memory that has never
// been scheduled is due on day 1.
func (m Memory) DueDay() int {
	if m.NextReviewDay == 0 {
		return 1
	}
	return m.NextReviewDay
}

// Clone returns a copy that shares no history with m.
func (m Memory) Clone() Memory {
	c := m
	if m.History != nil {
		c.History = append([]ReviewEntry(nil), m.History...)
	}
	return c
}
