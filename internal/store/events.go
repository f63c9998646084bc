package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types accepted by the events table.
const (
	EventCommand      = "command"
	EventPalaceView   = "palace_view"
	EventMemoryReview = "memory_review"
)

// maxEventDataSize caps the JSON payload stored per event.
const maxEventDataSize = 4 * 1024

// Event is one recorded usage event.
type Event struct {
	ID        int64             `json:"id"`
	SessionID string            `json:"session_id"`
	Type      string            `json:"type"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// AddEvent stores e. A zero CreatedAt is stamped with the current time.
func (db *DB) AddEvent(e Event) error {
	switch e.Type {
	case EventCommand, EventPalaceView, EventMemoryReview:
	default:
		return fmt.Errorf("add event: unknown type %q", e.Type)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if len(data) > maxEventDataSize {
		return fmt.Errorf("add event: data is %d bytes, limit %d", len(data), maxEventDataSize)
	}

	_, err = db.Exec(`
		INSERT INTO events (session_id, type, data, created_at)
		VALUES (?, ?, ?, ?)
	`, e.SessionID, e.Type, string(data), e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("add event: %w", err)
	}
	return nil
}

// ListEvents returns events created after since, oldest first. A zero since
// returns every event.
func (db *DB) ListEvents(since time.Time) ([]Event, error) {
	var cutoff int64
	if !since.IsZero() {
		cutoff = since.UnixMilli()
	}
	rows, err := db.Query(`
		SELECT id, session_id, type, data, created_at
		FROM events WHERE created_at > ? ORDER BY created_at, id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			data    string
			created int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Type, &data, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
			return nil, fmt.Errorf("parse event %d data: %w", e.ID, err)
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
