package store

import (
	"testing"
	"time"
)

func TestAddAndListEvents(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []Event{
		{SessionID: "s1", Type: EventCommand, Data: map[string]string{"command": "list"}, CreatedAt: base},
		{SessionID: "s1", Type: EventPalaceView, Data: map[string]string{"palace": "Citadel"}, CreatedAt: base.Add(time.Minute)},
		{SessionID: "s2", Type: EventMemoryReview, Data: map[string]string{"memory_id": "sd-1"}, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range events {
		if err := db.AddEvent(e); err != nil {
			t.Fatalf("AddEvent: %v", err)
		}
	}

	all, err := db.ListEvents(time.Time{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListEvents = %d, want 3", len(all))
	}
	if all[0].Data["command"] != "list" {
		t.Errorf("first event data = %v", all[0].Data)
	}
	if !all[2].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("CreatedAt = %v", all[2].CreatedAt)
	}

	recent, err := db.ListEvents(base.Add(30 * time.Second))
	if err != nil {
		t.Fatalf("ListEvents since: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("ListEvents since = %d, want 2", len(recent))
	}
}

func TestAddEventRejectsUnknownType(t *testing.T) {
	db := openTestDB(t)
	if err := db.AddEvent(Event{SessionID: "s", Type: "click"}); err == nil {
		t.Error("expected unknown type to be rejected")
	}
}

func TestAddEventStampsTime(t *testing.T) {
	db := openTestDB(t)
	before := time.Now().Add(-time.Second)
	if err := db.AddEvent(Event{SessionID: "s", Type: EventCommand}); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	all, err := db.ListEvents(time.Time{})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(all) != 1 || all[0].CreatedAt.Before(before) {
		t.Errorf("event not stamped: %+v", all)
	}
}
