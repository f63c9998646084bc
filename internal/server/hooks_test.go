package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/lazypower/palace/internal/hooks"
	"github.com/lazypower/palace/internal/palace"
	"github.com/lazypower/palace/internal/store"
)

func TestHookSubmitOffersRecall(t *testing.T) {
	srv := testServer(t)
	seedPalaces(t, srv)

	body := `{"session_id":"s-1","prompt":"Our redis cache eviction keeps dropping hot keys"}`
	w := do(t, srv, "POST", "/api/hooks/submit", strings.NewReader(body))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp hooks.SubmitResponse
	decode(t, w, &resp)

	res := resp.Result
	if !res.Triggered || res.Action != hooks.ActionRecall {
		t.Fatalf("result = %+v, want offer_recall", res)
	}
	// the unreviewed copy outranks the one recalled two days ago
	if res.Palace != "Backend" || res.MemoryID != "b1" || res.Confidence != 1 {
		t.Errorf("result = %+v, want Backend/b1 at 1", res)
	}
	if resp.Budget.Used != 1 || resp.Budget.Remaining != 2 {
		t.Errorf("budget = %+v", resp.Budget)
	}

	events, err := srv.db.ListEvents(testNow.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	var found bool
	for _, e := range events {
		if e.Type == store.EventCommand && e.Data["command"] == "hook_submit" && e.Data["action"] == "offer_recall" {
			found = true
		}
	}
	if !found {
		t.Errorf("no hook_submit event in %+v", events)
	}

	// same session, still cooling down
	w = do(t, srv, "POST", "/api/hooks/submit", strings.NewReader(body))
	decode(t, w, &resp)
	if resp.Result.Triggered {
		t.Errorf("second result = %+v, want none during cooldown", resp.Result)
	}

	// a different session has its own budget
	w = do(t, srv, "POST", "/api/hooks/submit", strings.NewReader(strings.Replace(body, "s-1", "s-2", 1)))
	decode(t, w, &resp)
	if !resp.Result.Triggered {
		t.Error("new session was throttled")
	}
}

func TestHookSubmitRejectsBadRequests(t *testing.T) {
	srv := testServer(t)
	for _, body := range []string{"not json", `{"session_id":"s"}`} {
		w := do(t, srv, "POST", "/api/hooks/submit", strings.NewReader(body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, w.Code)
		}
	}
}

func TestHookStartSuggestsReview(t *testing.T) {
	srv := testServer(t)
	p := &palace.Palace{Name: "Anatomy", Loci: []palace.Locus{{
		ID: "door", Name: "Door",
		Memories: []palace.Memory{
			{ID: "a1", Subject: "Femur", Confidence: 2, Created: testNow.AddDate(0, 0, -3)},
			{ID: "a2", Subject: "Tibia", Created: testNow},
		},
	}}}
	if err := srv.db.SavePalace(p); err != nil {
		t.Fatalf("SavePalace: %v", err)
	}

	w := do(t, srv, "GET", "/api/hooks/start?session_id=s-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp hooks.StartResponse
	decode(t, w, &resp)
	if resp.Suggestion == nil || resp.Suggestion.Message != "1 memories ready for review (1 weak spots)" {
		t.Fatalf("suggestion = %+v", resp.Suggestion)
	}
	if !strings.Contains(resp.Context, `palace heatmap "Anatomy"`) {
		t.Errorf("context = %q", resp.Context)
	}
}

func TestHookStartNothingDue(t *testing.T) {
	srv := testServer(t)
	seedPalaces(t, srv)

	w := do(t, srv, "GET", "/api/hooks/start", nil)
	var resp hooks.StartResponse
	decode(t, w, &resp)
	if resp.Context != "" || resp.Suggestion != nil {
		t.Errorf("resp = %+v, want empty", resp)
	}
}

func TestHookEndForgetsSession(t *testing.T) {
	srv := testServer(t)
	seedPalaces(t, srv)
	body := `{"session_id":"s-1","prompt":"redis cache eviction again"}`

	do(t, srv, "POST", "/api/hooks/submit", strings.NewReader(body))
	w := do(t, srv, "POST", "/api/hooks/end", strings.NewReader(`{"session_id":"s-1"}`))
	if w.Code != http.StatusNoContent {
		t.Fatalf("end status = %d", w.Code)
	}

	// a fresh budget, so the offer is made again
	w = do(t, srv, "POST", "/api/hooks/submit", strings.NewReader(body))
	var resp hooks.SubmitResponse
	decode(t, w, &resp)
	if !resp.Result.Triggered || resp.Budget.Used != 1 {
		t.Errorf("after end: %+v", resp)
	}
}
