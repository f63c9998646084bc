package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/palace/internal/compare"
)

func smallSimulation() compare.Config {
	cfg := compare.DefaultConfig()
	cfg.DurationDays = 30
	cfg.SampleSize = 10
	cfg.Iterations = 4
	cfg.Checkpoints = []int{15, 30}
	cfg.Seed = 11
	return cfg
}

func TestCreateSimulation(t *testing.T) {
	srv := testServer(t, WithSimulationDefaults(smallSimulation()))

	w := do(t, srv, "POST", "/api/simulations", strings.NewReader(`{"iterations":3}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var res compare.Result
	decode(t, w, &res)
	if res.ID == "" {
		t.Fatal("result has no id")
	}
	if res.Config.Iterations != 3 || res.Config.Seed != 11 || res.Config.DurationDays != 30 {
		t.Errorf("config = %+v", res.Config)
	}
	if res.Trials.Completed != 3 {
		t.Errorf("completed = %d, want 3", res.Trials.Completed)
	}

	w = do(t, srv, "GET", "/api/simulations/"+res.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d; body: %s", w.Code, w.Body.String())
	}
	var run struct {
		RunID  string         `json:"run_id"`
		Seed   uint64         `json:"seed"`
		Result compare.Result `json:"result"`
	}
	decode(t, w, &run)
	if run.RunID != res.ID || run.Seed != 11 || run.Result.Decision.Verdict != res.Decision.Verdict {
		t.Errorf("stored run = %+v", run)
	}

	w = do(t, srv, "GET", "/api/simulations", nil)
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}
}

func TestCreateSimulationDefaultsWithoutBody(t *testing.T) {
	srv := testServer(t, WithSimulationDefaults(smallSimulation()))

	w := do(t, srv, "POST", "/api/simulations", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var res compare.Result
	decode(t, w, &res)
	if res.Trials.Requested != 4 {
		t.Errorf("requested = %d, want 4", res.Trials.Requested)
	}
	if len(res.Checkpoints) != 2 {
		t.Errorf("checkpoints = %d, want 2", len(res.Checkpoints))
	}
}

func TestCreateSimulationRejectsBadConfig(t *testing.T) {
	srv := testServer(t, WithSimulationDefaults(smallSimulation()))

	for _, body := range []string{
		`{"sample_size":0}`,
		`{"checkpoints":[45]}`,
		`{"algorithms":["fibonacci","fibonacci"]}`,
		`{"iterations":20000}`,
		`{"iterations":`,
	} {
		w := do(t, srv, "POST", "/api/simulations", strings.NewReader(body))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d; body: %s", body, w.Code, http.StatusBadRequest, w.Body.String())
		}
	}
}

func TestCreateSimulationDeadline(t *testing.T) {
	srv := testServer(t, WithSimulationDefaults(smallSimulation()))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	req := httptest.NewRequest("POST", "/api/simulations", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusGatewayTimeout, w.Body.String())
	}
}

func TestGetSimulationMissing(t *testing.T) {
	srv := testServer(t)
	if w := do(t, srv, "GET", "/api/simulations/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
