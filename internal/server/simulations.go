package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/palace/internal/compare"
	"github.com/lazypower/palace/internal/store"
)

// maxSimulationIterations caps trial counts accepted over HTTP.
const maxSimulationIterations = 10_000

func (s *Server) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	cfg := s.simDefaults
	cfg.Checkpoints = slices.Clone(cfg.Checkpoints)
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if cfg.Iterations > maxSimulationIterations {
		writeError(w, http.StatusBadRequest, "iterations must be at most 10000")
		return
	}

	c, err := compare.New(cfg, compare.WithLogger(s.log), compare.WithClock(s.now))
	if err != nil {
		var ce *compare.ConfigurationError
		if errors.As(err, &ce) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ctx := r.Context()
	if s.simTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.simTimeout)
		defer cancel()
	}

	res, err := c.Run(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, err.Error())
		return
	}

	if _, err := s.db.SaveResult(res); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.track(store.EventCommand, map[string]string{"command": "simulate", "run": res.ID})
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.ListRuns(queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(runs),
		"runs":  runs,
	})
}

func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := s.db.GetRun(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "simulation "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}
