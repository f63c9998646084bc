package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/palace/internal/analytics"
	"github.com/lazypower/palace/internal/dashboard"
	"github.com/lazypower/palace/internal/export"
	"github.com/lazypower/palace/internal/gamify"
	"github.com/lazypower/palace/internal/linker"
	"github.com/lazypower/palace/internal/palace"
	"github.com/lazypower/palace/internal/schedule"
	"github.com/lazypower/palace/internal/store"
)

func (s *Server) handleListPalaces(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.ListPalaces()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []store.PalaceSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(list),
		"palaces": list,
	})
}

func (s *Server) handleCreatePalace(w http.ResponseWriter, r *http.Request) {
	p, err := export.ReadJSON(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Created.IsZero() {
		p.Created = s.now().UTC()
	}
	if err := s.db.SavePalace(p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"status":   "saved",
		"name":     p.Name,
		"loci":     len(p.Loci),
		"memories": p.Count(),
	})
}

// loadPalace fetches the {name} palace, writing a 404 when it is missing.
func (s *Server) loadPalace(w http.ResponseWriter, r *http.Request) (*palace.Palace, bool) {
	name := chi.URLParam(r, "name")
	p, err := s.db.GetPalace(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "palace "+strconv.Quote(name)+" not found")
		return nil, false
	}
	return p, true
}

func (s *Server) handleGetPalace(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPalace(w, r)
	if !ok {
		return
	}
	s.track(store.EventPalaceView, map[string]string{"palace": p.Name})
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePalace(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	err := s.db.DeletePalace(name)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPalace(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", 10)
	now := s.now()
	writeJSON(w, http.StatusOK, map[string]any{
		"heatmap":   dashboard.BuildHeatMap(p, now),
		"map":       dashboard.BuildPalaceMap(p, now),
		"progress":  dashboard.BuildProgress(p, now),
		"priority":  dashboard.ReviewList(p, now, limit),
		"retention": analytics.RetentionAnalysis(p, now),
	})
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadPalace(w, r)
	if !ok {
		return
	}
	memoryID := chi.URLParam(r, "memoryID")
	if _, _, found := p.Find(memoryID); !found {
		writeError(w, http.StatusNotFound, "memory "+strconv.Quote(memoryID)+" not found")
		return
	}

	all, err := s.db.AllPalaces()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	links := linker.New(all).Related(p.Name, memoryID, queryInt(r, "limit", 5))
	if links == nil {
		links = []linker.Link{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"palace":  p.Name,
		"memory":  memoryID,
		"count":   len(links),
		"related": links,
	})
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	memoryID := chi.URLParam(r, "memoryID")

	var req struct {
		Confidence int `json:"confidence"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if req.Confidence < 0 || req.Confidence > palace.MaxConfidence {
		writeError(w, http.StatusBadRequest, "confidence must be between 0 and 5")
		return
	}
	algo := schedule.Fibonacci
	if v := r.URL.Query().Get("algorithm"); v != "" {
		var err error
		if algo, err = schedule.ParseAlgorithm(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	now := s.now().UTC()
	m, err := s.db.RecordRecall(name, memoryID, req.Confidence, now)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.track(store.EventMemoryReview, map[string]string{
		"palace":     name,
		"memory":     memoryID,
		"confidence": strconv.Itoa(req.Confidence),
	})

	var progress *gamify.Award
	if award, err := gamify.RecordRecall(s.db, m.Confidence, now); err != nil {
		s.log.Warn("progress not updated", "palace", name, "memory", memoryID, "err", err)
	} else {
		progress = &award
	}

	table, _ := schedule.Intervals(algo)
	writeJSON(w, http.StatusOK, struct {
		*palace.Memory
		NextReview schedule.NextReview `json:"next_review"`
		Progress   *gamify.Award       `json:"progress,omitempty"`
	}{m, schedule.Next(algo, table, m.ReviewCount), progress})
}

func (s *Server) handleAnalyticsReport(w http.ResponseWriter, r *http.Request) {
	timeRange := r.URL.Query().Get("range")
	if timeRange == "" {
		timeRange = "7d"
	}
	rep, err := s.tracker.Report(timeRange)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
