package server

import (
	"encoding/json"
	"net/http"

	"github.com/lazypower/palace/internal/hooks"
	"github.com/lazypower/palace/internal/store"
)

// hookSession returns the orchestrator for id, creating it on first use.
// An empty id shares one anonymous session.
func (s *Server) hookSession(id string) *hooks.Orchestrator {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	o, ok := s.hookSessions[id]
	if !ok {
		o = hooks.NewOrchestrator(s.now)
		s.hookSessions[id] = o
	}
	return o
}

func (s *Server) hookCandidates(w http.ResponseWriter) ([]hooks.Candidate, bool) {
	palaces, err := s.db.AllPalaces()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return hooks.Candidates(palaces), true
}

func (s *Server) handleHookStart(w http.ResponseWriter, r *http.Request) {
	candidates, ok := s.hookCandidates(w)
	if !ok {
		return
	}
	session := r.URL.Query().Get("session_id")
	resp := hooks.StartResponse{Suggestion: s.hookSession(session).Start(candidates)}
	if resp.Suggestion != nil {
		resp.Context = resp.Suggestion.Text()
	}
	s.track(store.EventCommand, map[string]string{"command": "hook_start", "session": session})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHookSubmit(w http.ResponseWriter, r *http.Request) {
	var req hooks.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	candidates, ok := s.hookCandidates(w)
	if !ok {
		return
	}

	o := s.hookSession(req.SessionID)
	res := o.Process(req.Prompt, req.Learning, candidates)
	if res.Triggered {
		s.log.Debug("hook triggered", "session", req.SessionID, "action", res.Action, "topic", res.Topic)
		s.track(store.EventCommand, map[string]string{
			"command": "hook_submit",
			"action":  string(res.Action),
			"topic":   res.Topic,
		})
	}
	writeJSON(w, http.StatusOK, hooks.SubmitResponse{Result: res, Budget: o.Status()})
}

func (s *Server) handleHookEnd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	s.hookMu.Lock()
	delete(s.hookSessions, req.SessionID)
	s.hookMu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
