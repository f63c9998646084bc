package server

import (
	"net/http"

	"github.com/lazypower/palace/internal/gamify"
	"github.com/lazypower/palace/internal/hooks"
)

// handleProgress reports the stored profile in both modes. The due count
// feeds the utility load check.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	now := s.now().UTC()
	p, err := gamify.LoadProfile(s.db, now)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	palaces, err := s.db.AllPalaces()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pending := len(hooks.Due(hooks.Candidates(palaces), now))

	writeJSON(w, http.StatusOK, map[string]any{
		"gamified": map[string]any{
			"stats":    p.Gamified,
			"progress": p.Gamified.Progress(),
		},
		"utility": map[string]any{
			"weekly": p.Utility.WeeklyReport(now),
			"load":   p.Utility.CognitiveLoad(pending, now),
		},
	})
}
