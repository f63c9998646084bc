package server

import (
	"net/http"
	"strings"
	"testing"
)

func TestRecallUpdatesProgress(t *testing.T) {
	srv := testServer(t)
	seedPalaces(t, srv)

	w := do(t, srv, "POST", "/api/palaces/Systems/memories/s2/recall", strings.NewReader(`{"confidence":5}`))
	var recall struct {
		Progress struct {
			XPGained        int `json:"xp_gained"`
			TotalXP         int `json:"total_xp"`
			NewAchievements []struct {
				ID string `json:"id"`
			} `json:"new_achievements"`
		} `json:"progress"`
	}
	decode(t, w, &recall)
	// a perfect recall plus the first-review achievement
	if recall.Progress.XPGained != 20 || recall.Progress.TotalXP != 70 {
		t.Errorf("progress = %+v", recall.Progress)
	}
	if len(recall.Progress.NewAchievements) != 1 || recall.Progress.NewAchievements[0].ID != "first_steps" {
		t.Errorf("achievements = %+v", recall.Progress.NewAchievements)
	}
	do(t, srv, "POST", "/api/palaces/Systems/memories/s1/recall", strings.NewReader(`{"confidence":3}`))

	w = do(t, srv, "GET", "/api/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Gamified struct {
			Stats struct {
				XP             int `json:"xp"`
				TotalReviews   int `json:"total_reviews"`
				PerfectRecalls int `json:"perfect_recalls"`
			} `json:"stats"`
			Progress struct {
				NextLevel int `json:"next_level"`
			} `json:"progress"`
		} `json:"gamified"`
		Utility struct {
			Weekly struct {
				Reviews    int `json:"reviews"`
				Efficiency struct {
					RetentionPercent float64 `json:"retention_percent"`
				} `json:"efficiency"`
			} `json:"weekly"`
			Load struct {
				Healthy bool `json:"healthy"`
			} `json:"load"`
		} `json:"utility"`
	}
	decode(t, w, &resp)

	g := resp.Gamified.Stats
	if g.XP != 82 || g.TotalReviews != 2 || g.PerfectRecalls != 1 {
		t.Errorf("gamified = %+v", g)
	}
	if resp.Gamified.Progress.NextLevel != 2 {
		t.Errorf("next level = %d", resp.Gamified.Progress.NextLevel)
	}
	// 1.0 then 0.6 smoothed at 0.1
	if resp.Utility.Weekly.Reviews != 2 || resp.Utility.Weekly.Efficiency.RetentionPercent != 96 {
		t.Errorf("utility = %+v", resp.Utility.Weekly)
	}
	if !resp.Utility.Load.Healthy {
		t.Error("load unhealthy with two palaces")
	}
}

func TestProgressEmpty(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv, "GET", "/api/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"level":1`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
