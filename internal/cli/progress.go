package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lazypower/palace/internal/gamify"
	"github.com/lazypower/palace/internal/hooks"
	"github.com/lazypower/palace/internal/store"
)

// --- progress command ---

var (
	progressMode   string
	progressGoal   string
	progressTarget float64
	progressJSON   bool
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show review progress as XP and achievements or as efficiency numbers",
	Long: "Show the progress recorded by recall. Gamified mode reports level, XP, streak and " +
		"achievements; utility mode reports speed, consistency, retention and review load.",
	Args: cobra.NoArgs,
	RunE: runProgress,
}

func init() {
	f := progressCmd.Flags()
	f.StringVar(&progressMode, "mode", string(gamify.GroupGamified), "gamified or utility")
	f.StringVar(&progressGoal, "goal", "", "Set a utility goal: daily_reviews, weekly_memories or retention_rate")
	f.Float64Var(&progressTarget, "target", 0, "Target for --goal")
	f.BoolVar(&progressJSON, "json", false, "Print the profile as JSON")
}

func runProgress(cmd *cobra.Command, args []string) error {
	mode := gamify.Group(progressMode)
	if mode != gamify.GroupGamified && mode != gamify.GroupUtility {
		return fmt.Errorf("unknown mode %q (want gamified or utility)", progressMode)
	}

	db, _, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	p, err := gamify.LoadProfile(db, now)
	if err != nil {
		return err
	}
	if progressGoal != "" {
		g, err := p.Utility.SetGoal(progressGoal, progressTarget, nil, now)
		if err != nil {
			return err
		}
		p.Utility.RefreshGoals(now)
		if err := db.SaveProfile(gamify.ProfileKey, p, now); err != nil {
			return err
		}
		fmt.Printf("Goal %s set: %s %.0f\n", g.ID, g.Type, g.Target)
	}
	track(db, store.EventCommand, map[string]string{"command": "progress", "mode": progressMode})

	if progressJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		return nil
	}

	if mode == gamify.GroupGamified {
		return gamify.RenderStatus(os.Stdout, p.Gamified)
	}
	palaces, err := db.AllPalaces()
	if err != nil {
		return err
	}
	pending := len(hooks.Due(hooks.Candidates(palaces), now))
	return gamify.RenderUtility(os.Stdout, p.Utility, pending, now)
}

// --- abtest command ---

var (
	abDays  int
	abUsers int
	abSeed  uint64
	abJSON  bool
)

var abtestCmd = &cobra.Command{
	Use:   "abtest",
	Short: "Simulate gamified vs utility progress tracking",
	Long: "Simulate a population of casual, regular and power users split between gamified and " +
		"utility progress tracking, then compare engagement, retention and satisfaction.",
	Args: cobra.NoArgs,
	RunE: runABTest,
}

func init() {
	d := gamify.DefaultABConfig()
	f := abtestCmd.Flags()
	f.IntVar(&abDays, "days", d.Days, "Simulated days")
	f.IntVar(&abUsers, "users", d.Users, "Simulated users")
	f.Uint64Var(&abSeed, "seed", 0, "Random seed (0 picks one)")
	f.BoolVar(&abJSON, "json", false, "Print the result as JSON")
}

func runABTest(cmd *cobra.Command, args []string) error {
	ac := gamify.DefaultABConfig()
	ac.Days = abDays
	ac.Users = abUsers
	ac.Seed = abSeed
	if cfg.Simulation.Workers > 0 {
		ac.Workers = cfg.Simulation.Workers
	}

	ab, err := gamify.NewABTest(ac, gamify.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := ab.Run(ctx)
	if err != nil {
		return err
	}

	if abJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		return nil
	}
	if err := gamify.RenderAB(os.Stdout, res); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(abStyle(res.Verdict).Render("Verdict: " + string(res.Verdict)))
	return nil
}

func abStyle(v gamify.ABVerdict) lipgloss.Style {
	switch v {
	case gamify.VerdictGamification, gamify.VerdictUtility:
		return verdictGood
	}
	return verdictNeutral
}
