package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/palace/internal/navigate"
	"github.com/lazypower/palace/internal/store"
)

var (
	navIterations int
	navQueries    int
	navErrorRate  float64
	navSeed       uint64
	navLayouts    []string
	navPalaces    []string
	navCapacity   int
	navJSON       bool
)

var navigateCmd = &cobra.Command{
	Use:   "navigate",
	Short: "Rank palace layouts by simulated navigation",
	Long: "Walk simulated visitors with a bounded working memory through each palace layout " +
		"to random target loci, then rank the layouts by success, steps, wrong turns and memory load.",
	Args: cobra.NoArgs,
	RunE: runNavigate,
}

func init() {
	d := navigate.DefaultConfig()
	f := navigateCmd.Flags()
	f.IntVar(&navIterations, "iterations", d.Iterations, "Iterations per palace")
	f.IntVar(&navQueries, "queries", d.Queries, "Searches per iteration")
	f.Float64Var(&navErrorRate, "error-rate", d.ErrorRate, "Chance of a wrong turn at each junction")
	f.Uint64Var(&navSeed, "seed", 0, "Random seed (0 picks one)")
	f.StringSliceVar(&navLayouts, "layouts", nil, "Built-in layouts to rank (default all)")
	f.StringSliceVar(&navPalaces, "palace", nil, "Stored palaces to rank alongside the layouts")
	f.IntVar(&navCapacity, "capacity", 7, "Working-memory span used for stored palaces")
	f.BoolVar(&navJSON, "json", false, "Print the result as JSON")
}

func runNavigate(cmd *cobra.Command, args []string) error {
	nc := navigate.DefaultConfig()
	nc.Iterations = navIterations
	nc.Queries = navQueries
	nc.ErrorRate = navErrorRate
	nc.Seed = navSeed
	if cfg.Simulation.Workers > 0 {
		nc.Workers = cfg.Simulation.Workers
	}
	if len(navLayouts) > 0 {
		nc.Layouts = nil
		for _, s := range navLayouts {
			l, err := navigate.ParseLayout(s)
			if err != nil {
				return err
			}
			nc.Layouts = append(nc.Layouts, l)
		}
	}

	runner, err := navigate.New(nc, navigate.WithLogger(log))
	if err != nil {
		return err
	}

	var palaces []*navigate.Palace
	if len(navPalaces) > 0 {
		for _, l := range runner.Config().Layouts {
			p, err := navigate.Build(l)
			if err != nil {
				return err
			}
			palaces = append(palaces, p)
		}
		db, _, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		for _, name := range navPalaces {
			src, err := loadPalace(db, name)
			if err != nil {
				return err
			}
			p, err := navigate.FromPalace(src, navCapacity)
			if err != nil {
				return err
			}
			palaces = append(palaces, p)
		}
		track(db, store.EventCommand, map[string]string{"command": "navigate"})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := runner.Run(ctx, palaces...)
	if err != nil {
		return err
	}

	if navJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		return nil
	}
	if err := navigate.Render(os.Stdout, res); err != nil {
		return err
	}

	trips := 0
	for _, s := range res.Layouts {
		trips += s.Trips
	}
	fmt.Println()
	fmt.Println(navigateStyle(res.Decision.Verdict).Render("Winner: " + res.Decision.Winner))
	fmt.Println(mutedStyle.Render(fmt.Sprintf("%s simulated trips, seed %d", humanize.Comma(int64(trips)), res.Config.Seed)))
	return nil
}

func navigateStyle(v navigate.Verdict) lipgloss.Style {
	switch v {
	case navigate.VerdictDecisive, navigate.VerdictModerate:
		return verdictGood
	}
	return verdictNeutral
}
