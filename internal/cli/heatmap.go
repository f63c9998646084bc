package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/palace/internal/dashboard"
	"github.com/lazypower/palace/internal/store"
)

var (
	heatmapMap      bool
	heatmapProgress bool
	heatmapReview   int
)

var heatmapCmd = &cobra.Command{
	Use:   "heatmap <palace>",
	Short: "Show memory strength for a palace",
	Args:  cobra.ExactArgs(1),
	RunE:  runHeatmap,
}

func init() {
	heatmapCmd.Flags().BoolVar(&heatmapMap, "map", false, "Also show the palace map")
	heatmapCmd.Flags().BoolVar(&heatmapProgress, "progress", false, "Also show the progress dashboard")
	heatmapCmd.Flags().IntVar(&heatmapReview, "review", 0, "Also list the N weakest memories")
}

func runHeatmap(cmd *cobra.Command, args []string) error {
	db, _, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	p, err := loadPalace(db, args[0])
	if err != nil {
		return err
	}

	now := time.Now()
	r := dashboard.NewRenderer(os.Stdout)
	r.HeatMap(dashboard.BuildHeatMap(p, now))
	if heatmapMap {
		r.PalaceMap(p.Name, dashboard.BuildPalaceMap(p, now))
	}
	if heatmapProgress {
		r.Progress(p.Name, dashboard.BuildProgress(p, now))
	}
	if heatmapReview > 0 {
		r.ReviewList(dashboard.ReviewList(p, now, heatmapReview))
	}
	track(db, store.EventPalaceView, map[string]string{"palace": p.Name})
	return nil
}
