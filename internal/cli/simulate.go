package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/palace/internal/compare"
	"github.com/lazypower/palace/internal/schedule"
	"github.com/lazypower/palace/internal/store"
)

var (
	simDays        int
	simSample      int
	simIterations  int
	simCheckpoints []int
	simChallenger  string
	simIncumbent   string
	simSeed        uint64
	simWorkers     int
	simTimeout     string
	simOut         string
	simNoSave      bool
	simJSON        bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Compare two review schedules by simulation",
	Long: "Run paired trials of a synthetic memory population under two interval " +
		"algorithms, test the final retention difference, and write a results artifact.",
	Args: cobra.NoArgs,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.IntVar(&simDays, "days", 0, "Simulated days (default from config)")
	f.IntVar(&simSample, "sample", 0, "Memories per trial")
	f.IntVar(&simIterations, "iterations", 0, "Number of paired trials")
	f.IntSliceVar(&simCheckpoints, "checkpoints", nil, "Checkpoint days, e.g. 30,60,90")
	f.StringVar(&simChallenger, "challenger", "", "Challenger algorithm")
	f.StringVar(&simIncumbent, "incumbent", "", "Incumbent algorithm")
	f.Uint64Var(&simSeed, "seed", 0, "Random seed (0 picks one)")
	f.IntVar(&simWorkers, "workers", 0, "Trials run in parallel")
	f.StringVar(&simTimeout, "timeout", "", "Stop starting trials after this long, e.g. 5m")
	f.StringVarP(&simOut, "out", "o", "", "Directory for the results artifact")
	f.BoolVar(&simNoSave, "no-save", false, "Do not record the run in the database")
	f.BoolVar(&simJSON, "json", false, "Print the result as JSON")
}

var (
	verdictGood    = lipgloss.NewStyle().Foreground(lipgloss.Color("70")).Bold(true)
	verdictNeutral = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	verdictBad     = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func verdictStyle(v compare.Verdict) lipgloss.Style {
	switch v {
	case compare.VerdictChallengerWins, compare.VerdictPartialWin:
		return verdictGood
	case compare.VerdictIncumbentWins:
		return verdictBad
	}
	return verdictNeutral
}

// simulateFlags overlays changed flags on the configured defaults.
func simulateFlags(cmd *cobra.Command, c *compare.Config) error {
	f := cmd.Flags()
	if f.Changed("days") {
		c.DurationDays = simDays
	}
	if f.Changed("sample") {
		c.SampleSize = simSample
	}
	if f.Changed("iterations") {
		c.Iterations = simIterations
	}
	if f.Changed("checkpoints") {
		c.Checkpoints = simCheckpoints
	}
	if f.Changed("seed") {
		c.Seed = simSeed
	}
	if f.Changed("workers") {
		c.Workers = simWorkers
	}
	for i, name := range []string{simChallenger, simIncumbent} {
		if name == "" {
			continue
		}
		a, err := schedule.ParseAlgorithm(name)
		if err != nil {
			return err
		}
		c.Algorithms[i] = a
	}
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	simCfg, err := simulationConfig()
	if err != nil {
		return err
	}
	if err := simulateFlags(cmd, &simCfg); err != nil {
		return err
	}

	comp, err := compare.New(simCfg, compare.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeout := simTimeout
	if timeout == "" {
		timeout = cfg.Simulation.Timeout
	}
	if timeout != "" {
		sc := cfg.Simulation
		sc.Timeout = timeout
		d, err := sc.TimeoutDuration()
		if err != nil {
			return err
		}
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
	}

	res, err := comp.Run(ctx)
	if err != nil {
		return err
	}

	outDir := simOut
	if outDir == "" {
		outDir = cfg.Output.Dir
	}
	path, err := compare.WriteArtifact(outDir, res)
	if err != nil {
		return err
	}

	if simJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	} else {
		if err := compare.Render(os.Stdout, res); err != nil {
			return err
		}
		printSimulationFooter(res, path)
	}

	if !simNoSave {
		saveRun(res)
	}
	return nil
}

func printSimulationFooter(res *compare.Result, path string) {
	c := res.Config
	memories := int64(res.Trials.Completed) * int64(c.SampleSize) * 2
	fmt.Println()
	fmt.Println(verdictStyle(res.Decision.Verdict).Render("Verdict: " + string(res.Decision.Verdict)))
	fmt.Println(mutedStyle.Render(fmt.Sprintf("%s trials, %s simulated memories, seed %d, %s",
		humanize.Comma(int64(res.Trials.Completed)), humanize.Comma(memories), c.Seed, res.Elapsed.Round(time.Millisecond))))
	if info, err := os.Stat(path); err == nil {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("Results: %s (%s)", path, humanize.Bytes(uint64(info.Size())))))
	}
}

// saveRun records res in the database. A database problem only warns, the
// artifact on disk is the primary output.
func saveRun(res *compare.Result) {
	db, _, err := openDB()
	if err != nil {
		warnf("run not recorded: %v", err)
		return
	}
	defer db.Close()

	if _, err := db.SaveResult(res); err != nil {
		warnf("run not recorded: %v", err)
		return
	}
	track(db, store.EventCommand, map[string]string{"command": "simulate", "run": res.ID})
	log.Debug("run recorded", "id", res.ID)
}

var historyLimit int

var simulateHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded simulation runs",
	Args:  cobra.NoArgs,
	RunE:  runSimulateHistory,
}

var simulateShowCmd = &cobra.Command{
	Use:   "show <run-id|results.json>",
	Short: "Print the report of a recorded run or results artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runSimulateShow,
}

func init() {
	simulateHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to list")
	simulateCmd.AddCommand(simulateHistoryCmd)
	simulateCmd.AddCommand(simulateShowCmd)
}

func runSimulateHistory(cmd *cobra.Command, args []string) error {
	db, _, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No simulation runs recorded. Run 'palace simulate' first.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tVERDICT\tTRIALS\tSEED\tWHEN")
	for _, r := range runs {
		trials := fmt.Sprintf("%d/%d", r.Completed, r.Iterations)
		if r.Truncated {
			trials += " (truncated)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.RunID, r.Verdict, trials, r.Seed, humanize.Time(r.CreatedAt))
	}
	return tw.Flush()
}

func runSimulateShow(cmd *cobra.Command, args []string) error {
	res, err := loadResult(args[0])
	if err != nil {
		return err
	}
	if err := compare.Render(os.Stdout, res); err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(verdictStyle(res.Decision.Verdict).Render("Verdict: " + string(res.Decision.Verdict)))
	return nil
}

// loadResult reads a results artifact when ref names a file, otherwise it
// looks the run up in the database.
func loadResult(ref string) (*compare.Result, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return compare.ReadArtifact(ref)
	}

	db, _, err := openDB()
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	run, err := db.GetRun(ref)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", ref)
	}
	var res compare.Result
	if err := json.Unmarshal(run.Result, &res); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", run.RunID, err)
	}
	return &res, nil
}
