package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/palace/internal/config"
	"github.com/lazypower/palace/internal/logger"
)

var (
	configPath string
	debugFlag  bool
	jsonLog    bool

	// cfg and log are set by the root PersistentPreRunE.
	cfg config.Config
	log *slog.Logger

	// logFile is the log.file tee, closed by the root PersistentPostRunE.
	logFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "palace",
	Short: "Memory palace toolkit and spaced-repetition simulator",
	Long: "Palace stores memory palaces, tracks recall, links memories across palaces, " +
		"and compares review schedules by simulation.",
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func Execute() error {
	// PersistentPostRunE does not run when a command fails.
	defer closeLog()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.palace/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "log-json", false, "Log as JSON instead of styled text")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(heatmapCmd)
	rootCmd.AddCommand(linksCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(navigateCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(abtestCmd)
}

// setup loads the config file (--config, then PALACE_CONFIG, then the
// default path), applies environment overrides and builds the
// logger shared by every command.
func setup(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = os.Getenv("PALACE_CONFIG")
	}
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return err
		}
	}
	loaded, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.ApplyEnv(&loaded, os.Getenv); err != nil {
		return err
	}
	cfg = loaded

	debug := cfg.Log.Debug || debugFlag
	asJSON := cfg.Log.JSON || jsonLog
	opts := []logger.Option{
		logger.WithDebug(debug),
		logger.WithSource(debug),
		logger.WithJSON(asJSON),
		logger.WithPretty(!asJSON),
		logger.WithWriter(os.Stderr),
	}
	closeLog()
	if cfg.Log.File != "" {
		f, err := logger.OpenFile(cfg.Log.File)
		if err != nil {
			return err
		}
		logFile = f
		opts = append(opts, logger.WithFile(f))
	}
	log = logger.New(opts...)
	log.Debug("config loaded", "path", path, "db", cfg.Database.Path)
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	return closeLog()
}

// closeLog closes the log file tee if one is open. Safe to call repeatedly.
func closeLog() error {
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// warnf reports a non-fatal problem on stderr.
func warnf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}
