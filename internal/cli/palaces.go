package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lazypower/palace/internal/export"
	"github.com/lazypower/palace/internal/gamify"
	"github.com/lazypower/palace/internal/palace"
	"github.com/lazypower/palace/internal/schedule"
	"github.com/lazypower/palace/internal/store"
)

// --- import command ---

var (
	importFormat string
	importName   string
	importAll    bool
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a palace from JSON, Markdown or an Anki CSV deck",
	Long: "Import a palace file into the database and the palace directory. The format " +
		"is taken from the file extension unless --format is given. With --all, every " +
		"JSON palace in the palace directory is loaded into the database.",
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFormat, "format", "f", "", "json, markdown or anki")
	importCmd.Flags().StringVar(&importName, "name", "", "Palace name for Anki decks")
	importCmd.Flags().BoolVar(&importAll, "all", false, "Load every palace in the palace directory")
}

func formatFromPath(path string) (export.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return export.JSON, nil
	case ".md", ".markdown":
		return export.Markdown, nil
	case ".csv":
		return export.Anki, nil
	}
	return "", fmt.Errorf("cannot tell the format of %s; pass --format", path)
}

func runImport(cmd *cobra.Command, args []string) error {
	if importAll == (len(args) == 1) {
		return fmt.Errorf("give a file to import or --all")
	}

	db, _, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if importAll {
		palaces, err := palace.LoadDir(cfg.Palaces.Dir)
		if err != nil {
			return err
		}
		for _, p := range palaces {
			if err := db.SavePalace(p); err != nil {
				return err
			}
			fmt.Printf("  %s (%d memories)\n", p.Name, p.Count())
		}
		fmt.Printf("Loaded %d palaces from %s\n", len(palaces), cfg.Palaces.Dir)
		track(db, store.EventCommand, map[string]string{"command": "import"})
		return nil
	}

	path := args[0]
	f, err := formatFromPath(path)
	if importFormat != "" {
		f, err = export.ParseFormat(importFormat)
	}
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	p, err := export.Read(file, f, importName, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := db.SavePalace(p); err != nil {
		return err
	}
	saved, err := palace.Save(cfg.Palaces.Dir, p)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %s: %d loci, %d memories\n", p.Name, len(p.Loci), p.Count())
	fmt.Printf("  saved to %s\n", saved)
	track(db, store.EventCommand, map[string]string{"command": "import", "format": string(f)})
	return nil
}

// --- export command ---

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export <palace>",
	Short: "Export a palace as JSON, Markdown, Anki CSV or text",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "all", "json, markdown, anki, text or all")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "exports", "Output directory, or - for stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	db, _, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	p, err := loadPalace(db, args[0])
	if err != nil {
		return err
	}

	if exportOut == "-" {
		if exportFormat == "all" {
			return fmt.Errorf("pick one --format when writing to stdout")
		}
		f, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		return export.Write(os.Stdout, p, f)
	}

	var arts []export.Artifact
	if exportFormat == "all" {
		arts, err = export.ExportAll(p, exportOut)
	} else {
		var f export.Format
		if f, err = export.ParseFormat(exportFormat); err != nil {
			return err
		}
		if err = os.MkdirAll(exportOut, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
		var a export.Artifact
		a, err = export.ExportFile(p, f, filepath.Join(exportOut, export.FileName(p, f)))
		arts = append(arts, a)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Exported %s\n", p.Name)
	for _, a := range arts {
		fmt.Printf("  %-9s %s (%s)\n", a.Format, a.Path, humanize.Bytes(uint64(a.Size)))
	}
	track(db, store.EventCommand, map[string]string{"command": "export", "format": exportFormat})
	return nil
}

// --- list command ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored palaces",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	db, _, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	list, err := db.ListPalaces()
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No palaces stored. Import one with 'palace import <file>'.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PALACE\tTHEME\tLOCI\tMEMORIES\tUPDATED")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", s.Name, s.Theme, s.Loci, s.Memories, humanize.Time(s.UpdatedAt))
	}
	track(db, store.EventCommand, map[string]string{"command": "list"})
	return tw.Flush()
}

// --- show command ---

var showRaw bool

var showCmd = &cobra.Command{
	Use:   "show <palace>",
	Short: "Render a palace in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print markdown without terminal styling")
}

func runShow(cmd *cobra.Command, args []string) error {
	db, _, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	p, err := loadPalace(db, args[0])
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.WriteMarkdown(&buf, p); err != nil {
		return err
	}
	out := buf.String()
	if !showRaw {
		rendered, err := renderMarkdown(out)
		if err != nil {
			log.Debug("markdown render failed, printing raw", "err", err)
		}
		out = rendered
	}
	fmt.Print(out)
	track(db, store.EventPalaceView, map[string]string{"palace": p.Name})
	return nil
}

// renderMarkdown renders markdown content for terminal display using glamour.
func renderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

// --- recall command ---

var (
	recallConfidence int
	recallAlgorithm  string
)

var recallCmd = &cobra.Command{
	Use:   "recall <palace> <memory-id>",
	Short: "Record a recall of one memory",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecall,
}

func init() {
	recallCmd.Flags().IntVarP(&recallConfidence, "confidence", "c", 0, "Confidence 1-5 (0 keeps the current rating)")
	recallCmd.Flags().StringVarP(&recallAlgorithm, "algorithm", "a", string(schedule.Fibonacci), "Interval table for the next review")
}

func runRecall(cmd *cobra.Command, args []string) error {
	algo, err := schedule.ParseAlgorithm(recallAlgorithm)
	if err != nil {
		return err
	}
	table, err := schedule.Intervals(algo)
	if err != nil {
		return err
	}

	db, _, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	m, err := db.RecordRecall(args[0], args[1], recallConfidence, now)
	if err != nil {
		return err
	}
	next := schedule.Next(algo, table, m.ReviewCount)
	fmt.Printf("Recalled %q: confidence %d/%d, %d reviews\n", m.Subject, m.Confidence, palace.MaxConfidence, m.ReviewCount)
	fmt.Printf("  next %s review in %d days (%s)\n", algo, next.DaysFromNow,
		now.AddDate(0, 0, next.DaysFromNow).Local().Format(time.DateOnly))
	track(db, store.EventMemoryReview, map[string]string{
		"palace":     args[0],
		"memory":     args[1],
		"confidence": fmt.Sprint(recallConfidence),
	})
	if award, err := gamify.RecordRecall(db, m.Confidence, now); err != nil {
		warnf("progress not updated: %v", err)
	} else {
		fmt.Printf("  +%d XP, level %d, %d day streak\n", award.XPGained, award.Level, award.Streak)
		for _, a := range award.NewAchievements {
			fmt.Printf("  unlocked %s: %s\n", a.Name, a.Description)
		}
	}
	return nil
}

// --- remove command ---

var removeCmd = &cobra.Command{
	Use:   "remove <palace>",
	Short: "Delete a palace from the database",
	Long:  "Delete a palace and its recall history from the database. Palace files on disk are left alone.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	db, _, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if err := db.DeletePalace(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", args[0])
	track(db, store.EventCommand, map[string]string{"command": "remove"})
	return nil
}
