package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/palace/internal/linker"
	"github.com/lazypower/palace/internal/store"
)

var (
	linksSuggest string
	linksPath    string
	linksHops    int
	linksGraph   bool
	linksLimit   int
)

var linksCmd = &cobra.Command{
	Use:   "links [palace] [memory-id]",
	Short: "Find related memories across palaces",
	Long: "With a palace and memory id, list related memories in other palaces. " +
		"--suggest finds memories for a topic outside the palace, --path searches " +
		"linked memories for a topic, and --graph prints the link graph as JSON.",
	Args: cobra.MaximumNArgs(2),
	RunE: runLinks,
}

func init() {
	linksCmd.Flags().StringVar(&linksSuggest, "suggest", "", "Suggest memories outside [palace] for a topic")
	linksCmd.Flags().StringVar(&linksPath, "path", "", "Find a path from [palace] [memory-id] to a topic")
	linksCmd.Flags().IntVar(&linksHops, "hops", 3, "Maximum links followed by --path")
	linksCmd.Flags().BoolVar(&linksGraph, "graph", false, "Print the link graph as JSON")
	linksCmd.Flags().IntVarP(&linksLimit, "limit", "n", 5, "Maximum related memories")
}

func runLinks(cmd *cobra.Command, args []string) error {
	db, _, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	all, err := db.AllPalaces()
	if err != nil {
		return err
	}
	l := linker.New(all)
	log.Debug("link graph built", "memories", l.Memories(), "links", l.LinkCount())
	track(db, store.EventCommand, map[string]string{"command": "links"})

	switch {
	case linksGraph:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(l.Graph())

	case linksSuggest != "":
		from := ""
		if len(args) > 0 {
			from = args[0]
		}
		suggestions := l.Suggest(from, linksSuggest)
		if len(suggestions) == 0 {
			fmt.Printf("No memories match %q.\n", linksSuggest)
			return nil
		}
		fmt.Printf("Memories related to %q:\n", linksSuggest)
		for _, s := range suggestions {
			fmt.Printf("  %3.0f%%  %s / %s: %s\n", s.Relevance*100, s.Palace, s.Locus, s.Memory.Subject)
		}
		return nil

	case linksPath != "":
		if len(args) != 2 {
			return fmt.Errorf("--path needs a starting palace and memory id")
		}
		steps := l.FindPath(linker.Key(args[0], args[1]), linksPath, linksHops)
		if steps == nil {
			fmt.Printf("No path to %q within %d hops.\n", linksPath, linksHops)
			return nil
		}
		parts := make([]string, len(steps))
		for i, s := range steps {
			parts[i] = fmt.Sprintf("%s/%s (%s)", s.Palace, s.Locus, s.Subject)
		}
		fmt.Println(strings.Join(parts, "\n  -> "))
		return nil
	}

	if len(args) != 2 {
		fmt.Printf("%d memories, %d cross-palace links across %d palaces\n", l.Memories(), l.LinkCount(), len(all))
		return nil
	}
	related := l.Related(args[0], args[1], linksLimit)
	if len(related) == 0 {
		fmt.Println("No related memories in other palaces.")
		return nil
	}
	for _, r := range related {
		fmt.Printf("  %3.0f%%  %s / %s: %s\n", r.Similarity*100, r.Palace, r.Locus, r.Subject)
	}
	return nil
}
