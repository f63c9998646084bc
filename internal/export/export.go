// Package export converts palaces to and from portable formats and backs up
// the palace directory.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lazypower/palace/internal/palace"
)

// Format names an export format.
type Format string

const (
	JSON     Format = "json"
	Markdown Format = "markdown"
	Anki     Format = "anki"
	Text     Format = "text"
)

// Formats lists every export format in the order ExportAll writes them.
func Formats() []Format {
	return []Format{JSON, Markdown, Anki, Text}
}

// ParseFormat resolves a format name. "md" and "csv" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, nil
	case "markdown", "md":
		return Markdown, nil
	case "anki", "csv":
		return Anki, nil
	case "text", "txt":
		return Text, nil
	}
	return "", fmt.Errorf("unknown format %q (available: json, markdown, anki, text)", s)
}

// FileName returns the export file name for a palace in format f.
func FileName(p *palace.Palace, f Format) string {
	slug := palace.Slug(p.Name)
	switch f {
	case JSON:
		return slug + "-export.json"
	case Markdown:
		return slug + ".md"
	case Anki:
		return slug + "-anki.csv"
	default:
		return slug + ".txt"
	}
}

// Write encodes p to w in format f.
func Write(w io.Writer, p *palace.Palace, f Format) error {
	switch f {
	case JSON:
		return WriteJSON(w, p)
	case Markdown:
		return WriteMarkdown(w, p)
	case Anki:
		return WriteAnki(w, p)
	case Text:
		return WriteText(w, p)
	}
	return fmt.Errorf("unknown format %q", f)
}

// WriteJSON writes the native palace format.
func WriteJSON(w io.Writer, p *palace.Palace) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encode palace: %w", err)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

// WriteMarkdown writes a human-readable document with one section per locus.
func WriteMarkdown(w io.Writer, p *palace.Palace) error {
	var b strings.Builder
	created := "Unknown"
	if !p.Created.IsZero() {
		created = p.Created.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	fmt.Fprintf(&b, "**Theme:** %s\n\n", orNone(p.Theme))
	fmt.Fprintf(&b, "**Created:** %s\n\n", created)
	b.WriteString("---\n\n")

	for _, loc := range p.Loci {
		fmt.Fprintf(&b, "## %s\n\n", loc.Name)
		fmt.Fprintf(&b, "**Anchor:** %s\n\n", orNone(loc.Anchor))
		if len(loc.Memories) > 0 {
			b.WriteString("### Memories\n\n")
			for _, m := range loc.Memories {
				fmt.Fprintf(&b, "#### %s\n\n", m.Subject)
				fmt.Fprintf(&b, "**Image:** %s\n\n", orNone(m.Image))
				if m.Content != "" {
					fmt.Fprintf(&b, "%s\n\n", m.Content)
				}
				if m.Confidence > 0 {
					fmt.Fprintf(&b, "*Confidence: %d/%d*\n\n", m.Confidence, palace.MaxConfidence)
				}
				b.WriteString("---\n\n")
			}
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// AnkiTag is the deck tag written on every card exported from p.
func AnkiTag(p *palace.Palace) string {
	return ankiTagPrefix + strings.Join(strings.Fields(p.Name), "_")
}

const ankiTagPrefix = "memory-palace::"

// WriteAnki writes a Front,Back,Tags CSV deck. The back of each card holds the
// image and content separated by a blank line.
func WriteAnki(w io.Writer, p *palace.Palace) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Front", "Back", "Tags"}); err != nil {
		return fmt.Errorf("write anki header: %w", err)
	}
	tag := AnkiTag(p)
	for _, loc := range p.Loci {
		for _, m := range loc.Memories {
			back := m.Image + "\n\n" + m.Content
			if err := cw.Write([]string{m.Subject, back, tag}); err != nil {
				return fmt.Errorf("write card %s: %w", m.ID, err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// previewLen is how much content the text format shows per memory.
const previewLen = 100

// WriteText writes a plain outline: palace and locus headings with a numbered
// preview of each memory.
func WriteText(w io.Writer, p *palace.Palace) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\n", p.Name, strings.Repeat("=", len([]rune(p.Name))))
	for _, loc := range p.Loci {
		fmt.Fprintf(&b, "\n%s\n%s\n", loc.Name, strings.Repeat("-", len([]rune(loc.Name))))
		for i, m := range loc.Memories {
			preview := "No content"
			if m.Content != "" {
				r := []rune(m.Content)
				preview = string(r[:min(len(r), previewLen)])
			}
			fmt.Fprintf(&b, "\n%d. %s\n   %s...\n", i+1, m.Subject, preview)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Artifact describes one written export file.
type Artifact struct {
	Format Format `json:"format"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
}

// ExportAll writes p to dir in every format.
func ExportAll(p *palace.Palace, dir string) ([]Artifact, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	var out []Artifact
	for _, f := range Formats() {
		a, err := ExportFile(p, f, filepath.Join(dir, FileName(p, f)))
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ExportFile writes p to path in format f.
func ExportFile(p *palace.Palace, f Format, path string) (Artifact, error) {
	file, err := os.Create(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(file, p, f); err != nil {
		file.Close()
		return Artifact{}, fmt.Errorf("export %s: %w", f, err)
	}
	if err := file.Close(); err != nil {
		return Artifact{}, fmt.Errorf("close %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Artifact{Format: f, Path: path, Size: info.Size()}, nil
}
