package dashboard

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	ruleWidth = 70
	barCells  = 20
)

// Bar draws a 20-cell meter for a percentage.
func Bar(pct float64) string {
	filled := int(math.Round(pct / 5))
	filled = max(0, min(barCells, filled))
	return strings.Repeat("█", filled) + strings.Repeat("░", barCells-filled)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Renderer writes dashboards to a terminal. Colors follow the capabilities
// of the writer, so plain buffers get unstyled text.
type Renderer struct {
	w io.Writer

	title    lipgloss.Style
	heading  lipgloss.Style
	dim      lipgloss.Style
	category map[Category]lipgloss.Style
}

// NewRenderer returns a Renderer writing to w.
func NewRenderer(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		w:       w,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("241")),
		category: map[Category]lipgloss.Style{
			Strong:   r.NewStyle().Foreground(lipgloss.Color("70")),
			Moderate: r.NewStyle().Foreground(lipgloss.Color("214")),
			Weak:     r.NewStyle().Foreground(lipgloss.Color("203")),
		},
	}
}

func (r *Renderer) header(title string) {
	fmt.Fprintf(r.w, "\n%s\n%s\n", r.title.Render(title), r.dim.Render(strings.Repeat("=", ruleWidth)))
}

func (r *Renderer) section(name string) {
	fmt.Fprintf(r.w, "\n%s\n%s\n", r.heading.Render(name), r.dim.Render(strings.Repeat("─", ruleWidth)))
}

// HeatMap writes one bar per memory followed by the category summary.
func (r *Renderer) HeatMap(hm HeatMap) {
	r.header(hm.Palace + " - Memory Heat Map")
	for _, loc := range hm.Loci {
		r.section(loc.Name)
		if len(loc.Entries) == 0 {
			fmt.Fprintln(r.w, "  (empty)")
			continue
		}
		for _, e := range loc.Entries {
			line := fmt.Sprintf("  %s %3d%%", Bar(float64(e.Strength)), e.Strength)
			fmt.Fprintf(r.w, "%s  %s\n", r.category[e.Category].Render(line), truncate(e.Subject, 40))
		}
	}

	s := hm.Summary
	r.section("Summary")
	for _, row := range []struct {
		cat   Category
		label string
		n     int
	}{
		{Strong, "Strong", s.Strong},
		{Moderate, "Moderate", s.Moderate},
		{Weak, "Weak", s.Weak},
	} {
		fmt.Fprintf(r.w, "  %s : %3d (%.1f%%)\n", r.category[row.cat].Render(fmt.Sprintf("█ %-9s", row.label)), row.n, s.Pct(row.n))
	}
	fmt.Fprintf(r.w, "  Total: %d memories\n", s.Total)
}

// PalaceMap writes one line per locus with its average strength and the
// loci it leads to.
func (r *Renderer) PalaceMap(name string, loci []LocusHealth) {
	r.header(name + " - Palace Map")
	for _, l := range loci {
		if l.Empty() {
			fmt.Fprintf(r.w, "  [%d] %-20s %s\n", l.Index, l.Name, r.dim.Render("empty"))
			continue
		}
		marker := r.category[l.Category].Render("●")
		fmt.Fprintf(r.w, "%s [%d] %-20s %.0f%% (%d memories)\n", marker, l.Index, l.Name, l.Average, l.Memories)
		if len(l.Children) > 0 {
			fmt.Fprintf(r.w, "    └──→ %s\n", strings.Join(l.Children, ", "))
		}
	}
}

func (r *Renderer) meter(label string, value, total int) {
	pct := 0.0
	if total > 0 {
		pct = min(100, float64(value)/float64(total)*100)
	}
	fmt.Fprintf(r.w, "%-15s %s %d/%d (%.0f%%)\n", label, Bar(pct), value, total, pct)
}

// Progress writes review coverage meters and the mastery estimate.
func (r *Renderer) Progress(name string, p Progress) {
	r.header(name + " - Progress Dashboard")
	r.section("Memory Statistics")
	r.meter("Reviewed", p.Reviewed, p.Total)
	r.meter("Due for Review", p.Due, p.Total)
	r.meter("Never Reviewed", p.NeverReviewed, p.Total)
	fmt.Fprintf(r.w, "\nAverage Confidence: %.1f/5.0\n", p.AvgConfidence)
	fmt.Fprintf(r.w, "Estimated Mastery: %.0f%%\n", p.Mastery)
}

// ReviewList writes memories in priority order.
func (r *Renderer) ReviewList(items []Priority) {
	r.header(fmt.Sprintf("Priority Reviews - Top %d", len(items)))
	for i, it := range items {
		line := fmt.Sprintf("%2d. %3d%% %-15s %s", i+1, it.Strength, it.Locus, truncate(it.Memory.Subject, 35))
		fmt.Fprintln(r.w, r.category[CategoryOf(float64(it.Strength))].Render(line))
	}
}
