package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/palace/internal/palace"
)

// importedConfidence is the rating given to memories that arrive without one.
const importedConfidence = 3

// Read decodes a palace from r. name is used by formats that do not carry a
// palace name; now stamps created times.
func Read(r io.Reader, f Format, name string, now time.Time) (*palace.Palace, error) {
	switch f {
	case JSON:
		return ReadJSON(r)
	case Anki:
		return ReadAnki(r, name, now)
	case Markdown:
		return ReadMarkdown(r, now)
	}
	return nil, fmt.Errorf("import from %q is not supported", f)
}

// ReadJSON decodes the native palace format.
func ReadJSON(r io.Reader) (*palace.Palace, error) {
	var p palace.Palace
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode palace: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// DefaultAnkiName names palaces imported from a deck when no name is given.
const DefaultAnkiName = "Imported Anki Deck"

// ReadAnki builds a single-locus palace from a Front,Back,Tags deck. Cards
// tagged by WriteAnki have their back split back into image and content.
func ReadAnki(r io.Reader, name string, now time.Time) (*palace.Palace, error) {
	if name == "" {
		name = DefaultAnkiName
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read anki deck: empty file")
		}
		return nil, fmt.Errorf("read anki header: %w", err)
	}

	loc := palace.Locus{ID: "imported", Name: "Imported Cards"}
	for i := 0; ; i++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read anki card %d: %w", i, err)
		}
		if len(rec) < 2 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		m := palace.Memory{
			ID:         fmt.Sprintf("imported-%d", i),
			Subject:    rec[0],
			Content:    rec[1],
			Confidence: importedConfidence,
			Created:    now,
		}
		if len(rec) > 2 && strings.HasPrefix(rec[2], ankiTagPrefix) {
			if image, content, ok := strings.Cut(rec[1], "\n\n"); ok {
				m.Image, m.Content = image, content
			}
		}
		loc.Memories = append(loc.Memories, m)
	}

	return &palace.Palace{
		Name:    name,
		Theme:   "Imported Deck",
		Created: now,
		Loci:    []palace.Locus{loc},
	}, nil
}

var confidenceLine = regexp.MustCompile(`^\*Confidence: (\d+)/\d+\*$`)

// DefaultMarkdownName names palaces whose document has no title.
const DefaultMarkdownName = "Imported Palace"

// ReadMarkdown parses the layout WriteMarkdown produces: "#" title, "##" loci,
// "####" memories with bold metadata lines. Memory ids are numbered across the
// whole document.
func ReadMarkdown(r io.Reader, now time.Time) (*palace.Palace, error) {
	p := &palace.Palace{Name: DefaultMarkdownName}
	var (
		loc     *palace.Locus
		mem     *palace.Memory
		content []string
		seq     int
	)

	flushMemory := func() {
		if mem == nil || loc == nil {
			mem = nil
			content = nil
			return
		}
		mem.Content = strings.TrimSpace(strings.Join(content, "\n"))
		loc.Memories = append(loc.Memories, *mem)
		mem = nil
		content = nil
	}
	flushLocus := func() {
		flushMemory()
		if loc != nil {
			p.Loci = append(p.Loci, *loc)
			loc = nil
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "# "):
			p.Name = strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "## "):
			flushLocus()
			loc = &palace.Locus{ID: fmt.Sprintf("locus-%d", len(p.Loci)), Name: strings.TrimSpace(line[3:])}
		case strings.HasPrefix(line, "#### "):
			flushMemory()
			seq++
			mem = &palace.Memory{
				ID:         fmt.Sprintf("mem-%d", seq),
				Subject:    strings.TrimSpace(line[5:]),
				Confidence: importedConfidence,
				Created:    now,
			}
		case strings.HasPrefix(line, "### "):
		case strings.HasPrefix(line, "**Theme:**") && loc == nil:
			p.Theme = noneToEmpty(line[len("**Theme:**"):])
		case strings.HasPrefix(line, "**Created:**") && loc == nil:
			if t, err := time.Parse(time.RFC3339, strings.TrimSpace(line[len("**Created:**"):])); err == nil {
				p.Created = t
			}
		case strings.HasPrefix(line, "**Anchor:**") && loc != nil && mem == nil:
			loc.Anchor = noneToEmpty(line[len("**Anchor:**"):])
		case mem != nil && strings.HasPrefix(line, "**Image:**"):
			mem.Image = noneToEmpty(line[len("**Image:**"):])
		case mem != nil && confidenceLine.MatchString(line):
			c, _ := strconv.Atoi(confidenceLine.FindStringSubmatch(line)[1])
			mem.Confidence = min(c, palace.MaxConfidence)
		case mem != nil && !strings.HasPrefix(line, "**") && !strings.HasPrefix(line, "---"):
			content = append(content, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}
	flushLocus()
	if p.Created.IsZero() {
		p.Created = now
	}
	return p, nil
}

func noneToEmpty(s string) string {
	s = strings.TrimSpace(s)
	if s == "None" {
		return ""
	}
	return s
}
