package linker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lazypower/palace/internal/palace"
)

var (
	capitalizedPhrase = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
	technicalTerm     = regexp.MustCompile(`\b(cache|database|api|server|client|async|algorithm|pattern|architecture|design)\b`)
)

// minKeywordLen excludes short words; keywords must be longer than this.
const minKeywordLen = 3

// Keywords extracts the terms a memory is matched on: lowercased subject
// words, capitalized phrases from the content (case kept), and known
// technical terms. Duplicates are dropped, first occurrence wins.
func Keywords(m palace.Memory) []string {
	var candidates []string
	candidates = append(candidates, strings.Fields(strings.ToLower(m.Subject))...)
	candidates = append(candidates, capitalizedPhrase.FindAllString(m.Content, -1)...)
	text := strings.ToLower(m.Subject + " " + m.Content)
	candidates = append(candidates, technicalTerm.FindAllString(text, -1)...)

	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, k := range candidates {
		if seen[k] || utf8.RuneCountInString(k) <= minKeywordLen {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// Jaccard returns |a ∩ b| / |a ∪ b| over keyword sets, 0 when both are empty.
func Jaccard(a, b []string) float64 {
	set := make(map[string]bool, len(a))
	for _, k := range a {
		set[k] = true
	}
	inter := 0
	union := len(set)
	seenB := make(map[string]bool, len(b))
	for _, k := range b {
		if seenB[k] {
			continue
		}
		seenB[k] = true
		if set[k] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
