package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/palace/internal/palace"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

func samplePalace() *palace.Palace {
	return &palace.Palace{
		Name:    "Sample Palace",
		Theme:   "Test",
		Created: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Loci: []palace.Locus{
			{
				ID:     "locus-1",
				Name:   "Front Door",
				Anchor: "A red door",
				Memories: []palace.Memory{
					{ID: "m1", Subject: "Consistent hashing", Content: "Keys map to a ring, so adding a node moves few keys.", Image: "A clock face", Confidence: 4},
					{ID: "m2", Subject: "Bloom filter", Content: "No false negatives", Confidence: 2},
				},
			},
			{
				ID:   "locus-2",
				Name: "Kitchen",
				Memories: []palace.Memory{
					{ID: "m3", Subject: "Quorum reads"},
				},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": JSON, "MD": Markdown, "csv": Anki, "anki": Anki, " txt ": Text} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, samplePalace()))
	assert.Contains(t, buf.String(), "\n  \"name\": \"Sample Palace\"")

	got, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, samplePalace(), got)
}

func TestReadJSONValidates(t *testing.T) {
	_, err := ReadJSON(strings.NewReader(`{"name": ""}`))
	assert.Error(t, err)
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, samplePalace()))
	md := buf.String()

	assert.True(t, strings.HasPrefix(md, "# Sample Palace\n\n**Theme:** Test\n\n**Created:** 2026-01-02T03:04:05Z\n\n---\n\n"))
	assert.Contains(t, md, "## Front Door\n\n**Anchor:** A red door\n\n### Memories\n\n")
	assert.Contains(t, md, "#### Consistent hashing\n\n**Image:** A clock face\n\n")
	assert.Contains(t, md, "*Confidence: 4/5*")
	assert.Contains(t, md, "## Kitchen\n\n**Anchor:** None\n\n")
}

func TestMarkdownRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMarkdown(&buf, samplePalace()))

	got, err := ReadMarkdown(&buf, testNow)
	require.NoError(t, err)
	require.NoError(t, got.Validate())

	want := samplePalace()
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Theme, got.Theme)
	assert.True(t, want.Created.Equal(got.Created))
	require.Len(t, got.Loci, 2)
	assert.Equal(t, "A red door", got.Loci[0].Anchor)
	assert.Empty(t, got.Loci[1].Anchor)

	require.Len(t, got.Loci[0].Memories, 2)
	m := got.Loci[0].Memories[0]
	assert.Equal(t, "Consistent hashing", m.Subject)
	assert.Equal(t, "A clock face", m.Image)
	assert.Equal(t, "Keys map to a ring, so adding a node moves few keys.", m.Content)
	assert.Equal(t, 4, m.Confidence)

	m = got.Loci[1].Memories[0]
	assert.Equal(t, "Quorum reads", m.Subject)
	assert.Empty(t, m.Content)
	assert.Equal(t, 3, m.Confidence, "unrated memories import at the default rating")
	assert.Equal(t, "mem-3", m.ID)
}

func TestReadMarkdownWithoutTitle(t *testing.T) {
	got, err := ReadMarkdown(strings.NewReader("## Loose\n\n#### One\n\nbody\n"), testNow)
	require.NoError(t, err)
	assert.Equal(t, DefaultMarkdownName, got.Name)
	assert.Equal(t, testNow, got.Created)
	require.Len(t, got.Loci, 1)
	assert.Equal(t, "body", got.Loci[0].Memories[0].Content)
}

func TestWriteAnki(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnki(&buf, samplePalace()))

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, []string{"Front", "Back", "Tags"}, recs[0])
	assert.Equal(t, "Consistent hashing", recs[1][0])
	assert.Equal(t, "A clock face\n\nKeys map to a ring, so adding a node moves few keys.", recs[1][1])
	assert.Equal(t, "memory-palace::Sample_Palace", recs[1][2])
}

func TestAnkiRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnki(&buf, samplePalace()))

	got, err := ReadAnki(&buf, "", testNow)
	require.NoError(t, err)
	assert.Equal(t, DefaultAnkiName, got.Name)
	require.NoError(t, got.Validate())
	require.Len(t, got.Loci, 1)
	mems := got.Loci[0].Memories
	require.Len(t, mems, 3)
	assert.Equal(t, "imported-0", mems[0].ID)
	assert.Equal(t, "A clock face", mems[0].Image)
	assert.Equal(t, "Keys map to a ring, so adding a node moves few keys.", mems[0].Content)
	assert.Equal(t, "No false negatives", mems[1].Content)
	assert.Empty(t, mems[1].Image)
	assert.Equal(t, 3, mems[2].Confidence)
}

func TestReadAnkiForeignDeck(t *testing.T) {
	deck := "Front,Back\nhola,hello\n\nsolo\nadios,\"good\n\nbye\"\n"
	got, err := ReadAnki(strings.NewReader(deck), "Spanish", testNow)
	require.NoError(t, err)
	assert.Equal(t, "Spanish", got.Name)
	mems := got.Loci[0].Memories
	require.Len(t, mems, 2)
	assert.Equal(t, "hola", mems[0].Subject)
	assert.Equal(t, "hello", mems[0].Content)
	// Untagged cards keep their back intact.
	assert.Equal(t, "good\n\nbye", mems[1].Content)
}

func TestReadAnkiEmpty(t *testing.T) {
	_, err := ReadAnki(strings.NewReader(""), "x", testNow)
	assert.Error(t, err)
}

func TestWriteText(t *testing.T) {
	p := samplePalace()
	p.Loci[0].Memories[1].Content = strings.Repeat("x", 150)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, p))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "Sample Palace\n=============\n\n"))
	assert.Contains(t, out, "\nFront Door\n----------\n")
	assert.Contains(t, out, "\n1. Consistent hashing\n   Keys map")
	assert.Contains(t, out, "\n2. Bloom filter\n   "+strings.Repeat("x", 100)+"...\n")
	assert.Contains(t, out, "\n1. Quorum reads\n   No content...\n")
}

func TestReadUnsupported(t *testing.T) {
	_, err := Read(strings.NewReader(""), Text, "", testNow)
	assert.Error(t, err)
}

func TestExportAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	arts, err := ExportAll(samplePalace(), dir)
	require.NoError(t, err)
	require.Len(t, arts, 4)

	names := make([]string, len(arts))
	for i, a := range arts {
		names[i] = filepath.Base(a.Path)
		info, err := os.Stat(a.Path)
		require.NoError(t, err)
		assert.Equal(t, info.Size(), a.Size)
		assert.Positive(t, a.Size)
	}
	assert.Equal(t, []string{"sample-palace-export.json", "sample-palace.md", "sample-palace-anki.csv", "sample-palace.txt"}, names)
}

func TestBackup(t *testing.T) {
	src := t.TempDir()
	_, err := palace.Save(src, samplePalace())
	require.NoError(t, err)
	_, err = palace.Save(src, &palace.Palace{Name: "Other"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("skip"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(src, "nested.json"), 0o755))

	out := t.TempDir()
	res, err := Backup(src, out, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, "2026-03-14T09-26-53-589Z", res.Timestamp)
	assert.Equal(t, filepath.Join(out, "backup-2026-03-14T09-26-53-589Z"), res.Dir)

	orig, err := os.ReadFile(filepath.Join(src, "sample-palace.json"))
	require.NoError(t, err)
	copied, err := os.ReadFile(filepath.Join(res.Dir, "sample-palace.json"))
	require.NoError(t, err)
	assert.Equal(t, orig, copied)

	_, err = os.Stat(filepath.Join(res.Dir, "notes.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestBackupMissingSource(t *testing.T) {
	_, err := Backup(filepath.Join(t.TempDir(), "nope"), t.TempDir(), testNow)
	assert.Error(t, err)
}
