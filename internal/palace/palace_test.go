package palace

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Palace {
	return &Palace{
		Name:  "System Design Citadel",
		Theme: "Castle",
		Loci: []Locus{
			{
				ID: "gate", Name: "Gate", Anchor: "Portcullis", Children: []string{"hall"},
				Memories: []Memory{
					{ID: "sd-1", Subject: "Cache Aside", Content: "Read through the cache", Confidence: 4},
					{ID: "sd-2", Subject: "Write Behind", Confidence: 2},
				},
			},
			{ID: "hall", Name: "Hall", Memories: []Memory{{ID: "sd-3", Subject: "Sharding"}}},
			{ID: "tower", Name: "Tower"},
		},
	}
}

func TestCountAndWalk(t *testing.T) {
	p := sample()
	assert.Equal(t, 3, p.Count())

	var ids []string
	require.NoError(t, p.Walk(func(l *Locus, m *Memory) error {
		ids = append(ids, l.ID+"/"+m.ID)
		m.ReviewCount = 7
		return nil
	}))
	assert.Equal(t, []string{"gate/sd-1", "gate/sd-2", "hall/sd-3"}, ids)
	assert.Equal(t, 7, p.Loci[1].Memories[0].ReviewCount)

	stop := errors.New("stop")
	n := 0
	err := p.Walk(func(*Locus, *Memory) error { n++; return stop })
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

func TestFind(t *testing.T) {
	p := sample()
	l, m, ok := p.Find("sd-3")
	require.True(t, ok)
	assert.Equal(t, "hall", l.ID)
	assert.Equal(t, "Sharding", m.Subject)

	_, _, ok = p.Find("missing")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, sample().Validate())

	p := sample()
	p.Name = " "
	assert.Error(t, p.Validate())

	p = sample()
	p.Loci[1].ID = "gate"
	assert.ErrorContains(t, p.Validate(), "duplicate locus")

	p = sample()
	p.Loci[1].Memories[0].ID = "sd-1"
	assert.ErrorContains(t, p.Validate(), "duplicate memory")

	p = sample()
	p.Loci[0].Memories[0].Confidence = 6
	assert.ErrorContains(t, p.Validate(), "confidence")
}

func TestRecord(t *testing.T) {
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	m := Memory{ID: "x", Confidence: 3}

	require.NoError(t, m.Record(5, now))
	assert.Equal(t, 5, m.Confidence)
	assert.Equal(t, 1, m.ReviewCount)
	require.NotNil(t, m.LastRecalled)
	assert.Equal(t, now, *m.LastRecalled)

	require.NoError(t, m.Record(0, now.Add(time.Hour)))
	assert.Equal(t, 5, m.Confidence)
	assert.Equal(t, 2, m.ReviewCount)

	assert.Error(t, m.Record(9, now))

	days, ok := m.DaysSinceRecall(now.Add(49 * time.Hour))
	require.True(t, ok)
	assert.InDelta(t, 2.0, days, 1e-9)

	_, ok = Memory{}.DaysSinceRecall(now)
	assert.False(t, ok)
}

func TestUnmarshalRecallCount(t *testing.T) {
	var m Memory
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","subject":"A","recallCount":4,"lastRecalled":"2026-01-15T00:00:00Z"}`), &m))
	assert.Equal(t, 4, m.ReviewCount)
	require.NotNil(t, m.LastRecalled)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"b","subject":"B","reviewCount":2,"recallCount":9}`), &m))
	assert.Equal(t, 2, m.ReviewCount)
}

func TestSaveLoadDir(t *testing.T) {
	dir := t.TempDir()
	p := sample()
	p.Created = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	path, err := Save(dir, p)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "system-design-citadel.json"), path)

	other := &Palace{Name: "Anatomy Atrium", Loci: []Locus{{ID: "a", Name: "A"}}}
	_, err = Save(dir, other)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	got, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Anatomy Atrium", got[0].Name)
	assert.Equal(t, p, got[1])
}

func TestLoadDirMissing(t *testing.T) {
	got, err := LoadDir(filepath.Join(t.TempDir(), "none"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse palace bad.json")
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "system-design-citadel", Slug("System Design Citadel"))
	assert.Equal(t, "c-tricks", Slug("  C++ tricks!"))
	assert.Equal(t, "palace", Slug("!!!"))
}
