package linker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/palace/internal/palace"
)

func build(name string, subjects map[string]string, order ...string) *palace.Palace {
	loc := palace.Locus{ID: "hall", Name: "Hall"}
	for _, id := range order {
		loc.Memories = append(loc.Memories, palace.Memory{ID: id, Subject: subjects[id]})
	}
	return &palace.Palace{Name: name, Loci: []palace.Locus{loc}}
}

func fixture() []*palace.Palace {
	return []*palace.Palace{
		build("systems", map[string]string{
			"s1": "redis cache eviction",
			"s2": "redis cache eviction",
		}, "s1", "s2"),
		build("backend", map[string]string{
			"b1": "redis cache eviction policy",
			"b2": "database index tuning",
		}, "b1", "b2"),
		build("frontend", map[string]string{
			"f1": "redis cache eviction policy",
		}, "f1"),
	}
}

func targets(links []Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.Target
	}
	return out
}

func TestKeywords(t *testing.T) {
	got := Keywords(palace.Memory{
		Subject: "The API Server",
		Content: "Uses Consistent Hashing for the cache layer and an API",
	})
	assert.Equal(t, []string{"server", "Uses Consistent Hashing", "cache"}, got)
}

func TestKeywordsDropsShortAndDuplicate(t *testing.T) {
	got := Keywords(palace.Memory{Subject: "a big cache cache of caches"})
	assert.Equal(t, []string{"cache", "caches"}, got)
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0/3, Jaccard([]string{"a", "b"}, []string{"b", "c"}), 1e-12)
	assert.Equal(t, 1.0, Jaccard([]string{"a"}, []string{"a", "a"}))
	assert.Equal(t, 0.0, Jaccard(nil, nil))
	assert.Equal(t, 0.0, Jaccard([]string{"a"}, []string{"b"}))
}

func TestRelatedCrossPalaceOnly(t *testing.T) {
	l := New(fixture())
	assert.Equal(t, 5, l.Memories())

	got := l.Related("systems", "s1", 0)
	assert.Equal(t, []string{"backend::b1", "frontend::f1"}, targets(got))
	for _, link := range got {
		assert.NotEqual(t, "systems", link.Palace)
		assert.InDelta(t, 0.75, link.Similarity, 1e-12)
	}

	got = l.Related("backend", "b1", 0)
	assert.Equal(t, []string{"frontend::f1", "systems::s1", "systems::s2"}, targets(got))
	assert.Equal(t, 1.0, got[0].Similarity)

	assert.Empty(t, l.Related("backend", "b2", 0))
	assert.Empty(t, l.Related("nowhere", "x", 0))
}

func TestRelatedLimit(t *testing.T) {
	l := New(fixture())
	got := l.Related("backend", "b1", 1)
	assert.Equal(t, []string{"frontend::f1"}, targets(got))
}

func TestOptions(t *testing.T) {
	l := New(fixture(), WithThreshold(0.9))
	assert.Empty(t, l.Related("systems", "s1", 0))
	assert.Equal(t, []string{"frontend::f1"}, targets(l.Related("backend", "b1", 0)))

	l = New(fixture(), WithMaxLinks(1))
	assert.Len(t, l.Related("backend", "b1", 0), 1)
	assert.Equal(t, 4, l.LinkCount())
}

func TestSuggest(t *testing.T) {
	l := New(fixture())
	got := l.Suggest("systems", "eviction policy")
	require.Len(t, got, 2)
	assert.Equal(t, "backend", got[0].Palace)
	assert.Equal(t, "b1", got[0].Memory.ID)
	assert.Equal(t, "frontend", got[1].Palace)
	assert.InDelta(t, 0.5, got[0].Relevance, 1e-12)

	assert.Empty(t, l.Suggest("systems", "kubernetes"))
}

func TestGraph(t *testing.T) {
	l := New(fixture())
	g := l.Graph()
	assert.Len(t, g.Nodes, 5)
	assert.Equal(t, "systems::s1", g.Nodes[0].ID)
	assert.Equal(t, "redis cache eviction", g.Nodes[0].Label)
	assert.Len(t, g.Edges, l.LinkCount())

	palaceOf := map[string]string{}
	for _, n := range g.Nodes {
		palaceOf[n.ID] = n.Palace
	}
	for _, e := range g.Edges {
		assert.NotEqual(t, palaceOf[e.Source], palaceOf[e.Target], "%s -> %s", e.Source, e.Target)
		assert.GreaterOrEqual(t, e.Weight, 0.6)
	}
}

func TestGraphEmpty(t *testing.T) {
	g := New(nil).Graph()
	assert.NotNil(t, g.Nodes)
	assert.NotNil(t, g.Edges)
}

func TestFindPathDirect(t *testing.T) {
	l := New(fixture())
	path := l.FindPath(Key("systems", "s1"), "redis cache eviction policy", 3)
	require.Len(t, path, 2)
	assert.Equal(t, Step{Palace: "systems", Locus: "Hall", Subject: "redis cache eviction"}, path[0])
	assert.Equal(t, "backend", path[1].Palace)

	assert.Nil(t, l.FindPath(Key("systems", "s1"), "database index tuning", 3))
	assert.Nil(t, l.FindPath(Key("systems", "s1"), "redis cache eviction policy", 0))
}

func TestFindPathMultiHop(t *testing.T) {
	const (
		near  = "echo foxtrot golf hotel india juliet kilo"
		hub   = "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo"
		far   = "alpha bravo charlie delta echo foxtrot golf"
		topic = far
	)
	l := New([]*palace.Palace{
		build("one", map[string]string{"m": near}, "m"),
		build("two", map[string]string{"m": hub}, "m"),
		build("three", map[string]string{"m": far}, "m"),
	})
	require.Empty(t, targetsIn(l.Related("one", "m", 0), "three::m"))

	path := l.FindPath(Key("one", "m"), topic, 2)
	require.Len(t, path, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{path[0].Palace, path[1].Palace, path[2].Palace})

	assert.Nil(t, l.FindPath(Key("one", "m"), topic, 1))
}

func targetsIn(links []Link, key string) []string {
	var out []string
	for _, t := range targets(links) {
		if t == key {
			out = append(out, t)
		}
	}
	return out
}
