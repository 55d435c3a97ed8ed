package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/depgraph/internal/graph"
)

// newTestQueryBuilder returns a QueryBuilder rooted at /ws over edges given
// as root-relative paths.
func newTestQueryBuilder(t *testing.T, edges map[string][]string) *QueryBuilder {
	t.Helper()
	g := graph.New()
	for from, targets := range edges {
		abs := make([]string, len(targets))
		for i, to := range targets {
			abs[i] = "/ws/" + to
		}
		g.SetEdges("/ws/"+from, abs)
	}
	require.NoError(t, g.Verify())
	return &QueryBuilder{graph: g, root: "/ws"}
}

func ws(rels ...string) []string {
	out := make([]string, len(rels))
	for i, r := range rels {
		out[i] = "/ws/" + r
	}
	return out
}

// =============================================================================
// Direct edges
// =============================================================================

func TestQuery_DependenciesAndDependents(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t, map[string][]string{
		"a.ts": {"b.ts", "c.ts"},
		"d.ts": {"c.ts"},
	})

	assert.Equal(t, ws("b.ts", "c.ts"), q.Dependencies("a.ts"))
	assert.Equal(t, ws("b.ts", "c.ts"), q.Dependencies("/ws/a.ts"))
	assert.Equal(t, ws("a.ts", "d.ts"), q.Dependents("c.ts"))
	assert.Empty(t, q.Dependencies("missing.ts"))
}

// =============================================================================
// Transitive closure
// =============================================================================

func TestQuery_TransitiveDependencies(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t, map[string][]string{
		"a.ts": {"b.ts"},
		"b.ts": {"c.ts", "d.ts"},
		"c.ts": {"e.ts"},
	})

	assert.Equal(t, ws("b.ts", "c.ts", "d.ts", "e.ts"), q.TransitiveDependencies("a.ts", 0))
	assert.Equal(t, ws("b.ts"), q.TransitiveDependencies("a.ts", 1))
	assert.Equal(t, ws("b.ts", "c.ts", "d.ts"), q.TransitiveDependencies("a.ts", 2))
	assert.Empty(t, q.TransitiveDependencies("e.ts", 0))
}

func TestQuery_TransitiveDependents(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t, map[string][]string{
		"a.ts": {"b.ts"},
		"b.ts": {"c.ts"},
		"x.ts": {"c.ts"},
	})

	assert.Equal(t, ws("a.ts", "b.ts", "x.ts"), q.TransitiveDependents("c.ts", -1))
	assert.Equal(t, ws("b.ts", "x.ts"), q.TransitiveDependents("c.ts", 1))
}

func TestQuery_TransitiveHandlesCycles(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t, map[string][]string{
		"a.ts": {"b.ts"},
		"b.ts": {"c.ts"},
		"c.ts": {"a.ts"},
	})

	assert.Equal(t, ws("b.ts", "c.ts"), q.TransitiveDependencies("a.ts", 0))
	assert.Equal(t, ws("b.ts", "c.ts"), q.TransitiveDependents("a.ts", 0))
}

func TestQuery_SelfImportExcluded(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t, map[string][]string{"a.ts": {"a.ts", "b.ts"}})
	assert.Equal(t, ws("b.ts"), q.TransitiveDependencies("a.ts", 0))
}

// =============================================================================
// DirectoryGraph
// =============================================================================

func TestDirectoryGraph_AggregatesFileEdges(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t, map[string][]string{
		"src/app/main.ts":  {"src/lib/a.ts", "src/lib/b.ts", "src/app/util.ts"},
		"src/app/other.ts": {"src/lib/a.ts"},
		"src/lib/a.ts":     {"src/lib/b.ts"},
		"index.ts":         {"src/app/main.ts"},
	})

	dg := q.DirectoryGraph()
	require.NotNil(t, dg)

	assert.Equal(t, []DirectoryNode{
		{Name: ".", FileCount: 1},
		{Name: "src/app", FileCount: 3},
		{Name: "src/lib", FileCount: 2},
	}, dg.Directories)

	assert.Equal(t, []DirectoryEdge{
		{FromDirectory: ".", ToDirectory: "src/app", ImportCount: 1},
		{FromDirectory: "src/app", ToDirectory: "src/app", ImportCount: 1},
		{FromDirectory: "src/app", ToDirectory: "src/lib", ImportCount: 3},
		{FromDirectory: "src/lib", ToDirectory: "src/lib", ImportCount: 1},
	}, dg.Edges)
}

func TestDirectoryGraph_OutsideRootUsesAbsolutePath(t *testing.T) {
	t.Parallel()
	g := graph.New()
	g.SetEdges("/ws/a.ts", []string{"/shared/lib/x.ts"})
	q := &QueryBuilder{graph: g, root: "/ws"}

	dg := q.DirectoryGraph()
	require.Len(t, dg.Edges, 1)
	assert.Equal(t, "/shared/lib", dg.Edges[0].ToDirectory)
}

func TestDirectoryGraph_Empty(t *testing.T) {
	t.Parallel()
	q := newTestQueryBuilder(t, nil)
	dg := q.DirectoryGraph()
	assert.Empty(t, dg.Directories)
	assert.Empty(t, dg.Edges)
	assert.NotNil(t, dg.Edges)
}
