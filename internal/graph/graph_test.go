package graph

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// SetEdges / RemoveEdgesFrom
// =============================================================================

func TestSetEdges_InstallsBothDirections(t *testing.T) {
	t.Parallel()
	g := New()
	g.SetEdges("/a.ts", []string{"/b.ts", "/c.ts"})

	assert.Equal(t, []string{"/b.ts", "/c.ts"}, g.DependenciesOf("/a.ts"))
	assert.Equal(t, []string{"/a.ts"}, g.DependentsOf("/b.ts"))
	assert.Equal(t, []string{"/a.ts"}, g.DependentsOf("/c.ts"))
	require.NoError(t, g.Verify())
}

func TestSetEdges_DuplicateTargetsCollapse(t *testing.T) {
	t.Parallel()
	g := New()
	g.SetEdges("/a.ts", []string{"/b.ts", "/b.ts"})

	assert.Equal(t, []string{"/b.ts"}, g.DependenciesOf("/a.ts"))
	files, edges := g.Counts()
	assert.Equal(t, 1, files)
	assert.Equal(t, 1, edges)
}

func TestSetEdges_ReplacesStaleEdges(t *testing.T) {
	t.Parallel()
	g := New()
	g.SetEdges("/a.ts", []string{"/b.ts", "/c.ts"})
	g.SetEdges("/a.ts", []string{"/b.ts"})

	assert.Equal(t, []string{"/b.ts"}, g.DependenciesOf("/a.ts"))
	assert.Empty(t, g.DependentsOf("/c.ts"))
	_, ok := g.Backward()["/c.ts"]
	assert.False(t, ok, "empty backward entries are deleted")
	require.NoError(t, g.Verify())
}

func TestSetEdges_EmptyKeepsMembership(t *testing.T) {
	t.Parallel()
	g := New()
	g.SetEdges("/a.ts", nil)

	assert.True(t, g.Has("/a.ts"))
	assert.Equal(t, []string{}, g.Forward()["/a.ts"])
}

func TestRemoveEdgesFrom(t *testing.T) {
	t.Parallel()
	g := New()
	g.SetEdges("/a.ts", []string{"/c.ts"})
	g.SetEdges("/b.ts", []string{"/c.ts"})

	g.RemoveEdgesFrom("/a.ts")

	assert.False(t, g.Has("/a.ts"))
	assert.Equal(t, []string{"/b.ts"}, g.DependentsOf("/c.ts"))
	require.NoError(t, g.Verify())
}

func TestRemoveEdgesFrom_UnknownFile(t *testing.T) {
	t.Parallel()
	g := New()
	g.RemoveEdgesFrom("/missing.ts")
	require.NoError(t, g.Verify())
}

// =============================================================================
// RemoveNode
// =============================================================================

func TestRemoveNode_KeepsDependentForwardEntries(t *testing.T) {
	t.Parallel()
	g := New()
	g.SetEdges("/a.ts", []string{"/b.ts"})
	g.SetEdges("/b.ts", []string{"/c.ts"})

	g.RemoveNode("/b.ts")

	assert.Empty(t, g.DependentsOf("/b.ts"))
	assert.Empty(t, g.DependenciesOf("/b.ts"))
	assert.Empty(t, g.DependentsOf("/c.ts"))
	// a.ts still lists the deleted file until it is re-processed.
	assert.Equal(t, []string{"/b.ts"}, g.DependenciesOf("/a.ts"))
	require.ErrorContains(t, g.Verify(), ErrInconsistent.Error())

	g.SetEdges("/a.ts", nil)
	require.NoError(t, g.Verify())
}

// =============================================================================
// Snapshots
// =============================================================================

func TestForward_IsACopy(t *testing.T) {
	t.Parallel()
	g := New()
	g.SetEdges("/a.ts", []string{"/b.ts"})

	snap := g.Forward()
	snap["/a.ts"][0] = "/mutated.ts"
	delete(snap, "/a.ts")

	assert.Equal(t, []string{"/b.ts"}, g.DependenciesOf("/a.ts"))
}

// =============================================================================
// Properties
// =============================================================================

func TestBidirectionalConsistency_RandomOperations(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	files := make([]string, 12)
	for i := range files {
		files[i] = fmt.Sprintf("/f%d.ts", i)
	}

	g := New()
	for step := 0; step < 2000; step++ {
		from := files[rng.Intn(len(files))]
		if rng.Intn(4) == 0 {
			g.RemoveEdgesFrom(from)
		} else {
			n := rng.Intn(5)
			targets := make([]string, n)
			for i := range targets {
				targets[i] = files[rng.Intn(len(files))]
			}
			g.SetEdges(from, targets)
		}
		require.NoError(t, g.Verify(), "step %d", step)
	}
}

func TestSetEdges_ConcurrentSameFileEndsInOneSnapshot(t *testing.T) {
	t.Parallel()
	g := New()
	snapshots := [][]string{
		{"/b.ts", "/c.ts"},
		{"/d.ts"},
		{"/e.ts", "/f.ts", "/g.ts"},
	}

	var wg sync.WaitGroup
	for i := 0; i < 300; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g.SetEdges("/a.ts", snapshots[i%len(snapshots)])
		}(i)
	}
	wg.Wait()

	got := g.DependenciesOf("/a.ts")
	assert.Contains(t, snapshots, got)
	require.NoError(t, g.Verify())
}

func TestMaps_PairIsConsistentUnderWrites(t *testing.T) {
	t.Parallel()
	g := New()
	snapshots := [][]string{
		{"/b.ts", "/c.ts"},
		{"/d.ts"},
		{"/e.ts", "/f.ts", "/g.ts"},
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			g.SetEdges("/a.ts", snapshots[i%len(snapshots)])
		}
	}()

	for i := 0; i < 500; i++ {
		forward, backward := g.Maps()
		require.True(t, mapsAgree(forward, backward), "torn pair: %v / %v", forward, backward)
	}
	close(done)
	wg.Wait()
}

// mapsAgree reports whether B is in forward[A] exactly when A is in
// backward[B].
func mapsAgree(forward, backward map[string][]string) bool {
	edges := 0
	for from, targets := range forward {
		for _, to := range targets {
			edges++
			found := false
			for _, f := range backward[to] {
				if f == from {
					found = true
				}
			}
			if !found {
				return false
			}
		}
	}
	reverse := 0
	for _, froms := range backward {
		reverse += len(froms)
	}
	return edges == reverse
}
