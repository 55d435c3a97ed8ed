package depgraph

import (
	"sort"

	"github.com/jward/depgraph/internal/graph"
)

// QueryBuilder provides read-only traversals over an Engine's graph. Paths
// may be absolute or relative to the root; results are absolute and sorted.
type QueryBuilder struct {
	graph *graph.Graph
	root  string
}

// Dependencies returns the files path imports directly.
func (q *QueryBuilder) Dependencies(path string) []string {
	return q.graph.DependenciesOf(q.abs(path))
}

// Dependents returns the files that import path directly.
func (q *QueryBuilder) Dependents(path string) []string {
	return q.graph.DependentsOf(q.abs(path))
}

// TransitiveDependencies returns every file reachable from path through
// forward edges, excluding path itself. maxDepth limits the number of hops;
// maxDepth <= 0 means unlimited. Cycles are traversed once.
func (q *QueryBuilder) TransitiveDependencies(path string, maxDepth int) []string {
	return q.walk(q.abs(path), maxDepth, q.graph.DependenciesOf)
}

// TransitiveDependents returns every file that reaches path through forward
// edges, excluding path itself: the set of files affected by a change to
// path. maxDepth <= 0 means unlimited.
func (q *QueryBuilder) TransitiveDependents(path string, maxDepth int) []string {
	return q.walk(q.abs(path), maxDepth, q.graph.DependentsOf)
}

// walk is a breadth-first traversal with a visited set.
func (q *QueryBuilder) walk(start string, maxDepth int, next func(string) []string) []string {
	visited := map[string]bool{start: true}
	frontier := []string{start}
	var out []string
	for depth := 0; len(frontier) > 0 && (maxDepth <= 0 || depth < maxDepth); depth++ {
		var nextFrontier []string
		for _, file := range frontier {
			for _, n := range next(file) {
				if visited[n] {
					continue
				}
				visited[n] = true
				out = append(out, n)
				nextFrontier = append(nextFrontier, n)
			}
		}
		frontier = nextFrontier
	}
	sort.Strings(out)
	return out
}

func (q *QueryBuilder) abs(path string) string {
	return absPath(q.root, path)
}
