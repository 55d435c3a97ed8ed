// Package graph holds the in-memory, bidirectional file dependency graph.
//
// Every edge A -> B is stored twice: once in the forward map (A imports B) and
// once in the backward map (B is imported by A). All mutations keep the two
// maps consistent; RemoveNode is the single documented exception (see its doc).
package graph

import (
	"sort"
	"sync"

	"go.trai.ch/zerr"
)

// ErrInconsistent is returned by Verify when the forward and backward maps
// disagree about an edge.
var ErrInconsistent = zerr.New("graph forward and backward edges disagree")

type set map[string]struct{}

// Graph is a concurrency-safe pair of adjacency maps keyed by absolute path.
// A file is a member of the graph when it is a key in either map.
type Graph struct {
	mu       sync.RWMutex
	forward  map[string]set
	backward map[string]set
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		forward:  make(map[string]set),
		backward: make(map[string]set),
	}
}

// SetEdges replaces the complete forward edge set of file with targets.
// The previous edges are removed first, so a re-processed file never keeps a
// dependency it no longer has. The replacement happens under a single lock:
// concurrent callers for the same file end in exactly one caller's state.
func (g *Graph) SetEdges(file string, targets []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeEdgesFromLocked(file)

	deps := make(set, len(targets))
	for _, t := range targets {
		deps[t] = struct{}{}
		rev, ok := g.backward[t]
		if !ok {
			rev = make(set)
			g.backward[t] = rev
		}
		rev[file] = struct{}{}
	}
	g.forward[file] = deps
}

// RemoveEdgesFrom drops every forward edge of file and the matching backward
// entries. Backward entries that become empty are deleted.
func (g *Graph) RemoveEdgesFrom(file string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeEdgesFromLocked(file)
}

func (g *Graph) removeEdgesFromLocked(file string) {
	for dep := range g.forward[file] {
		rev := g.backward[dep]
		delete(rev, file)
		if len(rev) == 0 {
			delete(g.backward, dep)
		}
	}
	delete(g.forward, file)
}

// RemoveNode is used when file is deleted from disk. It removes file's own
// forward edges and discards the record of who imports file.
//
// Files that still import the deleted file keep it in their forward set until
// they are themselves re-processed. Consumers rendering the forward map rely
// on those entries staying in place.
func (g *Graph) RemoveNode(file string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeEdgesFromLocked(file)
	delete(g.backward, file)
}

// DependenciesOf returns the files that file imports, sorted.
func (g *Graph) DependenciesOf(file string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.forward[file])
}

// DependentsOf returns the files that import file, sorted.
func (g *Graph) DependentsOf(file string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.backward[file])
}

// Has reports whether file is a key in either map.
func (g *Graph) Has(file string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, fwd := g.forward[file]
	_, bwd := g.backward[file]
	return fwd || bwd
}

// Forward returns a snapshot copy of the forward map with sorted values.
func (g *Graph) Forward() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return snapshot(g.forward)
}

// Backward returns a snapshot copy of the backward map with sorted values.
func (g *Graph) Backward() map[string][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return snapshot(g.backward)
}

// Maps returns snapshot copies of the forward and backward maps taken under
// one read lock, so the pair is always mutually consistent.
func (g *Graph) Maps() (forward, backward map[string][]string) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return snapshot(g.forward), snapshot(g.backward)
}

// Counts returns the number of files with a forward entry and the number of
// forward edges.
func (g *Graph) Counts() (files, edges int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, deps := range g.forward {
		edges += len(deps)
	}
	return len(g.forward), edges
}

// Verify checks that B is in forward[A] exactly when A is in backward[B].
// Graphs that have seen RemoveNode may legitimately fail this check.
func (g *Graph) Verify() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for from, deps := range g.forward {
		for to := range deps {
			if _, ok := g.backward[to][from]; !ok {
				return zerr.With(zerr.With(ErrInconsistent, "from", from), "to", to)
			}
		}
	}
	for to, importers := range g.backward {
		if len(importers) == 0 {
			return zerr.With(ErrInconsistent, "empty_backward", to)
		}
		for from := range importers {
			if _, ok := g.forward[from][to]; !ok {
				return zerr.With(zerr.With(ErrInconsistent, "from", from), "to", to)
			}
		}
	}
	return nil
}

func sortedKeys(s set) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func snapshot(m map[string]set) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		keys := sortedKeys(v)
		if keys == nil {
			keys = []string{}
		}
		out[k] = keys
	}
	return out
}
