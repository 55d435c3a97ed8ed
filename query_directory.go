package depgraph

import (
	"path/filepath"
	"sort"
	"strings"
)

// DirectoryGraph is the directory-to-directory dependency graph, aggregated
// from file-level edges.
type DirectoryGraph struct {
	Directories []DirectoryNode
	Edges       []DirectoryEdge
}

// DirectoryNode is a directory containing at least one file in the graph.
// Name is relative to the root, or absolute when outside it.
type DirectoryNode struct {
	Name      string
	FileCount int
}

// DirectoryEdge is a dependency between two directories with the number of
// file-level edges that contribute to it.
type DirectoryEdge struct {
	FromDirectory string
	ToDirectory   string
	ImportCount   int
}

// DirectoryGraph aggregates the forward map per directory. Edges between
// files of the same directory are counted as a self-edge.
func (q *QueryBuilder) DirectoryGraph() *DirectoryGraph {
	forward := q.graph.Forward()
	backward := q.graph.Backward()

	// Every file that appears anywhere in the graph counts towards its
	// directory.
	files := map[string]bool{}
	for from, targets := range forward {
		files[from] = true
		for _, to := range targets {
			files[to] = true
		}
	}
	for to := range backward {
		files[to] = true
	}

	dirFiles := map[string]int{}
	for f := range files {
		dirFiles[q.dirName(f)]++
	}

	type edgeKey struct {
		from, to string
	}
	edgeCounts := map[edgeKey]int{}
	for from, targets := range forward {
		fromDir := q.dirName(from)
		for _, to := range targets {
			edgeCounts[edgeKey{from: fromDir, to: q.dirName(to)}]++
		}
	}

	names := make([]string, 0, len(dirFiles))
	for name := range dirFiles {
		names = append(names, name)
	}
	sort.Strings(names)

	dirs := make([]DirectoryNode, 0, len(names))
	for _, name := range names {
		dirs = append(dirs, DirectoryNode{Name: name, FileCount: dirFiles[name]})
	}

	edges := make([]DirectoryEdge, 0, len(edgeCounts))
	for ek, count := range edgeCounts {
		edges = append(edges, DirectoryEdge{
			FromDirectory: ek.from,
			ToDirectory:   ek.to,
			ImportCount:   count,
		})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].FromDirectory != edges[j].FromDirectory {
			return edges[i].FromDirectory < edges[j].FromDirectory
		}
		return edges[i].ToDirectory < edges[j].ToDirectory
	})

	return &DirectoryGraph{Directories: dirs, Edges: edges}
}

func (q *QueryBuilder) dirName(file string) string {
	dir := filepath.Dir(file)
	rel, err := filepath.Rel(q.root, dir)
	if err != nil {
		return filepath.ToSlash(dir)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return filepath.ToSlash(dir)
	}
	return rel
}
