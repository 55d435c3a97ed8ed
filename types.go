package depgraph

import (
	"github.com/jward/depgraph/internal/parser"
	"github.com/jward/depgraph/internal/resolver"
	"github.com/jward/depgraph/internal/watch"
)

// Public type aliases for internal types used in the Engine API. These are
// Go type aliases (=), so no conversion is needed.

type Event = watch.Event
type EventKind = watch.Kind
type ResolverConfig = resolver.Config
type Alias = resolver.Alias
type ConfigFunc = resolver.ConfigFunc
type ParserStats = parser.Stats

// Event kinds.
const (
	Created = watch.Created
	Changed = watch.Changed
	Deleted = watch.Deleted
)

// Progress is reported during the bulk scan.
type Progress struct {
	Batch   int // batches completed so far
	Batches int // total number of batches
	Files   int // files processed so far
	Total   int // total number of files
}

// Stats describes the current size of the graph and the parser's counters.
type Stats struct {
	Files       int // files with a forward entry
	Edges       int
	Initialized bool
	Parser      ParserStats
}
