// Package depgraph builds and maintains a bidirectional file-dependency graph
// for JavaScript, TypeScript, Vue and Svelte source trees.
//
// # Pipeline
//
// Every file goes through the same three stages:
//
//  1. Extract: parse the file with tree-sitter and collect the specifiers of
//     static imports, re-exports with a source, require() calls and dynamic
//     import() calls. Vue and Svelte files are reduced to their script region
//     first.
//
//  2. Resolve: turn each specifier into an absolute file path using the alias
//     table, the extension search order, directory indexes, package.json
//     entry fields and node_modules lookup. Specifiers that do not resolve to
//     a file on disk are dropped.
//
//  3. Patch: replace the file's edge set in the graph. The forward map
//     (file -> imports) and backward map (file -> importers) always change
//     together.
//
// # Usage
//
// Create an Engine for a workspace root, initialize it, then query:
//
//	e, err := depgraph.New("path/to/project")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.Initialize(ctx)
//
//	deps := e.DependenciesOf("src/main.ts")
//	importers := e.DependentsOf("src/utils.ts")
//
// Initialize runs the bulk scan once. Concurrent callers share the scan in
// flight. After it completes, [Engine.HandleEvent] applies created, changed
// and deleted notifications one file at a time, and [Engine.Watch] feeds
// those notifications from the file system. Watch subscribes before it
// scans, so edits made during the bulk scan are not lost. [Engine.Export] writes the
// current graph to a SQLite database for external tools.
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] adds traversals on top of the
// direct accessors:
//
//   - [QueryBuilder.Dependencies] and [QueryBuilder.Dependents]: direct edges.
//   - [QueryBuilder.TransitiveDependencies] and
//     [QueryBuilder.TransitiveDependents]: breadth-first closure with an
//     optional depth limit.
//   - [QueryBuilder.DirectoryGraph]: file edges aggregated per directory.
//
// # Configuration
//
// Resolution settings come from, in order: the defaults (alias "@" for
// <root>/src), a Go [ConfigFunc] supplied with [WithConfigFunc], and a Risor
// script supplied with [WithConfigScript]. [OptionsFromFile] reads the same
// settings from a .depgraph.yaml file. A failing collaborator never stops
// initialization; the default alias table is used instead.
//
// Multiple workspaces are managed by a [Registry], which owns one Engine per
// root and shares a single parser between them.
package depgraph
