package depgraph

import (
	"context"
	"path/filepath"
	"strings"
)

// HandleEvent applies one file-system notification to the graph.
//
// Before the bulk scan completes every event is ignored, since the scan will
// observe the file's final state. Afterwards a created or changed file is
// re-processed and a deleted file is removed with RemoveNode: its own edges
// and its importer record go away, while files that import it keep it in
// their forward set until they are re-processed themselves.
//
// Created and changed files outside the entry patterns, or matching an
// exclude pattern, are ignored. Only cancellation or a closed engine is
// returned as an error.
func (e *Engine) HandleEvent(ctx context.Context, ev Event) error {
	if !e.IsInitialized() {
		return nil
	}
	ctx, end, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer end()

	path := e.abs(ev.Path)
	res := e.resolver(ctx)

	switch ev.Kind {
	case Deleted:
		// A deleted file can change how other specifiers resolve.
		res.Invalidate()
		e.graph.RemoveNode(path)
		e.logger.Debug("file removed", "path", path)
		return nil
	case Created, Changed:
		if !e.tracked(path) {
			return nil
		}
		if ev.Kind == Created {
			res.Invalidate()
		}
		if err := e.processFile(ctx, res, path, true); err != nil {
			return err
		}
		e.logger.Debug("file updated", "path", path, "kind", ev.Kind.String())
		return nil
	default:
		return nil
	}
}

// tracked reports whether the bulk scan would have visited file.
func (e *Engine) tracked(file string) bool {
	rel, err := filepath.Rel(e.root, file)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if skipDirs[parts[i-1]] || e.excluded(strings.Join(parts[:i], "/")) {
			return false
		}
	}
	return e.included(rel) && !e.excluded(rel)
}
