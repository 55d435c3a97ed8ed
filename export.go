package depgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/jward/depgraph/internal/parser"
	"github.com/jward/depgraph/internal/store"
)

// Export writes a snapshot of the current graph to the SQLite database at
// dbPath, replacing any snapshot already there. The engine never reads the
// database back.
func (e *Engine) Export(ctx context.Context, dbPath string) error {
	ctx, end, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer end()

	s, err := store.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return fmt.Errorf("depgraph: export: %w", err)
	}

	forward, backward := e.graph.Maps()
	langs := make(map[string]string, len(forward))
	for _, m := range []map[string][]string{forward, backward} {
		for path := range m {
			if lang, ok := parser.LanguageForFile(path); ok {
				langs[path] = lang
			}
		}
	}

	err = s.WriteSnapshot(ctx, store.Snapshot{
		Root:      e.root,
		Forward:   forward,
		Backward:  backward,
		Languages: langs,
		Taken:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("depgraph: export: %w", err)
	}
	e.logger.Info("graph exported", "root", e.root, "path", dbPath)
	return nil
}
