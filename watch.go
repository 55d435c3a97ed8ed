package depgraph

import (
	"context"

	"github.com/jward/depgraph/internal/parser"
	"github.com/jward/depgraph/internal/watch"
)

// Watch subscribes to file-system changes under the root and applies them
// with HandleEvent until ctx ends or the engine closes. When the engine is
// not yet initialized, Watch runs Initialize after subscribing; edits made
// during the scan queue on the watcher and are applied once it finishes.
// onEvent, when non-nil, is called after each event has been applied.
func (e *Engine) Watch(ctx context.Context, onEvent func(Event)) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(e.baseCtx, cancel)
	defer stop()

	w, err := watch.New(
		watch.WithExtensions(parser.SourceExtensions()),
		watch.WithLogger(e.logger),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Start(ctx, e.root); err != nil {
		return err
	}
	if !e.IsInitialized() {
		if err := e.Initialize(ctx); err != nil {
			return err
		}
	}
	e.logger.Info("watching", "root", e.root)

	for ev := range w.Events() {
		if err := e.HandleEvent(ctx, ev); err != nil {
			if e.closed.Load() || ctx.Err() != nil {
				break
			}
			e.logger.Warn("event failed", "path", ev.Path, "kind", ev.Kind.String(), "error", err)
			continue
		}
		if onEvent != nil {
			onEvent(ev)
		}
	}
	return nil
}
