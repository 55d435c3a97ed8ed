package depgraph

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/jward/depgraph/internal/resolver"
)

// skipDirs are never descended into by the bulk scan.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
}

// Initialize runs the bulk scan: every file matching the entry patterns and
// none of the exclude patterns is parsed, resolved and added to the graph.
//
// Initialize is idempotent. Callers arriving while a scan is in flight wait
// for that scan instead of starting another. A failed or cancelled scan
// leaves the engine uninitialized so a later call starts over.
func (e *Engine) Initialize(ctx context.Context) error {
	for {
		if e.closed.Load() {
			return ErrEngineClosed
		}
		if e.IsInitialized() {
			return nil
		}

		ch := e.scans.DoChan("scan", func() (any, error) {
			return nil, e.scan(ctx)
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-ch:
			// A shared scan cancelled by the caller that started it does not
			// count against callers whose own context is still live.
			if res.Err != nil && res.Shared && isCanceled(res.Err) && ctx.Err() == nil && !e.closed.Load() {
				continue
			}
			return res.Err
		}
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) scan(ctx context.Context) (err error) {
	ctx, end, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer end()

	e.mu.Lock()
	if e.state == stateComplete {
		e.mu.Unlock()
		return nil
	}
	e.state = stateInProgress
	e.mu.Unlock()
	e.scanCount.Add(1)

	defer func() {
		e.mu.Lock()
		if err != nil {
			e.state = stateNotStarted
		} else {
			e.state = stateComplete
		}
		e.mu.Unlock()
	}()

	res := e.resolver(ctx)
	files, err := e.discover(ctx)
	if err != nil {
		return err
	}

	batches := (len(files) + e.batchSize - 1) / e.batchSize
	e.logger.Info("scan started", "root", e.root, "files", len(files), "batches", batches)

	done := 0
	for b := 0; b < batches; b++ {
		lo := b * e.batchSize
		hi := min(lo+e.batchSize, len(files))

		g, gctx := errgroup.WithContext(ctx)
		for _, path := range files[lo:hi] {
			g.Go(func() error {
				return e.processFile(gctx, res, path, false)
			})
		}
		if err := g.Wait(); err != nil {
			e.logger.Info("scan stopped", "root", e.root, "error", err)
			return err
		}

		done = hi
		if (b+1)%e.progressInterval == 0 || b+1 == batches {
			p := Progress{Batch: b + 1, Batches: batches, Files: done, Total: len(files)}
			e.logger.Info("scan progress", "root", e.root, "batch", p.Batch, "batches", p.Batches, "files", p.Files)
			if e.progress != nil {
				e.progress(p)
			}
		}
	}

	nodes, edges := e.graph.Counts()
	e.logger.Info("scan complete", "root", e.root, "files", nodes, "edges", edges)
	return nil
}

// discover lists the files under the root matching the entry patterns and no
// exclude pattern, in lexical order. Excluded directories are not descended
// into.
func (e *Engine) discover(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(e.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			e.logger.Debug("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == e.root {
			return nil
		}
		rel, relErr := filepath.Rel(e.root, path)
		if relErr != nil {
			return nil //nolint:nilerr // paths outside the root are ignored
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if skipDirs[d.Name()] || e.excluded(rel) {
				return fs.SkipDir
			}
			return nil
		}
		if e.included(rel) && !e.excluded(rel) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (e *Engine) included(rel string) bool {
	return matchAny(e.entry, rel)
}

func (e *Engine) excluded(rel string) bool {
	return matchAny(e.exclude, rel)
}

// matchAny reports whether rel matches any pattern. Patterns were validated
// in New, so match errors cannot occur.
func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// processFile runs the read, extract, resolve and patch pipeline for one
// file. Only cancellation is returned as an error: a read failure removes the
// file from the graph, and extraction or resolution problems yield fewer
// edges. The context is checked between stages.
func (e *Engine) processFile(ctx context.Context, res *resolver.Resolver, path string, cached bool) error {
	if e.pipelineHook != nil {
		e.pipelineHook(1)
		defer e.pipelineHook(-1)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		e.logger.Debug("read failed, removing file", "path", path, "error", err)
		e.graph.RemoveNode(path)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	specs := e.parser.ExtractFile(ctx, path, content, cached)

	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	targets := make([]string, 0, len(specs))
	for _, spec := range specs {
		if target, ok := res.Resolve(dir, spec); ok {
			targets = append(targets, target)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	e.graph.SetEdges(path, targets)
	return nil
}
