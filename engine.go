package depgraph

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"

	"github.com/jward/depgraph/internal/graph"
	"github.com/jward/depgraph/internal/parser"
	"github.com/jward/depgraph/internal/resolver"
	"github.com/jward/depgraph/internal/script"
)

const (
	defaultBatchSize        = 10
	defaultProgressInterval = 10
)

type scanState int

const (
	stateNotStarted scanState = iota
	stateInProgress
	stateComplete
)

// Engine maintains the dependency graph of one workspace root: the bulk scan,
// incremental updates and queries.
type Engine struct {
	root             string
	entry            []string
	exclude          []string
	batchSize        int
	progressInterval int
	progress         func(Progress)
	logger           *slog.Logger

	parser     *parser.Service
	ownsParser bool

	resolverCfg  *resolver.Config
	configFunc   resolver.ConfigFunc
	configScript string

	graph *graph.Graph

	resMu    sync.RWMutex
	res      *resolver.Resolver
	resGroup singleflight.Group

	mu        sync.Mutex
	state     scanState
	scans     singleflight.Group
	scanCount atomic.Int64

	// ops is read-held by every public operation that touches the graph and
	// write-held by Close, so Close waits for in-flight work.
	ops     sync.RWMutex
	closed  atomic.Bool
	baseCtx context.Context
	cancel  context.CancelFunc

	// pipelineHook observes pipelines starting (+1) and finishing (-1).
	pipelineHook func(delta int)
}

// Option configures an Engine.
type Option func(*Engine)

// WithEntryPatterns sets the glob patterns, relative to the root, of files
// the bulk scan visits. The default matches every supported source extension.
func WithEntryPatterns(patterns ...string) Option {
	return func(e *Engine) {
		e.entry = append([]string(nil), patterns...)
	}
}

// WithExcludePatterns sets glob patterns, relative to the root, of files and
// directories the bulk scan skips.
func WithExcludePatterns(patterns ...string) Option {
	return func(e *Engine) {
		e.exclude = append([]string(nil), patterns...)
	}
}

// WithBatchSize sets how many files the bulk scan processes concurrently.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithProgressInterval sets how many batches pass between progress reports.
func WithProgressInterval(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.progressInterval = n
		}
	}
}

// WithProgress registers a callback for bulk-scan progress.
func WithProgress(fn func(Progress)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithResolverConfig fixes the resolution configuration. Collaborators set
// with WithConfigFunc or WithConfigScript are not consulted.
func WithResolverConfig(cfg ResolverConfig) Option {
	return func(e *Engine) {
		e.resolverCfg = &cfg
	}
}

// WithConfigFunc sets a Go build-config collaborator. It receives the default
// configuration as a draft and returns the configuration to use.
func WithConfigFunc(fn ConfigFunc) Option {
	return func(e *Engine) {
		e.configFunc = fn
	}
}

// WithConfigScript sets a Risor build-config script. When a ConfigFunc is
// also set, the script sees its result as the draft.
func WithConfigScript(path string) Option {
	return func(e *Engine) {
		e.configScript = path
	}
}

// WithParser shares a parser between engines. The engine does not close it.
func WithParser(p *parser.Service) Option {
	return func(e *Engine) {
		e.parser = p
	}
}

// New creates an Engine for the directory root. Patterns are validated here;
// nothing is scanned until Initialize.
func New(root string, opts ...Option) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrInvalidRoot.Error()), "root", root)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrInvalidRoot.Error()), "root", abs)
	}
	if !info.IsDir() {
		return nil, zerr.With(ErrInvalidRoot, "root", abs)
	}

	e := &Engine{
		root:             abs,
		entry:            DefaultEntryPatterns(),
		batchSize:        defaultBatchSize,
		progressInterval: defaultProgressInterval,
		logger:           slog.New(slog.DiscardHandler),
		graph:            graph.New(),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, p := range append(append([]string(nil), e.entry...), e.exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, zerr.With(ErrInvalidPattern, "pattern", p)
		}
	}

	if e.parser == nil {
		e.parser = parser.NewService(parser.WithLogger(e.logger))
		e.ownsParser = true
	}
	e.baseCtx, e.cancel = context.WithCancel(context.Background())
	return e, nil
}

// DefaultEntryPatterns matches every supported source file under the root.
func DefaultEntryPatterns() []string {
	exts := parser.SourceExtensions()
	names := make([]string, len(exts))
	for i, ext := range exts {
		names[i] = strings.TrimPrefix(ext, ".")
	}
	return []string{"**/*.{" + strings.Join(names, ",") + "}"}
}

// Root returns the absolute workspace root.
func (e *Engine) Root() string {
	return e.root
}

// Close cancels in-flight work, waits for it to finish and releases the
// parser when the engine owns it. Close is idempotent.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.cancel()
	e.ops.Lock()
	defer e.ops.Unlock()
	if e.ownsParser {
		e.parser.Close()
	}
	return nil
}

// begin registers a public operation. The returned context is cancelled when
// ctx ends or the engine closes; end must be called when the operation
// finishes.
func (e *Engine) begin(ctx context.Context) (context.Context, func(), error) {
	e.ops.RLock()
	if e.closed.Load() {
		e.ops.RUnlock()
		return nil, nil, ErrEngineClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.baseCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
		e.ops.RUnlock()
	}, nil
}

// resolver returns the workspace resolver, building it on first use.
// Concurrent first callers share one build. The build-config collaborators
// run detached from ctx's cancellation and stop only when the engine closes,
// so a cancelled caller cannot leave the default configuration cached.
func (e *Engine) resolver(ctx context.Context) *resolver.Resolver {
	e.resMu.RLock()
	r := e.res
	e.resMu.RUnlock()
	if r != nil {
		return r
	}

	v, _, _ := e.resGroup.Do("resolver", func() (any, error) {
		e.resMu.RLock()
		existing := e.res
		e.resMu.RUnlock()
		if existing != nil {
			return existing, nil
		}
		bctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(e.baseCtx, cancel)
		defer stop()

		r := resolver.New(e.buildConfig(bctx), resolver.WithLogger(e.logger))
		if bctx.Err() != nil {
			// Closed mid-build; the configuration may be the fallback.
			return r, nil
		}
		e.resMu.Lock()
		e.res = r
		e.resMu.Unlock()
		return r, nil
	})
	return v.(*resolver.Resolver)
}

// ReloadConfig calls the build-config collaborators again and swaps in a new
// resolver. Existing edges are kept; they change as files are re-processed.
// When ctx ends during the call the current resolver is kept and the context
// error is returned.
func (e *Engine) ReloadConfig(ctx context.Context) error {
	ctx, end, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer end()

	r := resolver.New(e.buildConfig(ctx), resolver.WithLogger(e.logger))
	if err := ctx.Err(); err != nil {
		return err
	}
	e.resMu.Lock()
	e.res = r
	e.resMu.Unlock()
	return nil
}

// ResolverConfig returns the resolution configuration in use, building it if
// needed.
func (e *Engine) ResolverConfig(ctx context.Context) ResolverConfig {
	return e.resolver(ctx).Config()
}

func (e *Engine) buildConfig(ctx context.Context) resolver.Config {
	if e.resolverCfg != nil {
		fixed := *e.resolverCfg
		return resolver.Build(ctx, e.root, func(context.Context, resolver.Config) (resolver.Config, error) {
			return fixed, nil
		}, e.logger)
	}

	fn := e.configFunc
	if e.configScript != "" {
		runner := script.NewRunner(filepath.Dir(e.configScript), script.WithLogger(e.logger))
		fn = chainConfig(fn, runner.ConfigFunc(e.configScript))
	}
	return resolver.Build(ctx, e.root, fn, e.logger)
}

func chainConfig(first, second resolver.ConfigFunc) resolver.ConfigFunc {
	if first == nil {
		return second
	}
	return func(ctx context.Context, draft resolver.Config) (resolver.Config, error) {
		cfg, err := first(ctx, draft)
		if err != nil {
			return cfg, err
		}
		return second(ctx, cfg)
	}
}

func (e *Engine) abs(path string) string {
	return absPath(e.root, path)
}

// absPath maps a root-relative path to an absolute one.
func absPath(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

// IsInitialized reports whether the bulk scan has completed.
func (e *Engine) IsInitialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == stateComplete
}

// DependenciesOf returns the files path imports, sorted. Relative paths are
// taken relative to the root.
func (e *Engine) DependenciesOf(path string) []string {
	return e.graph.DependenciesOf(e.abs(path))
}

// DependentsOf returns the files that import path, sorted.
func (e *Engine) DependentsOf(path string) []string {
	return e.graph.DependentsOf(e.abs(path))
}

// ForwardMap returns a copy of the complete file -> imports map.
func (e *Engine) ForwardMap() map[string][]string {
	return e.graph.Forward()
}

// BackwardMap returns a copy of the complete file -> importers map.
func (e *Engine) BackwardMap() map[string][]string {
	return e.graph.Backward()
}

// Stats returns graph sizes and parser counters.
func (e *Engine) Stats() Stats {
	files, edges := e.graph.Counts()
	return Stats{
		Files:       files,
		Edges:       edges,
		Initialized: e.IsInitialized(),
		Parser:      e.parser.Stats(),
	}
}

// Query returns a QueryBuilder over the current graph.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{graph: e.graph, root: e.root}
}
