package depgraph

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/jward/depgraph/internal/parser"
)

// Registry owns one Engine per workspace root. Engines are created lazily and
// share the registry's parser.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Engine
	closed  bool

	parser     *parser.Service
	logger     *slog.Logger
	optionsFor func(root string) ([]Option, error)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithEngineOptions sets the function that returns the options for a new
// Engine. It is called every time an engine is created for root.
func WithEngineOptions(fn func(root string) ([]Option, error)) RegistryOption {
	return func(r *Registry) {
		r.optionsFor = fn
	}
}

// WithRegistryLogger sets the logger used by the registry and its engines.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		engines: make(map[string]*Engine),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.parser = parser.NewService(parser.WithLogger(r.logger))
	return r
}

// Get returns the Engine for root, creating it on first use. The engine is
// not initialized.
func (r *Registry) Get(root string) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrEngineClosed
	}
	if e, ok := r.engines[abs]; ok {
		return e, nil
	}
	e, err := r.newEngine(abs)
	if err != nil {
		return nil, err
	}
	r.engines[abs] = e
	return e, nil
}

// Initialized returns the Engine for root after its bulk scan has completed.
func (r *Registry) Initialized(ctx context.Context, root string) (*Engine, error) {
	e, err := r.Get(root)
	if err != nil {
		return nil, err
	}
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// ForceReinitialize discards the Engine for root and builds and initializes a
// new one. Work still running on the old engine is cancelled; its results are
// never visible through the registry.
func (r *Registry) ForceReinitialize(ctx context.Context, root string) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrEngineClosed
	}
	old := r.engines[abs]
	e, err := r.newEngine(abs)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.engines[abs] = e
	r.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	r.logger.Info("engine reinitializing", "root", abs)
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Remove closes and forgets the Engine for root, if any.
func (r *Registry) Remove(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	r.mu.Lock()
	e, ok := r.engines[abs]
	delete(r.engines, abs)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return e.Close()
}

// Roots returns the roots with a live Engine, sorted.
func (r *Registry) Roots() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	roots := make([]string, 0, len(r.engines))
	for root := range r.engines {
		roots = append(roots, root)
	}
	sort.Strings(roots)
	return roots
}

// Close closes every Engine and the shared parser. Later calls to Get fail
// with ErrEngineClosed.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	engines := r.engines
	r.engines = make(map[string]*Engine)
	r.mu.Unlock()

	var errs []error
	for _, e := range engines {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.parser.Close()
	return errors.Join(errs...)
}

func (r *Registry) newEngine(root string) (*Engine, error) {
	opts := []Option{WithLogger(r.logger)}
	if r.optionsFor != nil {
		extra, err := r.optionsFor(root)
		if err != nil {
			return nil, err
		}
		opts = append(opts, extra...)
	}
	opts = append(opts, WithParser(r.parser))
	return New(root, opts...)
}
