package parser

import (
	"fmt"
	"log/slog"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// ErrUnsupportedLanguage is returned for language ids without a loader.
var ErrUnsupportedLanguage = zerr.New("unsupported language")

// ErrGrammarLoadFailed marks a language whose grammar could not be loaded.
// The failure is sticky for the lifetime of the Service.
var ErrGrammarLoadFailed = zerr.New("grammar load failed")

// importPatterns are compiled one by one so a pattern whose node types do not
// exist in a grammar (import_require_clause is TypeScript-only) is skipped
// instead of disabling the whole language.
var importPatterns = []string{
	`(import_statement source: (string) @source)`,
	`(export_statement source: (string) @source)`,
	`(call_expression
		function: (identifier) @fn
		arguments: (arguments . (string) @source)
		(#eq? @fn "require"))`,
	`(call_expression
		function: (import)
		arguments: (arguments . (string) @source))`,
	`(import_require_clause source: (string) @source)`,
}

// grammar is a loaded language with its compiled import queries. Both are
// immutable after load and safe to share between goroutines.
type grammar struct {
	lang    *sitter.Language
	queries []*sitter.Query
}

func (g *grammar) close() {
	for _, q := range g.queries {
		q.Close()
	}
}

// grammarSet lazily loads grammars. Concurrent requests for the same language
// that is not loaded yet share a single load.
type grammarSet struct {
	loaders map[string]LoaderFunc
	logger  *slog.Logger

	mu     sync.RWMutex
	loaded map[string]*grammar
	failed map[string]error
	loads  int64

	flight singleflight.Group
}

func newGrammarSet(loaders map[string]LoaderFunc, logger *slog.Logger) *grammarSet {
	return &grammarSet{
		loaders: loaders,
		logger:  logger,
		loaded:  make(map[string]*grammar),
		failed:  make(map[string]error),
	}
}

// get returns the grammar for lang, loading it on first use.
func (gs *grammarSet) get(lang string) (*grammar, error) {
	gs.mu.RLock()
	g, ok := gs.loaded[lang]
	failErr := gs.failed[lang]
	gs.mu.RUnlock()
	if ok {
		return g, nil
	}
	if failErr != nil {
		return nil, failErr
	}

	v, err, _ := gs.flight.Do(lang, func() (any, error) {
		gs.mu.RLock()
		g, ok := gs.loaded[lang]
		gs.mu.RUnlock()
		if ok {
			return g, nil
		}
		g, err := gs.load(lang)

		gs.mu.Lock()
		defer gs.mu.Unlock()
		if err != nil {
			gs.failed[lang] = err
			return nil, err
		}
		gs.loaded[lang] = g
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*grammar), nil
}

func (gs *grammarSet) load(lang string) (g *grammar, err error) {
	loader, ok := gs.loaders[lang]
	if !ok {
		return nil, zerr.With(ErrUnsupportedLanguage, "language", lang)
	}

	gs.mu.Lock()
	gs.loads++
	gs.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			g = nil
			err = zerr.With(zerr.Wrap(fmt.Errorf("panic: %v", r), ErrGrammarLoadFailed.Error()), "language", lang)
		}
		if err != nil {
			gs.logger.Warn("grammar unavailable, imports for this language are skipped",
				"language", lang, "error", err)
		}
	}()

	sl, err := loader()
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrGrammarLoadFailed.Error()), "language", lang)
	}
	if sl == nil {
		return nil, zerr.With(ErrGrammarLoadFailed, "language", lang)
	}

	g = &grammar{lang: sl}
	for _, pattern := range importPatterns {
		q, qerr := sitter.NewQuery([]byte(pattern), sl)
		if qerr != nil {
			gs.logger.Debug("import pattern not supported by grammar",
				"language", lang, "error", qerr)
			continue
		}
		g.queries = append(g.queries, q)
	}
	return g, nil
}

func (gs *grammarSet) loadCount() int64 {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.loads
}

func (gs *grammarSet) close() {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	for lang, g := range gs.loaded {
		g.close()
		delete(gs.loaded, lang)
	}
}
