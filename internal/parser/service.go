// Package parser extracts module specifiers from JavaScript, TypeScript and
// single-file-component sources using tree-sitter.
//
// Grammars are loaded lazily per language id. Each language owns a one-slot
// parse-tree cache keyed by a hash of the exact source text, which makes
// repeated parses of the same document cheap. Bulk callers that touch many
// distinct files should use ExtractImportSpecifiersUncached so they do not
// churn the shared slots.
package parser

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	sitter "github.com/smacker/go-tree-sitter"
)

// Stats are counters observed since the Service was created.
type Stats struct {
	Parses       int64 // tree-sitter parses actually performed
	CacheHits    int64
	CacheMisses  int64
	GrammarLoads int64
}

// Service parses sources and extracts import specifiers. It is safe for
// concurrent use.
type Service struct {
	logger   *slog.Logger
	loaders  map[string]LoaderFunc
	grammars *grammarSet

	slotsMu sync.Mutex
	slots   map[string]*cacheSlot

	parses atomic.Int64
	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for grammar and parse diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithLoader registers or replaces the grammar loader for a language id.
func WithLoader(lang string, fn LoaderFunc) Option {
	return func(s *Service) {
		s.loaders[lang] = fn
	}
}

// NewService creates a Service with the compiled-in JavaScript, TypeScript
// and TSX grammars.
func NewService(opts ...Option) *Service {
	s := &Service{
		logger:  slog.New(slog.DiscardHandler),
		loaders: defaultLoaders(),
		slots:   make(map[string]*cacheSlot),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.grammars = newGrammarSet(s.loaders, s.logger)
	return s
}

// cacheSlot retains the most recent tree parsed for one language. The mutex
// serializes parse, replacement and query for the slot, so a tree is never
// closed while another goroutine is reading it.
type cacheSlot struct {
	mu   sync.Mutex
	hash uint64
	size int
	tree *sitter.Tree
}

func (s *Service) slot(lang string) *cacheSlot {
	s.slotsMu.Lock()
	defer s.slotsMu.Unlock()
	sl, ok := s.slots[lang]
	if !ok {
		sl = &cacheSlot{}
		s.slots[lang] = sl
	}
	return sl
}

// ExtractImportSpecifiers returns the raw specifiers of every static import,
// re-export with a source, require() call and dynamic import() call in
// content, in source order without duplicates. Quotes are stripped.
//
// Any failure (unknown language, unavailable grammar, parse or query error,
// cancelled context) yields an empty result.
func (s *Service) ExtractImportSpecifiers(ctx context.Context, content []byte, lang string) []string {
	return s.extract(ctx, content, lang, true)
}

// ExtractImportSpecifiersUncached is ExtractImportSpecifiers with a
// disposable per-call parse that never touches the shared cache.
func (s *Service) ExtractImportSpecifiersUncached(ctx context.Context, content []byte, lang string) []string {
	return s.extract(ctx, content, lang, false)
}

// ExtractFile is a convenience wrapper that derives the language from path.
func (s *Service) ExtractFile(ctx context.Context, path string, content []byte, cached bool) []string {
	lang, ok := LanguageForFile(path)
	if !ok {
		return nil
	}
	return s.extract(ctx, content, lang, cached)
}

func (s *Service) extract(ctx context.Context, content []byte, lang string, cached bool) []string {
	if componentLanguages[lang] {
		region, scriptLang, srcs := scriptRegion(content)
		if len(region) == 0 {
			return srcs
		}
		return dedupe(append(srcs, s.extract(ctx, region, scriptLang, cached)...))
	}

	if ctx.Err() != nil {
		return nil
	}
	g, err := s.grammars.get(lang)
	if err != nil {
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	if !cached {
		tree := s.parse(ctx, g, content)
		if tree == nil {
			return nil
		}
		defer tree.Close()
		return s.query(ctx, g, tree, content, lang)
	}

	sl := s.slot(lang)
	sl.mu.Lock()
	defer sl.mu.Unlock()

	h := xxhash.Sum64(content)
	if sl.tree != nil && sl.hash == h && sl.size == len(content) {
		s.hits.Add(1)
		return s.query(ctx, g, sl.tree, content, lang)
	}
	s.misses.Add(1)

	if sl.tree != nil {
		sl.tree.Close()
		sl.tree = nil
	}
	tree := s.parse(ctx, g, content)
	if tree == nil {
		return nil
	}
	sl.tree, sl.hash, sl.size = tree, h, len(content)
	return s.query(ctx, g, tree, content, lang)
}

func (s *Service) parse(ctx context.Context, g *grammar, content []byte) *sitter.Tree {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(g.lang)

	s.parses.Add(1)
	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil || tree == nil {
		s.logger.Debug("parse produced no tree", "error", err)
		return nil
	}
	return tree
}

type capture struct {
	start uint32
	text  string
}

// query runs every import pattern over tree. A panic inside the bindings on
// an unusual tree shape is reported as an empty result.
func (s *Service) query(ctx context.Context, g *grammar, tree *sitter.Tree, content []byte, lang string) (out []string) {
	if ctx.Err() != nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Debug("import query failed", "language", lang, "error", fmt.Sprint(r))
			out = nil
		}
	}()

	root := tree.RootNode()
	var found []capture
	for _, q := range g.queries {
		cursor := sitter.NewQueryCursor()
		cursor.Exec(q, root)
		for {
			match, ok := cursor.NextMatch()
			if !ok {
				break
			}
			match = cursor.FilterPredicates(match, content)
			for _, c := range match.Captures {
				if q.CaptureNameForId(c.Index) != "source" {
					continue
				}
				if text, ok := unquote(c.Node.Content(content)); ok && text != "" {
					found = append(found, capture{start: c.Node.StartByte(), text: text})
				}
			}
		}
		cursor.Close()
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].start < found[j].start })
	specs := make([]string, 0, len(found))
	for _, c := range found {
		specs = append(specs, c.text)
	}
	return dedupe(specs)
}

// Stats returns a snapshot of the Service counters.
func (s *Service) Stats() Stats {
	return Stats{
		Parses:       s.parses.Load(),
		CacheHits:    s.hits.Load(),
		CacheMisses:  s.misses.Load(),
		GrammarLoads: s.grammars.loadCount(),
	}
}

// Close releases cached trees and compiled queries. The Service must not be
// used afterwards.
func (s *Service) Close() {
	s.slotsMu.Lock()
	for lang, sl := range s.slots {
		sl.mu.Lock()
		if sl.tree != nil {
			sl.tree.Close()
			sl.tree = nil
		}
		sl.mu.Unlock()
		delete(s.slots, lang)
	}
	s.slotsMu.Unlock()
	s.grammars.close()
}

func unquote(lit string) (string, bool) {
	if len(lit) < 2 {
		return "", false
	}
	first, last := lit[0], lit[len(lit)-1]
	if first != last || (first != '"' && first != '\'' && first != '`') {
		return "", false
	}
	return lit[1 : len(lit)-1], true
}

func dedupe(specs []string) []string {
	if len(specs) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(specs))
	out := specs[:0]
	for _, s := range specs {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
