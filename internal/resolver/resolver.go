// Package resolver maps raw import specifiers to absolute file paths the way
// common bundlers do: alias rewriting, relative and absolute paths, ordered
// extension probing, directory entry points and module-directory lookup.
//
// Resolution never fails loudly. A specifier that cannot be mapped to a file
// on disk (usually an external package) reports no result.
package resolver

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 4096

// Resolver resolves specifiers against a fixed Config. It is safe for
// concurrent use.
type Resolver struct {
	cfg     Config
	aliases []Alias // longest prefix first
	logger  *slog.Logger
	cache   *lru.Cache[string, string]
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates a Resolver for cfg.
func New(cfg Config, opts ...Option) *Resolver {
	r := &Resolver{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.aliases = append([]Alias(nil), cfg.Aliases...)
	sort.SliceStable(r.aliases, func(i, j int) bool {
		return len(strings.TrimSuffix(r.aliases[i].Prefix, "$")) > len(strings.TrimSuffix(r.aliases[j].Prefix, "$"))
	})

	cache, err := lru.New[string, string](defaultCacheSize)
	if err != nil {
		// Only reachable with a non-positive size.
		panic(err)
	}
	r.cache = cache
	return r
}

// Config returns the configuration the Resolver was built with.
func (r *Resolver) Config() Config {
	return r.cfg
}

// Resolve returns the absolute path that specifier refers to when imported
// from a file in contextDir.
func (r *Resolver) Resolve(contextDir, specifier string) (string, bool) {
	specifier = stripQuery(specifier)
	if specifier == "" {
		return "", false
	}

	key := contextDir + "\x00" + specifier
	if v, ok := r.cache.Get(key); ok {
		return v, v != ""
	}

	resolved := r.resolve(contextDir, specifier)
	r.cache.Add(key, resolved)
	if resolved == "" {
		r.logger.Debug("specifier not resolved", "from", contextDir, "specifier", specifier)
	}
	return resolved, resolved != ""
}

// Invalidate drops every memoized result. Call it when files are created or
// deleted, since either can change what a specifier resolves to.
func (r *Resolver) Invalidate() {
	r.cache.Purge()
}

func (r *Resolver) resolve(contextDir, specifier string) string {
	if target, ok := r.applyAlias(specifier); ok {
		return r.resolvePath(target)
	}

	switch {
	case isRelative(specifier):
		return r.resolvePath(filepath.Join(contextDir, specifier))
	case filepath.IsAbs(specifier):
		if p := r.resolvePath(filepath.Clean(specifier)); p != "" {
			return p
		}
		// Root-relative, as dev servers treat "/src/x".
		return r.resolvePath(filepath.Join(r.cfg.Root, specifier))
	default:
		return r.resolveModule(contextDir, specifier)
	}
}

// applyAlias rewrites specifier with the longest matching alias prefix.
func (r *Resolver) applyAlias(specifier string) (string, bool) {
	for _, a := range r.aliases {
		prefix, exact := strings.CutSuffix(a.Prefix, "$")
		if prefix == "" {
			continue
		}
		if specifier == prefix {
			return a.Dir, true
		}
		if exact {
			continue
		}
		trimmed := strings.TrimSuffix(prefix, "/")
		if rest, ok := strings.CutPrefix(specifier, trimmed+"/"); ok {
			return filepath.Join(a.Dir, rest), true
		}
	}
	return "", false
}

// resolveModule looks specifier up in each configured module directory,
// walking from contextDir to the filesystem root.
func (r *Resolver) resolveModule(contextDir, specifier string) string {
	for _, mod := range r.cfg.Modules {
		if filepath.IsAbs(mod) {
			if p := r.resolvePath(filepath.Join(mod, specifier)); p != "" {
				return p
			}
			continue
		}
		dir := contextDir
		for {
			if p := r.resolvePath(filepath.Join(dir, mod, specifier)); p != "" {
				return p
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	return ""
}

// resolvePath tries target as a file, then with each extension, then as a
// directory.
func (r *Resolver) resolvePath(target string) string {
	if p := r.resolveFile(target); p != "" {
		return p
	}
	return r.resolveDir(target)
}

func (r *Resolver) resolveFile(target string) string {
	if isFile(target) {
		return target
	}
	for _, ext := range r.cfg.Extensions {
		if p := target + ext; isFile(p) {
			return p
		}
	}
	return ""
}

func (r *Resolver) resolveDir(dir string) string {
	if !isDir(dir) {
		return ""
	}
	if entry := r.packageEntry(dir); entry != "" {
		candidate := filepath.Join(dir, entry)
		if p := r.resolveFile(candidate); p != "" {
			return p
		}
		if candidate != dir && isDir(candidate) {
			if p := r.resolveFile(filepath.Join(candidate, "index")); p != "" {
				return p
			}
		}
	}
	return r.resolveFile(filepath.Join(dir, "index"))
}

// packageEntry returns the first non-empty configured field of dir's
// package.json, or "" when there is none.
func (r *Resolver) packageEntry(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		r.logger.Debug("ignoring malformed package.json", "dir", dir, "error", err)
		return ""
	}
	for _, name := range r.cfg.MainFields {
		if v, ok := fields[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func isRelative(specifier string) bool {
	return specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../")
}

// stripQuery drops bundler query and fragment suffixes such as "?raw".
func stripQuery(specifier string) string {
	if i := strings.IndexAny(specifier, "?#"); i > 0 {
		return specifier[:i]
	}
	return specifier
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
