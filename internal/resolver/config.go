package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
)

// Alias rewrites specifiers beginning with Prefix to paths under Dir. A Prefix
// ending in "$" only matches the specifier exactly.
type Alias struct {
	Prefix string
	Dir    string
}

// Config is the resolution context for one workspace root.
type Config struct {
	Root       string
	Aliases    []Alias
	Extensions []string // tried in order after the exact path
	Modules    []string // directory names searched upward, or absolute directories
	MainFields []string // package.json fields consulted for directory entry points
}

// DefaultExtensions is the extension search order used when none is configured.
func DefaultExtensions() []string {
	return []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".mts", ".cts", ".vue", ".svelte", ".json"}
}

// DefaultAliases maps "@" to the conventional source directory under root.
func DefaultAliases(root string) []Alias {
	return []Alias{{Prefix: "@", Dir: filepath.Join(root, "src")}}
}

// DefaultConfig returns the configuration used when no build configuration is
// supplied or the supplied one fails.
func DefaultConfig(root string) Config {
	return Config{
		Root:       root,
		Aliases:    DefaultAliases(root),
		Extensions: DefaultExtensions(),
		Modules:    []string{"node_modules"},
		MainFields: []string{"module", "main"},
	}
}

// AliasMap builds alias entries from a prefix -> directory map. Relative
// directories are taken relative to root. Entries are sorted by prefix so the
// result is deterministic.
func AliasMap(root string, m map[string]string) []Alias {
	out := make([]Alias, 0, len(m))
	for prefix, dir := range m {
		if prefix == "" || dir == "" {
			continue
		}
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		out = append(out, Alias{Prefix: prefix, Dir: filepath.Clean(dir)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}

// ConfigFunc receives a draft configuration and returns the configuration to
// resolve with. It is called once per resolver initialization.
type ConfigFunc func(ctx context.Context, draft Config) (Config, error)

// Build runs fn over the default configuration for root. A nil fn, an error,
// or a panic yields the default configuration. A result without aliases gets
// the default alias table, and empty extension or module lists fall back to
// the defaults.
func Build(ctx context.Context, root string, fn ConfigFunc, logger *slog.Logger) Config {
	draft := DefaultConfig(root)
	if fn == nil {
		return draft
	}

	cfg, err := callConfigFunc(ctx, fn, DefaultConfig(root))
	if err != nil {
		logger.Warn("build configuration failed, using default aliases", "root", root, "error", err)
		return draft
	}

	cfg.Root = root
	if len(cfg.Aliases) == 0 {
		cfg.Aliases = DefaultAliases(root)
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions()
	}
	if len(cfg.Modules) == 0 {
		cfg.Modules = draft.Modules
	}
	if len(cfg.MainFields) == 0 {
		cfg.MainFields = draft.MainFields
	}
	for i, ext := range cfg.Extensions {
		if ext != "" && !strings.HasPrefix(ext, ".") {
			cfg.Extensions[i] = "." + ext
		}
	}
	return cfg
}

func callConfigFunc(ctx context.Context, fn ConfigFunc, draft Config) (cfg Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolver: config func panicked: %v", r)
		}
	}()
	return fn(ctx, draft)
}
