// Package script evaluates Risor build-configuration scripts. A script sees
// the draft resolution configuration as the global "config" and returns a map
// of overrides as its final expression:
//
//	overrides := {
//		"alias": {"@": config["root"] + "/src", "~": "lib"},
//		"extensions": [".ts", ".vue", ".js"],
//	}
//	overrides
//
// Recognized keys are alias, extensions, modules and main_fields.
package script

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"go.trai.ch/zerr"

	"github.com/jward/depgraph/internal/resolver"
)

// ErrScriptFailed is returned when a configuration script cannot be loaded,
// fails to run, or returns something other than an overrides map.
var ErrScriptFailed = zerr.New("configuration script failed")

// Runner loads and evaluates configuration scripts.
type Runner struct {
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithFS loads scripts and their imports from fsys instead of disk.
func WithFS(fsys fs.FS) Option {
	return func(r *Runner) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger backing the script's log global.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a Runner that resolves relative script paths and Risor
// imports against scriptsDir.
func NewRunner(scriptsDir string, opts ...Option) *Runner {
	r := &Runner{
		scriptsDir: scriptsDir,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConfigFunc adapts the script at path into a resolver.ConfigFunc. The script
// is read on every call.
func (r *Runner) ConfigFunc(path string) resolver.ConfigFunc {
	return func(ctx context.Context, draft resolver.Config) (resolver.Config, error) {
		src, err := r.LoadScript(path)
		if err != nil {
			return draft, err
		}
		return r.Apply(ctx, src, path, draft)
	}
}

// Apply runs source against draft and returns draft with the script's
// overrides applied.
func (r *Runner) Apply(ctx context.Context, source, label string, draft resolver.Config) (resolver.Config, error) {
	globals := map[string]any{
		"config": draftGlobal(draft),
		"log":    mustProxy(&logObject{logger: r.logger.With("script", label)}),
	}

	opts := make([]risor.Option, 0, len(globals)+1)
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return draft, zerr.With(zerr.Wrap(err, ErrScriptFailed.Error()), "script", label)
	}

	overrides, err := toOverrides(result)
	if err != nil {
		return draft, zerr.With(zerr.Wrap(err, ErrScriptFailed.Error()), "script", label)
	}
	return overrides.apply(draft), nil
}

// LoadScript reads a script. Relative paths are taken relative to the
// scripts directory, or to the root of the configured fs.FS.
func (r *Runner) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", zerr.With(zerr.Wrap(err, ErrScriptFailed.Error()), "script", fsPath)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, ErrScriptFailed.Error()), "script", fullPath)
	}
	return string(data), nil
}

func (r *Runner) buildImporter(globals map[string]any) importer.Importer {
	names := make([]string, 0, len(globals))
	for name := range globals {
		names = append(names, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: names,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: names,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// draftGlobal renders draft as plain maps and lists so scripts can index it.
func draftGlobal(draft resolver.Config) map[string]any {
	aliases := make(map[string]any, len(draft.Aliases))
	for _, a := range draft.Aliases {
		aliases[a.Prefix] = a.Dir
	}
	return map[string]any{
		"root":        draft.Root,
		"alias":       aliases,
		"extensions":  toList(draft.Extensions),
		"modules":     toList(draft.Modules),
		"main_fields": toList(draft.MainFields),
	}
}

func toList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

type overrides struct {
	aliases    map[string]string
	extensions []string
	modules    []string
	mainFields []string
}

func (o overrides) apply(draft resolver.Config) resolver.Config {
	if o.aliases != nil {
		draft.Aliases = resolver.AliasMap(draft.Root, o.aliases)
	}
	if o.extensions != nil {
		draft.Extensions = o.extensions
	}
	if o.modules != nil {
		draft.Modules = o.modules
	}
	if o.mainFields != nil {
		draft.MainFields = o.mainFields
	}
	return draft
}

func toOverrides(result object.Object) (overrides, error) {
	var o overrides
	if result == nil || result.Type() == "nil" {
		return o, nil
	}
	m, ok := result.Interface().(map[string]any)
	if !ok {
		return o, fmt.Errorf("script: result must be a map, got %s", result.Type())
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := m[key]
		var err error
		switch key {
		case "alias":
			o.aliases, err = stringMap(val)
		case "extensions":
			o.extensions, err = stringList(val)
		case "modules":
			o.modules, err = stringList(val)
		case "main_fields":
			o.mainFields, err = stringList(val)
		default:
			err = errors.New("unknown key")
		}
		if err != nil {
			return o, fmt.Errorf("script: %s: %w", key, err)
		}
	}
	return o, nil
}

func stringMap(v any) (map[string]string, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected map, got %T", v)
	}
	out := make(map[string]string, len(m))
	for k, raw := range m {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("value for %q: expected string, got %T", k, raw)
		}
		out[k] = s
	}
	return out, nil
}

func stringList(v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list, got %T", v)
	}
	out := make([]string, 0, len(list))
	for i, raw := range list {
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("item %d: expected string, got %T", i, raw)
		}
		out = append(out, s)
	}
	return out, nil
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("script: proxy error: %v", err))
	}
	return p
}

// logObject exposes log.Info and log.Warn to scripts.
type logObject struct {
	logger *slog.Logger
}

func (l *logObject) Info(msg string) {
	l.logger.Info(msg)
}

func (l *logObject) Warn(msg string) {
	l.logger.Warn(msg)
}
