// Package config loads the optional .depgraph.yaml workspace file.
package config

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"

	"github.com/jward/depgraph/internal/resolver"
)

// FileName is the workspace configuration file looked up in the root.
const FileName = ".depgraph.yaml"

var (
	// ErrConfigReadFailed is returned when the configuration file exists but cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read configuration")

	// ErrConfigParseFailed is returned when the configuration file is not valid YAML
	// or contains unknown keys.
	ErrConfigParseFailed = zerr.New("failed to parse configuration")

	// ErrInvalidConfig is returned when a value is out of range.
	ErrInvalidConfig = zerr.New("invalid configuration")
)

// File mirrors the keys of .depgraph.yaml. Every key is optional.
type File struct {
	Entry            []string          `yaml:"entry"`
	Exclude          []string          `yaml:"exclude"`
	Alias            map[string]string `yaml:"alias"`
	Extensions       []string          `yaml:"extensions"`
	Modules          []string          `yaml:"modules"`
	MainFields       []string          `yaml:"main_fields"`
	BatchSize        int               `yaml:"batch_size"`
	ProgressInterval int               `yaml:"progress_interval"`
	ConfigScript     string            `yaml:"config_script"`
}

// Workspace is a loaded configuration bound to its root directory.
type Workspace struct {
	Root string
	Path string // empty when no file was found
	File File
}

// Load reads <root>/.depgraph.yaml. A missing file is not an error and yields
// an empty configuration.
func Load(root string) (*Workspace, error) {
	return LoadFile(root, filepath.Join(root, FileName))
}

// LoadFile reads the configuration at path for the workspace at root.
func LoadFile(root, path string) (*Workspace, error) {
	ws := &Workspace{Root: root}

	// #nosec G304 -- path is chosen by the operator
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ws, nil
	}
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, ErrConfigReadFailed.Error()), "path", path)
	}
	ws.Path = path

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ws.File); err != nil && !errors.Is(err, io.EOF) {
		return nil, zerr.With(zerr.Wrap(err, ErrConfigParseFailed.Error()), "path", path)
	}

	if ws.File.BatchSize < 0 {
		return nil, zerr.With(zerr.With(ErrInvalidConfig, "key", "batch_size"), "path", path)
	}
	if ws.File.ProgressInterval < 0 {
		return nil, zerr.With(zerr.With(ErrInvalidConfig, "key", "progress_interval"), "path", path)
	}
	return ws, nil
}

// Find walks up from dir looking for a configuration file and returns the
// directory that holds it.
func Find(dir string) (string, bool) {
	current := dir
	for {
		if _, err := os.Stat(filepath.Join(current, FileName)); err == nil {
			return current, true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

// ScriptPath returns the absolute path of config_script, or "" when unset.
// Relative paths are taken relative to the workspace root.
func (w *Workspace) ScriptPath() string {
	if w.File.ConfigScript == "" {
		return ""
	}
	if filepath.IsAbs(w.File.ConfigScript) {
		return w.File.ConfigScript
	}
	return filepath.Join(w.Root, w.File.ConfigScript)
}

// HasResolverOverrides reports whether the file sets any resolution key.
func (w *Workspace) HasResolverOverrides() bool {
	f := w.File
	return len(f.Alias) > 0 || len(f.Extensions) > 0 || len(f.Modules) > 0 || len(f.MainFields) > 0
}

// ConfigFunc applies the file's resolution keys on top of the draft. When
// next is non-nil it runs afterwards, so a script sees the file's values.
func (w *Workspace) ConfigFunc(next resolver.ConfigFunc) resolver.ConfigFunc {
	return func(ctx context.Context, draft resolver.Config) (resolver.Config, error) {
		f := w.File
		if len(f.Alias) > 0 {
			draft.Aliases = resolver.AliasMap(draft.Root, f.Alias)
		}
		if len(f.Extensions) > 0 {
			draft.Extensions = append([]string(nil), f.Extensions...)
		}
		if len(f.Modules) > 0 {
			draft.Modules = append([]string(nil), f.Modules...)
		}
		if len(f.MainFields) > 0 {
			draft.MainFields = append([]string(nil), f.MainFields...)
		}
		if next == nil {
			return draft, nil
		}
		return next(ctx, draft)
	}
}
