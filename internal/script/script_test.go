package script

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/depgraph/internal/resolver"
)

func TestApply_Overrides(t *testing.T) {
	t.Parallel()
	r := NewRunner("")
	draft := resolver.DefaultConfig("/ws")

	src := `overrides := {"alias": {"~": "lib", "@": config["root"] + "/source"}, "extensions": [".vue", ".ts"]}
overrides`
	cfg, err := r.Apply(context.Background(), src, "inline", draft)
	require.NoError(t, err)

	assert.Equal(t, []resolver.Alias{
		{Prefix: "@", Dir: "/ws/source"},
		{Prefix: "~", Dir: filepath.Join("/ws", "lib")},
	}, cfg.Aliases)
	assert.Equal(t, []string{".vue", ".ts"}, cfg.Extensions)
	assert.Equal(t, draft.Modules, cfg.Modules, "keys the script omits are kept")
}

func TestApply_ReadsDraft(t *testing.T) {
	t.Parallel()
	r := NewRunner("")
	draft := resolver.DefaultConfig("/ws")

	src := `o := {"main_fields": [config["main_fields"][1]], "modules": ["web_modules", config["modules"][0]]}
o`
	cfg, err := r.Apply(context.Background(), src, "inline", draft)
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, cfg.MainFields)
	assert.Equal(t, []string{"web_modules", "node_modules"}, cfg.Modules)
}

func TestApply_NilResultKeepsDraft(t *testing.T) {
	t.Parallel()
	r := NewRunner("")
	draft := resolver.DefaultConfig("/ws")

	cfg, err := r.Apply(context.Background(), `nil`, "inline", draft)
	require.NoError(t, err)
	assert.Equal(t, draft, cfg)
}

func TestApply_Errors(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"not a map":   `42`,
		"unknown key": "o := {\"aliases\": {}}\no",
		"wrong type":  "o := {\"extensions\": \".ts\"}\no",
		"bad value":   "o := {\"alias\": {\"@\": 1}}\no",
		"syntax":      `o := {"alias": `,
		"runtime":     `config["missing"]["deeper"]`,
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			r := NewRunner("")
			draft := resolver.DefaultConfig("/ws")
			cfg, err := r.Apply(context.Background(), src, "inline", draft)
			require.Error(t, err)
			assert.ErrorContains(t, err, ErrScriptFailed.Error())
			assert.Equal(t, draft, cfg)
		})
	}
}

func TestConfigFunc_LoadsFromDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "depgraph.risor"),
		[]byte("o := {\"extensions\": [\".js\"]}\no"), 0o644))

	r := NewRunner(dir)
	cfg := resolver.Build(context.Background(), "/ws", r.ConfigFunc("depgraph.risor"), slog.New(slog.DiscardHandler))
	assert.Equal(t, []string{".js"}, cfg.Extensions)
	assert.Equal(t, resolver.DefaultAliases("/ws"), cfg.Aliases)
}

func TestConfigFunc_LoadsFromFS(t *testing.T) {
	t.Parallel()
	fsys := fstest.MapFS{
		"cfg/depgraph.risor": &fstest.MapFile{Data: []byte("o := {\"alias\": {\"#app\": \"app\"}}\no")},
	}
	r := NewRunner("", WithFS(fsys))

	cfg, err := r.ConfigFunc("/cfg/depgraph.risor")(context.Background(), resolver.DefaultConfig("/ws"))
	require.NoError(t, err)
	assert.Equal(t, []resolver.Alias{{Prefix: "#app", Dir: filepath.Join("/ws", "app")}}, cfg.Aliases)
}

func TestConfigFunc_MissingScriptFallsBack(t *testing.T) {
	t.Parallel()
	r := NewRunner(t.TempDir())

	_, err := r.ConfigFunc("nope.risor")(context.Background(), resolver.DefaultConfig("/ws"))
	require.Error(t, err)
	assert.ErrorContains(t, err, ErrScriptFailed.Error())

	cfg := resolver.Build(context.Background(), "/ws", r.ConfigFunc("nope.risor"), slog.New(slog.DiscardHandler))
	assert.Equal(t, resolver.DefaultConfig("/ws"), cfg)
}
