package depgraph

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden test format. Paths are relative to the workspace; files without
// dependencies are omitted.
type goldenFile struct {
	Edges map[string][]string `json:"edges"`
}

// TestGolden runs every testdata/{case}/ directory that has a golden.json
// and a workspace/ tree. A .depgraph.yaml inside the workspace is honored.
func TestGolden(t *testing.T) {
	cases, err := os.ReadDir("testdata")
	if err != nil {
		t.Skip("no testdata directory found")
	}

	for _, c := range cases {
		if !c.IsDir() {
			continue
		}
		dir := filepath.Join("testdata", c.Name())
		goldenPath := filepath.Join(dir, "golden.json")
		workspace := filepath.Join(dir, "workspace")

		if _, err := os.Stat(goldenPath); err != nil {
			continue
		}
		if _, err := os.Stat(workspace); err != nil {
			continue
		}

		t.Run(c.Name(), func(t *testing.T) {
			runGoldenTest(t, workspace, goldenPath)
		})
	}
}

func runGoldenTest(t *testing.T, workspace, goldenPath string) {
	t.Helper()

	goldenData, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	var golden goldenFile
	require.NoError(t, json.Unmarshal(goldenData, &golden))

	opts, err := OptionsFromFile(workspace)
	require.NoError(t, err)
	e, err := New(workspace, opts...)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Initialize(context.Background()))
	require.NoError(t, e.graph.Verify())

	got := map[string][]string{}
	for from, targets := range e.ForwardMap() {
		if len(targets) == 0 {
			continue
		}
		rel := relTo(t, e.Root(), from)
		for _, to := range targets {
			got[rel] = append(got[rel], relTo(t, e.Root(), to))
		}
	}
	assert.Equal(t, golden.Edges, got)
}

func relTo(t *testing.T, root, path string) string {
	t.Helper()
	rel, err := filepath.Rel(root, path)
	require.NoError(t, err)
	return filepath.ToSlash(rel)
}
