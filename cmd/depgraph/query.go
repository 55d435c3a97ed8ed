package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagTransitive bool
	flagDepth      int
)

var depsCmd = &cobra.Command{
	Use:   "deps <file>",
	Short: "List the files a file imports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdges(cmd, "deps", args[0], false)
	},
}

var dependentsCmd = &cobra.Command{
	Use:   "dependents <file>",
	Short: "List the files that import a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEdges(cmd, "dependents", args[0], true)
	},
}

func init() {
	for _, c := range []*cobra.Command{depsCmd, dependentsCmd} {
		c.Flags().BoolVar(&flagTransitive, "transitive", false, "follow edges transitively")
		c.Flags().IntVar(&flagDepth, "depth", 0, "maximum hops with --transitive (0 = unlimited)")
	}
}

// runEdges scans the workspace containing file and prints its direct or
// transitive neighbours in one direction.
func runEdges(cmd *cobra.Command, command, file string, reverse bool) error {
	path, err := resolveFilePath(file)
	if err != nil {
		return outputError(command, err)
	}
	e, err := openEngine(cmd.Context(), findWorkspaceRoot(filepath.Dir(path)))
	if err != nil {
		return outputError(command, err)
	}
	defer e.Close()

	q := e.Query()
	var files []string
	switch {
	case reverse && flagTransitive:
		files = q.TransitiveDependents(path, flagDepth)
	case reverse:
		files = q.Dependents(path)
	case flagTransitive:
		files = q.TransitiveDependencies(path, flagDepth)
	default:
		files = q.Dependencies(path)
	}

	out := relPaths(e.Root(), files)
	total := len(out)
	return outputResult(CLIResult{
		Command:    command,
		Results:    CLIFileList{File: relPath(e.Root(), path), Files: out},
		TotalCount: &total,
	})
}

var dirsCmd = &cobra.Command{
	Use:   "dirs [path]",
	Short: "Print the directory-level dependency graph",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDirs,
}

func runDirs(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("dirs", err)
	}
	e, err := openEngine(cmd.Context(), findWorkspaceRoot(targetDir))
	if err != nil {
		return outputError("dirs", err)
	}
	defer e.Close()

	dg := e.Query().DirectoryGraph()
	result := CLIDirectoryGraph{
		Directories: make([]CLIDirectoryNode, len(dg.Directories)),
		Edges:       make([]CLIDirectoryEdge, len(dg.Edges)),
	}
	for i, d := range dg.Directories {
		result.Directories[i] = CLIDirectoryNode{Name: d.Name, FileCount: d.FileCount}
	}
	for i, edge := range dg.Edges {
		result.Edges[i] = CLIDirectoryEdge{
			FromDirectory: edge.FromDirectory,
			ToDirectory:   edge.ToDirectory,
			ImportCount:   edge.ImportCount,
		}
	}
	return outputResult(CLIResult{Command: "dirs", Results: result})
}

// --- Helpers ---

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return filepath.Clean(file), nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// relPath returns path relative to root in slash form, or path unchanged
// when it lies outside root.
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return filepath.ToSlash(path)
	}
	return rel
}

func relPaths(root string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = relPath(root, p)
	}
	return out
}

// relativeMap converts an absolute forward map to relative paths, dropping
// files without dependencies.
func relativeMap(root string, m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for from, targets := range m {
		if len(targets) == 0 {
			continue
		}
		out[relPath(root, from)] = relPaths(root, targets)
	}
	return out
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(os.Stdout, result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputEvent writes one watch event as a JSON line or a text line.
func outputEvent(ev CLIEvent) error {
	if flagFormat == "text" {
		formatEventText(os.Stdout, ev)
		return nil
	}
	return json.NewEncoder(os.Stdout).Encode(ev)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}
