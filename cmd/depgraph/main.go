package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/depgraph"
)

var (
	flagConfig  string
	flagFormat  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "depgraph",
	Short:         "Incremental file dependency graph for JS/TS workspaces",
	Long:          "depgraph resolves the imports of JavaScript, TypeScript, Vue and Svelte files into a bidirectional file dependency graph.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "workspace config file (default: .depgraph.yaml in the workspace root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging on stderr")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(dependentsCmd)
	rootCmd.AddCommand(dirsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a workspace and print its dependency graph",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	start := time.Now()
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("scan", err)
	}
	e, err := openEngine(cmd.Context(), findWorkspaceRoot(targetDir))
	if err != nil {
		return outputError("scan", err)
	}
	defer e.Close()

	stats := e.Stats()
	fmt.Fprintf(os.Stderr, "Scanned %s in %s (%d files, %d edges)\n",
		e.Root(), time.Since(start).Round(time.Millisecond), stats.Files, stats.Edges)

	return outputResult(CLIResult{
		Command: "scan",
		Results: CLIScan{
			Root:  e.Root(),
			Files: stats.Files,
			Edges: stats.Edges,
			Graph: relativeMap(e.Root(), e.ForwardMap()),
		},
	})
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Scan a workspace and apply file changes until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("watch", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Watch subscribes before scanning so edits made during the scan are kept.
	e, err := newEngine(findWorkspaceRoot(targetDir))
	if err != nil {
		return outputError("watch", err)
	}
	defer e.Close()

	fmt.Fprintf(os.Stderr, "Watching %s\n", e.Root())
	err = e.Watch(ctx, func(ev depgraph.Event) {
		_ = outputEvent(CLIEvent{
			Kind:         ev.Kind.String(),
			Path:         relPath(e.Root(), ev.Path),
			Dependencies: relPaths(e.Root(), e.DependenciesOf(ev.Path)),
		})
	})
	if err != nil {
		return outputError("watch", err)
	}
	return nil
}

var flagOut string

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Scan a workspace and write the graph to a SQLite database",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&flagOut, "out", "", "database path (default: .depgraph/graph.db in the workspace root)")
}

func runExport(cmd *cobra.Command, args []string) error {
	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("export", err)
	}
	root := findWorkspaceRoot(targetDir)
	dbPath := resolveDBPath(root)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return outputError("export", fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err))
	}
	// The snapshot is rewritten from scratch on every export.
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return outputError("export", fmt.Errorf("removing previous database: %w", err))
	}

	e, err := openEngine(cmd.Context(), root)
	if err != nil {
		return outputError("export", err)
	}
	defer e.Close()

	if err := e.Export(cmd.Context(), dbPath); err != nil {
		return outputError("export", err)
	}
	stats := e.Stats()
	return outputResult(CLIResult{
		Command: "export",
		Results: CLIExport{Database: dbPath, Files: stats.Files, Edges: stats.Edges},
	})
}

// openEngine builds an Engine for root with the workspace configuration and
// runs the bulk scan with progress on stderr.
func openEngine(ctx context.Context, root string) (*depgraph.Engine, error) {
	e, err := newEngine(root)
	if err != nil {
		return nil, err
	}
	if err := e.Initialize(ctx); err != nil {
		e.Close()
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return e, nil
}

// newEngine builds an Engine for root without scanning it.
func newEngine(root string) (*depgraph.Engine, error) {
	logger := newLogger()

	opts, err := workspaceOptions(root, logger)
	if err != nil {
		return nil, err
	}
	opts = append(opts,
		depgraph.WithLogger(logger),
		depgraph.WithProgress(func(p depgraph.Progress) {
			fmt.Fprintf(os.Stderr, "Scanning: batch %d/%d (%d/%d files)\n", p.Batch, p.Batches, p.Files, p.Total)
		}),
	)

	return depgraph.New(root, opts...)
}

// workspaceOptions loads --config or the workspace's .depgraph.yaml. A file
// that fails to parse is reported and the defaults are used.
func workspaceOptions(root string, logger *slog.Logger) ([]depgraph.Option, error) {
	var (
		opts []depgraph.Option
		err  error
	)
	if flagConfig != "" {
		path := flagConfig
		if !filepath.IsAbs(path) {
			if path, err = filepath.Abs(path); err != nil {
				return nil, err
			}
		}
		opts, err = depgraph.OptionsFromConfigFile(root, path)
	} else {
		opts, err = depgraph.OptionsFromFile(root)
	}
	if err != nil {
		logger.Warn("workspace config ignored", "root", root, "error", err)
		fmt.Fprintf(os.Stderr, "Warning: %s (using defaults)\n", err)
		return nil, nil
	}
	return opts, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveTargetDir returns the absolute path of the directory to scan.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findWorkspaceRoot walks up from startDir looking for a .depgraph.yaml file
// or a .git directory. Returns startDir if neither is found.
func findWorkspaceRoot(startDir string) string {
	dir := startDir
	for {
		if _, err := os.Stat(filepath.Join(dir, ".depgraph.yaml")); err == nil {
			return dir
		}
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --out flag or the default.
func resolveDBPath(root string) string {
	if flagOut != "" {
		if filepath.IsAbs(flagOut) {
			return flagOut
		}
		abs, err := filepath.Abs(flagOut)
		if err == nil {
			return abs
		}
		return filepath.Join(root, flagOut)
	}
	return filepath.Join(root, ".depgraph", "graph.db")
}
