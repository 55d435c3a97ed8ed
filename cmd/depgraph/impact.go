package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/depgraph/internal/store"
)

var (
	flagDB          string
	flagImpactDepth int
	flagDirect      bool
)

var impactCmd = &cobra.Command{
	Use:   "impact <file>...",
	Short: "List the files affected by changes, read from an exported snapshot",
	Long:  "Reads a database written by 'depgraph export' and prints every file that transitively imports one of the given files. The workspace is not scanned.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runImpact,
}

func init() {
	impactCmd.Flags().StringVar(&flagDB, "db", "", "snapshot database (default: .depgraph/graph.db in the workspace root)")
	impactCmd.Flags().IntVar(&flagImpactDepth, "depth", 0, "maximum hops (0 = unlimited)")
	impactCmd.Flags().BoolVar(&flagDirect, "direct", false, "only direct importers, including changed files that import each other")
	rootCmd.AddCommand(impactCmd)
}

func runImpact(cmd *cobra.Command, args []string) error {
	paths := make([]string, len(args))
	for i, arg := range args {
		p, err := resolveFilePath(arg)
		if err != nil {
			return outputError("impact", err)
		}
		paths[i] = p
	}

	s, err := openStore()
	if err != nil {
		return outputError("impact", err)
	}
	defer s.Close()

	root, err := s.GetMetadata(store.MetaRoot)
	if err != nil {
		return outputError("impact", err)
	}
	var affected []string
	if flagDirect {
		affected, err = s.DependentsOfAny(paths)
	} else {
		affected, err = s.BlastRadius(paths, flagImpactDepth)
	}
	if err != nil {
		return outputError("impact", err)
	}

	files := relPaths(root, affected)
	total := len(files)
	return outputResult(CLIResult{
		Command:    "impact",
		Results:    CLIImpact{Changed: relPaths(root, paths), Affected: files},
		TotalCount: &total,
	})
}

// openStore opens the snapshot from the --db flag path (or default).
func openStore() (*store.Store, error) {
	dbPath := flagDB
	if dbPath == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting cwd: %w", err)
		}
		dbPath = resolveDBPath(findWorkspaceRoot(cwd))
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'depgraph export' first)", dbPath)
	}
	return store.NewStore(dbPath)
}
