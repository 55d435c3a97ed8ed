package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// formatScanText prints one "file -> dependency" line per edge.
func formatScanText(w io.Writer, scan CLIScan) {
	fmt.Fprintf(w, "Root: %s\n", scan.Root)
	fmt.Fprintf(w, "Files: %d\n", scan.Files)
	fmt.Fprintf(w, "Edges: %d\n", scan.Edges)
	if len(scan.Graph) == 0 {
		return
	}
	fmt.Fprintln(w)

	files := make([]string, 0, len(scan.Graph))
	for f := range scan.Graph {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		for _, dep := range scan.Graph[f] {
			fmt.Fprintf(w, "%s -> %s\n", f, dep)
		}
	}
}

// formatFileListText prints one path per line.
func formatFileListText(w io.Writer, list CLIFileList) {
	for _, f := range list.Files {
		fmt.Fprintln(w, f)
	}
}

// formatDirectoryGraphText formats CLIDirectoryGraph as aligned columns.
func formatDirectoryGraphText(w io.Writer, g CLIDirectoryGraph) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DIRECTORY\tFILES")
	for _, d := range g.Directories {
		fmt.Fprintf(tw, "%s\t%d\n", d.Name, d.FileCount)
	}
	tw.Flush()

	if len(g.Edges) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FROM\tTO\tIMPORTS")
	for _, e := range g.Edges {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", e.FromDirectory, e.ToDirectory, e.ImportCount)
	}
	tw.Flush()
}

// formatEventText prints a watch event and the file's current imports.
func formatEventText(w io.Writer, ev CLIEvent) {
	if len(ev.Dependencies) == 0 {
		fmt.Fprintf(w, "%s %s\n", ev.Kind, ev.Path)
		return
	}
	fmt.Fprintf(w, "%s %s -> %s\n", ev.Kind, ev.Path, strings.Join(ev.Dependencies, ", "))
}

// formatImpactText prints one affected path per line.
func formatImpactText(w io.Writer, im CLIImpact) {
	for _, f := range im.Affected {
		fmt.Fprintln(w, f)
	}
}

func formatExportText(w io.Writer, ex CLIExport) {
	fmt.Fprintf(w, "Wrote %s (%d files, %d edges)\n", ex.Database, ex.Files, ex.Edges)
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIScan:
		formatScanText(w, v)
	case CLIFileList:
		formatFileListText(w, v)
	case CLIDirectoryGraph:
		formatDirectoryGraphText(w, v)
	case CLIExport:
		formatExportText(w, v)
	case CLIImpact:
		formatImpactText(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
