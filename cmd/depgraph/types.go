package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIScan is the result of a workspace scan. Graph maps each file with
// dependencies to its imports, relative to Root.
type CLIScan struct {
	Root  string              `json:"root"`
	Files int                 `json:"files"`
	Edges int                 `json:"edges"`
	Graph map[string][]string `json:"graph"`
}

// CLIFileList is the neighbourhood of one file.
type CLIFileList struct {
	File  string   `json:"file"`
	Files []string `json:"files"`
}

// CLIDirectoryGraph is a JSON-friendly directory dependency graph.
type CLIDirectoryGraph struct {
	Directories []CLIDirectoryNode `json:"directories"`
	Edges       []CLIDirectoryEdge `json:"edges"`
}

// CLIDirectoryNode is a directory in the dependency graph.
type CLIDirectoryNode struct {
	Name      string `json:"name"`
	FileCount int    `json:"file_count"`
}

// CLIDirectoryEdge is a dependency between two directories.
type CLIDirectoryEdge struct {
	FromDirectory string `json:"from_directory"`
	ToDirectory   string `json:"to_directory"`
	ImportCount   int    `json:"import_count"`
}

// CLIEvent is one applied file event, written per line by watch.
type CLIEvent struct {
	Kind         string   `json:"kind"`
	Path         string   `json:"path"`
	Dependencies []string `json:"dependencies"`
}

// CLIExport is the result of writing a snapshot database.
type CLIExport struct {
	Database string `json:"database"`
	Files    int    `json:"files"`
	Edges    int    `json:"edges"`
}

// CLIImpact lists the files that transitively import any changed file.
type CLIImpact struct {
	Changed  []string `json:"changed"`
	Affected []string `json:"affected"`
}
