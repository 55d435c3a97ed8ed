package depgraph

import (
	"github.com/jward/depgraph/internal/config"
)

// OptionsFromFile reads <root>/.depgraph.yaml and returns the Engine options
// it describes. A missing file yields no options.
func OptionsFromFile(root string) ([]Option, error) {
	ws, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	return optionsFromWorkspace(ws), nil
}

// OptionsFromConfigFile is OptionsFromFile for a configuration file at an
// explicit path. Relative script paths in it are still taken relative to root.
func OptionsFromConfigFile(root, path string) ([]Option, error) {
	ws, err := config.LoadFile(root, path)
	if err != nil {
		return nil, err
	}
	return optionsFromWorkspace(ws), nil
}

func optionsFromWorkspace(ws *config.Workspace) []Option {
	var opts []Option
	f := ws.File
	if len(f.Entry) > 0 {
		opts = append(opts, WithEntryPatterns(f.Entry...))
	}
	if len(f.Exclude) > 0 {
		opts = append(opts, WithExcludePatterns(f.Exclude...))
	}
	if f.BatchSize > 0 {
		opts = append(opts, WithBatchSize(f.BatchSize))
	}
	if f.ProgressInterval > 0 {
		opts = append(opts, WithProgressInterval(f.ProgressInterval))
	}
	if ws.HasResolverOverrides() {
		opts = append(opts, WithConfigFunc(ws.ConfigFunc(nil)))
	}
	if p := ws.ScriptPath(); p != "" {
		opts = append(opts, WithConfigScript(p))
	}
	return opts
}
