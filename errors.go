package depgraph

import (
	"go.trai.ch/zerr"

	"github.com/jward/depgraph/internal/config"
	"github.com/jward/depgraph/internal/script"
	"github.com/jward/depgraph/internal/store"
)

var (
	// ErrInvalidPattern is returned by New when an entry or exclude pattern
	// is not a valid glob.
	ErrInvalidPattern = zerr.New("invalid glob pattern")
	// ErrInvalidRoot is returned by New when the workspace root is not a
	// directory.
	ErrInvalidRoot = zerr.New("workspace root is not a directory")
	// ErrEngineClosed is returned by operations on a closed Engine or
	// Registry.
	ErrEngineClosed = zerr.New("engine is closed")
)

// Errors from the configuration, script and export layers.
var (
	ErrConfigReadFailed  = config.ErrConfigReadFailed
	ErrConfigParseFailed = config.ErrConfigParseFailed
	ErrInvalidConfig     = config.ErrInvalidConfig
	ErrScriptFailed      = script.ErrScriptFailed
	ErrStoreOpenFailed   = store.ErrStoreOpenFailed
)
