// Package watch turns recursive fsnotify notifications into created, changed
// and deleted events for source files.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Kind classifies a file event.
type Kind int

const (
	Created Kind = iota + 1
	Changed
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is a notification for one absolute file path.
type Event struct {
	Kind Kind
	Path string
}

var defaultSkipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
}

const eventBuffer = 256

// Watcher watches a directory tree. Events are delivered on the channel
// returned by Events until Close is called or the Start context ends.
type Watcher struct {
	fsw      *fsnotify.Watcher
	exts     map[string]bool
	skipDirs map[string]bool
	logger   *slog.Logger

	// dirs and files are the watched directories and the reported source
	// files beneath them. Only Start and the event loop touch them.
	dirs  map[string]bool
	files map[string]bool

	events chan Event
	wg     sync.WaitGroup
	once   sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithExtensions restricts events to files with these extensions. With no
// extensions every file is reported.
func WithExtensions(exts []string) Option {
	return func(w *Watcher) {
		w.exts = make(map[string]bool, len(exts))
		for _, ext := range exts {
			w.exts[strings.ToLower(ext)] = true
		}
	}
}

// WithSkipDirs adds directory names that are never watched.
func WithSkipDirs(names ...string) Option {
	return func(w *Watcher) {
		for _, n := range names {
			w.skipDirs[n] = true
		}
	}
}

// WithLogger sets the logger for watch errors.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New creates a Watcher. Call Start to begin watching.
func New(opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:      fsw,
		skipDirs: make(map[string]bool, len(defaultSkipDirs)),
		logger:   slog.New(slog.DiscardHandler),
		dirs:     make(map[string]bool),
		files:    make(map[string]bool),
		events:   make(chan Event, eventBuffer),
	}
	for name := range defaultSkipDirs {
		w.skipDirs[name] = true
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start adds every directory under root and begins delivering events.
func (w *Watcher) Start(ctx context.Context, root string) error {
	dirs, files := w.walk(root)
	for _, dir := range dirs {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		w.dirs[dir] = true
	}
	for _, f := range files {
		w.files[f] = true
	}
	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// Events returns the event channel. It is closed when the watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close stops watching and waits for the event loop to exit.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

// walk lists the directories to watch under root and the source files in
// them, skipping ignored directories.
func (w *Watcher) walk(root string) (dirs, files []string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable directories are skipped
		}
		if d.IsDir() {
			if path != root && w.skipDirs[d.Name()] {
				return fs.SkipDir
			}
			dirs = append(dirs, path)
			return nil
		}
		if w.wanted(path) {
			files = append(files, path)
		}
		return nil
	})
	return dirs, files
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			for _, out := range w.convert(ev) {
				select {
				case w.events <- out:
				case <-ctx.Done():
					return
				}
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watch error", "error", err)
		}
	}
}

// convert maps one fsnotify event to zero or more file events. A created
// directory is added to the watch and the source files already inside it are
// reported as created, since they may predate the watch. A removed or renamed
// directory reports every file seen beneath it as deleted.
func (w *Watcher) convert(ev fsnotify.Event) []Event {
	path := ev.Name

	switch {
	case ev.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if w.skipDirs[info.Name()] {
				return nil
			}
			return w.addDir(path)
		}
		if w.wanted(path) {
			w.files[path] = true
			return []Event{{Kind: Created, Path: path}}
		}
	case ev.Has(fsnotify.Write):
		if w.wanted(path) {
			w.files[path] = true
			return []Event{{Kind: Changed, Path: path}}
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		if w.dirs[path] {
			return w.removeDir(path)
		}
		if w.wanted(path) {
			delete(w.files, path)
			return []Event{{Kind: Deleted, Path: path}}
		}
	}
	return nil
}

func (w *Watcher) addDir(dir string) []Event {
	dirs, files := w.walk(dir)
	for _, d := range dirs {
		if err := w.fsw.Add(d); err != nil {
			w.logger.Debug("cannot watch directory", "dir", d, "error", err)
			continue
		}
		w.dirs[d] = true
	}
	out := make([]Event, 0, len(files))
	for _, f := range files {
		w.files[f] = true
		out = append(out, Event{Kind: Created, Path: f})
	}
	return out
}

// removeDir forgets dir and everything under it. A renamed directory keeps
// its kernel watches under the old path, so they are dropped explicitly; the
// new location arrives as a Create.
func (w *Watcher) removeDir(dir string) []Event {
	prefix := dir + string(filepath.Separator)
	for d := range w.dirs {
		if d == dir || strings.HasPrefix(d, prefix) {
			delete(w.dirs, d)
			_ = w.fsw.Remove(d)
		}
	}
	var gone []string
	for f := range w.files {
		if strings.HasPrefix(f, prefix) {
			delete(w.files, f)
			gone = append(gone, f)
		}
	}
	sort.Strings(gone)
	out := make([]Event, len(gone))
	for i, f := range gone {
		out[i] = Event{Kind: Deleted, Path: f}
	}
	return out
}

func (w *Watcher) wanted(path string) bool {
	if len(w.exts) == 0 {
		return true
	}
	return w.exts[strings.ToLower(filepath.Ext(path))]
}
