// Package watch reports batches of changed source files under a root.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/panbanda/augur/pkg/config"
	"github.com/panbanda/augur/pkg/parser"
)

// DefaultDebounce is how long a file must be quiet before it is reported.
const DefaultDebounce = 500 * time.Millisecond

// Callback receives root-relative slash paths of files that changed since the
// previous batch, sorted. Removed files are included.
type Callback func(ctx context.Context, changed []string)

// Watcher monitors a directory tree and reports debounced batches of changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	root      string
	callback  Callback
	log       *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger for watch errors.
func WithLogger(l *slog.Logger) Option { return func(w *Watcher) { w.log = l } }

// NewWatcher creates a watcher for root. cb is invoked from a single
// goroutine, so batches never overlap.
func NewWatcher(root string, cfg *config.Config, cb Callback, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  DefaultDebounce,
		root:      abs,
		callback:  cb,
		log:       slog.New(slog.DiscardHandler),
		pending:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string { return w.root }

// Start watches until ctx is cancelled or the watcher is stopped.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}

	tick := time.NewTicker(w.debounce / 5)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-tick.C:
			if batch := w.ready(time.Now()); len(batch) > 0 && w.callback != nil {
				w.callback(ctx, batch)
			}
		}
	}
}

// addTree registers dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != w.root && w.excludedDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) excludedDir(name string) bool {
	for _, excluded := range w.config.Exclude.Dirs {
		if name == excluded {
			return true
		}
	}
	return false
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	path := event.Name

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.excludedDir(info.Name()) {
				if err := w.addTree(path); err != nil {
					w.log.Warn("watch directory failed", "path", path, "error", err)
				}
			}
			return
		}
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	if w.config.ShouldExclude(rel) || parser.DetectLanguage(path) == parser.LangUnknown {
		return
	}

	w.mu.Lock()
	w.pending[filepath.ToSlash(rel)] = time.Now()
	w.mu.Unlock()
}

// ready removes and returns the files that have been quiet for the debounce
// period as of now.
func (w *Watcher) ready(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var batch []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			batch = append(batch, path)
			delete(w.pending, path)
		}
	}
	sort.Strings(batch)
	return batch
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the directories currently watched.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
