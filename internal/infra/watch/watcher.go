// Package watch reports music directories whose contents changed.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce coalesces bursts of events, such as a cover being written
// in several chunks.
const DefaultDebounce = 2 * time.Second

// ChangeFunc receives a changed directory relative to the watched root.
type ChangeFunc func(dir string)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long events are collected before being reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher watches a directory tree and reports changed directories.
type Watcher struct {
	root     string
	onChange ChangeFunc
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
}

// New creates a watcher over root. Nothing is watched until Run.
func New(root string, onChange ChangeFunc, opts ...Option) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		root:     filepath.Clean(root),
		onChange: onChange,
		debounce: DefaultDebounce,
		watcher:  watcher,
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is done. It returns an error only if the root cannot
// be watched.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.watcher.Add(w.root); err != nil {
		return fmt.Errorf("failed to add watch for %s: %w", w.root, err)
	}
	w.addRecursive(w.root)
	log.Info().Str("root", w.root).Msg("Watching music directory for changes")

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("File watcher error")

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addRecursive(event.Name)
			w.mark(event.Name)
		}
	}

	w.mark(filepath.Dir(event.Name))
	if event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename) {
		// The name may have been a directory; its own entries are stale too.
		w.mark(event.Name)
	}
}

func (w *Watcher) mark(path string) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return
	}
	if rel == "." {
		rel = ""
	}

	w.mu.Lock()
	w.pending[rel] = struct{}{}
	w.mu.Unlock()
}

func (w *Watcher) flush() {
	w.mu.Lock()
	dirs := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	for dir := range dirs {
		log.Debug().Str("dir", dir).Msg("Music directory changed")
		w.onChange(dir)
	}
}

// addRecursive watches every directory below path.
func (w *Watcher) addRecursive(path string) {
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() || p == w.root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("Failed to watch directory")
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Failed to walk directory")
	}
}
