package main

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
	"github.com/edumarques81/stellar-artwork/internal/infra/watch"
)

// writeGuardTTL outlasts the watcher's debounce so the events of a cover
// write are flushed while its directory is still marked.
const writeGuardTTL = 3 * watch.DefaultDebounce

// writeGuard remembers song directories that just received a resolved cover,
// so the watcher does not forget the entry the engine itself produced.
type writeGuard struct {
	musicDir string
	cache    *artwork.Cache
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	written map[string]time.Time
}

func newWriteGuard(musicDir string, cache *artwork.Cache) *writeGuard {
	return &writeGuard{
		musicDir: filepath.Clean(musicDir),
		cache:    cache,
		ttl:      writeGuardTTL,
		now:      time.Now,
		written:  make(map[string]time.Time),
	}
}

// observe is a ready subscriber. Only covers inside the song directory can
// trigger the watcher.
func (g *writeGuard) observe(key artwork.Key) {
	file, ok := g.cache.Get(key)
	if !ok || file == "" {
		return
	}
	dir := filepath.Join(g.musicDir, key.Path)
	rel, err := filepath.Rel(dir, filepath.Clean(file))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return
	}

	g.mu.Lock()
	g.written[key.Path] = g.now()
	g.mu.Unlock()
}

// recent reports whether dir received a cover within the guard window.
// Expired marks are dropped on the way.
func (g *writeGuard) recent(dir string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for d, at := range g.written {
		if now.Sub(at) > g.ttl {
			delete(g.written, d)
		}
	}
	_, ok := g.written[dir]
	return ok
}
