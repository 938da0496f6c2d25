package artwork

import (
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Cache maps keys to resolved artwork files. A key mapped to "" is a negative
// entry; a missing key has never been attempted. The worker is the only writer
// during normal operation, but every method is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]string
	store   Store
	version uint64 // bumped on every mutation
	saved   uint64 // version last written to or read from the store
}

// NewCache creates an empty cache persisted to store. store may be nil for a
// purely in-memory cache.
func NewCache(store Store) *Cache {
	return &Cache{
		entries: make(map[Key]string),
		store:   store,
	}
}

// Get returns the artwork file recorded for key. ok is false when the key was
// never resolved. A negative entry yields ("", true). When the recorded file no
// longer exists the entry is dropped and ("", false) is returned.
func (c *Cache) Get(key Key) (file string, ok bool) {
	c.mu.RLock()
	file, ok = c.entries[key]
	c.mu.RUnlock()

	if !ok || file == "" {
		return file, ok
	}

	if _, err := os.Stat(file); err == nil {
		return file, true
	}

	c.mu.Lock()
	// Another writer may have replaced the entry meanwhile.
	if current, still := c.entries[key]; still && current == file {
		delete(c.entries, key)
		c.version++
	}
	c.mu.Unlock()

	log.Debug().Str("key", key.String()).Str("path", file).Msg("Cached artwork file missing, entry dropped")
	return "", false
}

// Put records the result for key, overwriting any previous entry. An empty
// file records a deliberate negative result.
func (c *Cache) Put(key Key, file string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.entries[key]; ok && prev == file {
		return
	}
	c.entries[key] = file
	c.version++
}

// Forget removes the entry for key and reports whether one existed.
func (c *Cache) Forget(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	c.version++
	return true
}

// ForgetDir removes every entry whose key points at the song directory path.
func (c *Cache) ForgetDir(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if key.Path == path {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		c.version++
	}
	return removed
}

// Len returns the number of entries, negative ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Dirty reports whether the cache changed since the last load or save.
func (c *Cache) Dirty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version != c.saved
}

// Snapshot returns all entries sorted by artist, album and path.
func (c *Cache) Snapshot() []Record {
	c.mu.RLock()
	records := make([]Record, 0, len(c.entries))
	for key, file := range c.entries {
		records = append(records, Record{Key: key, File: file})
	}
	c.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].Key, records[j].Key
		if a.Artist != b.Artist {
			return a.Artist < b.Artist
		}
		if a.Album != b.Album {
			return a.Album < b.Album
		}
		return a.Path < b.Path
	})
	return records
}

// Load replaces the in-memory entries with the durable store's content. A
// missing or unreadable store leaves the cache empty; it never fails.
func (c *Cache) Load() {
	entries := make(map[Key]string)

	if c.store != nil {
		records, err := c.store.Load()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load artwork cache, starting empty")
		} else {
			for _, r := range records {
				entries[r.Key] = r.File
			}
		}
	}

	c.mu.Lock()
	c.entries = entries
	c.version++
	c.saved = c.version
	c.mu.Unlock()

	log.Info().Int("entries", len(entries)).Msg("Artwork cache loaded")
}

// Save writes the full mapping to the durable store. Failures are logged and
// returned for callers that want to report them; the cache stays dirty so a
// later save can retry.
func (c *Cache) Save() error {
	if c.store == nil || !c.Dirty() {
		return nil
	}

	c.mu.RLock()
	version := c.version
	c.mu.RUnlock()

	records := c.Snapshot()
	if err := c.store.Save(records); err != nil {
		log.Error().Err(err).Msg("Failed to save artwork cache")
		return err
	}

	c.mu.Lock()
	if version > c.saved {
		c.saved = version
	}
	c.mu.Unlock()

	log.Debug().Int("entries", len(records)).Msg("Artwork cache saved")
	return nil
}
