// Package cache provides durable stores for the artwork cache.
package cache

import (
	"errors"
	"time"
)

// ErrNotOpen is returned when a database store is used before Open.
var ErrNotOpen = errors.New("database not open")

// Entry is one persisted lookup result. An empty File records that no artwork
// exists for the album.
type Entry struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Path   string `json:"path"` // song directory relative to the music root
	File   string `json:"file"`
}

// Store persists the full set of entries. Save replaces everything previously
// stored.
type Store interface {
	Load() ([]Entry, error)
	Save(entries []Entry) error
}

// Stats provides statistics about a store.
type Stats struct {
	Backend       string    `json:"backend"`
	Path          string    `json:"path"`
	EntryCount    int       `json:"entryCount"`
	NegativeCount int       `json:"negativeCount"`
	SchemaVersion string    `json:"schemaVersion"`
	LastSaved     time.Time `json:"lastSaved"`
}

func countNegative(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.File == "" {
			n++
		}
	}
	return n
}
