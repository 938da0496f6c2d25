package artwork

import (
	"github.com/edumarques81/stellar-artwork/internal/infra/cache"
)

// StoreAdapter adapts a cache.Store to implement the Store interface.
type StoreAdapter struct {
	store cache.Store
}

// NewStoreAdapter creates a new adapter for a cache.Store.
func NewStoreAdapter(store cache.Store) *StoreAdapter {
	return &StoreAdapter{store: store}
}

// Load reads every persisted entry.
func (a *StoreAdapter) Load() ([]Record, error) {
	entries, err := a.store.Load()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, Record{
			Key:  NewKey(e.Artist, e.Album, e.Path),
			File: e.File,
		})
	}
	return records, nil
}

// Save persists the full set of records.
func (a *StoreAdapter) Save(records []Record) error {
	entries := make([]cache.Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, cache.Entry{
			Artist: r.Key.Artist,
			Album:  r.Key.Album,
			Path:   r.Key.Path,
			File:   r.File,
		})
	}
	return a.store.Save(entries)
}
