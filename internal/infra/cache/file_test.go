package cache_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/edumarques81/stellar-artwork/internal/infra/cache"
)

func TestFileStoreMissingFile(t *testing.T) {
	store := cache.NewFileStore(filepath.Join(t.TempDir(), "artwork.json"))

	entries, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(entries))
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "artwork.json")
	store := cache.NewFileStore(path)

	entries := []cache.Entry{
		{Artist: "Air", Album: "Moon Safari", Path: "Air/Moon Safari", File: "/covers/Air-Moon Safari.jpg"},
		{Artist: "Unknown", Album: "Demo", Path: "misc", File: ""},
	}
	if err := store.Save(entries); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// A second store instance sees the data.
	got, err := cache.NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if diff := cmp.Diff(entries, got); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.EntryCount != 2 || stats.NegativeCount != 1 {
		t.Errorf("Expected 2 entries / 1 negative, got %d / %d", stats.EntryCount, stats.NegativeCount)
	}
	if stats.LastSaved.IsZero() {
		t.Error("Expected LastSaved to be set")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artwork.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := cache.NewFileStore(path).Load(); err == nil {
		t.Error("Expected error for corrupt cache file")
	}
}

func TestFileStoreFutureVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artwork.json")
	if err := os.WriteFile(path, []byte(`{"version": 99, "entries": []}`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := cache.NewFileStore(path).Load()
	if !errors.Is(err, cache.ErrUnsupportedVersion) {
		t.Errorf("Load() error = %v, want ErrUnsupportedVersion", err)
	}
}

func TestFileStoreSaveEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artwork.json")
	store := cache.NewFileStore(path)

	if err := store.Save(nil); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if len(data) == 0 {
		t.Error("Expected a document to be written")
	}

	entries, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(entries))
	}
}
