package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
)

// FileFormatVersion is written into every flat-file cache.
const FileFormatVersion = 1

// ErrUnsupportedVersion is returned when a cache file was written by a newer
// format.
var ErrUnsupportedVersion = errors.New("unsupported cache file version")

// DefaultFilePath is the default flat-file cache location.
const DefaultFilePath = "data/artwork.json"

type fileDocument struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"savedAt"`
	Entries []Entry   `json:"entries"`
}

// FileStore keeps entries in a JSON document. Writes replace the file
// atomically and are serialised across processes with an advisory lock next
// to the file.
type FileStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// NewFileStore creates a store at path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the cache file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document. A missing file yields no entries and no error.
func (s *FileStore) Load() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Entries, nil
}

func (s *FileStore) read() (*fileDocument, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &fileDocument{Version: FileFormatVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse cache file %s: %w", s.path, err)
	}
	if doc.Version > FileFormatVersion {
		return nil, fmt.Errorf("%s: version %d: %w", s.path, doc.Version, ErrUnsupportedVersion)
	}
	return &doc, nil
}

// Save replaces the document with entries.
func (s *FileStore) Save(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock cache file: %w", err)
	}
	defer s.lock.Unlock()

	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(fileDocument{
		Version: FileFormatVersion,
		SavedAt: time.Now().UTC(),
		Entries: entries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// GetStats returns statistics about the stored document.
func (s *FileStore) GetStats() (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return &Stats{
		Backend:       "file",
		Path:          s.path,
		EntryCount:    len(doc.Entries),
		NegativeCount: countNegative(doc.Entries),
		SchemaVersion: fmt.Sprint(doc.Version),
		LastSaved:     doc.SavedAt,
	}, nil
}
