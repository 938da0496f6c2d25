package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the cache database.
	DefaultDBPath = "data/artwork.db"
)

// DB is a SQLite-backed Store.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewDB creates a new cache database instance.
func NewDB(path string) *DB {
	if path == "" {
		path = DefaultDBPath
	}
	return &DB{
		path: path,
	}
}

// Open opens the database and initializes the schema.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d.db = db

	if err := d.initSchema(); err != nil {
		d.db.Close()
		d.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", d.path).Msg("Cache database opened")
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

// initSchema initializes the database schema.
func (d *DB) initSchema() error {
	if _, err := d.db.Exec(`
	CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("failed to create meta table: %w", err)
	}

	currentVersion := d.getSchemaVersion()
	if currentVersion == "" {
		if err := d.createSchema(); err != nil {
			return err
		}
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	if currentVersion != CurrentSchemaVersion {
		log.Info().
			Str("current", currentVersion).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating cache schema")
		if err := d.createSchema(); err != nil {
			return err
		}
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	return nil
}

// createSchema creates the artwork table.
func (d *DB) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artwork_cache (
		artist TEXT NOT NULL,
		album TEXT NOT NULL,
		path TEXT NOT NULL,
		file_path TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (artist, album, path)
	);

	CREATE INDEX IF NOT EXISTS idx_artwork_cache_path ON artwork_cache(path);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Msg("Cache schema created")
	return nil
}

// getSchemaVersion returns the current schema version.
func (d *DB) getSchemaVersion() string {
	var version string
	err := d.db.QueryRow("SELECT value FROM cache_meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

// setMeta sets a metadata value.
func (d *DB) setMeta(key, value string) error {
	return setMeta(d.db, key, value)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func setMeta(db execer, key, value string) error {
	now := time.Now().Format(time.RFC3339)
	_, err := db.Exec(`
		INSERT INTO cache_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = ?
	`, key, value, now, value, now)
	return err
}

// getMeta gets a metadata value.
func (d *DB) getMeta(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM cache_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Load returns every stored entry.
func (d *DB) Load() ([]Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := d.db.Query(`
		SELECT artist, album, path, file_path FROM artwork_cache
		ORDER BY artist, album, path
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query artwork cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Artist, &e.Album, &e.Path, &e.File); err != nil {
			return nil, fmt.Errorf("failed to scan artwork entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Save replaces the stored entries in a single transaction.
func (d *DB) Save(entries []Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return ErrNotOpen
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM artwork_cache"); err != nil {
		return fmt.Errorf("failed to clear artwork cache: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO artwork_cache (artist, album, path, file_path) VALUES (?, ?, ?, ?)
		ON CONFLICT(artist, album, path) DO UPDATE SET file_path = excluded.file_path
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Artist, e.Album, e.Path, e.File); err != nil {
			return fmt.Errorf("failed to insert artwork entry: %w", err)
		}
	}

	if err := setMeta(tx, "last_saved", time.Now().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit artwork cache: %w", err)
	}
	return nil
}

// GetStats returns cache statistics.
func (d *DB) GetStats() (*Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, ErrNotOpen
	}

	stats := &Stats{Backend: "sqlite", Path: d.path}

	if err := d.db.QueryRow("SELECT COUNT(*) FROM artwork_cache").Scan(&stats.EntryCount); err != nil {
		return nil, err
	}
	if err := d.db.QueryRow("SELECT COUNT(*) FROM artwork_cache WHERE file_path = ''").Scan(&stats.NegativeCount); err != nil {
		return nil, err
	}

	stats.SchemaVersion, _ = d.getMeta("schema_version")

	lastSaved, _ := d.getMeta("last_saved")
	if lastSaved != "" {
		stats.LastSaved, _ = time.Parse(time.RFC3339, lastSaved)
	}

	return stats, nil
}
