package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
)

// Library lists the music roots. Profile selects the active one.
type Library struct {
	MusicDirs []string `toml:"music_dirs"`
	Profile   int      `toml:"profile"`
}

// Artwork contains lookup and storage settings for covers.
type Artwork struct {
	CoversEnabled  bool     `toml:"covers_enabled"`
	ArtLocation    string   `toml:"art_location"`
	CustomFilename string   `toml:"custom_filename"`
	CoversDir      string   `toml:"covers_dir"`
	ThumbnailsDir  string   `toml:"thumbnails_dir"`
	MaxImages      int      `toml:"max_images"`
	Fetchers       []string `toml:"fetchers"`
}

// Cache selects and configures the durable cache store.
type Cache struct {
	Backend         string `toml:"backend"`
	Path            string `toml:"path"`
	AutosaveSeconds int    `toml:"autosave_seconds"`
}

// MPD contains connection settings for the MPD fetchers.
type MPD struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Password string `toml:"password"`
}

// Enrichment contains credentials and limits for the online fetchers.
type Enrichment struct {
	UserAgent      string `toml:"user_agent"`
	RateLimit      int    `toml:"rate_limit"`
	FanartAPIKey   string `toml:"fanart_api_key"`
	QobuzAppID     string `toml:"qobuz_app_id"`
	QobuzAppSecret string `toml:"qobuz_app_secret"`
}

// Server contains the HTTP/socket.io listener settings.
type Server struct {
	Port        int      `toml:"port"`
	Watch       bool     `toml:"watch"`
	CORSOrigins []string `toml:"cors_origins"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for stellar-art.
type Config struct {
	Library    Library    `toml:"library"`
	Artwork    Artwork    `toml:"artwork"`
	Cache      Cache      `toml:"cache"`
	MPD        MPD        `toml:"mpd"`
	Enrichment Enrichment `toml:"enrichment"`
	Server     Server     `toml:"server"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded. A missing file yields the defaults.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("stellar-art.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// MusicDir returns the active music root.
func (c *Config) MusicDir() string {
	if len(c.Library.MusicDirs) == 0 {
		return ""
	}
	if c.Library.Profile < 0 || c.Library.Profile >= len(c.Library.MusicDirs) {
		return c.Library.MusicDirs[0]
	}
	return c.Library.MusicDirs[c.Library.Profile]
}

// ArtworkSettings implements artwork.SettingsProvider. Validate guarantees
// the location parses.
func (c *Config) ArtworkSettings() artwork.Settings {
	loc, err := artwork.ParseLocation(c.Artwork.ArtLocation)
	if err != nil {
		loc = artwork.LocationHomeCovers
	}
	return artwork.Settings{
		MusicDir:       c.MusicDir(),
		CoversDir:      c.Artwork.CoversDir,
		ArtLocation:    loc,
		CustomFilename: c.Artwork.CustomFilename,
		CoversEnabled:  c.Artwork.CoversEnabled,
		MaxImages:      c.Artwork.MaxImages,
	}
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Artwork.CoversDir, c.Artwork.ThumbnailsDir, filepath.Dir(c.Cache.Path)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
