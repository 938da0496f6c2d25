package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	if err := c.normalizeArtwork(); err != nil {
		return err
	}
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeMPD()
	c.normalizeEnrichment()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeLibrary() error {
	dirs := make([]string, 0, len(c.Library.MusicDirs))
	for i, dir := range c.Library.MusicDirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		expanded, err := expandPath(strings.TrimSpace(dir))
		if err != nil {
			return fmt.Errorf("library.music_dirs[%d]: %w", i, err)
		}
		dirs = append(dirs, expanded)
	}
	c.Library.MusicDirs = dirs
	return nil
}

func (c *Config) normalizeArtwork() error {
	var err error
	if strings.TrimSpace(c.Artwork.CoversDir) == "" {
		c.Artwork.CoversDir = defaultCoversDir
	}
	if c.Artwork.CoversDir, err = expandPath(c.Artwork.CoversDir); err != nil {
		return fmt.Errorf("artwork.covers_dir: %w", err)
	}
	if strings.TrimSpace(c.Artwork.ThumbnailsDir) == "" {
		c.Artwork.ThumbnailsDir = defaultThumbnailsDir
	}
	if c.Artwork.ThumbnailsDir, err = expandPath(c.Artwork.ThumbnailsDir); err != nil {
		return fmt.Errorf("artwork.thumbnails_dir: %w", err)
	}

	c.Artwork.ArtLocation = strings.ToLower(strings.TrimSpace(c.Artwork.ArtLocation))
	if c.Artwork.ArtLocation == "" {
		c.Artwork.ArtLocation = defaultArtLocation
	}
	c.Artwork.CustomFilename = strings.TrimSpace(c.Artwork.CustomFilename)
	if c.Artwork.MaxImages <= 0 {
		c.Artwork.MaxImages = defaultMaxImages
	}

	fetchers := make([]string, 0, len(c.Artwork.Fetchers))
	seen := make(map[string]bool)
	for _, name := range c.Artwork.Fetchers {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		fetchers = append(fetchers, name)
	}
	c.Artwork.Fetchers = fetchers
	return nil
}

func (c *Config) normalizeCache() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	if strings.TrimSpace(c.Cache.Path) == "" {
		if c.Cache.Backend == BackendSQLite {
			c.Cache.Path = defaultSQLitePath
		} else {
			c.Cache.Path = defaultCachePath
		}
	}

	var err error
	if c.Cache.Path, err = expandPath(c.Cache.Path); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	if c.Cache.AutosaveSeconds <= 0 {
		c.Cache.AutosaveSeconds = defaultAutosaveSeconds
	}
	return nil
}

func (c *Config) normalizeMPD() {
	c.MPD.Host = strings.TrimSpace(c.MPD.Host)
	if c.MPD.Host == "" {
		c.MPD.Host = defaultMPDHost
	}
	if c.MPD.Port == 0 {
		c.MPD.Port = defaultMPDPort
	}
	if c.MPD.Password == "" {
		if value, ok := os.LookupEnv("MPD_PASSWORD"); ok {
			c.MPD.Password = value
		}
	}
}

func (c *Config) normalizeEnrichment() {
	c.Enrichment.UserAgent = strings.TrimSpace(c.Enrichment.UserAgent)
	if c.Enrichment.RateLimit <= 0 {
		c.Enrichment.RateLimit = defaultRateLimit
	}
	lookupEnv(&c.Enrichment.FanartAPIKey, "FANART_API_KEY")
	lookupEnv(&c.Enrichment.QobuzAppID, "QOBUZ_APP_ID")
	lookupEnv(&c.Enrichment.QobuzAppSecret, "QOBUZ_APP_SECRET")
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(field *string, name string) {
	if strings.TrimSpace(*field) != "" {
		*field = strings.TrimSpace(*field)
		return
	}
	if value, ok := os.LookupEnv(name); ok {
		*field = strings.TrimSpace(value)
	}
}
