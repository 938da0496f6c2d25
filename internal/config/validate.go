package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateArtwork(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateMPD(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLibrary() error {
	if len(c.Library.MusicDirs) == 0 {
		return errors.New("library.music_dirs must list at least one directory")
	}
	if c.Library.Profile < 0 || c.Library.Profile >= len(c.Library.MusicDirs) {
		return fmt.Errorf("library.profile %d is out of range (0-%d)", c.Library.Profile, len(c.Library.MusicDirs)-1)
	}
	return nil
}

func (c *Config) validateArtwork() error {
	loc, err := artwork.ParseLocation(c.Artwork.ArtLocation)
	if err != nil {
		return fmt.Errorf("artwork.art_location: %w", err)
	}
	if loc == artwork.LocationCustom {
		if c.Artwork.CustomFilename == "" {
			return errors.New("artwork.custom_filename must be set when artwork.art_location is custom")
		}
		if strings.ContainsAny(c.Artwork.CustomFilename, `/\`) {
			return errors.New("artwork.custom_filename must be a file name, not a path")
		}
	}
	for _, name := range c.Artwork.Fetchers {
		if !slices.Contains(knownFetchers, name) {
			return fmt.Errorf("artwork.fetchers: unknown fetcher %q (known: %s)", name, strings.Join(knownFetchers, ", "))
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Cache.Backend)
	}
	return nil
}

func (c *Config) validateMPD() error {
	if c.MPD.Port < 1 || c.MPD.Port > 65535 {
		return fmt.Errorf("mpd.port %d is out of range", c.MPD.Port)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	return nil
}
