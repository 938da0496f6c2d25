package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-artwork/internal/config"
	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
	"github.com/edumarques81/stellar-artwork/internal/infra/cache"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// durableStore is a cache backend that can also describe itself.
type durableStore interface {
	cache.Store
	GetStats() (*cache.Stats, error)
}

// openStore opens the configured cache backend. The returned close function
// is never nil.
func openStore(cfg *config.Config) (durableStore, func() error, error) {
	switch cfg.Cache.Backend {
	case config.BackendSQLite:
		db := cache.NewDB(cfg.Cache.Path)
		if err := db.Open(); err != nil {
			return nil, func() error { return nil }, fmt.Errorf("open artwork cache: %w", err)
		}
		return db, db.Close, nil
	default:
		return cache.NewFileStore(cfg.Cache.Path), func() error { return nil }, nil
	}
}

// loadCache opens the store and loads it into an in-memory artwork cache for
// offline inspection.
func loadCache(cfg *config.Config) (*artwork.Cache, durableStore, func() error, error) {
	store, closeFn, err := openStore(cfg)
	if err != nil {
		return nil, nil, closeFn, err
	}
	c := artwork.NewCache(artwork.NewStoreAdapter(store))
	c.Load()
	return c, store, closeFn, nil
}

func keyFlags(cmd *cobra.Command, key *artwork.Key) {
	cmd.Flags().StringVar(&key.Artist, "artist", "", "Album artist")
	cmd.Flags().StringVar(&key.Album, "album", "", "Album title")
	cmd.Flags().StringVar(&key.Path, "path", "", "Song directory relative to the music root")
}

func requireKey(key artwork.Key) error {
	if key.IsZero() {
		return fmt.Errorf("--artist or --album is required")
	}
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
