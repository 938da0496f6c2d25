package main

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-artwork/internal/config"
	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
	"github.com/edumarques81/stellar-artwork/internal/infra/enrichment"
	"github.com/edumarques81/stellar-artwork/internal/infra/mpd"
	"github.com/edumarques81/stellar-artwork/internal/infra/tagart"
	"github.com/edumarques81/stellar-artwork/internal/version"
)

// engine bundles the artwork service with the resources it was built over.
type engine struct {
	cfg     *config.Config
	service *artwork.Service
	plugins artwork.Plugins
	store   durableStore
	mpd     *mpd.Client
	closeFn func() error
}

func newEngine(cfg *config.Config) (*engine, error) {
	store, closeFn, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	mpdClient := mpd.NewClient(cfg.MPD.Host, cfg.MPD.Port, cfg.MPD.Password)
	plugins := buildPlugins(cfg, mpdClient)

	opts := []artwork.ServiceOption{}
	if cfg.Cache.AutosaveSeconds > 0 {
		opts = append(opts, artwork.WithAutosave(time.Duration(cfg.Cache.AutosaveSeconds)*time.Second))
	}
	service := artwork.NewService(cfg, artwork.NewStoreAdapter(store), plugins, opts...)

	return &engine{
		cfg:     cfg,
		service: service,
		plugins: plugins,
		store:   store,
		mpd:     mpdClient,
		closeFn: closeFn,
	}, nil
}

func (e *engine) Close() error {
	if err := e.mpd.Close(); err != nil {
		log.Debug().Err(err).Msg("Failed to close MPD connection")
	}
	return e.closeFn()
}

// buildPlugins maps the configured fetcher names to cover fetchers, in order.
// Online fetchers without credentials are skipped.
func buildPlugins(cfg *config.Config, mpdClient *mpd.Client) artwork.Plugins {
	ua := strings.TrimSpace(cfg.Enrichment.UserAgent)
	if ua == "" {
		ua = version.UserAgent()
	}
	rate := cfg.Enrichment.RateLimit

	var mb *enrichment.MusicBrainzClient
	musicBrainz := func() *enrichment.MusicBrainzClient {
		if mb == nil {
			mbOpts := []enrichment.MBOption{enrichment.WithMBUserAgent(ua)}
			if rate > 0 {
				mbOpts = append(mbOpts, enrichment.WithMBRateLimit(rate))
			}
			mb = enrichment.NewMusicBrainzClient(mbOpts...)
		}
		return mb
	}

	var plugins artwork.Plugins
	for _, name := range cfg.Artwork.Fetchers {
		switch name {
		case config.FetcherMPD:
			plugins = append(plugins, artwork.Plugin{Name: name, Fetch: mpdClient.FetchCover})
		case config.FetcherEmbedded:
			plugins = append(plugins, artwork.Plugin{Name: name, Fetch: tagart.NewFetcher(mpdClient, cfg.MusicDir).FetchCover})
		case config.FetcherCoverArtArchive:
			caaOpts := []enrichment.CAAOption{enrichment.WithUserAgent(ua)}
			if rate > 0 {
				caaOpts = append(caaOpts, enrichment.WithRateLimit(rate))
			}
			fetcher := enrichment.NewCoverArtFetcher(musicBrainz(), enrichment.NewCAAClient(caaOpts...))
			plugins = append(plugins, artwork.Plugin{Name: name, Fetch: fetcher.FetchCover})
		case config.FetcherFanartTV:
			client := enrichment.NewFanartClient(cfg.Enrichment.FanartAPIKey, enrichment.WithFanartUserAgent(ua))
			if !client.IsConfigured() {
				log.Info().Str("fetcher", name).Msg("Fetcher skipped: no API key")
				continue
			}
			fetcher := enrichment.NewFanartFetcher(musicBrainz(), client)
			plugins = append(plugins, artwork.Plugin{Name: name, Fetch: fetcher.FetchCover})
		case config.FetcherQobuz:
			client := enrichment.NewQobuzClient(cfg.Enrichment.QobuzAppID, cfg.Enrichment.QobuzAppSecret)
			if !client.IsConfigured() {
				log.Info().Str("fetcher", name).Msg("Fetcher skipped: no app credentials")
				continue
			}
			plugins = append(plugins, artwork.Plugin{Name: name, Fetch: client.FetchCover})
		}
	}
	return plugins
}

func pluginNames(plugins artwork.Plugins) []string {
	names := make([]string, 0, len(plugins))
	for _, p := range plugins {
		names = append(names, p.Name)
	}
	return names
}
