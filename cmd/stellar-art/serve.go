package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
	"github.com/edumarques81/stellar-artwork/internal/infra/watch"
	"github.com/edumarques81/stellar-artwork/internal/transport/httpapi"
	"github.com/edumarques81/stellar-artwork/internal/transport/socketio"
	"github.com/edumarques81/stellar-artwork/internal/version"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int
	var noWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the artwork engine with its HTTP and socket.io endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if noWatch {
				cfg.Server.Watch = false
			}

			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			return serve(cmd.Context(), eng)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides config)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "Disable music directory watching")
	return cmd
}

func serve(ctx context.Context, eng *engine) error {
	cfg := eng.cfg
	service := eng.service

	info := version.GetInfo()
	log.Info().
		Str("version", info.Version).
		Str("music_dir", cfg.MusicDir()).
		Str("backend", cfg.Cache.Backend).
		Strs("fetchers", pluginNames(eng.plugins)).
		Msg("Starting artwork engine")

	if err := eng.mpd.Connect(); err != nil {
		log.Warn().Err(err).Msg("MPD not reachable, MPD based fetchers will fail until it is")
	}

	thumbs := artwork.NewThumbnailGenerator(cfg.Artwork.ThumbnailsDir)
	thumbSub := service.Notifier().Subscribe(thumbs.CleanupThumbnails)
	defer service.Notifier().Unsubscribe(thumbSub)

	corsOrigin := strings.Join(cfg.Server.CORSOrigins, ",")
	socketServer, err := socketio.NewServer(service, corsOrigin)
	if err != nil {
		return fmt.Errorf("failed to create socket.io server: %w", err)
	}
	defer socketServer.Close()

	server := &http.Server{
		Addr: ":" + strconv.Itoa(cfg.Server.Port),
		Handler: httpapi.NewRouter(httpapi.Options{
			Service:    service,
			Thumbnails: thumbs,
			MPD:        eng.mpd,
			Socket:     socketServer,
			CORSOrigin: corsOrigin,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return service.Run(gctx)
	})

	g.Go(func() error {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
		return nil
	})

	if cfg.Server.Watch {
		guard := newWriteGuard(cfg.MusicDir(), service.Cache())
		guardSub := service.Notifier().Subscribe(guard.observe)
		defer service.Notifier().Unsubscribe(guardSub)

		watcher, err := watch.New(cfg.MusicDir(), func(dir string) {
			if guard.recent(dir) {
				log.Debug().Str("dir", dir).Msg("Ignoring change from a cover just written")
				return
			}
			if n := service.Cache().ForgetDir(dir); n > 0 {
				log.Debug().Str("dir", dir).Int("entries", n).Msg("Forgot artwork for changed directory")
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("Music directory watching disabled")
		} else {
			g.Go(func() error {
				if err := watcher.Run(gctx); err != nil {
					log.Warn().Err(err).Str("root", cfg.MusicDir()).Msg("Music directory watcher stopped")
				}
				return nil
			})
		}
	}

	err = g.Wait()
	log.Info().Msg("Server stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
