package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
)

const defaultResolveTimeout = 30 * time.Second

// errTimeout is returned when a lookup does not finish in time.
var errTimeout = errors.New("timed out waiting for artwork")

type resolveResult struct {
	Key   artwork.Key `json:"key"`
	File  string      `json:"file"`
	Found bool        `json:"found"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var key artwork.Key
	var refresh bool
	var jsonOutput bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the artwork for one album",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireKey(key); err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Artwork.CoversEnabled {
				return artwork.ErrCoversDisabled
			}

			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			file, err := resolveOnce(cmd.Context(), eng.service, key, refresh, timeout)
			if err != nil {
				return err
			}
			return printResolveResult(cmd.OutOrStdout(), resolveResult{Key: key, File: file, Found: file != ""}, jsonOutput)
		},
	}

	keyFlags(cmd, &key)
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore any cached result and look again")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultResolveTimeout, "How long to wait for the lookup")
	return cmd
}

// resolveOnce runs the engine just long enough to answer one lookup and save
// the cache.
func resolveOnce(parent context.Context, service *artwork.Service, key artwork.Key, refresh bool, timeout time.Duration) (string, error) {
	ready := make(chan struct{}, 1)
	sub := service.Notifier().Subscribe(func(k artwork.Key) {
		if k == key {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	})
	defer service.Notifier().Unsubscribe(sub)

	ctx, cancel := context.WithCancel(parent)
	runErr := make(chan error, 1)
	go func() { runErr <- service.Run(ctx) }()

	stop := func() error {
		cancel()
		return <-runErr
	}

	select {
	case <-service.Loaded():
	case err := <-runErr:
		cancel()
		return "", err
	}

	if refresh {
		service.Refresh(key, artwork.PriorityNowPlaying)
	} else if file, ok := service.Lookup(key, artwork.PriorityNowPlaying); ok {
		return file, stop()
	}

	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ready:
	case <-timer.C:
		_ = stop()
		return "", errTimeout
	case <-parent.Done():
		_ = stop()
		return "", parent.Err()
	}

	file, _ := service.Cache().Get(key)
	return file, stop()
}

func printResolveResult(out io.Writer, res resolveResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if !res.Found {
		fmt.Fprintf(out, "No artwork for %s\n", res.Key)
		return nil
	}
	fmt.Fprintln(out, res.File)
	return nil
}
