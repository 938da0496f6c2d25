package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
	"github.com/edumarques81/stellar-artwork/internal/infra/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and edit the artwork cache",
	}
	cmd.AddCommand(newCacheListCommand(ctx))
	cmd.AddCommand(newCacheForgetCommand(ctx))
	return cmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var missing bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached lookup results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			c, store, closeFn, err := loadCache(cfg)
			defer closeFn()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := cacheRows(c.Snapshot(), missing)
			if len(rows) == 0 {
				fmt.Fprintln(out, "No cache entries")
			} else {
				fmt.Fprintln(out, renderTable([]string{"Artist", "Album", "Path", "File"}, rows, nil))
			}

			stats, err := store.GetStats()
			if err != nil {
				return fmt.Errorf("failed to read cache stats: %w", err)
			}
			fmt.Fprintln(out, formatStoreStats(stats))
			return nil
		},
	}

	cmd.Flags().BoolVar(&missing, "missing", false, "Only list albums without artwork")
	return cmd
}

func cacheRows(records []artwork.Record, missingOnly bool) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		if missingOnly && r.Found() {
			continue
		}
		file := r.File
		if file == "" {
			file = "(none)"
		}
		rows = append(rows, []string{r.Key.Artist, r.Key.Album, r.Key.Path, file})
	}
	return rows
}

func formatStoreStats(stats *cache.Stats) string {
	saved := "never"
	if !stats.LastSaved.IsZero() {
		saved = stats.LastSaved.Local().Format(time.RFC3339)
	}
	return fmt.Sprintf("%s store %s: %d entries (%d without artwork), last saved %s",
		stats.Backend, stats.Path, stats.EntryCount, stats.NegativeCount, saved)
}

func newCacheForgetCommand(ctx *commandContext) *cobra.Command {
	var key artwork.Key
	var dir string

	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Drop cached results so they are looked up again",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				if err := requireKey(key); err != nil {
					return fmt.Errorf("%w (or use --dir)", err)
				}
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			c, _, closeFn, err := loadCache(cfg)
			defer closeFn()
			if err != nil {
				return err
			}

			removed := 0
			if dir != "" {
				removed = c.ForgetDir(dir)
			} else if c.Forget(key) {
				removed = 1
			}

			if err := c.Save(); err != nil {
				return fmt.Errorf("failed to save artwork cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Forgot %d entries\n", removed)
			return nil
		},
	}

	keyFlags(cmd, &key)
	cmd.Flags().StringVar(&dir, "dir", "", "Forget every entry for this song directory")
	return cmd
}
