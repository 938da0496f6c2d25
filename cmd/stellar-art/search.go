package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-artwork/internal/domain/artwork"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var key artwork.Key
	var limit int

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Download candidate covers for an album without installing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireKey(key); err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			files, err := eng.service.Search(cmd.Context(), key, limit)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(files))
			for i, f := range files {
				rows = append(rows, []string{strconv.Itoa(i + 1), f})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"#", "Candidate"}, rows, []columnAlignment{alignRight, alignLeft}))
			fmt.Fprintln(cmd.OutOrStdout(), "Install one with: stellar-art choose --candidate <file>")
			return nil
		},
	}

	keyFlags(cmd, &key)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of candidates (default from config)")
	return cmd
}

func newChooseCommand(ctx *commandContext) *cobra.Command {
	var key artwork.Key
	var candidate string

	cmd := &cobra.Command{
		Use:   "choose",
		Short: "Install a candidate image as an album's artwork",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireKey(key); err != nil {
				return err
			}
			if candidate == "" {
				return fmt.Errorf("--candidate is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			eng, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			eng.service.Cache().Load()
			if err := eng.service.Choose(key, candidate); err != nil {
				return err
			}
			if err := eng.service.Cache().Save(); err != nil {
				return fmt.Errorf("failed to save artwork cache: %w", err)
			}
			file, _ := eng.service.Cache().Get(key)
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\n", file)
			return nil
		},
	}

	keyFlags(cmd, &key)
	cmd.Flags().StringVar(&candidate, "candidate", "", "Image file to install")
	return cmd
}
