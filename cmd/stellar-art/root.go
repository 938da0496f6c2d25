package main

import (
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-artwork/internal/logging"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var debugFlag bool

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "stellar-art",
		Short:         "Album artwork resolver and cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return logging.Setup(logging.Options{Debug: debugFlag, Out: cmd.ErrOrStderr()})
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return logging.Setup(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Debug:  debugFlag,
				Out:    cmd.ErrOrStderr(),
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newResolveCommand(ctx))
	rootCmd.AddCommand(newSearchCommand(ctx))
	rootCmd.AddCommand(newChooseCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
