package main

import (
	"github.com/spf13/cobra"

	"github.com/markerlane/markerlane-agent/internal/config"
)

func newRootCommand() *cobra.Command {
	var reviewFlag string
	var logLevelFlag string

	ctx := newCommandContext(&reviewFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "markerlane",
		Short:         "Swimlane review agent for Stash scene markers",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&reviewFlag, "review-config", "", "Review rules file (default: <data dir>/review.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newLanesCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
