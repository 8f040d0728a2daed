package main

import (
	"github.com/spf13/cobra"

	"github.com/JustinTDCT/AnimeVault/internal/version"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "animevault",
		Short:         "Anime library manager",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Override LOG_LEVEL")
	rootCmd.PersistentFlags().BoolVar(&ctx.relayEvents, "relay-events", false, "Publish progress to a running server over Redis")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newRenameCommand(ctx))
	rootCmd.AddCommand(newDiscoverCommand(ctx))
	return rootCmd
}
