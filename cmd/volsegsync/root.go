package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var dirFlag string
	var logLevelFlag string
	var logFormatFlag string

	ctx := newCommandContext(&dirFlag, &logLevelFlag, &logFormatFlag)

	rootCmd := &cobra.Command{
		Use:           "volsegsync",
		Short:         "Keep volume and segmentation files paired and versioned",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "d", "", "Instance directory (defaults to the current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format (console, json)")

	rootCmd.AddCommand(newInitCommand(ctx))
	rootCmd.AddCommand(newSummaryCommand(ctx))
	rootCmd.AddCommand(newUpdateCommand(ctx))
	rootCmd.AddCommand(newVerifyCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newDisplayCommand(ctx))
	rootCmd.AddCommand(newLinkCommand(ctx))
	rootCmd.AddCommand(newSelectSegCommand(ctx))
	rootCmd.AddCommand(newUpdateSegCommand(ctx))
	rootCmd.AddCommand(newCreateIndexCommand(ctx))
	rootCmd.AddCommand(newSelectIndexCommand(ctx))
	rootCmd.AddCommand(newRenameCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))

	return rootCmd
}
