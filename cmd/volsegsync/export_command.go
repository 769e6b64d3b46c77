package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"volsegsync/internal/export"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the active pair list for downstream pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			manifest, err := ctx.activeManifest()
			if err != nil {
				return err
			}

			if strings.TrimSpace(output) == "" {
				return export.Write(cmd.OutOrStdout(), parsed, manifest, ctx.root)
			}
			if err := export.WriteFile(output, parsed, manifest, ctx.root); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d pairs to %s\n", manifest.ActiveCount(), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (stdout when omitted)")
	cmd.Flags().StringVar(&format, "format", string(export.FormatCSV), "Output format (csv or table)")
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{string(export.FormatCSV), string(export.FormatTable)}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}
