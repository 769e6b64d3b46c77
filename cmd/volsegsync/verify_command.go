package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"volsegsync/internal/match"
	"volsegsync/internal/scan"
	"volsegsync/internal/verify"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare the stored index against the current state of the dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := ctx.activeManifest()
			if err != nil {
				return err
			}
			snap, err := scan.Dataset(cmd.Context(), ctx.root, manifest.Layout())
			if err != nil {
				return err
			}
			report := verify.Verify(manifest, match.Match(snap.Volumes, snap.Segmentations))

			out := cmd.OutOrStdout()
			if report.Empty() {
				fmt.Fprintln(out, "Index is consistent with the dataset.")
				return nil
			}

			var rows [][]string
			for _, subject := range report.Missing {
				rows = append(rows, []string{"missing", subject, "indexed volume no longer pairs on disk"})
			}
			for _, mismatch := range report.Mismatched {
				rows = append(rows, []string{"mismatched", mismatch.Subject,
					fmt.Sprintf("indexed %s, scan offers %s", mismatch.Indexed, mismatch.Scanned)})
			}
			for _, orphan := range report.Orphans {
				rows = append(rows, []string{"orphan", orphan.Name, "segmentation without a volume"})
			}
			for _, unresolved := range report.Unresolved {
				rows = append(rows, []string{"unresolved", unresolved.Name, "file violates the naming convention or is ambiguous"})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Category", "File/Subject", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if strict {
				// Unclassified on purpose, maps to the plain failure exit code.
				return fmt.Errorf("verify: %d inconsistencies found", len(rows))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when the report is not empty")
	return cmd
}
