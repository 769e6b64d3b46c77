package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"volsegsync/internal/index"
	"volsegsync/internal/logging"
	"volsegsync/internal/match"
	"volsegsync/internal/scan"
)

func newUpdateCommand(ctx *commandContext) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Rescan the dataset and merge changes into the active index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func() error {
				manifest, err := ctx.activeManifest()
				if err != nil {
					return err
				}

				snap, err := scan.Dataset(cmd.Context(), ctx.root, manifest.Layout())
				if err != nil {
					return err
				}
				res := match.Match(snap.Volumes, snap.Segmentations)
				merged, changes := index.Merge(manifest, res)
				if prune {
					pruned := index.Prune(merged)
					changes.Changes = append(changes.Changes, pruned.Changes...)
				}

				out := cmd.OutOrStdout()
				if len(changes.Changes) == 0 {
					fmt.Fprintln(out, "Nothing to do!")
					return nil
				}

				runErr := ctx.saveActiveManifest(merged)
				ctx.recordRun(cmd.Context(), "update", changes.Changes, runErr)
				if runErr != nil {
					return runErr
				}

				ctx.log().Info("index updated",
					logging.String("index", merged.IndexName),
					logging.Int("changes", len(changes.Changes)))

				rows := make([][]string, 0, len(changes.Changes))
				for _, change := range changes.Changes {
					rows = append(rows, []string{change.Subject, string(change.Kind), change.Detail})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Subject", "Change", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				fmt.Fprintf(out, "\nvolsegsync instance updated (%d changes).\n", len(changes.Changes))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&prune, "prune", false, "Drop retired volumes from the index after merging")
	return cmd
}
