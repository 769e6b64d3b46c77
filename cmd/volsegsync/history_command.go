package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"volsegsync/internal/config"
	"volsegsync/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the audit log of mutating commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureInstance(); err != nil {
				return err
			}
			store, err := history.Open(config.HistoryPath(ctx.root))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			out := cmd.OutOrStdout()
			if runID != "" {
				changes, err := store.Changes(cmd.Context(), runID)
				if err != nil {
					return err
				}
				if len(changes) == 0 {
					fmt.Fprintf(out, "No changes recorded for run %s\n", runID)
					return nil
				}
				rows := make([][]string, 0, len(changes))
				for _, change := range changes {
					rows = append(rows, []string{change.Subject, change.Kind, change.Detail})
				}
				fmt.Fprint(out, renderTable(
					[]string{"Subject", "Change", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				return nil
			}

			runs, err := store.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.Command,
					run.Index,
					run.StartedAt.Local().Format(time.DateTime),
					run.Status,
					run.Detail,
				})
			}
			fmt.Fprint(out, renderTable(
				[]string{"Run", "Command", "Index", "Started", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show the changes of one run instead of the run list")
	return cmd
}
