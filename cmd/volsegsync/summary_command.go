package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newSummaryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print a summary of the instance and its active index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureInstance()
			if err != nil {
				return err
			}
			manifest, err := ctx.activeManifest()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "\nInstance Information:")
			fmt.Fprintln(out)
			printField(out, "Name", cfg.Summary.Name)
			printField(out, "Description", cfg.Summary.Description)
			fmt.Fprintln(out)
			printField(out, "Active index", cfg.Index.Active)
			printField(out, "Available indexes", strings.Join(cfg.Index.Available, ", "))
			fmt.Fprintln(out)
			printField(out, "Volumes directory", manifest.VolumesDir)
			printField(out, "Volume file extension", manifest.VolumeExt)
			printField(out, "Segmentations directory", manifest.SegmentationsDir)
			printField(out, "Segmentation file extension", manifest.SegmentationExt)
			fmt.Fprintln(out)

			versionTotal := 0
			retired := 0
			for _, entry := range manifest.Volumes {
				if entry.Retired {
					retired++
					continue
				}
				versionTotal += len(entry.Versions)
			}
			rows := [][]string{
				{"Indexed pairs", strconv.Itoa(manifest.ActiveCount())},
				{"Segmentation versions", strconv.Itoa(versionTotal)},
				{"Retired volumes", strconv.Itoa(retired)},
				{"Unresolved files", strconv.Itoa(len(manifest.Unresolved))},
				{"Orphan segmentations", strconv.Itoa(len(manifest.Orphans))},
			}
			fmt.Fprint(out, renderTable(
				[]string{"Category", "Count"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func printField(out io.Writer, label, value string) {
	fmt.Fprintf(out, "%45s : %s\n", label, value)
}
