package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"volsegsync/internal/errs"
	"volsegsync/internal/index"
	"volsegsync/internal/logging"
	"volsegsync/internal/naming"
)

func newUpdateSegCommand(ctx *commandContext) *cobra.Command {
	var (
		volume  string
		version string
		author  string
		notes   string
		tags    []string
	)

	cmd := &cobra.Command{
		Use:   "update-seg",
		Short: "Edit the author, notes, or tags recorded on a segmentation version",
		Long: "Edit the metadata recorded on an existing segmentation version. " +
			"Omitted fields keep their current value, so a single field can be " +
			"corrected without restating the others.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func() error {
				manifest, err := ctx.activeManifest()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				version = strings.TrimSpace(version)
				if !validVersionToken(version) {
					return errs.Wrap(errs.ErrValidation, "update-seg", "",
						fmt.Sprintf("version must be like v<N>: received %q", version), nil)
				}
				volume = strings.TrimSpace(volume)
				if !strings.HasSuffix(volume, manifest.VolumeExt) {
					return errs.Wrap(errs.ErrValidation, "update-seg", "",
						fmt.Sprintf("volume file does not end with %s: %s", manifest.VolumeExt, volume), nil)
				}
				subject := naming.Parse(volume, volume, manifest.VolumeExt).Subject()

				if manifest.Entry(subject) == nil {
					return errs.Wrap(errs.ErrNotFound, "update-seg", "",
						fmt.Sprintf("volume %q not found in index %q", subject, manifest.IndexName), nil)
				}

				changed, found := manifest.UpdateVersionMetadata(subject, version,
					strings.TrimSpace(author), strings.TrimSpace(notes), tags)
				if !found {
					available := manifest.VersionStrings(subject)
					return errs.Wrap(errs.ErrNotFound, "update-seg", "",
						fmt.Sprintf("version %q not recorded for volume %q (available: %s)",
							version, subject, strings.Join(available, ", ")), nil)
				}

				if len(changed) == 0 {
					fmt.Fprintf(out, "No metadata changes for volume %q, version %q.\n", subject, version)
					return nil
				}

				runErr := ctx.saveActiveManifest(manifest)
				changes := make([]index.Change, 0, len(changed))
				for _, fc := range changed {
					changes = append(changes, index.Change{
						Subject: subject,
						Kind:    index.ChangeUpdatedVersion,
						Detail:  fmt.Sprintf("%s %s: %q -> %q", version, fc.Field, fc.Old, fc.New),
					})
				}
				ctx.recordRun(cmd.Context(), "update-seg", changes, runErr)
				if runErr != nil {
					return runErr
				}

				for _, fc := range changed {
					ctx.log().Info("version metadata updated",
						logging.String("subject", subject),
						logging.String("version", version),
						logging.String("field", fc.Field))
					fmt.Fprintf(out, "  %s: %q -> %q\n", fc.Field, fc.Old, fc.New)
				}
				fmt.Fprintf(out, "Metadata updated for volume %q, version %q.\n", subject, version)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&volume, "volume", "", "Volume file name, with extension")
	cmd.Flags().StringVar(&version, "version", "", "Segmentation version to edit (for example v2)")
	cmd.Flags().StringVar(&author, "author", "", "New author, empty keeps the current value")
	cmd.Flags().StringVar(&notes, "notes", "", "New notes, empty keeps the current value")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "New tags, replacing the current set (repeatable)")
	_ = cmd.MarkFlagRequired("volume")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}
