package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"volsegsync/internal/errs"
	"volsegsync/internal/index"
	"volsegsync/internal/logging"
	"volsegsync/internal/naming"
)

func newSelectSegCommand(ctx *commandContext) *cobra.Command {
	var (
		volume  string
		version string
	)

	cmd := &cobra.Command{
		Use:   "select-seg",
		Short: "Set the selected segmentation version for a volume",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func() error {
				manifest, err := ctx.activeManifest()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				version = strings.TrimSpace(version)
				if !validVersionToken(version) {
					return errs.Wrap(errs.ErrValidation, "select-seg", "",
						fmt.Sprintf("version must be like v<N>: received %q", version), nil)
				}
				volume = strings.TrimSpace(volume)
				if !strings.HasSuffix(volume, manifest.VolumeExt) {
					return errs.Wrap(errs.ErrValidation, "select-seg", "",
						fmt.Sprintf("volume file does not end with %s: %s", manifest.VolumeExt, volume), nil)
				}
				subject := naming.Parse(volume, volume, manifest.VolumeExt).Subject()

				entry := manifest.Entry(subject)
				if entry == nil {
					return errs.Wrap(errs.ErrNotFound, "select-seg", "",
						fmt.Sprintf("volume %q not found in index %q", subject, manifest.IndexName), nil)
				}

				// A vanished volume file invalidates the whole entry.
				volumePath := filepath.Join(ctx.root, manifest.VolumesDir, volume)
				if _, err := os.Stat(volumePath); err != nil {
					delete(manifest.Volumes, subject)
					runErr := ctx.saveActiveManifest(manifest)
					changes := []index.Change{{Subject: subject, Kind: index.ChangeRetiredVolume, Detail: "volume file missing"}}
					ctx.recordRun(cmd.Context(), "select-seg", changes, runErr)
					if runErr != nil {
						return runErr
					}
					return errs.Wrap(errs.ErrNotFound, "select-seg", "",
						fmt.Sprintf("volume file not found: %s (removed %q from index)", volumePath, subject), nil)
				}

				available := manifest.VersionStrings(subject)
				if !contains(available, version) {
					return errs.Wrap(errs.ErrNotFound, "select-seg", "",
						fmt.Sprintf("version %q not recorded for volume %q (available: %s)",
							version, subject, strings.Join(available, ", ")), nil)
				}

				oldSelected := entry.SelectedVersion

				// A vanished segmentation file drops that version; selection
				// falls back to the highest remaining ordinal.
				segName := fmt.Sprintf("%s-%s%s", subject, version, manifest.SegmentationExt)
				segPath := filepath.Join(ctx.root, manifest.SegmentationsDir, segName)
				if _, err := os.Stat(segPath); err != nil {
					manifest.RemoveVersion(subject, version)
					runErr := ctx.saveActiveManifest(manifest)
					changes := []index.Change{{Subject: subject, Kind: index.ChangeRemovedVersion, Detail: segName}}
					ctx.recordRun(cmd.Context(), "select-seg", changes, runErr)
					if runErr != nil {
						return runErr
					}
					remaining := manifest.VersionStrings(subject)
					fmt.Fprintf(out, "Removed version %q from index for volume %q.\n", version, subject)
					if len(remaining) > 0 {
						fmt.Fprintf(out, "Please select from available versions: %s.\n", strings.Join(remaining, ", "))
					}
					if oldSelected == version {
						fmt.Fprintf(out, "Previously selected version no longer available. Defaulting to %q.\n",
							manifest.Entry(subject).SelectedVersion)
					}
					return errs.Wrap(errs.ErrNotFound, "select-seg", "",
						fmt.Sprintf("segmentation file not found: %s", segName), nil)
				}

				if oldSelected == version {
					fmt.Fprintf(out, "Selected version is already %q for volume %q.\n", version, subject)
					return nil
				}

				manifest.SetSelected(subject, version)
				runErr := ctx.saveActiveManifest(manifest)
				changes := []index.Change{{Subject: subject, Kind: index.ChangeReselected,
					Detail: fmt.Sprintf("%s -> %s", oldSelected, version)}}
				ctx.recordRun(cmd.Context(), "select-seg", changes, runErr)
				if runErr != nil {
					return runErr
				}

				ctx.log().Info("selection updated",
					logging.String("subject", subject),
					logging.String("version", version))
				fmt.Fprintf(out, "Selected segmentation updated: %s -> %s-%s\n", subject, subject, version)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&volume, "volume", "", "Volume file name, with extension")
	cmd.Flags().StringVar(&version, "version", "", "Segmentation version to select (for example v2)")
	_ = cmd.MarkFlagRequired("volume")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}

func validVersionToken(version string) bool {
	if !strings.HasPrefix(version, "v") || len(version) < 2 {
		return false
	}
	_, err := strconv.Atoi(version[1:])
	return err == nil
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
