package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"volsegsync/internal/errs"
	"volsegsync/internal/naming"
	"volsegsync/internal/viewer"
)

func newDisplayCommand(ctx *commandContext) *cobra.Command {
	var volume string

	cmd := &cobra.Command{
		Use:   "display",
		Short: "Open a volume and its selected segmentation in the external viewer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureInstance()
			if err != nil {
				return err
			}
			manifest, err := ctx.activeManifest()
			if err != nil {
				return err
			}

			volume = strings.TrimSpace(volume)
			if !strings.HasSuffix(volume, manifest.VolumeExt) {
				return errs.Wrap(errs.ErrValidation, "display", "",
					fmt.Sprintf("volume file does not end with %s: %s", manifest.VolumeExt, volume), nil)
			}
			desc := naming.Parse(volume, volume, manifest.VolumeExt)
			if !desc.Valid {
				return errs.Wrap(errs.ErrValidation, "display", "",
					fmt.Sprintf("volume name violates the naming convention: %s", volume), nil)
			}
			subject := desc.Subject()

			segName, ok := manifest.SelectedSegmentation(subject)
			if !ok {
				return errs.Wrap(errs.ErrNotFound, "display", "",
					fmt.Sprintf("volume %q has no selected segmentation in index %q", subject, manifest.IndexName), nil)
			}

			volumePath := filepath.Join(ctx.root, manifest.VolumesDir, volume)
			segPath := filepath.Join(ctx.root, manifest.SegmentationsDir, segName)
			for _, path := range []string{volumePath, segPath} {
				if _, err := os.Stat(path); err != nil {
					return errs.Wrap(errs.ErrNotFound, "display", "",
						fmt.Sprintf("file not found: %s", path), nil)
				}
			}

			return viewer.Launch(cmd.Context(), ctx.log(), cfg.Viewer.Binary, volumePath, segPath)
		},
	}

	cmd.Flags().StringVar(&volume, "volume", "", "Volume file name, with extension")
	_ = cmd.MarkFlagRequired("volume")
	return cmd
}
