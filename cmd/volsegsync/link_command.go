package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"volsegsync/internal/errs"
	"volsegsync/internal/index"
	"volsegsync/internal/logging"
	"volsegsync/internal/naming"
)

func newLinkCommand(ctx *commandContext) *cobra.Command {
	var (
		volume       string
		segmentation string
		author       string
		notes        string
		tags         []string
	)

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Attach an existing segmentation file to a volume as a new version",
		Long: "Attach an existing segmentation file to a volume. The segmentation is " +
			"renamed to the canonical <subject>-v<N> form when needed and recorded " +
			"as a version in the active index.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func() error {
				manifest, err := ctx.activeManifest()
				if err != nil {
					return err
				}

				volume = strings.TrimSpace(volume)
				segmentation = strings.TrimSpace(segmentation)
				if !strings.HasSuffix(volume, manifest.VolumeExt) {
					return errs.Wrap(errs.ErrValidation, "link", "",
						fmt.Sprintf("volume file does not end with %s: %s", manifest.VolumeExt, volume), nil)
				}
				if !strings.HasSuffix(segmentation, manifest.SegmentationExt) {
					return errs.Wrap(errs.ErrValidation, "link", "",
						fmt.Sprintf("segmentation file does not end with %s: %s", manifest.SegmentationExt, segmentation), nil)
				}

				volumePath := filepath.Join(ctx.root, manifest.VolumesDir, volume)
				segPath := filepath.Join(ctx.root, manifest.SegmentationsDir, segmentation)
				if _, err := os.Stat(volumePath); err != nil {
					return errs.Wrap(errs.ErrNotFound, "link", "",
						fmt.Sprintf("volume file not found in volumes directory: %s", volumePath), nil)
				}
				if _, err := os.Stat(segPath); err != nil {
					return errs.Wrap(errs.ErrNotFound, "link", "",
						fmt.Sprintf("segmentation file not found in segmentations directory: %s", segPath), nil)
				}

				volDesc := naming.Parse(volume, volume, manifest.VolumeExt)
				if !volDesc.Valid {
					return errs.Wrap(errs.ErrValidation, "link", "",
						fmt.Sprintf("volume name violates the naming convention: %s", volume), nil)
				}
				subject := volDesc.Subject()

				// Honor an existing -v<N> suffix only when the segmentation
				// already carries the volume's subject; otherwise allocate
				// the next ordinal.
				segDesc := naming.Parse(segmentation, segmentation, manifest.SegmentationExt)
				ordinal := 0
				if segDesc.Valid && segDesc.Subject() == subject && segDesc.Version > 0 {
					ordinal = segDesc.Version
				} else {
					ordinal = manifest.LatestVersion(subject) + 1
				}

				targetName := naming.VersionedName(subject, ordinal, manifest.SegmentationExt)
				targetPath := filepath.Join(ctx.root, manifest.SegmentationsDir, targetName)
				if targetPath != segPath {
					if _, err := os.Stat(targetPath); err == nil {
						return errs.Wrap(errs.ErrValidation, "link", "",
							fmt.Sprintf("target segmentation name already exists: %s", targetPath), nil)
					}
					if err := os.Rename(segPath, targetPath); err != nil {
						return fmt.Errorf("rename segmentation: %w", err)
					}
				}

				version := fmt.Sprintf("v%d", ordinal)
				added := manifest.AddVersion(subject, version, author, notes, tags)
				manifest.SetVolumeFile(subject, volume)
				if !added {
					fmt.Fprintf(cmd.OutOrStdout(),
						"Segmentation %s already present in index (nothing added).\n", targetName)
					return nil
				}

				runErr := ctx.saveActiveManifest(manifest)
				changes := []index.Change{{Subject: subject, Kind: index.ChangeAddedVersion, Detail: targetName}}
				ctx.recordRun(cmd.Context(), "link", changes, runErr)
				if runErr != nil {
					return runErr
				}

				ctx.log().Info("segmentation linked",
					logging.String("subject", subject),
					logging.String("version", version))

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Entry added to index.")
				fmt.Fprintf(out, "\nAttached segmentation to volume:\n")
				fmt.Fprintf(out, "  Volume      : %s\n", volumePath)
				fmt.Fprintf(out, "  Segmentation: %s\n", targetPath)
				fmt.Fprintf(out, "  Subject     : %s\n", subject)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&volume, "volume", "", "Volume file name, with extension")
	cmd.Flags().StringVar(&segmentation, "segmentation", "", "Segmentation file name, with extension")
	cmd.Flags().StringVar(&author, "author", "", "Author recorded on the new version")
	cmd.Flags().StringVar(&notes, "notes", "", "Notes recorded on the new version")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tags recorded on the new version (repeatable)")
	_ = cmd.MarkFlagRequired("volume")
	_ = cmd.MarkFlagRequired("segmentation")
	return cmd
}
