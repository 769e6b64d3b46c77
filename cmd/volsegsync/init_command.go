package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"volsegsync/internal/config"
	"volsegsync/internal/errs"
	"volsegsync/internal/index"
	"volsegsync/internal/logging"
	"volsegsync/internal/match"
	"volsegsync/internal/preflight"
	"volsegsync/internal/scan"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	var (
		name        string
		description string
		indexName   string
		force       bool
		layout      scan.Layout
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new volsegsync instance in the target directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := ctx.rootDir()
			if err != nil {
				return err
			}
			if err := layout.Validate(); err != nil {
				return errs.Wrap(errs.ErrValidation, "init", "layout", "", err)
			}

			// The state directory must exist before the lock file can.
			// The initialized check happens under the lock.
			if err := os.MkdirAll(config.StateDir(root), 0o755); err != nil {
				return fmt.Errorf("create state directory: %w", err)
			}
			lock, err := index.Acquire(config.LockPath(root))
			if err != nil {
				return err
			}
			defer lock.Release()

			if config.Initialized(root) && !force {
				return errs.Wrap(errs.ErrAlreadyInitialized, "init", "",
					fmt.Sprintf("%s already contains a volsegsync instance (use --force to rebuild)", root), nil)
			}

			checks := preflight.RunAll(root, layout, "")
			for _, check := range checks {
				if !check.Passed {
					return errs.Wrap(errs.ErrValidation, "init", "preflight",
						fmt.Sprintf("%s: %s", check.Name, check.Detail), nil)
				}
			}

			cfg := config.Default()
			cfg.Summary.ID = uuid.NewString()
			cfg.Summary.Name = name
			cfg.Summary.Description = description
			cfg.Index.Available = []string{indexName}
			cfg.Index.Active = indexName

			if err := cfg.Save(root); err != nil {
				return err
			}

			snap, err := scan.Dataset(cmd.Context(), root, layout)
			if err != nil {
				return err
			}
			res := match.Match(snap.Volumes, snap.Segmentations)
			manifest, changes := index.Merge(index.New(indexName, layout), res)
			if err := index.Save(manifest, config.ManifestPath(root, indexName)); err != nil {
				return err
			}

			// Route subsequent context helpers at the fresh instance.
			ctx.root = root
			ctx.cfg = &cfg
			ctx.recordRun(cmd.Context(), "init", changes.Changes, nil)

			logger, lerr := ctx.buildLogger(&cfg)
			if lerr == nil {
				logger.Info("instance initialized",
					logging.String("root", root),
					logging.String("index", indexName),
					logging.Int("pairs", manifest.ActiveCount()))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Initialized volsegsync instance in %s\n", root)
			fmt.Fprintf(out, "Index %q: %d pairs, %d unresolved, %d orphans\n",
				indexName, manifest.ActiveCount(), len(manifest.Unresolved), len(manifest.Orphans))
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "No name", "Instance name")
	cmd.Flags().StringVar(&description, "description", "No description", "Instance description")
	cmd.Flags().StringVar(&indexName, "index-name", config.DefaultIndexName, "Name of the index to create")
	cmd.Flags().BoolVar(&force, "force", false, "Reinitialize even if the directory already holds an instance")
	cmd.Flags().StringVar(&layout.VolumesDir, "volumes", "", "Volumes directory, relative to the instance root")
	cmd.Flags().StringVar(&layout.VolumeExt, "vext", "", "Volume file extension (for example .nii.gz)")
	cmd.Flags().StringVar(&layout.SegmentationsDir, "segmentations", "", "Segmentations directory, relative to the instance root")
	cmd.Flags().StringVar(&layout.SegmentationExt, "sext", "", "Segmentation file extension (for example .seg.nrrd)")
	_ = cmd.MarkFlagRequired("volumes")
	_ = cmd.MarkFlagRequired("vext")
	_ = cmd.MarkFlagRequired("segmentations")
	_ = cmd.MarkFlagRequired("sext")

	return cmd
}
