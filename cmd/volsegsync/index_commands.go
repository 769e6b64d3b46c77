package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"volsegsync/internal/config"
	"volsegsync/internal/errs"
	"volsegsync/internal/index"
	"volsegsync/internal/logging"
	"volsegsync/internal/match"
	"volsegsync/internal/preflight"
	"volsegsync/internal/scan"
)

func newCreateIndexCommand(ctx *commandContext) *cobra.Command {
	var (
		indexName string
		layout    scan.Layout
	)

	cmd := &cobra.Command{
		Use:   "create-index",
		Short: "Create a new index in an existing instance and make it active",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func() error {
				cfg := ctx.cfg
				if err := layout.Validate(); err != nil {
					return errs.Wrap(errs.ErrValidation, "create-index", "layout", "", err)
				}
				checks := preflight.RunAll(ctx.root, layout, "")
				for _, check := range checks {
					if !check.Passed {
						return errs.Wrap(errs.ErrValidation, "create-index", "preflight",
							fmt.Sprintf("%s: %s", check.Name, check.Detail), nil)
					}
				}
				if err := cfg.AddIndex(indexName); err != nil {
					return err
				}

				snap, err := scan.Dataset(cmd.Context(), ctx.root, layout)
				if err != nil {
					return err
				}
				res := match.Match(snap.Volumes, snap.Segmentations)
				manifest, changes := index.Merge(index.New(indexName, layout), res)
				if err := index.Save(manifest, config.ManifestPath(ctx.root, indexName)); err != nil {
					return err
				}
				if err := cfg.Save(ctx.root); err != nil {
					return err
				}
				ctx.recordRun(cmd.Context(), "create-index", changes.Changes, nil)

				ctx.log().Info("index created",
					logging.String("index", indexName),
					logging.Int("pairs", manifest.ActiveCount()))
				fmt.Fprintf(cmd.OutOrStdout(),
					"Created index %q (%d pairs, %d unresolved, %d orphans). It is now active.\n",
					indexName, manifest.ActiveCount(), len(manifest.Unresolved), len(manifest.Orphans))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&indexName, "index-name", config.DefaultIndexName, "Name of the index to create")
	cmd.Flags().StringVar(&layout.VolumesDir, "volumes", "", "Volumes directory, relative to the instance root")
	cmd.Flags().StringVar(&layout.VolumeExt, "vext", "", "Volume file extension")
	cmd.Flags().StringVar(&layout.SegmentationsDir, "segmentations", "", "Segmentations directory, relative to the instance root")
	cmd.Flags().StringVar(&layout.SegmentationExt, "sext", "", "Segmentation file extension")
	_ = cmd.MarkFlagRequired("volumes")
	_ = cmd.MarkFlagRequired("vext")
	_ = cmd.MarkFlagRequired("segmentations")
	_ = cmd.MarkFlagRequired("sext")
	return cmd
}

func newSelectIndexCommand(ctx *commandContext) *cobra.Command {
	var indexName string

	cmd := &cobra.Command{
		Use:   "select-index",
		Short: "Make an existing index the active one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func() error {
				cfg := ctx.cfg
				if cfg.Index.Active == indexName {
					fmt.Fprintf(cmd.OutOrStdout(), "Index %q is already active.\n", indexName)
					return nil
				}
				if err := cfg.SelectIndex(indexName); err != nil {
					return err
				}
				if err := cfg.Save(ctx.root); err != nil {
					return err
				}
				ctx.log().Info("index selected", logging.String("index", indexName))
				fmt.Fprintf(cmd.OutOrStdout(), "Active index is now %q.\n", indexName)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&indexName, "index", "", "Name of the index to activate")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func newRenameCommand(ctx *commandContext) *cobra.Command {
	var (
		name        string
		description string
	)

	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Rename the instance and optionally update its description",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func() error {
				cfg := ctx.cfg
				oldName := cfg.Summary.Name
				cfg.Summary.Name = name
				if description != "" {
					cfg.Summary.Description = description
				}
				if err := cfg.Save(ctx.root); err != nil {
					return err
				}
				ctx.log().Info("instance renamed",
					logging.String("old", oldName),
					logging.String("new", name))
				fmt.Fprintf(cmd.OutOrStdout(), "Instance renamed: %q -> %q\n", oldName, name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New instance name")
	cmd.Flags().StringVar(&description, "description", "", "New instance description (unchanged when omitted)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
