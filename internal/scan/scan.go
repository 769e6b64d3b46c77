// Package scan walks dataset directories and produces parsed file
// descriptors. Scans run file checks concurrently but always return results
// sorted by name, so downstream matching is independent of walk order.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"volsegsync/internal/naming"
)

const statConcurrency = 8

// Layout describes where a dataset keeps its files and which extensions
// identify them.
type Layout struct {
	VolumesDir       string
	VolumeExt        string
	SegmentationsDir string
	SegmentationExt  string
}

// VolumesPath returns the volume directory resolved under root.
func (l Layout) VolumesPath(root string) string {
	return filepath.Join(root, l.VolumesDir)
}

// SegmentationsPath returns the segmentation directory resolved under root.
func (l Layout) SegmentationsPath(root string) string {
	return filepath.Join(root, l.SegmentationsDir)
}

// Validate rejects layouts with missing fields or extensions without a dot.
func (l Layout) Validate() error {
	if strings.TrimSpace(l.VolumesDir) == "" {
		return fmt.Errorf("volumes directory must be set")
	}
	if strings.TrimSpace(l.SegmentationsDir) == "" {
		return fmt.Errorf("segmentations directory must be set")
	}
	for _, ext := range []string{l.VolumeExt, l.SegmentationExt} {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	return nil
}

// Snapshot holds one deterministic scan of both dataset directories.
type Snapshot struct {
	Volumes       []naming.Descriptor
	Segmentations []naming.Descriptor
}

// Dir walks dir recursively and parses every file ending in ext. Files with
// other extensions are ignored; files matching ext but violating the naming
// convention come back as invalid descriptors.
func Dir(ctx context.Context, dir, ext string) ([]naming.Descriptor, error) {
	type entry struct {
		path string
		name string
	}

	var entries []entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		entries = append(entries, entry{path: path, name: d.Name()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	// Each goroutine writes its own slot, so no locking is needed.
	descriptors := make([]naming.Descriptor, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statConcurrency)
	for i, e := range entries {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			info, err := os.Stat(e.path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", e.path, err)
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			descriptors[i] = naming.Parse(e.path, e.name, ext)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := descriptors[:0]
	for _, d := range descriptors {
		if d.Name != "" {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Dataset scans the volume and segmentation directories of an instance
// concurrently and merges the results into a Snapshot.
func Dataset(ctx context.Context, root string, layout Layout) (*Snapshot, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		volumes, err := Dir(gctx, layout.VolumesPath(root), layout.VolumeExt)
		if err != nil {
			return err
		}
		snap.Volumes = volumes
		return nil
	})
	g.Go(func() error {
		segmentations, err := Dir(gctx, layout.SegmentationsPath(root), layout.SegmentationExt)
		if err != nil {
			return err
		}
		snap.Segmentations = segmentations
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}
