// Package testsupport provides helpers for building temp instances in tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"volsegsync/internal/config"
	"volsegsync/internal/history"
	"volsegsync/internal/index"
	"volsegsync/internal/scan"
)

// Layout is the dataset layout every test instance uses.
var Layout = scan.Layout{
	VolumesDir:       "volumes",
	VolumeExt:        ".nii.gz",
	SegmentationsDir: "segmentations",
	SegmentationExt:  ".nrrd",
}

// NewInstance creates an initialized instance in a temp directory: dataset
// directories, state directory, saved config with the default index, and an
// empty manifest. It returns the instance root.
func NewInstance(t testing.TB) string {
	t.Helper()

	root := t.TempDir()
	for _, dir := range []string{config.StateDir(root), Layout.VolumesPath(root), Layout.SegmentationsPath(root)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	cfg := config.Default()
	cfg.Summary.Name = "test instance"
	if err := cfg.Save(root); err != nil {
		t.Fatalf("save config: %v", err)
	}

	manifest := index.New(config.DefaultIndexName, Layout)
	if err := index.Save(manifest, config.ManifestPath(root, config.DefaultIndexName)); err != nil {
		t.Fatalf("save manifest: %v", err)
	}
	return root
}

// WriteDataset drops named files into the volume and segmentation
// directories of an instance. Contents are a short placeholder; only names
// matter to the engine.
func WriteDataset(t testing.TB, root string, volumes, segmentations []string) {
	t.Helper()

	for _, name := range volumes {
		WriteFile(t, filepath.Join(Layout.VolumesPath(root), name))
	}
	for _, name := range segmentations {
		WriteFile(t, filepath.Join(Layout.SegmentationsPath(root), name))
	}
}

// WriteFile creates path with placeholder content, creating parents as
// needed.
func WriteFile(t testing.TB, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("stub\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// MustOpenHistory opens the history store for an instance and registers
// cleanup.
func MustOpenHistory(t testing.TB, root string) *history.Store {
	t.Helper()

	store, err := history.Open(config.HistoryPath(root))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
