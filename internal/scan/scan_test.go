package scan_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"volsegsync/internal/scan"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDirFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "C02-B-D1.nii.gz", "C01-A-D1.nii.gz", "readme.txt")
	writeFiles(t, filepath.Join(dir, "nested"), "C03-C-D1.nii.gz")

	descriptors, err := scan.Dir(context.Background(), dir, ".nii.gz")
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if len(descriptors) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(descriptors))
	}
	for i := 1; i < len(descriptors); i++ {
		if descriptors[i-1].Name > descriptors[i].Name {
			t.Fatalf("descriptors not sorted: %q before %q", descriptors[i-1].Name, descriptors[i].Name)
		}
	}
}

func TestDirKeepsInvalidNames(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "C01-A-D1.nii.gz", "-broken-.nii.gz")

	descriptors, err := scan.Dir(context.Background(), dir, ".nii.gz")
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if len(descriptors) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(descriptors))
	}
	valid := 0
	for _, d := range descriptors {
		if d.Valid {
			valid++
		}
	}
	if valid != 1 {
		t.Fatalf("expected exactly one valid descriptor, got %d", valid)
	}
}

func TestDirMissingDirectory(t *testing.T) {
	_, err := scan.Dir(context.Background(), filepath.Join(t.TempDir(), "missing"), ".nii.gz")
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestDatasetScansBothDirectories(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "volumes"), "C01-A-D1.nii.gz", "C01-B-D1.nii.gz")
	writeFiles(t, filepath.Join(root, "segmentations"), "C01-A-D1-v1.nrrd")

	layout := scan.Layout{
		VolumesDir:       "volumes",
		VolumeExt:        ".nii.gz",
		SegmentationsDir: "segmentations",
		SegmentationExt:  ".nrrd",
	}
	snap, err := scan.Dataset(context.Background(), root, layout)
	if err != nil {
		t.Fatalf("Dataset: %v", err)
	}
	if len(snap.Volumes) != 2 || len(snap.Segmentations) != 1 {
		t.Fatalf("snapshot counts = %d/%d", len(snap.Volumes), len(snap.Segmentations))
	}
}

func TestLayoutValidate(t *testing.T) {
	bad := scan.Layout{VolumesDir: "volumes", VolumeExt: "nii.gz", SegmentationsDir: "segs", SegmentationExt: ".nrrd"}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for extension without dot")
	}
	good := scan.Layout{VolumesDir: "volumes", VolumeExt: ".nii.gz", SegmentationsDir: "segs", SegmentationExt: ".nrrd"}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
