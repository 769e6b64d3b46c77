package main

import (
	"errors"
	"reflect"
	"testing"

	"volsegsync/internal/errs"
	"volsegsync/internal/testsupport"
)

func updateSegInstance(t *testing.T) string {
	t.Helper()
	root := testsupport.NewInstance(t)
	testsupport.WriteDataset(t, root,
		[]string{"C01-A-D1.nii.gz"},
		[]string{"C01-A-D1-v1.nrrd"})
	if _, err := runCLI(t, root, "update"); err != nil {
		t.Fatalf("update: %v", err)
	}
	return root
}

func TestUpdateSegRewritesMetadata(t *testing.T) {
	root := updateSegInstance(t)

	out, err := runCLI(t, root, "update-seg",
		"--volume", "C01-A-D1.nii.gz", "--version", "v1",
		"--author", "mk", "--notes", "manual fixups", "--tag", "reviewed", "--tag", "final")
	if err != nil {
		t.Fatalf("update-seg: %v", err)
	}
	requireContains(t, out, "Metadata updated")
	requireContains(t, out, `author: "" -> "mk"`)

	manifest := loadActiveManifest(t, root)
	entry := manifest.Entry("C01-A-D1")
	if entry == nil {
		t.Fatal("entry missing")
	}
	v := entry.Versions[0]
	if v.Author != "mk" || v.Notes != "manual fixups" {
		t.Fatalf("author = %q, notes = %q", v.Author, v.Notes)
	}
	if !reflect.DeepEqual(v.Tags, []string{"reviewed", "final"}) {
		t.Fatalf("tags = %v", v.Tags)
	}
	if v.LastUpdated == "" {
		t.Fatal("last-updated not set")
	}
}

func TestUpdateSegKeepsOmittedFields(t *testing.T) {
	root := updateSegInstance(t)
	if _, err := runCLI(t, root, "update-seg",
		"--volume", "C01-A-D1.nii.gz", "--version", "v1",
		"--author", "mk", "--notes", "first pass"); err != nil {
		t.Fatalf("first update-seg: %v", err)
	}

	// Only notes this time. The author must survive.
	if _, err := runCLI(t, root, "update-seg",
		"--volume", "C01-A-D1.nii.gz", "--version", "v1",
		"--notes", "second pass"); err != nil {
		t.Fatalf("second update-seg: %v", err)
	}

	v := loadActiveManifest(t, root).Entry("C01-A-D1").Versions[0]
	if v.Author != "mk" {
		t.Fatalf("author = %q, want mk", v.Author)
	}
	if v.Notes != "second pass" {
		t.Fatalf("notes = %q, want second pass", v.Notes)
	}
}

func TestUpdateSegNoChanges(t *testing.T) {
	root := updateSegInstance(t)
	out, err := runCLI(t, root, "update-seg",
		"--volume", "C01-A-D1.nii.gz", "--version", "v1")
	if err != nil {
		t.Fatalf("update-seg: %v", err)
	}
	requireContains(t, out, "No metadata changes")
}

func TestUpdateSegUnknownVolume(t *testing.T) {
	root := updateSegInstance(t)
	_, err := runCLI(t, root, "update-seg",
		"--volume", "C99-Z-D1.nii.gz", "--version", "v1", "--author", "mk")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestUpdateSegUnknownVersion(t *testing.T) {
	root := updateSegInstance(t)
	_, err := runCLI(t, root, "update-seg",
		"--volume", "C01-A-D1.nii.gz", "--version", "v9", "--author", "mk")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
