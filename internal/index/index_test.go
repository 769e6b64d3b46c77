package index_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"volsegsync/internal/errs"
	"volsegsync/internal/index"
	"volsegsync/internal/match"
	"volsegsync/internal/naming"
	"volsegsync/internal/scan"
)

var testLayout = scan.Layout{
	VolumesDir:       "volumes",
	VolumeExt:        ".nii.gz",
	SegmentationsDir: "segmentations",
	SegmentationExt:  ".nrrd",
}

func vol(name string) naming.Descriptor {
	return naming.Parse(name, name, ".nii.gz")
}

func seg(name string) naming.Descriptor {
	return naming.Parse(name, name, ".nrrd")
}

func matchOf(vols, segs []naming.Descriptor) match.Result {
	return match.Match(vols, segs)
}

func TestFromMatchSelectsHighestVersion(t *testing.T) {
	res := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd"), seg("C01-A-D1-v2.nrrd")},
	)
	m := index.FromMatch("index", testLayout, res)

	entry := m.Entry("C01-A-D1")
	if entry == nil {
		t.Fatal("entry missing")
	}
	if entry.SelectedVersion != "v2" {
		t.Fatalf("selected = %q, want v2", entry.SelectedVersion)
	}
	if len(entry.Versions) != 2 {
		t.Fatalf("versions = %d, want 2", len(entry.Versions))
	}

	name, ok := m.SelectedSegmentation("C01-A-D1")
	if !ok || name != "C01-A-D1-v2.nrrd" {
		t.Fatalf("selected segmentation = %q ok=%v", name, ok)
	}
}

func TestPairPathsUsesRecordedVolumeFilename(t *testing.T) {
	// A volume whose own name carries a -v<N> token keys the entry by its
	// stripped subject. The recorded filename, not the subject, must drive
	// the exported path or we point at a file that does not exist.
	res := matchOf(
		[]naming.Descriptor{vol("C01-A-v2.nii.gz")},
		[]naming.Descriptor{seg("C01-A-v1.nrrd")},
	)
	m := index.FromMatch("index", testLayout, res)

	entry := m.Entry("C01-A")
	if entry == nil {
		t.Fatal("entry missing")
	}
	if entry.VolumeFile != "C01-A-v2.nii.gz" {
		t.Fatalf("volume file = %q, want C01-A-v2.nii.gz", entry.VolumeFile)
	}

	pairs := m.PairPaths("/data")
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	want := filepath.Join("/data", "volumes", "C01-A-v2.nii.gz")
	if pairs[0].VolumePath != want {
		t.Fatalf("volume path = %q, want %q", pairs[0].VolumePath, want)
	}

	// A rescan merge must not lose the recorded filename.
	merged, _ := index.Merge(m, res)
	if got := merged.Entry("C01-A").VolumeFile; got != "C01-A-v2.nii.gz" {
		t.Fatalf("volume file after merge = %q, want C01-A-v2.nii.gz", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.manifest.json")

	res := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd")},
	)
	m := index.FromMatch("index", testLayout, res)
	if err := index.Save(m, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := index.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(m, loaded) {
		t.Fatalf("round trip mismatch:\nsaved:  %+v\nloaded: %+v", m, loaded)
	}
}

func TestLoadMissingManifest(t *testing.T) {
	_, err := index.Load(filepath.Join(t.TempDir(), "nope.manifest.json"))
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestLoadCorruptManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.manifest.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := index.Load(path)
	if !errors.Is(err, errs.ErrCorruptIndex) {
		t.Fatalf("expected corrupt-index, got %v", err)
	}
}

func TestSavePreservesPreviousManifestOnFailure(t *testing.T) {
	// Atomicity: a valid manifest stays loadable even when a later write is
	// interrupted. We simulate the interruption by leaving a stray temp file
	// and confirming the real manifest is untouched.
	dir := t.TempDir()
	path := filepath.Join(dir, "index.manifest.json")

	res := matchOf([]naming.Descriptor{vol("C01-A-D1.nii.gz")}, []naming.Descriptor{seg("C01-A-D1-v1.nrrd")})
	m := index.FromMatch("index", testLayout, res)
	if err := index.Save(m, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.WriteFile(path+".tmp-crashed", []byte("{partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	loaded, err := index.Load(path)
	if err != nil {
		t.Fatalf("Load after simulated crash: %v", err)
	}
	if loaded.Entry("C01-A-D1") == nil {
		t.Fatal("prior manifest content lost")
	}
}

func TestMergeIdempotent(t *testing.T) {
	res := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz"), vol("C02-B-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd"), seg("C02-B-D1-v1.nrrd")},
	)
	base := index.FromMatch("index", testLayout, res)

	once, cs1 := index.Merge(base, res)
	if !cs1.Empty() {
		t.Fatalf("first merge of identical scan should be empty, got %+v", cs1.Changes)
	}
	twice, cs2 := index.Merge(once, res)
	if !cs2.Empty() {
		t.Fatalf("second merge should be empty, got %+v", cs2.Changes)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatal("merge not idempotent")
	}
}

func TestMergeAddsAndAdvancesVersion(t *testing.T) {
	initial := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd")},
	)
	m := index.FromMatch("index", testLayout, initial)

	rescan := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd"), seg("C01-A-D1-v2.nrrd")},
	)
	merged, cs := index.Merge(m, rescan)
	if cs.Empty() {
		t.Fatal("expected changes")
	}
	entry := merged.Entry("C01-A-D1")
	if len(entry.Versions) != 2 {
		t.Fatalf("versions = %d, want 2", len(entry.Versions))
	}
	if entry.SelectedVersion != "v2" {
		t.Fatalf("selected = %q, want v2 (was following latest)", entry.SelectedVersion)
	}
}

func TestMergeKeepsManualSelection(t *testing.T) {
	initial := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd"), seg("C01-A-D1-v2.nrrd")},
	)
	m := index.FromMatch("index", testLayout, initial)
	if !m.SetSelected("C01-A-D1", "v1") {
		t.Fatal("SetSelected failed")
	}

	rescan := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd"), seg("C01-A-D1-v2.nrrd"), seg("C01-A-D1-v3.nrrd")},
	)
	merged, _ := index.Merge(m, rescan)
	if merged.Entry("C01-A-D1").SelectedVersion != "v1" {
		t.Fatalf("pinned selection lost: %q", merged.Entry("C01-A-D1").SelectedVersion)
	}
}

func TestMergeRetiresMissingVolume(t *testing.T) {
	initial := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz"), vol("C02-B-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd"), seg("C02-B-D1-v1.nrrd")},
	)
	m := index.FromMatch("index", testLayout, initial)

	rescan := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd")},
	)
	merged, cs := index.Merge(m, rescan)

	entry := merged.Entry("C02-B-D1")
	if entry == nil || !entry.Retired {
		t.Fatalf("expected C02-B-D1 retired, got %+v", entry)
	}
	if merged.ActiveCount() != 1 {
		t.Fatalf("active count = %d, want 1", merged.ActiveCount())
	}
	found := false
	for _, c := range cs.Changes {
		if c.Kind == index.ChangeRetiredVolume && c.Subject == "C02-B-D1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("retired change missing: %+v", cs.Changes)
	}
}

func TestMergeRemovedSelectedFallsBack(t *testing.T) {
	initial := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd"), seg("C01-A-D1-v2.nrrd")},
	)
	m := index.FromMatch("index", testLayout, initial)

	// v2 vanished from disk.
	rescan := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd")},
	)
	merged, _ := index.Merge(m, rescan)
	entry := merged.Entry("C01-A-D1")
	if entry.SelectedVersion != "v1" {
		t.Fatalf("selected = %q, want fallback to v1", entry.SelectedVersion)
	}
	if len(entry.Versions) != 1 {
		t.Fatalf("versions = %d, want 1", len(entry.Versions))
	}
}

func TestPruneDropsRetired(t *testing.T) {
	initial := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz"), vol("C02-B-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd"), seg("C02-B-D1-v1.nrrd")},
	)
	m := index.FromMatch("index", testLayout, initial)

	rescan := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd")},
	)
	merged, _ := index.Merge(m, rescan)

	cs := index.Prune(merged)
	if cs.Empty() {
		t.Fatal("expected prune changes")
	}
	if merged.Entry("C02-B-D1") != nil {
		t.Fatal("retired entry not pruned")
	}
}

func TestRemoveVersionFallback(t *testing.T) {
	m := index.New("index", testLayout)
	m.AddVersion("C01-A-D1", "v1", "", "", nil)
	m.AddVersion("C01-A-D1", "v2", "", "", nil)
	m.SetSelected("C01-A-D1", "v2")

	if !m.RemoveVersion("C01-A-D1", "v2") {
		t.Fatal("RemoveVersion failed")
	}
	entry := m.Entry("C01-A-D1")
	if entry.SelectedVersion != "v1" {
		t.Fatalf("selected = %q, want v1", entry.SelectedVersion)
	}

	if !m.RemoveVersion("C01-A-D1", "v1") {
		t.Fatal("RemoveVersion failed")
	}
	if !entry.Retired || entry.SelectedVersion != "" {
		t.Fatalf("expected retired entry with no selection, got %+v", entry)
	}
}

func TestUpdateVersionMetadataPartialEdit(t *testing.T) {
	res := matchOf(
		[]naming.Descriptor{vol("C01-A-D1.nii.gz")},
		[]naming.Descriptor{seg("C01-A-D1-v1.nrrd")},
	)
	m := index.FromMatch("index", testLayout, res)

	changed, found := m.UpdateVersionMetadata("C01-A-D1", "v1", "mk", "", nil)
	if !found {
		t.Fatal("version not found")
	}
	if len(changed) != 1 || changed[0].Field != "author" || changed[0].New != "mk" {
		t.Fatalf("changes = %+v", changed)
	}

	// Notes-only update must not clear the author.
	if _, found := m.UpdateVersionMetadata("C01-A-D1", "v1", "", "redrawn", nil); !found {
		t.Fatal("version not found on second edit")
	}
	v := m.Entry("C01-A-D1").Versions[0]
	if v.Author != "mk" || v.Notes != "redrawn" {
		t.Fatalf("author = %q, notes = %q", v.Author, v.Notes)
	}

	// Repeating the same values reports nothing changed.
	changed, found = m.UpdateVersionMetadata("C01-A-D1", "v1", "mk", "redrawn", nil)
	if !found || len(changed) != 0 {
		t.Fatalf("expected no-op, got changes = %+v found = %v", changed, found)
	}

	if _, found := m.UpdateVersionMetadata("C01-A-D1", "v9", "mk", "", nil); found {
		t.Fatal("unknown version reported as found")
	}
	if _, found := m.UpdateVersionMetadata("C99-Z-D1", "v1", "mk", "", nil); found {
		t.Fatal("unknown subject reported as found")
	}
}

func TestSortedSubjectsNaturalOrder(t *testing.T) {
	m := index.New("index", testLayout)
	m.AddVersion("C10-A", "v1", "", "", nil)
	m.AddVersion("C2-A", "v1", "", "", nil)
	m.AddVersion("C1-A", "v1", "", "", nil)

	got := m.SortedSubjects()
	want := []string{"C1-A", "C2-A", "C10-A"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("subjects = %v, want %v", got, want)
	}
}

func TestLockFailsFastWhenHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volsegsync.lock")

	first, err := index.Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer first.Release()

	_, err = index.Acquire(path)
	if !errors.Is(err, errs.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := index.Acquire(path)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = second.Release()
}
