package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"volsegsync/internal/match"
	"volsegsync/internal/naming"
	"volsegsync/internal/scan"
)

// Version records one segmentation revision of a subject volume.
type Version struct {
	ID          string   `json:"id"`
	Hash        string   `json:"hash"`
	Timestamp   string   `json:"ts"`
	Author      string   `json:"author"`
	Notes       string   `json:"notes"`
	Tags        []string `json:"tags"`
	Version     string   `json:"version"`
	LastUpdated string   `json:"last-updated"`
}

// Entry tracks every known segmentation version of one subject volume and
// which version is currently selected as the active pairing. VolumeFile is
// the on-disk filename from the last scan; it can differ from the subject
// key when the volume name itself carries a -v<N> token.
type Entry struct {
	VolumeFile      string    `json:"volume-file,omitempty"`
	SelectedVersion string    `json:"selected-version"`
	Retired         bool      `json:"retired,omitempty"`
	Versions        []Version `json:"versions"`
}

// Manifest is the persisted index: dataset layout plus the ordered mapping
// from subject key to entry, and the unresolved/orphan names of the last
// scan. Field names follow the on-disk JSON schema.
type Manifest struct {
	IndexName        string            `json:"index-name"`
	VolumesDir       string            `json:"volume-path"`
	VolumeExt        string            `json:"volume-extension"`
	SegmentationsDir string            `json:"label-path"`
	SegmentationExt  string            `json:"label-extension"`
	Volumes          map[string]*Entry `json:"volumes"`
	Unresolved       []string          `json:"unresolved"`
	Orphans          []string          `json:"orphans"`
}

// New creates an empty manifest for the given index name and dataset layout.
func New(indexName string, layout scan.Layout) *Manifest {
	return &Manifest{
		IndexName:        indexName,
		VolumesDir:       layout.VolumesDir,
		VolumeExt:        layout.VolumeExt,
		SegmentationsDir: layout.SegmentationsDir,
		SegmentationExt:  layout.SegmentationExt,
		Volumes:          make(map[string]*Entry),
	}
}

// Layout returns the dataset layout recorded in the manifest.
func (m *Manifest) Layout() scan.Layout {
	return scan.Layout{
		VolumesDir:       m.VolumesDir,
		VolumeExt:        m.VolumeExt,
		SegmentationsDir: m.SegmentationsDir,
		SegmentationExt:  m.SegmentationExt,
	}
}

// FromMatch builds a fresh manifest from one match result.
func FromMatch(indexName string, layout scan.Layout, res match.Result) *Manifest {
	m := New(indexName, layout)
	now := utcNow()
	for _, pair := range res.Pairs {
		entry := &Entry{
			VolumeFile:      pair.Volume.Name,
			SelectedVersion: pair.Segmentation.VersionString(),
		}
		for _, seg := range pair.Versions {
			entry.Versions = append(entry.Versions, newVersion(seg, now))
		}
		m.Volumes[pair.Subject] = entry
	}
	m.Unresolved = descriptorNames(res.Unresolved)
	m.Orphans = descriptorNames(res.Orphans)
	return m
}

func newVersion(seg naming.Descriptor, ts string) Version {
	base := seg.Subject()
	if seg.Version > 0 {
		base = fmt.Sprintf("%s-%s", base, seg.VersionString())
	}
	return Version{
		ID:          base,
		Hash:        hashString(base + ts),
		Timestamp:   ts,
		Tags:        []string{},
		Version:     seg.VersionString(),
		LastUpdated: ts,
	}
}

// Entry returns the entry for a subject, or nil.
func (m *Manifest) Entry(subject string) *Entry {
	return m.Volumes[subject]
}

// LatestVersion returns the highest version ordinal recorded for a subject,
// or 0 when the subject is unknown or only has an unversioned segmentation.
func (m *Manifest) LatestVersion(subject string) int {
	entry := m.Volumes[subject]
	if entry == nil {
		return 0
	}
	latest := 0
	for _, v := range entry.Versions {
		if n := versionOrdinal(v.Version); n > latest {
			latest = n
		}
	}
	return latest
}

// AddVersion appends a version entry for a subject, creating the entry when
// the subject is new. Returns false when the version already exists. A newly
// created entry selects the added version.
func (m *Manifest) AddVersion(subject, version, author, notes string, tags []string) bool {
	if tags == nil {
		tags = []string{}
	}
	entry := m.Volumes[subject]
	if entry == nil {
		entry = &Entry{SelectedVersion: version}
		m.Volumes[subject] = entry
	}
	for _, v := range entry.Versions {
		if v.Version == version {
			return false
		}
	}
	now := utcNow()
	id := subject
	if version != "" {
		id = subject + "-" + version
	}
	entry.Versions = append(entry.Versions, Version{
		ID:          id,
		Hash:        hashString(id + now),
		Timestamp:   now,
		Author:      author,
		Notes:       notes,
		Tags:        tags,
		Version:     version,
		LastUpdated: now,
	})
	entry.Retired = false
	return true
}

// RemoveVersion drops a version from a subject. When the removed version was
// selected, selection falls back to the highest remaining ordinal; when no
// versions remain, the entry is retired rather than deleted.
func (m *Manifest) RemoveVersion(subject, version string) bool {
	entry := m.Volumes[subject]
	if entry == nil {
		return false
	}
	kept := entry.Versions[:0]
	removed := false
	for _, v := range entry.Versions {
		if v.Version == version {
			removed = true
			continue
		}
		kept = append(kept, v)
	}
	if !removed {
		return false
	}
	entry.Versions = kept
	if len(entry.Versions) == 0 {
		entry.SelectedVersion = ""
		entry.Retired = true
		return true
	}
	if entry.SelectedVersion == version {
		entry.SelectedVersion = highestVersion(entry.Versions)
	}
	return true
}

// SetSelected updates the selected version of a subject. The version must
// already be recorded.
func (m *Manifest) SetSelected(subject, version string) bool {
	entry := m.Volumes[subject]
	if entry == nil {
		return false
	}
	for _, v := range entry.Versions {
		if v.Version == version {
			entry.SelectedVersion = version
			return true
		}
	}
	return false
}

// FieldChange records one metadata field rewritten by UpdateVersionMetadata.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// UpdateVersionMetadata rewrites the author, notes, and tags recorded on a
// version. Empty arguments leave the corresponding field untouched, so
// callers can update a single field without restating the others. Returns
// the applied changes and whether the subject and version were found.
func (m *Manifest) UpdateVersionMetadata(subject, version, author, notes string, tags []string) ([]FieldChange, bool) {
	entry := m.Volumes[subject]
	if entry == nil {
		return nil, false
	}
	for i := range entry.Versions {
		v := &entry.Versions[i]
		if v.Version != version {
			continue
		}
		var changes []FieldChange
		if author != "" && author != v.Author {
			changes = append(changes, FieldChange{Field: "author", Old: v.Author, New: author})
			v.Author = author
		}
		if notes != "" && notes != v.Notes {
			changes = append(changes, FieldChange{Field: "notes", Old: v.Notes, New: notes})
			v.Notes = notes
		}
		if len(tags) > 0 {
			old := strings.Join(v.Tags, ",")
			next := strings.Join(tags, ",")
			if next != old {
				changes = append(changes, FieldChange{Field: "tags", Old: old, New: next})
				v.Tags = tags
			}
		}
		if len(changes) > 0 {
			v.LastUpdated = utcNow()
		}
		return changes, true
	}
	return nil, false
}

// VersionStrings lists the recorded version tokens of a subject in order.
func (m *Manifest) VersionStrings(subject string) []string {
	entry := m.Volumes[subject]
	if entry == nil {
		return nil
	}
	out := make([]string, 0, len(entry.Versions))
	for _, v := range entry.Versions {
		out = append(out, v.Version)
	}
	return out
}

// PairPath is one exportable (volume, segmentation) tuple of the index.
type PairPath struct {
	Subject          string
	VolumePath       string
	SegmentationPath string
}

// PairPaths resolves the selected segmentation of every active entry to
// absolute paths under root, in natural subject order.
func (m *Manifest) PairPaths(root string) []PairPath {
	out := make([]PairPath, 0, len(m.Volumes))
	for _, subject := range m.SortedSubjects() {
		entry := m.Volumes[subject]
		if entry.Retired {
			continue
		}
		segName, ok := m.selectedSegmentationName(entry)
		if !ok {
			continue
		}
		out = append(out, PairPath{
			Subject:          subject,
			VolumePath:       filepath.Join(root, m.VolumesDir, m.volumeFileName(subject, entry)),
			SegmentationPath: filepath.Join(root, m.SegmentationsDir, segName),
		})
	}
	return out
}

// volumeFileName resolves a subject's on-disk volume filename, falling back
// to subject+extension for entries written before the filename was recorded.
func (m *Manifest) volumeFileName(subject string, entry *Entry) string {
	if entry.VolumeFile != "" {
		return entry.VolumeFile
	}
	return subject + m.VolumeExt
}

// SetVolumeFile records the on-disk filename of a subject's volume.
func (m *Manifest) SetVolumeFile(subject, name string) {
	if entry := m.Volumes[subject]; entry != nil {
		entry.VolumeFile = name
	}
}

// SelectedSegmentation returns the selected segmentation filename for a
// subject.
func (m *Manifest) SelectedSegmentation(subject string) (string, bool) {
	entry := m.Volumes[subject]
	if entry == nil || entry.Retired {
		return "", false
	}
	return m.selectedSegmentationName(entry)
}

func (m *Manifest) selectedSegmentationName(entry *Entry) (string, bool) {
	for _, v := range entry.Versions {
		if v.Version == entry.SelectedVersion {
			return v.ID + m.SegmentationExt, true
		}
	}
	return "", false
}

// SortedSubjects returns the subject keys in natural order, so C2 sorts
// before C10 in summaries and exports.
func (m *Manifest) SortedSubjects() []string {
	subjects := make([]string, 0, len(m.Volumes))
	for subject := range m.Volumes {
		subjects = append(subjects, subject)
	}
	collate.New(language.Und, collate.Numeric).SortStrings(subjects)
	return subjects
}

// ActiveCount returns the number of non-retired entries.
func (m *Manifest) ActiveCount() int {
	count := 0
	for _, entry := range m.Volumes {
		if !entry.Retired {
			count++
		}
	}
	return count
}

func highestVersion(versions []Version) string {
	best := ""
	bestOrdinal := -1
	for _, v := range versions {
		if n := versionOrdinal(v.Version); n > bestOrdinal {
			bestOrdinal = n
			best = v.Version
		}
	}
	return best
}

func versionOrdinal(version string) int {
	var n int
	if _, err := fmt.Sscanf(version, "v%d", &n); err != nil {
		return 0
	}
	return n
}

func descriptorNames(ds []naming.Descriptor) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Name)
	}
	return out
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

func utcNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
