package index

import (
	"fmt"

	"volsegsync/internal/match"
)

// ChangeKind classifies one entry of a merge change set.
type ChangeKind string

const (
	ChangeAddedVolume    ChangeKind = "added-volume"
	ChangeAddedVersion   ChangeKind = "added-version"
	ChangeRemovedVersion ChangeKind = "removed-version"
	ChangeRetiredVolume  ChangeKind = "retired-volume"
	ChangeRestoredVolume ChangeKind = "restored-volume"
	ChangeReselected     ChangeKind = "reselected"
	ChangePrunedVolume   ChangeKind = "pruned-volume"
	ChangeUpdatedVersion ChangeKind = "updated-version"
)

// Change describes one delta applied by Merge or Prune.
type Change struct {
	Subject string
	Kind    ChangeKind
	Detail  string
}

// ChangeSet is the ordered list of deltas from one merge.
type ChangeSet struct {
	Changes []Change
}

// Empty reports whether the merge found nothing to do.
func (cs ChangeSet) Empty() bool {
	return len(cs.Changes) == 0
}

func (cs *ChangeSet) add(subject string, kind ChangeKind, detail string) {
	cs.Changes = append(cs.Changes, Change{Subject: subject, Kind: kind, Detail: detail})
}

// Merge folds a fresh match result into a stored manifest, producing a new
// manifest and the set of changes. It is pure: the input manifest is not
// modified. Nothing is deleted outright; volumes that vanished from disk are
// retired and removed versions fall back per the selection rules.
func Merge(existing *Manifest, res match.Result) (*Manifest, ChangeSet) {
	merged := existing.clone()
	var cs ChangeSet

	incoming := FromMatch(existing.IndexName, existing.Layout(), res)

	for _, subject := range incoming.SortedSubjects() {
		fresh := incoming.Volumes[subject]
		entry := merged.Volumes[subject]
		if entry == nil {
			merged.Volumes[subject] = fresh
			cs.add(subject, ChangeAddedVolume, "")
			for _, v := range fresh.Versions {
				cs.add(subject, ChangeAddedVersion, v.Version)
			}
			continue
		}

		if entry.Retired {
			entry.Retired = false
			cs.add(subject, ChangeRestoredVolume, "")
		}
		if fresh.VolumeFile != "" {
			entry.VolumeFile = fresh.VolumeFile
		}

		// Remember whether the default highest-version policy was in effect
		// before the merge; a select-seg pin to an older version survives.
		preHighest := highestVersion(entry.Versions)
		followingLatest := entry.SelectedVersion == preHighest

		known := make(map[string]struct{}, len(entry.Versions))
		for _, v := range entry.Versions {
			known[v.Version] = struct{}{}
		}
		for _, v := range fresh.Versions {
			if _, ok := known[v.Version]; ok {
				continue
			}
			entry.Versions = append(entry.Versions, v)
			cs.add(subject, ChangeAddedVersion, v.Version)
		}

		scanned := make(map[string]struct{}, len(fresh.Versions))
		for _, v := range fresh.Versions {
			scanned[v.Version] = struct{}{}
		}
		previousSelected := entry.SelectedVersion
		kept := entry.Versions[:0]
		for _, v := range entry.Versions {
			if _, ok := scanned[v.Version]; !ok {
				cs.add(subject, ChangeRemovedVersion, v.Version)
				continue
			}
			kept = append(kept, v)
		}
		entry.Versions = kept
		if len(entry.Versions) == 0 {
			entry.SelectedVersion = ""
			entry.Retired = true
			cs.add(subject, ChangeRetiredVolume, "no versions remain")
			continue
		}
		if _, ok := scanned[entry.SelectedVersion]; !ok {
			entry.SelectedVersion = highestVersion(entry.Versions)
		} else if followingLatest {
			entry.SelectedVersion = highestVersion(entry.Versions)
		}
		if entry.SelectedVersion != previousSelected {
			cs.add(subject, ChangeReselected,
				fmt.Sprintf("%s -> %s", previousSelected, entry.SelectedVersion))
		}
	}

	for _, subject := range merged.SortedSubjects() {
		entry := merged.Volumes[subject]
		if entry.Retired {
			continue
		}
		if incoming.Volumes[subject] == nil {
			entry.Retired = true
			cs.add(subject, ChangeRetiredVolume, "volume missing from scan")
		}
	}

	merged.Unresolved = append([]string{}, incoming.Unresolved...)
	merged.Orphans = append([]string{}, incoming.Orphans...)
	return merged, cs
}

// Prune deletes retired entries from the manifest, the one destructive
// operation the index supports. Callers must opt in explicitly.
func Prune(m *Manifest) ChangeSet {
	var cs ChangeSet
	for _, subject := range m.SortedSubjects() {
		if m.Volumes[subject].Retired {
			delete(m.Volumes, subject)
			cs.add(subject, ChangePrunedVolume, "")
		}
	}
	return cs
}

func (m *Manifest) clone() *Manifest {
	out := &Manifest{
		IndexName:        m.IndexName,
		VolumesDir:       m.VolumesDir,
		VolumeExt:        m.VolumeExt,
		SegmentationsDir: m.SegmentationsDir,
		SegmentationExt:  m.SegmentationExt,
		Volumes:          make(map[string]*Entry, len(m.Volumes)),
		Unresolved:       append([]string{}, m.Unresolved...),
		Orphans:          append([]string{}, m.Orphans...),
	}
	for subject, entry := range m.Volumes {
		copied := &Entry{
			VolumeFile:      entry.VolumeFile,
			SelectedVersion: entry.SelectedVersion,
			Retired:         entry.Retired,
			Versions:        make([]Version, len(entry.Versions)),
		}
		copy(copied.Versions, entry.Versions)
		for i := range copied.Versions {
			copied.Versions[i].Tags = append([]string{}, entry.Versions[i].Tags...)
		}
		out.Volumes[subject] = copied
	}
	return out
}
