// Package verify compares a stored index against a fresh scan of the
// dataset. It is purely read-only; reports are derived per run and never
// persisted.
package verify

import (
	"sort"

	"volsegsync/internal/index"
	"volsegsync/internal/match"
	"volsegsync/internal/naming"
)

// Mismatch flags a subject whose active segmentation on disk differs from
// the one the index selected, which usually means a file was renamed or
// swapped outside the tool.
type Mismatch struct {
	Subject string
	Indexed string
	Scanned string
}

// Report partitions the differences between stored and rescanned state.
type Report struct {
	Missing    []string
	Mismatched []Mismatch
	Orphans    []naming.Descriptor
	Unresolved []naming.Descriptor
}

// Empty reports whether the verification found nothing to flag.
func (r Report) Empty() bool {
	return len(r.Missing) == 0 && len(r.Mismatched) == 0 &&
		len(r.Orphans) == 0 && len(r.Unresolved) == 0
}

// Verify builds the report for a stored manifest against one match result
// from a fresh scan.
func Verify(stored *index.Manifest, rescan match.Result) Report {
	var report Report

	pairsBySubject := make(map[string]match.Pair, len(rescan.Pairs))
	for _, pair := range rescan.Pairs {
		pairsBySubject[pair.Subject] = pair
	}

	for _, subject := range stored.SortedSubjects() {
		entry := stored.Entry(subject)
		if entry.Retired {
			continue
		}
		pair, ok := pairsBySubject[subject]
		if !ok {
			report.Missing = append(report.Missing, subject)
			continue
		}
		indexed, ok := stored.SelectedSegmentation(subject)
		if !ok {
			continue
		}
		// The selected file no longer exists under this subject: it was
		// moved or renamed externally.
		if !containsName(pair.Versions, indexed) {
			report.Mismatched = append(report.Mismatched, Mismatch{
				Subject: subject,
				Indexed: indexed,
				Scanned: pair.Segmentation.Name,
			})
		}
	}

	report.Orphans = append(report.Orphans, rescan.Orphans...)
	report.Unresolved = append(report.Unresolved, rescan.Unresolved...)
	sort.Slice(report.Mismatched, func(i, j int) bool {
		return report.Mismatched[i].Subject < report.Mismatched[j].Subject
	})
	return report
}

func containsName(ds []naming.Descriptor, name string) bool {
	for _, d := range ds {
		if d.Name == name {
			return true
		}
	}
	return false
}
