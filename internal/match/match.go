// Package match pairs volume descriptors with segmentation descriptors by
// their shared subject key. It is pure and order-independent: inputs are
// grouped by key, so scan ordering cannot change the outcome.
package match

import (
	"sort"

	"volsegsync/internal/naming"
)

// Pair is a resolved (volume, segmentation) association. When a subject has
// several segmentation versions, the highest ordinal becomes the active
// segmentation and every version stays enumerable in Versions for audit.
type Pair struct {
	Subject      string
	Volume       naming.Descriptor
	Segmentation naming.Descriptor
	Versions     []naming.Descriptor
}

// Result partitions the input descriptors. Unresolved holds volumes without
// a unique segmentation, every descriptor under an ambiguous key, and all
// invalid names. Orphans holds segmentations whose subject has no volume.
type Result struct {
	Pairs      []Pair
	Unresolved []naming.Descriptor
	Orphans    []naming.Descriptor
}

// Match builds the pairing for one scan of a dataset.
func Match(volumes, segmentations []naming.Descriptor) Result {
	var res Result

	volsByKey := make(map[string][]naming.Descriptor)
	for _, v := range volumes {
		if !v.Valid {
			res.Unresolved = append(res.Unresolved, v)
			continue
		}
		key := v.Subject()
		volsByKey[key] = append(volsByKey[key], v)
	}

	segsByKey := make(map[string][]naming.Descriptor)
	for _, s := range segmentations {
		if !s.Valid {
			res.Unresolved = append(res.Unresolved, s)
			continue
		}
		key := s.Subject()
		segsByKey[key] = append(segsByKey[key], s)
	}

	for key, vols := range volsByKey {
		segs := segsByKey[key]
		delete(segsByKey, key)

		// Never guess: more than one volume under a key poisons the whole
		// key, segmentations included.
		if len(vols) > 1 || hasDuplicateVersions(segs) {
			res.Unresolved = append(res.Unresolved, vols...)
			res.Unresolved = append(res.Unresolved, segs...)
			continue
		}
		if len(segs) == 0 {
			res.Unresolved = append(res.Unresolved, vols...)
			continue
		}

		sort.Slice(segs, func(i, j int) bool { return segs[i].Version < segs[j].Version })
		res.Pairs = append(res.Pairs, Pair{
			Subject:      key,
			Volume:       vols[0],
			Segmentation: segs[len(segs)-1],
			Versions:     segs,
		})
	}

	// Remaining segmentation keys have no volume at all.
	for _, segs := range segsByKey {
		res.Orphans = append(res.Orphans, segs...)
	}

	sort.Slice(res.Pairs, func(i, j int) bool { return res.Pairs[i].Subject < res.Pairs[j].Subject })
	sortDescriptors(res.Unresolved)
	sortDescriptors(res.Orphans)
	return res
}

// hasDuplicateVersions reports whether two segmentations claim the same
// version ordinal under one key, which makes the key ambiguous.
func hasDuplicateVersions(segs []naming.Descriptor) bool {
	seen := make(map[int]struct{}, len(segs))
	for _, s := range segs {
		if _, dup := seen[s.Version]; dup {
			return true
		}
		seen[s.Version] = struct{}{}
	}
	return false
}

func sortDescriptors(ds []naming.Descriptor) {
	sort.Slice(ds, func(i, j int) bool {
		if ds[i].Name != ds[j].Name {
			return ds[i].Name < ds[j].Name
		}
		return ds[i].Path < ds[j].Path
	})
}
