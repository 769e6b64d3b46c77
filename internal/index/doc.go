// Package index owns the persisted state of a volsegsync index: the manifest
// of paired volumes and segmentation versions, the unresolved and orphan
// sets from the last scan, and the mutation lock guarding them.
//
// Manifests are stored as indented JSON with stable key order so revisions
// diff cleanly. Saves go through an atomic write-temp-then-rename, and Merge
// is a pure function over (stored manifest, fresh match result): nothing is
// destroyed on merge, vanished volumes are retired rather than deleted
// unless the caller asks for an explicit prune.
package index
