package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"volsegsync/internal/errs"
	"volsegsync/internal/fileutil"
)

// Load reads a persisted manifest. A missing file yields ErrNotFound;
// unreadable or malformed content yields ErrCorruptIndex, recoverable only
// by re-running init or restoring a backup.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Wrap(errs.ErrNotFound, "index", "load",
				fmt.Sprintf("no manifest at %s", path), nil)
		}
		return nil, errs.Wrap(errs.ErrCorruptIndex, "index", "load", "manifest unreadable", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errs.Wrap(errs.ErrCorruptIndex, "index", "load",
			fmt.Sprintf("manifest %s is malformed, re-run init or restore a backup", path), err)
	}
	if m.Volumes == nil {
		m.Volumes = make(map[string]*Entry)
	}
	return &m, nil
}

// Save persists the manifest atomically. encoding/json writes map keys in
// sorted order, which keeps saved manifests diffable across runs.
func Save(m *Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	return nil
}
