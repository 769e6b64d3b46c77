// Package naming decomposes managed filenames into their convention fields.
//
// A managed name is "<subject><ext>" for volumes and "<subject>-v<N><ext>"
// for segmentation versions, where <ext> is the extension configured for the
// dataset (multi-dot extensions such as ".nii.gz" are stripped verbatim).
// The subject splits on "-" into prefix, basename, and postfix segments.
// Parse never fails: names that do not follow the convention come back with
// Valid unset and must be treated as unresolved downstream.
package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var versionSuffix = regexp.MustCompile(`-v(\d+)$`)

// Descriptor is the parsed decomposition of a single filename.
type Descriptor struct {
	Path     string
	Name     string
	Prefix   string
	Basename string
	Postfix  string
	Segments []string
	Version  int // 0 when the name carries no -v<N> suffix
	Ext      string
	Valid    bool
}

// Parse decomposes name against the configured extension. path is retained
// verbatim on the descriptor so callers can report the original location.
func Parse(path, name, ext string) Descriptor {
	d := Descriptor{Path: path, Name: name}
	if ext == "" || !strings.HasSuffix(name, ext) || len(name) == len(ext) {
		return d
	}

	subject := name[:len(name)-len(ext)]
	if m := versionSuffix.FindStringSubmatch(subject); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			return d
		}
		d.Version = n
		subject = subject[:len(subject)-len(m[0])]
	}
	if subject == "" || strings.HasPrefix(subject, "-") || strings.HasSuffix(subject, "-") {
		return d
	}

	d.Ext = ext
	d.Segments = strings.Split(subject, "-")
	for _, seg := range d.Segments {
		if seg == "" {
			d.Segments = nil
			return d
		}
	}
	switch len(d.Segments) {
	case 1:
		d.Basename = d.Segments[0]
	case 2:
		d.Prefix = d.Segments[0]
		d.Basename = d.Segments[1]
	default:
		d.Prefix = d.Segments[0]
		d.Basename = d.Segments[1]
		d.Postfix = strings.Join(d.Segments[2:], "-")
	}
	d.Valid = true
	return d
}

// Subject returns the logical identity shared by a volume and its
// segmentation versions: the hyphen-joined segments without version or
// extension. Empty for invalid descriptors.
func (d Descriptor) Subject() string {
	if !d.Valid {
		return ""
	}
	return strings.Join(d.Segments, "-")
}

// Key returns the match key fields of the descriptor.
func (d Descriptor) Key() Key {
	return Key{Prefix: d.Prefix, Basename: d.Basename, Postfix: d.Postfix}
}

// VersionString renders the version as the conventional "v<N>" token, or ""
// when the descriptor carries no version.
func (d Descriptor) VersionString() string {
	if d.Version == 0 {
		return ""
	}
	return fmt.Sprintf("v%d", d.Version)
}

// Reassemble reconstructs the original filename from the parsed fields.
// Invalid descriptors reassemble to the raw name unchanged.
func (d Descriptor) Reassemble() string {
	if !d.Valid {
		return d.Name
	}
	var b strings.Builder
	b.WriteString(d.Subject())
	if d.Version > 0 {
		b.WriteString("-v")
		b.WriteString(strconv.Itoa(d.Version))
	}
	b.WriteString(d.Ext)
	return b.String()
}

// Key is the subset of descriptor fields used for pairing. Version and
// extension are deliberately excluded so a volume and segmentation with the
// same identity can match across formats and revisions.
type Key struct {
	Prefix   string
	Basename string
	Postfix  string
}

// String renders the key in its on-disk form.
func (k Key) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{k.Prefix, k.Basename, k.Postfix} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}

// VersionedName builds the canonical segmentation filename for a subject,
// version ordinal, and extension.
func VersionedName(subject string, version int, ext string) string {
	return fmt.Sprintf("%s-v%d%s", subject, version, ext)
}
