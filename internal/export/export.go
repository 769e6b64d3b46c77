// Package export writes the active pair list of an index in a format
// external tooling can consume.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"volsegsync/internal/errs"
	"volsegsync/internal/fileutil"
	"volsegsync/internal/index"
)

// Format selects the export output shape.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTable Format = "table"
)

// CSV column headers, matching the layout downstream pipelines expect.
var csvHeader = []string{"VOLUME FILE", "SEGMENTATION FILE"}

// ParseFormat validates a user supplied format name.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatTable:
		return FormatTable, nil
	default:
		return "", errs.Wrap(errs.ErrValidation, "export", "format",
			fmt.Sprintf("unknown format %q (expected csv or table)", value), nil)
	}
}

// Write renders the active pairs of the manifest to w. Paths are resolved
// relative to the instance root.
func Write(w io.Writer, format Format, manifest *index.Manifest, root string) error {
	pairs := manifest.PairPaths(root)
	switch format {
	case FormatCSV:
		return writeCSV(w, pairs)
	case FormatTable:
		return writeTable(w, pairs)
	default:
		return errs.Wrap(errs.ErrValidation, "export", "write",
			fmt.Sprintf("unknown format %q", format), nil)
	}
}

// WriteFile renders to path with an atomic replace so a failed export never
// truncates an existing file.
func WriteFile(path string, format Format, manifest *index.Manifest, root string) error {
	var buf bytes.Buffer
	if err := Write(&buf, format, manifest, root); err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return errs.Wrap(nil, "export", "write-file", fmt.Sprintf("write %s", path), err)
	}
	return nil
}

func writeCSV(w io.Writer, pairs []index.PairPath) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errs.Wrap(nil, "export", "csv", "write header", err)
	}
	for _, pair := range pairs {
		if err := cw.Write([]string{pair.VolumePath, pair.SegmentationPath}); err != nil {
			return errs.Wrap(nil, "export", "csv", fmt.Sprintf("write row for %s", pair.Subject), err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.Wrap(nil, "export", "csv", "flush", err)
	}
	return nil
}

func writeTable(w io.Writer, pairs []index.PairPath) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"SUBJECT", "VOLUME FILE", "SEGMENTATION FILE"})
	for _, pair := range pairs {
		tw.AppendRow(table.Row{pair.Subject, pair.VolumePath, pair.SegmentationPath})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
	})
	if _, err := io.WriteString(w, tw.Render()+"\n"); err != nil {
		return errs.Wrap(nil, "export", "table", "render", err)
	}
	return nil
}
