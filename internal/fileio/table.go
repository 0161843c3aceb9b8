// Package fileio reads and writes the tabular files that connect pipeline
// stages: raw CSV/XLSX exports, struct-tagged stage schemas, and the XLSX
// deliverable. All inter-stage state is file-resident; this package is the
// only place that touches the filesystem for data.
package fileio

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Table is an untyped tabular file: a header row plus string cells. Used for
// the raw export, where column presence is not known until load.
type Table struct {
	Path   string
	Header []string
	Rows   [][]string
}

// Col returns the index of a column by exact name, or -1.
func (t *Table) Col(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns row[col] or "" when the row is ragged.
func (t *Table) Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// ReadTable loads a CSV or XLSX file by extension. The first row is the
// header; remaining rows may be ragged (short rows read as blank cells).
func ReadTable(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSVTable(path)
	case ".xlsx", ".xls":
		return readXLSXTable(path)
	default:
		return nil, eris.Errorf("fileio: unsupported file format %q", filepath.Ext(path))
	}
}

func readCSVTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fileio: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // allow variable fields
	r.LazyQuotes = true

	var t Table
	t.Path = path
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "fileio: read csv %s", path)
		}
		if first {
			first = false
			t.Header = record
			continue
		}
		t.Rows = append(t.Rows, record)
	}
	if t.Header == nil {
		return nil, eris.Errorf("fileio: %s is empty", path)
	}
	return &t, nil
}

func readXLSXTable(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fileio: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("fileio: %s has no sheets", path)
	}
	sheet := f.Sheets[0]

	var t Table
	t.Path = path
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if i == 0 {
			t.Header = cells
			continue
		}
		t.Rows = append(t.Rows, cells)
	}
	if t.Header == nil {
		return nil, eris.Errorf("fileio: %s is empty", path)
	}
	return &t, nil
}

// DiscoverLatest returns the most recently modified file matching the glob
// pattern. Missing inputs are a hard failure naming the pattern.
func DiscoverLatest(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", eris.Wrapf(err, "fileio: bad glob %q", pattern)
	}
	var newest string
	var newestMod int64
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest, newestMod = m, mod
		}
	}
	if newest == "" {
		return "", eris.Errorf("fileio: no file matches %q", pattern)
	}
	return newest, nil
}

// WriteTable writes an untyped table as CSV (used for quarantine sidecars,
// which carry the source's own columns).
func WriteTable(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "fileio: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(header); err != nil {
		return eris.Wrapf(err, "fileio: write header %s", path)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "fileio: write row %s", path)
		}
	}
	return nil
}
