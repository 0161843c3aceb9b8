package fileio

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/meridian-rcm/revperf/internal/parse"
)

// ReadCSV decodes a stage output file into typed rows. The file header is
// validated against the struct's csv tags up front: a missing required
// column aborts with the explicit list of missing names. Extra columns are
// tolerated and ignored. Float cells are parsed permissively (blanks and
// garbage decode to NaN, never an error).
func ReadCSV[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fileio: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	dec, err := csvutil.NewDecoder(r)
	if err != nil {
		if err == io.EOF {
			return nil, eris.Errorf("fileio: %s is empty", path)
		}
		return nil, eris.Wrapf(err, "fileio: read header %s", path)
	}

	var zero T
	if err := checkSchema(dec.Header(), &zero, path); err != nil {
		return nil, err
	}

	// Permissive numeric parsing for dirty cells.
	dec.Map = func(field, col string, v any) string {
		switch v.(type) {
		case float64:
			return parse.Normalize(field)
		case int, int64:
			if strings.TrimSpace(field) == "" {
				return "0"
			}
		}
		return field
	}

	var rows []T
	for {
		var row T
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "fileio: decode row %s", path)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV encodes typed rows to a stage output file. v must be a slice of
// csv-tagged structs.
func WriteCSV(path string, v any) error {
	b, err := csvutil.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "fileio: marshal %s", path)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return eris.Wrapf(err, "fileio: write %s", path)
	}
	return nil
}

// checkSchema verifies that every column named by the struct's csv tags is
// present in the file header.
func checkSchema(header []string, zero any, path string) error {
	want, err := csvutil.Header(zero, "csv")
	if err != nil {
		return eris.Wrap(err, "fileio: schema header")
	}
	have := make(map[string]struct{}, len(header))
	for _, h := range header {
		have[strings.TrimSpace(h)] = struct{}{}
	}
	var missing []string
	for _, w := range want {
		if _, ok := have[w]; !ok {
			missing = append(missing, w)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("fileio: %s missing required columns: %s", path, strings.Join(missing, ", "))
	}
	return nil
}
