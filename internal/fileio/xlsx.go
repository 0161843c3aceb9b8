package fileio

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// WriteXLSX writes typed rows as a single-sheet workbook. Numeric cells are
// written as numbers, NaN as blank, everything else as text. v must be a
// slice of csv-tagged structs; the csv tags become the header row.
func WriteXLSX(path, sheetName string, v any) error {
	b, err := csvutil.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "fileio: marshal %s", path)
	}

	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return eris.Wrapf(err, "fileio: reread %s", path)
	}
	if len(records) == 0 {
		return eris.Errorf("fileio: nothing to export to %s", path)
	}

	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "fileio: add sheet %s", path)
	}

	header := sheet.AddRow()
	for _, name := range records[0] {
		header.AddCell().SetString(name)
	}

	for _, rec := range records[1:] {
		row := sheet.AddRow()
		for _, cell := range rec {
			c := row.AddCell()
			switch {
			case cell == "" || cell == "NaN":
				// blank
			case isNumeric(cell):
				f, _ := strconv.ParseFloat(cell, 64)
				c.SetFloat(f)
			default:
				c.SetString(cell)
			}
		}
	}

	if err := wb.Save(path); err != nil {
		return eris.Wrapf(err, "fileio: save %s", path)
	}
	return nil
}

func isNumeric(s string) bool {
	if strings.HasSuffix(s, "%") {
		return false // keep presentation percents as text
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
