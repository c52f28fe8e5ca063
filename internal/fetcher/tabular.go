package fetcher

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// TabularOptions configures the tabular readers.
type TabularOptions struct {
	SheetIndex int    // xlsx only, default 0
	SheetName  string // xlsx only, overrides SheetIndex if set
	SkipRows   int    // header rows to skip
	Delimiter  rune   // csv only, default ','
}

// ReadXLSX reads an XLSX file and returns rows as string slices.
func ReadXLSX(path string, opts TabularOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = strings.TrimSpace(cell.String())
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// ReadCSV reads CSV data and returns rows as string slices. Fields are
// trimmed and rows may have variable widths.
func ReadCSV(r io.Reader, opts TabularOptions) ([][]string, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1

	var rows [][]string
	for i := 0; ; i++ {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		if i < opts.SkipRows {
			continue
		}
		for j, field := range record {
			record[j] = strings.TrimSpace(field)
		}
		rows = append(rows, record)
	}
}

func getSheet(f *xlsx.File, opts TabularOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}
