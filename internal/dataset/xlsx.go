package dataset

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/eval-cli/internal/model"
)

// XLSXOptions selects the worksheet to decode. SheetName wins over
// SheetIndex when both are set.
type XLSXOptions struct {
	SheetName  string
	SheetIndex int
}

// ReadXLSX decodes a workbook on disk, keyed by the sheet's first row.
func ReadXLSX(path string, opts XLSXOptions) ([]model.Item, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open xlsx %s", path)
	}
	return decodeWorkbook(f, opts)
}

// ReadXLSXBytes decodes a workbook already in memory, e.g. a downloaded one.
func ReadXLSXBytes(data []byte, opts XLSXOptions) ([]model.Item, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open xlsx")
	}
	return decodeWorkbook(f, opts)
}

func decodeWorkbook(f *xlsx.File, opts XLSXOptions) ([]model.Item, error) {
	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("dataset: sheet %q is empty", sheet.Name)
	}

	header := rowToStrings(sheet.Rows[0])
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var items []model.Item
	for _, row := range sheet.Rows[1:] {
		values := rowToStrings(row)
		item := make(model.Item, len(header))
		empty := true
		for i, key := range header {
			if key == "" || i >= len(values) {
				continue
			}
			if strings.TrimSpace(values[i]) != "" {
				empty = false
			}
			item[key] = values[i]
		}
		if empty {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("dataset: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}
	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("dataset: sheet index %d out of range (workbook has %d)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		out[i] = cell.String()
	}
	return out
}
