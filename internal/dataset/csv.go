package dataset

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/eval-cli/internal/model"
)

// CSVOptions configures CSV decoding.
type CSVOptions struct {
	Delimiter rune   // default ','
	Charset   string // IANA name, e.g. "windows-1252"; empty means UTF-8
}

// ReadCSV decodes a delimited file into records keyed by the header row.
// Values are kept as strings; the judge prompt renders them as-is.
func ReadCSV(r io.Reader, opts CSVOptions) ([]model.Item, error) {
	if opts.Charset != "" {
		enc, err := htmlindex.Get(opts.Charset)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: unknown charset %q", opts.Charset)
		}
		r = enc.NewDecoder().Reader(r)
	}

	cr := csv.NewReader(r)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, eris.New("dataset: csv is empty")
	}
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var items []model.Item
	row := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: read csv row %d", row)
		}

		item := make(model.Item, len(header))
		empty := true
		for i, key := range header {
			if key == "" || i >= len(record) {
				continue
			}
			value := record[i]
			if strings.TrimSpace(value) != "" {
				empty = false
			}
			item[key] = value
		}
		if empty {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
