// Package dataset materializes evaluation records from local files
// (JSON array, JSONL, CSV, XLSX) or HTTP(S) URLs.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eval-cli/internal/model"
)

const (
	formatJSON  = "json"
	formatJSONL = "jsonl"
	formatCSV   = "csv"
	formatXLSX  = "xlsx"
)

// Options configures decoding of a dataset source.
type Options struct {
	// CSV decoding.
	Delimiter rune   // default ','
	Charset   string // e.g. "windows-1252"; empty means UTF-8

	// XLSX sheet selection.
	SheetName  string
	SheetIndex int

	// Fetcher used for http(s) sources. Nil gets a default fetcher.
	Fetcher *Fetcher
}

// Load reads evaluation records from a local path or an HTTP(S) URL,
// choosing the decoder from the extension (content sniffing for
// extensionless local files).
func Load(ctx context.Context, source string, opts Options) ([]model.Item, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return loadRemote(ctx, source, opts)
	}
	return loadFile(source, opts)
}

func loadFile(path string, opts Options) ([]model.Item, error) {
	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	if format == formatXLSX {
		return ReadXLSX(path, XLSXOptions{SheetName: opts.SheetName, SheetIndex: opts.SheetIndex})
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	switch format {
	case formatJSON:
		return ReadJSON(f)
	case formatJSONL:
		return ReadJSONL(f)
	case formatCSV:
		return ReadCSV(f, CSVOptions{Delimiter: opts.Delimiter, Charset: opts.Charset})
	default:
		return nil, eris.Errorf("dataset: unsupported format %q", format)
	}
}

func loadRemote(ctx context.Context, rawURL string, opts Options) ([]model.Item, error) {
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewFetcher(FetchOptions{})
	}

	data, err := fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: parse url %s", rawURL)
	}

	switch format := formatFromExt(filepath.Ext(u.Path)); format {
	case formatJSON:
		return ReadJSON(bytes.NewReader(data))
	case formatJSONL:
		return ReadJSONL(bytes.NewReader(data))
	case formatCSV:
		return ReadCSV(bytes.NewReader(data), CSVOptions{Delimiter: opts.Delimiter, Charset: opts.Charset})
	case formatXLSX:
		return ReadXLSXBytes(data, XLSXOptions{SheetName: opts.SheetName, SheetIndex: opts.SheetIndex})
	default:
		// No usable extension in the URL path; sniff the payload.
		return sniffDecode(data)
	}
}

// detectFormat maps the extension to a decoder, falling back to sniffing the
// first non-space byte for extensionless files.
func detectFormat(path string) (string, error) {
	if format := formatFromExt(filepath.Ext(path)); format != "" {
		return format, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	reader := bufio.NewReader(f)
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return "", eris.Wrapf(err, "dataset: sniff %s", path)
		}
		switch {
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			continue
		case b == '[':
			return formatJSON, nil
		case b == '{':
			return formatJSONL, nil
		default:
			return "", eris.Errorf("dataset: cannot detect format of %s", path)
		}
	}
}

func formatFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".json":
		return formatJSON
	case ".jsonl", ".ndjson":
		return formatJSONL
	case ".csv":
		return formatCSV
	case ".xlsx":
		return formatXLSX
	default:
		return ""
	}
}

func sniffDecode(data []byte) ([]model.Item, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, eris.New("dataset: empty response body")
	}
	switch trimmed[0] {
	case '[':
		return ReadJSON(bytes.NewReader(trimmed))
	case '{':
		return ReadJSONL(bytes.NewReader(trimmed))
	default:
		return nil, eris.New("dataset: cannot detect response format")
	}
}
