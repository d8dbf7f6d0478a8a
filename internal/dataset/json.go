package dataset

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eval-cli/internal/model"
)

// maxLineBytes bounds a single JSONL line. Records carrying long contexts
// fit comfortably; anything larger is a malformed file.
const maxLineBytes = 1024 * 1024

// ReadJSON decodes a JSON array of objects. A top-level object is rejected:
// a dataset is a list of records, one judgement input each.
func ReadJSON(r io.Reader) ([]model.Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read json")
	}

	var items []model.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, eris.Wrap(err, "dataset: decode json (expected an array of objects; use JSONL for object-per-line)")
	}
	return items, nil
}

// ReadJSONL decodes one JSON object per line. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]model.Item, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, maxLineBytes), maxLineBytes)

	var items []model.Item
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 || isBlank(raw) {
			continue
		}
		var item model.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, eris.Wrapf(err, "dataset: decode jsonl line %d", line)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "dataset: scan jsonl")
	}
	return items, nil
}

func isBlank(raw []byte) bool {
	for _, b := range raw {
		if b != ' ' && b != '\t' && b != '\r' {
			return false
		}
	}
	return true
}
