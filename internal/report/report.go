// Package report writes and reads judging run artifacts: a JSONL file whose
// first line identifies the run and whose remaining lines are the merged
// per-item results.
package report

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/eval-cli/internal/eval"
	"github.com/sells-group/eval-cli/internal/model"
)

// Meta identifies one judging run. Written as the artifact's first line, so
// a results file is self-describing.
type Meta struct {
	RunID      string           `json:"run_id"`
	Model      string           `json:"model"`
	Provider   string           `json:"provider"`
	Dataset    string           `json:"dataset"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Usage      model.TokenUsage `json:"usage"`
	EstCost    float64          `json:"est_cost,omitempty"`
	Summary    eval.Summary     `json:"summary"`
}

// NewMeta stamps a fresh run id and start time.
func NewMeta(modelID, provider, dataset string) Meta {
	return Meta{
		RunID:     uuid.New().String(),
		Model:     modelID,
		Provider:  provider,
		Dataset:   dataset,
		StartedAt: time.Now().UTC(),
	}
}

// WriteJSONL writes the artifact. A zero FinishedAt is stamped here so
// callers that built Meta up front don't have to remember it.
func WriteJSONL(path string, meta Meta, results []model.Item) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if meta.FinishedAt.IsZero() {
		meta.FinishedAt = time.Now().UTC()
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	if err := enc.Encode(meta); err != nil {
		return eris.Wrap(err, "report: write run meta")
	}
	for i, r := range results {
		if err := enc.Encode(r); err != nil {
			return eris.Wrapf(err, "report: write result %d", i)
		}
	}
	if err := w.Flush(); err != nil {
		return eris.Wrapf(err, "report: flush %s", path)
	}
	return nil
}

// Artifact is one parsed results file.
type Artifact struct {
	Meta    Meta
	Results []model.Item
}

// maxLineBytes bounds one artifact line; matches the dataset loader's budget.
const maxLineBytes = 1024 * 1024

// ReadJSONL parses an artifact written by WriteJSONL.
func ReadJSONL(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "report: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, maxLineBytes), maxLineBytes)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, eris.Wrapf(err, "report: read %s", path)
		}
		return nil, eris.Errorf("report: %s is empty", path)
	}

	var artifact Artifact
	if err := json.Unmarshal(scanner.Bytes(), &artifact.Meta); err != nil {
		return nil, eris.Wrap(err, "report: parse run meta")
	}
	if artifact.Meta.RunID == "" {
		return nil, eris.Errorf("report: %s has no run id", path)
	}

	line := 1
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var item model.Item
		if err := json.Unmarshal(scanner.Bytes(), &item); err != nil {
			return nil, eris.Wrapf(err, "report: parse result line %d", line)
		}
		artifact.Results = append(artifact.Results, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "report: read %s", path)
	}
	return &artifact, nil
}
