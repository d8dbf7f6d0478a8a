package harness

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// TaskMetrics holds one task's metric map as the harness wrote it, e.g.
// "prompt_level_strict_acc,none" -> 0.57.
type TaskMetrics map[string]any

// Results is the harness's output file, reduced to the per-task metrics.
type Results struct {
	Results map[string]TaskMetrics `json:"results"`
}

// Metric is one numeric entry of a task's metric map.
type Metric struct {
	Name  string
	Value float64
}

// Numeric returns the task's numeric metrics sorted by name. Stderr columns
// and non-numeric entries (version strings, aliases) are skipped.
func (m TaskMetrics) Numeric() []Metric {
	out := make([]Metric, 0, len(m))
	for name, v := range m {
		f, ok := v.(float64)
		if !ok {
			continue
		}
		out = append(out, Metric{Name: name, Value: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ParseResults reads a harness results file.
func ParseResults(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "harness: read results %s", path)
	}

	var res Results
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, eris.Wrapf(err, "harness: parse results %s", path)
	}
	if len(res.Results) == 0 {
		return nil, eris.Errorf("harness: no task results in %s", path)
	}
	return &res, nil
}

// FindResults locates the newest results*.json under dir. The harness nests
// its output one directory per model, so the whole tree is walked.
func FindResults(dir string) (string, error) {
	var (
		newest    string
		newestMod time.Time
	)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasPrefix(name, "results") || !strings.HasSuffix(name, ".json") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(newestMod) {
			newest, newestMod = path, info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "harness: scan %s", dir)
	}
	if newest == "" {
		return "", eris.Errorf("harness: no results file under %s", dir)
	}
	return newest, nil
}
