package eval

import (
	"math"
	"sort"

	"github.com/sells-group/eval-cli/internal/model"
)

// Summary aggregates judge scores across a completed batch.
type Summary struct {
	Count  int     `json:"count"`
	Scored int     `json:"scored"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P95    float64 `json:"p95"`
}

// Summarize computes score statistics over scored items. Items without a
// numeric total_score are counted but excluded from the statistics.
func Summarize(results []model.Item) Summary {
	s := Summary{Count: len(results)}

	scores := make([]float64, 0, len(results))
	for _, r := range results {
		if v, ok := r[model.KeyTotalScore].(float64); ok {
			scores = append(scores, v)
		}
	}
	s.Scored = len(scores)
	if len(scores) == 0 {
		return s
	}

	sort.Float64s(scores)

	var sum float64
	for _, v := range scores {
		sum += v
	}
	s.Mean = sum / float64(len(scores))
	s.Min = scores[0]
	s.Max = scores[len(scores)-1]
	s.Median = percentile(scores, 0.50)
	s.P95 = percentile(scores, 0.95)

	return s
}

// percentile interpolates the p-th percentile of sorted values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}

	index := p * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
