//go:build !integration

package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/eval-cli/internal/model"
)

func scored(score float64) model.Item {
	return model.Item{"question": "q", "total_score": score}
}

func TestSummarize_Basic(t *testing.T) {
	results := []model.Item{scored(1), scored(2), scored(3), scored(4), scored(5)}

	s := Summarize(results)
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 5, s.Scored)
	assert.InDelta(t, 3.0, s.Mean, 0.0001)
	assert.InDelta(t, 3.0, s.Median, 0.0001)
	assert.InDelta(t, 1.0, s.Min, 0.0001)
	assert.InDelta(t, 5.0, s.Max, 0.0001)
	assert.InDelta(t, 4.8, s.P95, 0.0001)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.Count)
	assert.Equal(t, 0, s.Scored)
	assert.Zero(t, s.Mean)
}

func TestSummarize_SkipsUnscoredItems(t *testing.T) {
	results := []model.Item{
		scored(2),
		{"question": "no score here"},
		{"question": "string score", "total_score": "3"},
		scored(4),
	}

	s := Summarize(results)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 2, s.Scored)
	assert.InDelta(t, 3.0, s.Mean, 0.0001)
}

func TestSummarize_SingleItem(t *testing.T) {
	s := Summarize([]model.Item{scored(3.5)})
	assert.Equal(t, 1, s.Scored)
	assert.InDelta(t, 3.5, s.Mean, 0.0001)
	assert.InDelta(t, 3.5, s.Median, 0.0001)
	assert.InDelta(t, 3.5, s.Min, 0.0001)
	assert.InDelta(t, 3.5, s.Max, 0.0001)
	assert.InDelta(t, 3.5, s.P95, 0.0001)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}

	assert.InDelta(t, 1.0, percentile(sorted, 0), 0.0001)
	assert.InDelta(t, 4.0, percentile(sorted, 1), 0.0001)
	assert.InDelta(t, 2.5, percentile(sorted, 0.5), 0.0001)
	assert.Zero(t, percentile(nil, 0.5))
}
