package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemAccessors(t *testing.T) {
	t.Parallel()

	it := Item{
		"question": "What is the capital of France?",
		"context":  "France is a country in Europe.",
		"answer":   "Paris",
		"split":    "validation",
		"id":       42,
	}

	assert.Equal(t, "What is the capital of France?", it.Question())
	assert.Equal(t, "France is a country in Europe.", it.Context())
	assert.Equal(t, "Paris", it.Answer())
	assert.Equal(t, "validation", it.GetString("split"))

	t.Run("missing key is empty", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "", it.GetString("nope"))
	})

	t.Run("non-string value is empty", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "", it.GetString("id"))
	})
}

func TestItemClone(t *testing.T) {
	t.Parallel()

	orig := Item{"question": "Q", "answer": "A"}
	clone := orig.Clone()
	clone["answer"] = "B"

	assert.Equal(t, "A", orig.Answer())
	assert.Equal(t, "B", clone.Answer())
}

func TestItemMerge(t *testing.T) {
	t.Parallel()

	t.Run("judge fields enrich the item", func(t *testing.T) {
		t.Parallel()
		it := Item{"question": "Q", "context": "C", "answer": "A"}
		merged := it.Merge(map[string]any{"reasoning": "solid answer", "total_score": float64(3)})

		assert.Equal(t, Item{
			"question":    "Q",
			"context":     "C",
			"answer":      "A",
			"reasoning":   "solid answer",
			"total_score": float64(3),
		}, merged)
	})

	t.Run("incoming fields win on collision", func(t *testing.T) {
		t.Parallel()
		it := Item{"question": "Q", "total_score": "stale"}
		merged := it.Merge(map[string]any{"total_score": float64(5)})

		assert.Equal(t, float64(5), merged["total_score"])
	})

	t.Run("inputs are not mutated", func(t *testing.T) {
		t.Parallel()
		it := Item{"question": "Q"}
		fields := map[string]any{"reasoning": "r"}
		_ = it.Merge(fields)

		assert.Len(t, it, 1)
		assert.Len(t, fields, 1)
	})
}
