package dataset

import (
	"math/rand/v2"

	"github.com/sells-group/eval-cli/internal/model"
)

// Sample returns n records drawn without replacement. The same seed over the
// same input yields the same subset in the same order, so a judging run can
// be reproduced exactly. n >= len(items) returns a copy of everything.
func Sample(items []model.Item, n int, seed int64) []model.Item {
	if n < 0 {
		n = 0
	}
	out := make([]model.Item, len(items))
	copy(out, items)

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})

	if n < len(out) {
		out = out[:n]
	}
	return out
}

// Limit returns the first n records, or everything when n <= 0 or n exceeds
// the input.
func Limit(items []model.Item, n int) []model.Item {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}
