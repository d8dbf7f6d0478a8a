// Package eval runs a scoring function over a batch of items with bounded
// concurrency.
package eval

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/eval-cli/internal/model"
)

// ScoreFunc scores one item, typically via a network call to a judge model.
// It returns the item enriched with the judge's fields.
type ScoreFunc func(ctx context.Context, item model.Item) (model.Item, error)

// Options configures a batch run.
type Options struct {
	// Concurrency caps how many ScoreFunc calls are in flight at once.
	// Values below 1 are treated as 1.
	Concurrency int
	// Progress observes per-item completion. Optional.
	Progress Reporter
}

// Run executes fn over every item with at most Options.Concurrency calls in
// flight. A unit of work holds one of the concurrency slots for exactly the
// duration of its fn call and gives it back whether the call succeeds or
// fails.
//
// The returned slice holds one scored item per input, in no particular
// order. The first fn error cancels the remaining work and fails the whole
// batch; no partial results are returned. An empty input returns an empty
// slice immediately.
func Run(ctx context.Context, items []model.Item, fn ScoreFunc, opts Options) ([]model.Item, error) {
	total := len(items)
	progress := opts.Progress
	if progress == nil {
		progress = NopReporter{}
	}

	if total == 0 {
		progress.Finish(0, 0)
		return []model.Item{}, nil
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var mu sync.Mutex
	results := make([]model.Item, 0, total)

	for _, item := range items {
		g.Go(func() error {
			scored, err := fn(gctx, item)
			if err != nil {
				return err
			}

			// Tick inside the lock so reporters see a strictly increasing
			// completion count.
			mu.Lock()
			results = append(results, scored)
			progress.Tick(len(results), total)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()

	mu.Lock()
	completed := len(results)
	mu.Unlock()
	progress.Finish(completed, total)

	if err != nil {
		return nil, eris.Wrap(err, "eval: batch scoring")
	}
	return results, nil
}
