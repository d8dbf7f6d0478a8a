package eval

import "go.uber.org/zap"

// Reporter observes batch progress. The runner invokes Tick serially, once
// per successfully scored item with the running completion count; Finish
// fires exactly once when the batch ends, whatever the outcome.
type Reporter interface {
	Tick(completed, total int)
	Finish(completed, total int)
}

// NopReporter discards all progress.
type NopReporter struct{}

func (NopReporter) Tick(completed, total int)   {}
func (NopReporter) Finish(completed, total int) {}

// LogReporter writes progress through the global zap logger. Every controls
// how often ticks are logged; the final tick always logs.
type LogReporter struct {
	Every int
}

func (r LogReporter) Tick(completed, total int) {
	every := r.Every
	if every < 1 {
		every = 1
	}
	if completed%every != 0 && completed != total {
		return
	}
	zap.L().Info("scoring progress",
		zap.Int("completed", completed),
		zap.Int("total", total),
	)
}

func (r LogReporter) Finish(completed, total int) {
	zap.L().Info("scoring done",
		zap.Int("completed", completed),
		zap.Int("total", total),
	)
}
