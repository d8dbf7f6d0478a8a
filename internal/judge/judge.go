// Package judge scores evaluation records by prompting an LLM and parsing
// its structured verdict.
package judge

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/eval-cli/internal/model"
)

// ChatClient is the completion surface a judge backend must provide.
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is a single judge completion call.
type ChatRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// ChatResponse is the model's completion text plus token accounting.
type ChatResponse struct {
	Content string
	Usage   model.TokenUsage
}

// Judge scores records through a chat model. Safe for concurrent use.
type Judge struct {
	cfg    *Config
	client ChatClient

	mu    sync.Mutex
	usage model.TokenUsage
}

// New builds a Judge. A nil config gets the built-in defaults.
func New(cfg *Config, client ChatClient) *Judge {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Judge{cfg: cfg, client: client}
}

// Config returns the configuration the judge was built with.
func (j *Judge) Config() *Config {
	return j.cfg
}

// Score renders the judge prompt for one record, calls the model at the
// configured temperature and token budget, and returns a new record
// enriched with the verdict fields. Transport errors and unparseable
// verdicts both surface as errors.
func (j *Judge) Score(ctx context.Context, item model.Item) (model.Item, error) {
	resp, err := j.client.Complete(ctx, ChatRequest{
		Model:       j.cfg.Model,
		System:      j.cfg.SystemPrompt,
		Prompt:      RenderPrompt(j.cfg, item),
		MaxTokens:   j.cfg.MaxTokens,
		Temperature: j.cfg.Temperature,
	})
	if err != nil {
		return nil, eris.Wrap(err, "judge: completion")
	}

	judgement, err := model.ParseJudgement(resp.Content)
	if err != nil {
		zap.L().Debug("judge returned unparseable verdict",
			zap.String("question", item.Question()),
			zap.Error(err))
		return nil, eris.Wrap(err, "judge: parse verdict")
	}

	j.mu.Lock()
	j.usage.Add(resp.Usage)
	j.mu.Unlock()

	return item.Merge(judgement.Fields()), nil
}

// Usage reports tokens consumed across all Score calls so far.
func (j *Judge) Usage() model.TokenUsage {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.usage
}
