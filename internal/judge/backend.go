package judge

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/eval-cli/internal/model"
	"github.com/sells-group/eval-cli/internal/resilience"
	"github.com/sells-group/eval-cli/pkg/anthropic"
	"github.com/sells-group/eval-cli/pkg/openaichat"
)

// openaiBackend adapts an OpenAI-compatible chat-completions client to the
// ChatClient surface, retrying transient failures.
type openaiBackend struct {
	client openaichat.Client
	retry  resilience.RetryConfig
}

// NewOpenAIBackend wraps an OpenAI-compatible client. retries is the number
// of additional attempts after the first; zero disables retry.
func NewOpenAIBackend(client openaichat.Client, retries int) ChatClient {
	return &openaiBackend{
		client: client,
		retry:  chatRetryConfig(retries, "openai"),
	}
}

func (b *openaiBackend) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msgs := make([]openaichat.Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openaichat.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, openaichat.Message{Role: "user", Content: req.Prompt})

	ccReq := openaichat.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: &req.Temperature,
		MaxTokens:   &req.MaxTokens,
	}

	resp, err := resilience.DoVal(ctx, b.retry, func(ctx context.Context) (*openaichat.ChatCompletionResponse, error) {
		return b.client.ChatCompletion(ctx, ccReq)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("judge: empty completion")
	}

	return &ChatResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// anthropicBackend adapts the Anthropic messages client to the ChatClient
// surface. The system prompt is sent as a cached block since it repeats
// unchanged across every record in a batch.
type anthropicBackend struct {
	client anthropic.Client
	retry  resilience.RetryConfig
}

// NewAnthropicBackend wraps an Anthropic messages client.
func NewAnthropicBackend(client anthropic.Client, retries int) ChatClient {
	return &anthropicBackend{
		client: client,
		retry:  chatRetryConfig(retries, "anthropic"),
	}
}

func (b *anthropicBackend) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msgReq := anthropic.MessageRequest{
		Model:       req.Model,
		MaxTokens:   int64(req.MaxTokens),
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &req.Temperature,
	}
	if req.System != "" {
		msgReq.System = anthropic.BuildCachedSystemBlocks(req.System)
	}

	resp, err := resilience.DoVal(ctx, b.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return b.client.CreateMessage(ctx, msgReq)
	})
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return nil, eris.New("judge: empty completion")
	}

	return &ChatResponse{
		Content: sb.String(),
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.InputTokens),
			OutputTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}

// chatRetryConfig builds the retry policy for judge calls. Only transient
// failures (retryable HTTP statuses, network errors) are retried; a parse
// or schema problem would fail identically on every attempt.
func chatRetryConfig(retries int, service string) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = retries + 1
	cfg.ShouldRetry = transientChatErr
	cfg.OnRetry = resilience.RetryLogger(service, "chat completion")
	return cfg
}

func transientChatErr(err error) bool {
	var se *openaichat.StatusError
	if errors.As(err, &se) {
		return resilience.IsTransientHTTPStatus(se.StatusCode)
	}
	return resilience.IsTransient(err)
}
