// Package openaichat wraps the OpenAI Go SDK behind a small chat-completions
// client that also works against OpenAI-compatible inference servers
// (vLLM, TGI, Ollama) via a custom base URL.
package openaichat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rotisserie/eris"
)

// Client defines the chat-completions operations used by the judge and the
// server probe.
type Client interface {
	ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error)
	ListModels(ctx context.Context) ([]string, error)
}

// ChatCompletionRequest is our own request type for a single completion call.
type ChatCompletionRequest struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
}

// Message represents a single message in the conversation.
type Message struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// ChatCompletionResponse is our own response type from a completion call.
type ChatCompletionResponse struct {
	ID      string
	Model   string
	Choices []Choice
	Usage   Usage
}

// Choice is a single completion choice.
type Choice struct {
	Index        int
	FinishReason string
	Message      Message
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StatusError carries the HTTP status of a failed API call so callers can
// decide whether the failure is worth retrying.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openaichat: status %d: %s", e.StatusCode, e.Message)
}

// Option configures the client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
	http    *http.Client
}

// WithBaseURL points the client at an OpenAI-compatible server
// (e.g. a vLLM or TGI endpoint ending in /v1).
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		o.http = hc
	}
}

// sdkClient implements Client using the official openai-go SDK.
type sdkClient struct {
	client openai.Client
}

// NewClient creates a chat-completions client. The API key may be empty for
// local inference servers that do not check authorization.
func NewClient(apiKey string, opts ...Option) Client {
	var co clientOptions
	for _, o := range opts {
		o(&co)
	}

	if co.http == nil {
		co.http = &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	reqOpts := []option.RequestOption{
		option.WithHTTPClient(co.http),
		// Callers own the retry policy; the SDK must not stack its own
		// attempts on top.
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	if co.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(co.baseURL))
	}

	return &sdkClient{client: openai.NewClient(reqOpts...)}
}

func (c *sdkClient) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: toSDKMessages(req.Messages),
	}

	// Temperature zero is meaningful for deterministic grading, so the
	// field is a pointer and set whenever present.
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, wrapSDKError(err, "chat completion")
	}

	return fromSDKCompletion(completion), nil
}

func (c *sdkClient) ListModels(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, wrapSDKError(err, "list models")
	}

	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// --- SDK type conversion helpers ---

func toSDKMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func fromSDKCompletion(completion *openai.ChatCompletion) *ChatCompletionResponse {
	choices := make([]Choice, 0, len(completion.Choices))
	for _, ch := range completion.Choices {
		choices = append(choices, Choice{
			Index:        int(ch.Index),
			FinishReason: string(ch.FinishReason),
			Message: Message{
				Role:    "assistant",
				Content: ch.Message.Content,
			},
		})
	}

	return &ChatCompletionResponse{
		ID:      completion.ID,
		Model:   completion.Model,
		Choices: choices,
		Usage: Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
}

// wrapSDKError converts SDK errors into our own types, preserving the HTTP
// status for retry classification.
func wrapSDKError(err error, action string) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return eris.Wrapf(&StatusError{
			StatusCode: apierr.StatusCode,
			Message:    apierr.Message,
		}, "openaichat: %s", action)
	}
	return eris.Wrap(err, "openaichat: "+action)
}
