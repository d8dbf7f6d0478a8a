package judge

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eval-cli/internal/model"
	"github.com/sells-group/eval-cli/pkg/anthropic"
	"github.com/sells-group/eval-cli/pkg/openaichat"
)

// fakeCompletionClient replays queued replies, recording each request.
type fakeCompletionClient struct {
	mu    sync.Mutex
	reqs  []openaichat.ChatCompletionRequest
	queue []completionReply
}

type completionReply struct {
	resp *openaichat.ChatCompletionResponse
	err  error
}

func (f *fakeCompletionClient) ChatCompletion(_ context.Context, req openaichat.ChatCompletionRequest) (*openaichat.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reqs = append(f.reqs, req)
	if len(f.queue) == 0 {
		return nil, errors.New("fake: no reply queued")
	}
	reply := f.queue[0]
	f.queue = f.queue[1:]
	return reply.resp, reply.err
}

func (f *fakeCompletionClient) ListModels(context.Context) ([]string, error) {
	return nil, nil
}

func verdictCompletion(content string) *openaichat.ChatCompletionResponse {
	return &openaichat.ChatCompletionResponse{
		ID: "chatcmpl-test",
		Choices: []openaichat.Choice{
			{Index: 0, FinishReason: "stop", Message: openaichat.Message{Role: "assistant", Content: content}},
		},
		Usage: openaichat.Usage{PromptTokens: 30, CompletionTokens: 12},
	}
}

func TestOpenAIBackend_BuildsChatRequest(t *testing.T) {
	fake := &fakeCompletionClient{queue: []completionReply{
		{resp: verdictCompletion(`{"reasoning":"ok","total_score":4}`)},
	}}
	backend := NewOpenAIBackend(fake, 0)

	resp, err := backend.Complete(context.Background(), ChatRequest{
		Model:       "judge-model",
		System:      "grade hard",
		Prompt:      "score this answer",
		MaxTokens:   256,
		Temperature: 0,
	})
	require.NoError(t, err)

	require.Len(t, fake.reqs, 1)
	req := fake.reqs[0]
	assert.Equal(t, "judge-model", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openaichat.Message{Role: "system", Content: "grade hard"}, req.Messages[0])
	assert.Equal(t, openaichat.Message{Role: "user", Content: "score this answer"}, req.Messages[1])
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.0, *req.Temperature)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 256, *req.MaxTokens)

	assert.Equal(t, `{"reasoning":"ok","total_score":4}`, resp.Content)
	assert.Equal(t, model.TokenUsage{InputTokens: 30, OutputTokens: 12}, resp.Usage)
}

func TestOpenAIBackend_OmitsEmptySystem(t *testing.T) {
	fake := &fakeCompletionClient{queue: []completionReply{
		{resp: verdictCompletion(`{"reasoning":"ok","total_score":1}`)},
	}}
	backend := NewOpenAIBackend(fake, 0)

	_, err := backend.Complete(context.Background(), ChatRequest{
		Model:  "m",
		Prompt: "p",
	})
	require.NoError(t, err)

	require.Len(t, fake.reqs, 1)
	require.Len(t, fake.reqs[0].Messages, 1)
	assert.Equal(t, "user", fake.reqs[0].Messages[0].Role)
}

func TestOpenAIBackend_EmptyChoices(t *testing.T) {
	fake := &fakeCompletionClient{queue: []completionReply{
		{resp: &openaichat.ChatCompletionResponse{ID: "x"}},
	}}
	backend := NewOpenAIBackend(fake, 0)

	_, err := backend.Complete(context.Background(), ChatRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty completion")
}

func TestOpenAIBackend_RetriesRateLimit(t *testing.T) {
	fake := &fakeCompletionClient{queue: []completionReply{
		{err: &openaichat.StatusError{StatusCode: 429, Message: "slow down"}},
		{resp: verdictCompletion(`{"reasoning":"ok","total_score":2}`)},
	}}
	backend := NewOpenAIBackend(fake, 1)

	resp, err := backend.Complete(context.Background(), ChatRequest{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	assert.Len(t, fake.reqs, 2)
	assert.Equal(t, `{"reasoning":"ok","total_score":2}`, resp.Content)
}

func TestOpenAIBackend_NoRetryOnBadRequest(t *testing.T) {
	fake := &fakeCompletionClient{queue: []completionReply{
		{err: &openaichat.StatusError{StatusCode: 400, Message: "bad request"}},
	}}
	backend := NewOpenAIBackend(fake, 3)

	_, err := backend.Complete(context.Background(), ChatRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.Len(t, fake.reqs, 1)
}

func TestTransientChatErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate_limit", &openaichat.StatusError{StatusCode: 429}, true},
		{"service_unavailable", &openaichat.StatusError{StatusCode: 503}, true},
		{"bad_request", &openaichat.StatusError{StatusCode: 400}, false},
		{"unauthorized", &openaichat.StatusError{StatusCode: 401}, false},
		{"plain_error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transientChatErr(tt.err))
		})
	}
}

// fakeAnthropicClient records requests and replies with a canned response.
type fakeAnthropicClient struct {
	mu   sync.Mutex
	reqs []anthropic.MessageRequest
	resp *anthropic.MessageResponse
	err  error
}

func (f *fakeAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestAnthropicBackend_SendsCachedSystem(t *testing.T) {
	fake := &fakeAnthropicClient{
		resp: &anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{{Type: "text", Text: `{"reasoning":"ok","total_score":3}`}},
			Usage:   anthropic.TokenUsage{InputTokens: 80, OutputTokens: 16},
		},
	}
	backend := NewAnthropicBackend(fake, 0)

	resp, err := backend.Complete(context.Background(), ChatRequest{
		Model:       "claude-sonnet-4-5-20250929",
		System:      "grade hard",
		Prompt:      "score this",
		MaxTokens:   512,
		Temperature: 0,
	})
	require.NoError(t, err)

	require.Len(t, fake.reqs, 1)
	req := fake.reqs[0]
	assert.Equal(t, "claude-sonnet-4-5-20250929", req.Model)
	assert.Equal(t, int64(512), req.MaxTokens)
	require.Len(t, req.System, 1)
	assert.Equal(t, "grade hard", req.System[0].Text)
	require.NotNil(t, req.System[0].CacheControl)
	assert.Equal(t, "1h", req.System[0].CacheControl.TTL)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, anthropic.Message{Role: "user", Content: "score this"}, req.Messages[0])
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.0, *req.Temperature)

	assert.Equal(t, `{"reasoning":"ok","total_score":3}`, resp.Content)
	assert.Equal(t, model.TokenUsage{InputTokens: 80, OutputTokens: 16}, resp.Usage)
}

func TestAnthropicBackend_ConcatenatesTextBlocks(t *testing.T) {
	fake := &fakeAnthropicClient{
		resp: &anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{
				{Type: "text", Text: `{"reasoning":"split`},
				{Type: "text", Text: ` verdict","total_score":4}`},
			},
		},
	}
	backend := NewAnthropicBackend(fake, 0)

	resp, err := backend.Complete(context.Background(), ChatRequest{Model: "m", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, `{"reasoning":"split verdict","total_score":4}`, resp.Content)
}

func TestAnthropicBackend_EmptyContent(t *testing.T) {
	fake := &fakeAnthropicClient{resp: &anthropic.MessageResponse{}}
	backend := NewAnthropicBackend(fake, 0)

	_, err := backend.Complete(context.Background(), ChatRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty completion")
}
