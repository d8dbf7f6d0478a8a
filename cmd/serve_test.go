package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/eval-cli/internal/judge"
	"github.com/sells-group/eval-cli/internal/resilience"
	"github.com/sells-group/eval-cli/pkg/openaichat"
)

// stubChat is a canned ChatClient for router tests.
type stubChat struct {
	reply string
	err   error
}

func (s *stubChat) Complete(_ context.Context, _ judge.ChatRequest) (*judge.ChatResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &judge.ChatResponse{Content: s.reply}, nil
}

func testRouter(client judge.ChatClient, threshold int) http.Handler {
	j := judge.New(judge.DefaultConfig(), client)
	breakers := resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     time.Hour,
		ShouldTrip:       providerFailure,
	})
	return buildRouter(j, "openai", breakers)
}

func postJudge(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/judge", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestBuildRouter_Health(t *testing.T) {
	handler := testRouter(&stubChat{}, 5)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body struct {
		Status   string            `json:"status"`
		Breakers map[string]string `json:"breakers"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "closed", body.Breakers["openai"])
}

func TestBuildRouter_Judge_ScoresRecord(t *testing.T) {
	verdict := `{"reasoning": "Accurate and complete.", "faithfulness": 5, "total_score": 5}`
	handler := testRouter(&stubChat{reply: verdict}, 5)

	rr := postJudge(t, handler, `{"question":"Q1","context":"C1","answer":"A1"}`)

	assert.Equal(t, http.StatusOK, rr.Code)

	var scored map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &scored))
	// Input fields pass through; verdict fields are merged in.
	assert.Equal(t, "Q1", scored["question"])
	assert.Equal(t, "A1", scored["answer"])
	assert.Equal(t, "Accurate and complete.", scored["reasoning"])
	assert.Equal(t, 5.0, scored["total_score"])
	assert.Equal(t, 5.0, scored["faithfulness"])
}

func TestBuildRouter_Judge_InvalidBody(t *testing.T) {
	handler := testRouter(&stubChat{}, 5)

	rr := postJudge(t, handler, "not json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid request body")
}

func TestBuildRouter_Judge_EmptyRecord(t *testing.T) {
	handler := testRouter(&stubChat{}, 5)

	rr := postJudge(t, handler, "{}")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "empty record")
}

func TestBuildRouter_Judge_UnparseableVerdict(t *testing.T) {
	handler := testRouter(&stubChat{reply: "I'd rate this a solid 4."}, 5)

	rr := postJudge(t, handler, `{"question":"Q","answer":"A"}`)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "parse verdict")
}

func TestBuildRouter_Judge_CircuitOpens(t *testing.T) {
	failing := &stubChat{err: resilience.NewTransientError(errors.New("bad gateway"), 502)}
	handler := testRouter(failing, 1)

	// First request fails upstream and trips the breaker.
	rr := postJudge(t, handler, `{"question":"Q","answer":"A"}`)
	assert.Equal(t, http.StatusBadGateway, rr.Code)

	// Second request is rejected without touching the upstream.
	rr = postJudge(t, handler, `{"question":"Q","answer":"A"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "unavailable")
}

func TestBuildRouter_Judge_ParseFailureDoesNotTrip(t *testing.T) {
	handler := testRouter(&stubChat{reply: "not json"}, 1)

	// Parse failures are the record's problem, not the provider's; even at
	// threshold 1 the breaker must stay closed.
	for i := 0; i < 3; i++ {
		rr := postJudge(t, handler, `{"question":"Q","answer":"A"}`)
		assert.Equal(t, http.StatusBadGateway, rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var body struct {
		Breakers map[string]string `json:"breakers"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "closed", body.Breakers["openai"])
}

func TestProviderFailure(t *testing.T) {
	assert.True(t, providerFailure(&openaichat.StatusError{StatusCode: 429, Message: "rate limited"}))
	assert.True(t, providerFailure(&openaichat.StatusError{StatusCode: 503, Message: "overloaded"}))
	assert.True(t, providerFailure(resilience.NewTransientError(errors.New("conn reset"), 0)))

	assert.False(t, providerFailure(&openaichat.StatusError{StatusCode: 400, Message: "bad request"}))
	assert.False(t, providerFailure(&openaichat.StatusError{StatusCode: 401, Message: "unauthorized"}))
	assert.False(t, providerFailure(errors.New("judge: parse verdict")))
}

func TestResolvePort_FlagSet(t *testing.T) {
	assert.Equal(t, 9090, resolvePort(9090, 8080))
}

func TestResolvePort_FlagZero(t *testing.T) {
	assert.Equal(t, 8080, resolvePort(0, 8080))
}

func TestStartServer_GracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	handler := testRouter(&stubChat{}, 5)

	// Find a free port.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- startServer(ctx, handler, port)
	}()

	// Wait for the server to come up.
	var ready bool
	for i := 0; i < 30; i++ {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
		if err == nil {
			resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, ready, "server did not become ready in time")

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
