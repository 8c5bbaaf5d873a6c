package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/retry"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIProvider(OpenAIConfig{
		Endpoint: srv.URL,
		APIKey:   "sk-test",
		Model:    "test-model",
		Retry:    retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}, logger.Nop())
}

func TestOpenAIProvider_MapsRequestAndResponse(t *testing.T) {
	var got apiRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{{
				"finish_reason": "tool_calls",
				"message": map[string]any{
					"role": "assistant",
					"tool_calls": []map[string]any{{
						"id": "call_1", "type": "function",
						"function": map[string]string{"name": "schedule_poll", "arguments": `{"question":"BTC?"}`},
					}},
				},
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	})

	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "plan"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c0", Name: "list_schedule", Arguments: "{}"}}},
			{Role: RoleTool, ToolCallID: "c0", Content: "[]"},
		},
		JSONMode: true,
		Tools:    []ToolDefinition{{Name: "schedule_poll", Description: "d", Parameters: map[string]interface{}{"type": "object"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "test-model", got.Model, "empty request model falls back to config")
	assert.Equal(t, "auto", got.ToolChoice)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages[1].ToolCalls, 1)
	assert.Equal(t, "list_schedule", got.Messages[1].ToolCalls[0].Function.Name)
	assert.Equal(t, "c0", got.Messages[2].ToolCallID)

	assert.Equal(t, FinishReasonToolCalls, resp.FinishReason)
	assert.True(t, resp.HasToolCalls())
	assert.Equal(t, "schedule_poll", resp.ToolCalls[0].Name)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestOpenAIProvider_ReasoningContentFallback(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"","reasoning_content":"gm"},"finish_reason":"stop"}]}`))
	})

	resp, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "gm", resp.Content)
}

func TestOpenAIProvider_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`))
	})

	resp, err := p.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIProvider_ClientErrorIsFinal(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	_, err := p.Chat(context.Background(), ChatRequest{})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	resp, err := p.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, FinishReasonError, resp.FinishReason)
}

func TestMockProvider_Modes(t *testing.T) {
	ctx := context.Background()
	user := ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hello"}}}

	t.Run("echo", func(t *testing.T) {
		resp, err := NewEchoProvider().Chat(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, "Echo: hello", resp.Content)
	})

	t.Run("fixtures rotate", func(t *testing.T) {
		p := NewFixturesProvider([]string{"a", "b"})
		var got []string
		for i := 0; i < 3; i++ {
			resp, err := p.Chat(ctx, user)
			require.NoError(t, err)
			got = append(got, resp.Content)
		}
		assert.Equal(t, []string{"a", "b", "a"}, got)
		assert.Equal(t, 3, p.GetCallCount())
		assert.Len(t, p.Requests(), 3)
	})

	t.Run("error", func(t *testing.T) {
		_, err := NewErrorProvider().Chat(ctx, user)
		assert.Error(t, err)
	})

	t.Run("error after", func(t *testing.T) {
		p := NewMockProvider(MockConfig{Mode: MockModeFixed, Responses: []string{"x"}, ErrorAfter: 1})
		_, err := p.Chat(ctx, user)
		require.NoError(t, err)
		_, err = p.Chat(ctx, user)
		assert.Error(t, err)
	})

	t.Run("script repeats last", func(t *testing.T) {
		p := NewScriptProvider(
			&ChatResponse{ToolCalls: []ToolCall{{ID: "1", Name: "list_schedule"}}},
			&ChatResponse{Content: "done"},
		)
		assert.True(t, p.SupportsToolCalling())

		first, err := p.Chat(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, FinishReasonToolCalls, first.FinishReason)

		for i := 0; i < 2; i++ {
			resp, err := p.Chat(ctx, user)
			require.NoError(t, err)
			assert.Equal(t, "done", resp.Content)
			assert.Equal(t, FinishReasonStop, resp.FinishReason)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewEchoProvider().Chat(cctx, user)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTokenBucketRateLimiter(t *testing.T) {
	t.Run("capacity then reject", func(t *testing.T) {
		limiter := NewTokenBucketRateLimiter(3, time.Hour, 1)
		for i := 0; i < 3; i++ {
			ok, _ := limiter.TryAcquire()
			assert.True(t, ok)
		}
		ok, wait := limiter.TryAcquire()
		assert.False(t, ok)
		assert.Positive(t, wait)

		m := limiter.GetMetrics()
		assert.Equal(t, int64(4), m.TotalRequests)
		assert.Equal(t, int64(1), m.RejectedRequests)
	})

	t.Run("refill", func(t *testing.T) {
		limiter := NewTokenBucketRateLimiter(1, 20*time.Millisecond, 1)
		ok, _ := limiter.TryAcquire()
		require.True(t, ok)
		require.NoError(t, limiter.Wait(context.Background()))
	})

	t.Run("wait honours context", func(t *testing.T) {
		limiter := NewTokenBucketRateLimiter(1, time.Hour, 1)
		_, _ = limiter.TryAcquire()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, limiter.Wait(ctx), context.DeadlineExceeded)
	})
}

func TestWithRateLimit(t *testing.T) {
	inner := NewFixedProvider("ok")
	assert.Same(t, inner, WithRateLimit(inner, nil).(*MockProvider))

	limited := WithRateLimit(inner, NewTokenBucketRateLimiter(1, time.Hour, 1))
	_, err := limited.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = limited.Chat(ctx, ChatRequest{})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.GetCallCount())
	assert.Equal(t, "mock-model", limited.GetDefaultModel())
}
