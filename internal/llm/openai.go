package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/retry"
)

const (
	// DefaultEndpoint is the chat completions URL used when none is configured.
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	// DefaultModel is used when neither the config nor the request names one.
	DefaultModel = "gpt-4o-mini"
	// DefaultRequestTimeout is the default timeout for API requests
	DefaultRequestTimeout = 60 * time.Second
)

// OpenAIConfig configures any OpenAI-compatible chat completions endpoint
// (OpenAI, Z.ai, OpenRouter, local gateways).
type OpenAIConfig struct {
	Endpoint       string
	APIKey         string
	Model          string
	TimeoutSeconds int
	Retry          retry.Config
}

// OpenAIProvider implements Provider over the chat completions wire format.
type OpenAIProvider struct {
	client *http.Client
	config OpenAIConfig
	logger *logger.Logger
}

var _ Provider = (*OpenAIProvider)(nil)

type apiRequest struct {
	Messages       []apiMessage    `json:"messages"`
	Model          string          `json:"model"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Tools          []apiTool       `json:"tools,omitempty"`
	ToolChoice     string          `json:"tool_choice,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type apiMessage struct {
	Role             string        `json:"role"`
	Content          string        `json:"content"`
	ToolCallID       string        `json:"tool_call_id,omitempty"`
	ReasoningContent string        `json:"reasoning_content,omitempty"`
	ToolCalls        []apiToolCall `json:"tool_calls,omitempty"`
}

type apiTool struct {
	Type     string                 `json:"type"`
	Function map[string]interface{} `json:"function"`
}

type apiResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []apiChoice `json:"choices"`
	Usage   Usage       `json:"usage"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiChoice struct {
	Index        int        `json:"index"`
	Message      apiMessage `json:"message"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

type apiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: status=%d, body=%s", e.StatusCode, e.Body)
}

// HTTPStatus lets retry.IsRetryable classify the error.
func (e *HTTPError) HTTPStatus() int {
	return e.StatusCode
}

// NewOpenAIProvider creates a provider.
func NewOpenAIProvider(cfg OpenAIConfig, log *logger.Logger) *OpenAIProvider {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("llm")
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = log
	}

	return &OpenAIProvider{
		client: &http.Client{Timeout: timeout},
		config: cfg,
		logger: log,
	}
}

// doRequest executes a single HTTP request.
func (p *OpenAIProvider) doRequest(ctx context.Context, reqBody []byte) (*apiResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		p.logger.ErrorCtx(ctx, "LLM API returned error status", nil,
			logger.Field{Key: "status_code", Value: httpResp.StatusCode},
			logger.Field{Key: "response_body", Value: string(respBody)})
		return nil, &HTTPError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	var resp apiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("API error: %s (code: %v): %s", resp.Error.Type, resp.Error.Code, resp.Error.Message)
	}
	return &resp, nil
}

func (p *OpenAIProvider) mapChatRequest(req ChatRequest) apiRequest {
	messages := make([]apiMessage, len(req.Messages))
	for i, msg := range req.Messages {
		m := apiMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			call := apiToolCall{ID: tc.ID, Type: "function"}
			call.Function.Name = tc.Name
			call.Function.Arguments = tc.Arguments
			m.ToolCalls = append(m.ToolCalls, call)
		}
		messages[i] = m
	}

	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	out := apiRequest{
		Messages:    messages,
		Model:       model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		out.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]apiTool, len(req.Tools))
		for i, tool := range req.Tools {
			out.Tools[i] = apiTool{
				Type: "function",
				Function: map[string]interface{}{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  tool.Parameters,
				},
			}
		}
		out.ToolChoice = "auto"
	}
	return out
}

func mapChatResponse(resp *apiResponse) *ChatResponse {
	if len(resp.Choices) == 0 {
		return &ChatResponse{
			FinishReason: FinishReasonError,
			ToolCalls:    []ToolCall{},
			Usage:        resp.Usage,
			Model:        resp.Model,
		}
	}

	choice := resp.Choices[0]
	toolCalls := make([]ToolCall, len(choice.Message.ToolCalls))
	for i, tc := range choice.Message.ToolCalls {
		toolCalls[i] = ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
	}

	// reasoning models may leave content empty
	content := choice.Message.Content
	if strings.TrimSpace(content) == "" && choice.Message.ReasoningContent != "" {
		content = choice.Message.ReasoningContent
	}

	return &ChatResponse{
		Content:      content,
		FinishReason: FinishReason(choice.FinishReason),
		ToolCalls:    toolCalls,
		Usage:        resp.Usage,
		Model:        resp.Model,
	}
}

// Chat sends a chat completion request, retrying transient failures.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body, err := json.Marshal(p.mapChatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	p.logger.DebugCtx(ctx, "sending chat request",
		logger.Field{Key: "messages_count", Value: len(req.Messages)},
		logger.Field{Key: "tools_count", Value: len(req.Tools)})

	resp, err := retry.Do(ctx, p.config.Retry, func(ctx context.Context) (*apiResponse, error) {
		return p.doRequest(ctx, body)
	})
	if err != nil {
		return nil, err
	}

	out := mapChatResponse(resp)
	p.logger.DebugCtx(ctx, "chat response",
		logger.Field{Key: "model", Value: out.Model},
		logger.Field{Key: "finish_reason", Value: out.FinishReason},
		logger.Field{Key: "tool_calls_count", Value: len(out.ToolCalls)},
		logger.Field{Key: "total_tokens", Value: out.Usage.TotalTokens})
	return out, nil
}

// SupportsToolCalling implements Provider.
func (p *OpenAIProvider) SupportsToolCalling() bool {
	return true
}

// GetDefaultModel implements Provider.
func (p *OpenAIProvider) GetDefaultModel() string {
	return p.config.Model
}
