package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a Provider for tests and for running without an API key.
type MockProvider struct {
	mu            sync.Mutex
	responses     []string        // Pre-defined responses (rotates through them)
	script        []*ChatResponse // Full responses for MockModeScript
	responseIndex int
	mode          MockMode
	errorAfter    int  // Number of successful calls before returning errors
	toolCalling   bool // Reported by SupportsToolCalling
	callCount     int
	requests      []ChatRequest
}

// MockMode defines the operation mode of the mock provider.
type MockMode int

const (
	// MockModeEcho returns the user's message (echo mode)
	MockModeEcho MockMode = iota

	// MockModeFixed returns a fixed response
	MockModeFixed

	// MockModeFixtures returns pre-defined responses in rotation
	MockModeFixtures

	// MockModeError always returns an error
	MockModeError

	// MockModeScript plays back full ChatResponses (tool calls included)
	// in order; the last one repeats.
	MockModeScript
)

// MockConfig holds configuration for the mock provider.
type MockConfig struct {
	Mode        MockMode
	Responses   []string
	Script      []*ChatResponse
	ErrorAfter  int
	ToolCalling bool
}

// NewMockProvider creates a new mock LLM provider.
func NewMockProvider(cfg MockConfig) *MockProvider {
	return &MockProvider{
		mode:        cfg.Mode,
		responses:   cfg.Responses,
		script:      cfg.Script,
		errorAfter:  cfg.ErrorAfter,
		toolCalling: cfg.ToolCalling || cfg.Mode == MockModeScript,
	}
}

// NewEchoProvider creates a mock provider that echoes user messages.
func NewEchoProvider() *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeEcho})
}

// NewFixedProvider creates a mock provider that always returns a fixed response.
func NewFixedProvider(response string) *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeFixed, Responses: []string{response}})
}

// NewFixturesProvider creates a mock provider that cycles through pre-defined responses.
func NewFixturesProvider(responses []string) *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeFixtures, Responses: responses})
}

// NewErrorProvider creates a mock provider that always returns errors.
func NewErrorProvider() *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeError})
}

// NewScriptProvider plays back the given responses and supports tool calling.
func NewScriptProvider(script ...*ChatResponse) *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeScript, Script: script})
}

// Chat implements the Provider interface.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.requests = append(m.requests, req)

	if m.errorAfter > 0 && m.callCount > m.errorAfter {
		return nil, fmt.Errorf("mock provider error after %d calls", m.errorAfter)
	}
	if m.mode == MockModeError {
		return nil, fmt.Errorf("mock provider error")
	}

	if m.mode == MockModeScript {
		if len(m.script) == 0 {
			return nil, fmt.Errorf("mock provider: empty script")
		}
		idx := min(m.responseIndex, len(m.script)-1)
		m.responseIndex++
		resp := *m.script[idx]
		if resp.FinishReason == "" {
			resp.FinishReason = FinishReasonStop
			if len(resp.ToolCalls) > 0 {
				resp.FinishReason = FinishReasonToolCalls
			}
		}
		return &resp, nil
	}

	var userMessage string
	if len(req.Messages) > 0 {
		lastMsg := req.Messages[len(req.Messages)-1]
		if lastMsg.Role == RoleUser {
			userMessage = lastMsg.Content
		}
	}

	var response string
	switch m.mode {
	case MockModeEcho:
		if userMessage != "" {
			response = fmt.Sprintf("Echo: %s", userMessage)
		} else {
			response = "Echo: (no user message)"
		}
	case MockModeFixed:
		if len(m.responses) > 0 {
			response = m.responses[0]
		} else {
			response = "Fixed response: no responses configured"
		}
	case MockModeFixtures:
		if len(m.responses) > 0 {
			response = m.responses[m.responseIndex%len(m.responses)]
			m.responseIndex++
		} else {
			response = "Fixtures: no responses configured"
		}
	default:
		response = "Unknown mock mode"
	}

	return &ChatResponse{
		Content:      response,
		Model:        m.modelFor(req),
		FinishReason: FinishReasonStop,
		Usage: Usage{
			PromptTokens:     len(userMessage),
			CompletionTokens: len(response),
			TotalTokens:      len(userMessage) + len(response),
		},
	}, nil
}

func (m *MockProvider) modelFor(req ChatRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return "mock-model"
}

// SupportsToolCalling implements the Provider interface.
func (m *MockProvider) SupportsToolCalling() bool {
	return m.toolCalling
}

// GetDefaultModel implements the Provider interface.
func (m *MockProvider) GetDefaultModel() string {
	return "mock-model"
}

// GetCallCount returns the number of Chat() calls made to this provider.
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Requests returns copies of every request received, in order.
func (m *MockProvider) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ChatRequest(nil), m.requests...)
}

// SetResponses sets the list of responses.
func (m *MockProvider) SetResponses(responses []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	m.responseIndex = 0
}
