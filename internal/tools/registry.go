// Package tools exposes the scheduling queues and research sources to the
// planning LLM as function-calling tools.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Tool defines the interface that all tools must implement.
type Tool interface {
	// Name returns the unique name used in the function calling API.
	Name() string

	// Description tells the model when and how to use the tool.
	Description() string

	// Parameters returns a JSON Schema object describing the tool's input parameters.
	Parameters() map[string]interface{}

	// Execute runs the tool with JSON-encoded arguments.
	Execute(args string) (string, error)
}

// ContextualTool is implemented by tools that make network calls.
// ExecuteWithContext is called instead of Execute.
type ContextualTool interface {
	Tool
	ExecuteWithContext(ctx context.Context, args string) (string, error)
}

// Registry manages the collection of available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = tool
	return nil
}

// Get retrieves a tool by its name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// ToSchema converts the registered tools to function definitions, sorted by
// name so prompts stay stable between runs.
func (r *Registry) ToSchema() []ToolDefinition {
	list := r.List()
	schemas := make([]ToolDefinition, 0, len(list))
	for _, tool := range list {
		schemas = append(schemas, ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return schemas
}

// ToolDefinition represents a tool definition in OpenAI function calling format.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolCall represents a tool call request from the LLM.
type ToolCall struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Arguments is a JSON string containing the tool's input parameters.
	Arguments string `json:"arguments"`
}

// ToolResult represents the result of executing a tool.
type ToolResult struct {
	ToolCallID string     `json:"tool_call_id"`
	Content    string     `json:"content"`
	Error      *ToolError `json:"error,omitempty"`
	TimedOut   bool       `json:"timed_out,omitempty"`
}

// ForModel renders the result as the content of a tool message.
func (r ToolResult) ForModel() string {
	if r.Error != nil {
		return r.Error.ToLLMContext()
	}
	return r.Content
}

// DefaultTimeout bounds a single tool execution.
const DefaultTimeout = 30 * time.Second

// ExecuteToolCall runs tc against the registry. Tool failures are reported
// in ToolResult.Error so the model can correct itself; they are never
// returned as Go errors.
func ExecuteToolCall(ctx context.Context, registry *Registry, tc ToolCall, timeout time.Duration) ToolResult {
	tool, ok := registry.Get(tc.Name)
	if !ok {
		return ToolResult{
			ToolCallID: tc.ID,
			Error:      NewNotFoundError("tool_not_found", fmt.Sprintf("tool not found: %s", tc.Name), "use one of the listed tools"),
		}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type toolResult struct {
		result string
		err    error
	}
	resultChan := make(chan toolResult, 1)

	go func() {
		var res string
		var err error
		if contextualTool, ok := tool.(ContextualTool); ok {
			res, err = contextualTool.ExecuteWithContext(execCtx, tc.Arguments)
		} else {
			res, err = tool.Execute(tc.Arguments)
		}
		resultChan <- toolResult{result: res, err: err}
	}()

	select {
	case res := <-resultChan:
		if res.err != nil {
			var toolErr *ToolError
			if !errors.As(res.err, &toolErr) {
				toolErr = &ToolError{Code: "execution_failed", Message: res.err.Error()}
			}
			return ToolResult{ToolCallID: tc.ID, Error: toolErr}
		}
		return ToolResult{ToolCallID: tc.ID, Content: res.result}

	case <-execCtx.Done():
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return ToolResult{
				ToolCallID: tc.ID,
				Error: NewTimeoutError("timeout", fmt.Sprintf("tool execution timed out after %v", timeout),
					map[string]any{"tool": tc.Name}),
				TimedOut: true,
			}
		}
		return ToolResult{
			ToolCallID: tc.ID,
			Error:      &ToolError{Code: "cancelled", Message: fmt.Sprintf("tool execution cancelled: %v", execCtx.Err())},
		}
	}
}

// ToJSON renders the tool definitions, for `cryptopilot config show`.
func (r *Registry) ToJSON() (string, error) {
	data, err := json.MarshalIndent(r.ToSchema(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal schemas: %w", err)
	}
	return string(data), nil
}
