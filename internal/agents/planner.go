package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/llm"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/tools"
)

const defaultPlannerIterations = 8

// PlannerConfig tunes Planner.
type PlannerConfig struct {
	Persona       string
	Model         string
	Temperature   float64
	MaxTokens     int
	MaxIterations int
	ToolTimeout   time.Duration
}

// PlanRequest says how much the planner should schedule in one run.
type PlanRequest struct {
	Posts      int
	MediaPosts int
	Polls      int
	Retweets   int
	Comments   int
	Notes      string // free-form operator guidance
}

// PlanResult summarizes one planner run.
type PlanResult struct {
	Summary    string
	Iterations int
	ToolCalls  int
	ToolErrors int
}

// Planner drives a tool-calling conversation in which the model researches
// the market and fills the schedule through the tool registry.
type Planner struct {
	provider llm.Provider
	registry *tools.Registry
	cfg      PlannerConfig
	logger   *logger.Logger
}

// NewPlanner creates a planner over registry.
func NewPlanner(provider llm.Provider, registry *tools.Registry, cfg PlannerConfig, log *logger.Logger) *Planner {
	if cfg.Persona == "" {
		cfg.Persona = defaultPersona
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.4
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultPlannerIterations
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = tools.DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Planner{provider: provider, registry: registry, cfg: cfg, logger: log.Component("planner")}
}

// CanPlan reports whether the provider accepts tool definitions. Callers
// fall back to deterministic selection otherwise.
func (p *Planner) CanPlan() bool {
	return p.provider != nil && p.provider.SupportsToolCalling()
}

func (p *Planner) systemPrompt() string {
	return p.cfg.Persona + `

You plan the day's activity for the account using the tools.
1. Call current_time and list_schedule first. Never schedule a topic that is already pending.
2. Use market_trending and market_price to verify prices before writing about them. If data is unavailable, skip numbers.
3. Spread posts over the next 24 hours. At most two coins per post.
4. Use list_candidates, then transfer_retweet for the strongest, least controversial tweets and transfer_comment for competitor tweets worth answering.
5. When a tool returns an error, fix the arguments or move on.
Finish with a short plain-text summary of what you scheduled.`
}

func (r PlanRequest) prompt() string {
	var b strings.Builder
	b.WriteString("Plan the next 24 hours:\n")
	fmt.Fprintf(&b, "- text posts: %d\n", r.Posts)
	fmt.Fprintf(&b, "- media posts: %d\n", r.MediaPosts)
	fmt.Fprintf(&b, "- polls: %d\n", r.Polls)
	fmt.Fprintf(&b, "- retweets: %d\n", r.Retweets)
	fmt.Fprintf(&b, "- comments on competitor tweets: %d\n", r.Comments)
	if r.Notes != "" {
		fmt.Fprintf(&b, "\nOperator notes:\n%s\n", r.Notes)
	}
	return b.String()
}

func (p *Planner) toolDefinitions() []llm.ToolDefinition {
	schemas := p.registry.ToSchema()
	defs := make([]llm.ToolDefinition, len(schemas))
	for i, schema := range schemas {
		defs[i] = llm.ToolDefinition{
			Name:        schema.Name,
			Description: schema.Description,
			Parameters:  schema.Parameters,
		}
	}
	return defs
}

// Plan runs the conversation until the model stops calling tools or
// MaxIterations is reached. Tool failures go back to the model as tool
// messages; only provider errors end the run early.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	if !p.CanPlan() {
		return nil, fmt.Errorf("provider does not support tool calling")
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: p.systemPrompt()},
		{Role: llm.RoleUser, Content: req.prompt()},
	}
	defs := p.toolDefinitions()
	result := &PlanResult{}

	for iteration := 0; iteration < p.cfg.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Iterations = iteration + 1

		resp, err := p.provider.Chat(ctx, llm.ChatRequest{
			Messages:    messages,
			Model:       p.cfg.Model,
			Temperature: p.cfg.Temperature,
			MaxTokens:   p.cfg.MaxTokens,
			Tools:       defs,
		})
		if err != nil {
			return result, fmt.Errorf("LLM call failed: %w", err)
		}

		p.logger.DebugCtx(ctx, "planner response received",
			logger.Field{Key: "finish_reason", Value: resp.FinishReason},
			logger.Field{Key: "tool_calls_count", Value: len(resp.ToolCalls)},
			logger.Field{Key: "iteration", Value: iteration})

		if !resp.HasToolCalls() {
			result.Summary = strings.TrimSpace(resp.Content)
			p.logger.InfoCtx(ctx, "planning finished",
				logger.Field{Key: "iterations", Value: result.Iterations},
				logger.Field{Key: "tool_calls", Value: result.ToolCalls},
				logger.Field{Key: "tool_errors", Value: result.ToolErrors})
			return result, nil
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			res := tools.ExecuteToolCall(ctx, p.registry, tools.ToolCall{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
			}, p.cfg.ToolTimeout)
			result.ToolCalls++
			if res.Error != nil {
				result.ToolErrors++
				p.logger.WarnCtx(ctx, "planner tool call failed",
					append(res.Error.LogFields(), logger.Field{Key: "tool", Value: call.Name})...)
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    res.ForModel(),
				ToolCallID: call.ID,
			})
		}
	}

	p.logger.WarnCtx(ctx, "planner reached iteration limit",
		logger.Field{Key: "iterations", Value: p.cfg.MaxIterations})
	result.Summary = fmt.Sprintf("stopped after %d iterations", p.cfg.MaxIterations)
	return result, nil
}
