package builders

import (
	"fmt"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/agents"
	"github.com/aatumaykin/cryptopilot/internal/config"
	"github.com/aatumaykin/cryptopilot/internal/llm"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/tools"
)

type AgentBuilder struct {
	config   *config.Config
	logger   *logger.Logger
	provider llm.Provider
}

func NewAgentBuilder(cfg *config.Config, log *logger.Logger, provider llm.Provider) *AgentBuilder {
	return &AgentBuilder{
		config:   cfg,
		logger:   log,
		provider: provider,
	}
}

// BuildAgent creates the writer/classifier used by the handlers, with the
// keyword prefilter in front of the model.
func (b *AgentBuilder) BuildAgent() (*agents.LLMAgent, error) {
	prefilter, err := agents.NewKeywordClassifier(b.config.Agent.Keywords, b.config.Agent.ExcludeKeywords)
	if err != nil {
		return nil, fmt.Errorf("failed to build keyword prefilter: %w", err)
	}
	agent := agents.NewLLMAgent(b.provider, agents.Config{
		Handle:      b.config.Agent.Handle,
		Persona:     b.config.Agent.Persona,
		Model:       b.config.LLM.Model,
		Temperature: b.config.LLM.Temperature,
		MaxTokens:   b.config.LLM.MaxTokens,
	}, prefilter, b.logger)
	return agent, nil
}

// BuildPlanner creates the daily planner over registry.
func (b *AgentBuilder) BuildPlanner(registry *tools.Registry) *agents.Planner {
	planner := agents.NewPlanner(b.provider, registry, agents.PlannerConfig{
		Persona:       b.config.Agent.Persona,
		Model:         b.config.LLM.Model,
		MaxIterations: b.config.LLM.PlannerIterations,
		ToolTimeout:   time.Duration(b.config.Market.TimeoutSeconds) * time.Second,
	}, b.logger)
	if !planner.CanPlan() {
		b.logger.Warn("LLM provider has no tool calling, daily pipeline will use deterministic selection")
	}
	return planner
}
