package builders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cryptopilot/internal/config"
	"github.com/aatumaykin/cryptopilot/internal/llm"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tools"
)

func TestAgentBuilder_NewAgentBuilder(t *testing.T) {
	cfg := config.Default()
	log := logger.Nop()
	provider := llm.NewMockProvider(llm.MockConfig{})

	builder := NewAgentBuilder(cfg, log, provider)
	require.NotNil(t, builder)
	require.Equal(t, cfg, builder.config)
	require.Equal(t, log, builder.logger)
	require.Equal(t, provider, builder.provider)
}

func TestAgentBuilder_BuildAgent(t *testing.T) {
	cfg := config.Default()
	cfg.Agent.Handle = "cryptopilot"
	cfg.Agent.Keywords = []string{"bitcoin", "eth"}

	agent, err := NewAgentBuilder(cfg, logger.Nop(), llm.NewFixedProvider("yes")).BuildAgent()
	require.NoError(t, err)
	require.NotNil(t, agent)

	relevant, err := agent.IsRelevant(t.Context(), "the weather is nice today")
	require.NoError(t, err)
	assert.False(t, relevant, "prefilter should reject texts without keywords")
}

func TestAgentBuilder_BuildPlanner(t *testing.T) {
	cfg := config.Default()
	registry := tools.NewPlannerRegistry(tools.Deps{Queues: schedule.NewQueues()})

	t.Run("tool calling provider", func(t *testing.T) {
		provider := llm.NewMockProvider(llm.MockConfig{ToolCalling: true})
		planner := NewAgentBuilder(cfg, logger.Nop(), provider).BuildPlanner(registry)
		assert.True(t, planner.CanPlan())
	})

	t.Run("plain provider", func(t *testing.T) {
		planner := NewAgentBuilder(cfg, logger.Nop(), llm.NewEchoProvider()).BuildPlanner(registry)
		assert.False(t, planner.CanPlan())
	})
}
