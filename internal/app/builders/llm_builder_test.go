package builders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cryptopilot/internal/config"
	"github.com/aatumaykin/cryptopilot/internal/llm"
	"github.com/aatumaykin/cryptopilot/internal/logger"
)

func TestLLMBuilder_NewLLMBuilder(t *testing.T) {
	cfg := config.Default()
	log := logger.Nop()

	builder := NewLLMBuilder(cfg, log)
	require.NotNil(t, builder)
	require.Equal(t, cfg, builder.config)
	require.Equal(t, log, builder.logger)
}

func TestLLMBuilder_Build(t *testing.T) {
	t.Run("OpenAI provider", func(t *testing.T) {
		cfg := config.Default()
		cfg.LLM.APIKey = "sk-test-api-key-123456"

		provider, err := NewLLMBuilder(cfg, logger.Nop()).Build()

		require.NoError(t, err)
		assert.IsType(t, &llm.OpenAIProvider{}, provider)
	})

	t.Run("Mock provider", func(t *testing.T) {
		cfg := config.Default()
		cfg.LLM.Provider = "mock"

		provider, err := NewLLMBuilder(cfg, logger.Nop()).Build()

		require.NoError(t, err)
		assert.IsType(t, &llm.MockProvider{}, provider)
	})

	t.Run("Rate limited", func(t *testing.T) {
		cfg := config.Default()
		cfg.LLM.Provider = "mock"
		cfg.LLM.RequestsPerMinute = 30

		provider, err := NewLLMBuilder(cfg, logger.Nop()).Build()

		require.NoError(t, err)
		assert.IsType(t, &llm.RateLimitedProvider{}, provider)
	})

	t.Run("Unsupported provider", func(t *testing.T) {
		cfg := config.Default()
		cfg.LLM.Provider = "unsupported"

		_, err := NewLLMBuilder(cfg, logger.Nop()).Build()

		require.Error(t, err)
		require.Contains(t, err.Error(), "unsupported LLM provider")
	})
}
