package builders

import (
	"fmt"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/config"
	"github.com/aatumaykin/cryptopilot/internal/llm"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/retry"
)

type LLMBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewLLMBuilder(cfg *config.Config, log *logger.Logger) *LLMBuilder {
	return &LLMBuilder{
		config: cfg,
		logger: log,
	}
}

// Build returns the configured provider, wrapped in a token bucket when
// requests_per_minute is set.
func (b *LLMBuilder) Build() (llm.Provider, error) {
	var provider llm.Provider
	switch b.config.LLM.Provider {
	case "openai":
		provider = llm.NewOpenAIProvider(llm.OpenAIConfig{
			Endpoint:       b.config.LLM.Endpoint,
			APIKey:         b.config.LLM.APIKey,
			Model:          b.config.LLM.Model,
			TimeoutSeconds: b.config.LLM.TimeoutSeconds,
			Retry:          retry.Config{MaxAttempts: b.config.LLM.MaxRetries},
		}, b.logger)
	case "mock":
		provider = llm.NewEchoProvider()
		b.logger.Warn("using mock LLM provider, generated texts echo their prompts")
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", b.config.LLM.Provider)
	}

	if rpm := b.config.LLM.RequestsPerMinute; rpm > 0 {
		limiter := llm.NewTokenBucketRateLimiter(rpm, time.Minute/time.Duration(rpm), 1)
		provider = llm.WithRateLimit(provider, limiter)
	}

	b.logger.Info("LLM provider initialized",
		logger.Field{Key: "provider", Value: b.config.LLM.Provider},
		logger.Field{Key: "model", Value: b.config.LLM.Model},
		logger.Field{Key: "requests_per_minute", Value: b.config.LLM.RequestsPerMinute})
	return provider, nil
}
