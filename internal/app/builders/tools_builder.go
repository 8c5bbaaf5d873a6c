package builders

import (
	"time"

	"github.com/aatumaykin/cryptopilot/internal/config"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/research"
	"github.com/aatumaykin/cryptopilot/internal/retry"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tools"
)

type ToolsBuilder struct {
	config *config.Config
	logger *logger.Logger
	queues *schedule.Queues
	now    func() time.Time
}

func NewToolsBuilder(cfg *config.Config, log *logger.Logger, queues *schedule.Queues, now func() time.Time) *ToolsBuilder {
	return &ToolsBuilder{
		config: cfg,
		logger: log,
		queues: queues,
		now:    now,
	}
}

// BuildResearch returns the market and article sources, or nils when
// [market] is disabled.
func (b *ToolsBuilder) BuildResearch() (research.MarketData, *research.ArticleReader) {
	if !b.config.Market.Enabled {
		return nil, nil
	}
	timeout := time.Duration(b.config.Market.TimeoutSeconds) * time.Second
	market := research.NewCoinGecko(research.CoinGeckoConfig{
		BaseURL: b.config.Market.CoinGeckoURL,
		APIKey:  b.config.Market.CoinGeckoAPIKey,
		Timeout: timeout,
		Retry:   retry.Config{MaxAttempts: 2},
	}, b.logger)
	articles := research.NewArticleReader(timeout, b.config.Market.ArticleMaxChars, b.logger)
	b.logger.Info("market research enabled")
	return market, articles
}

// BuildRegistry registers the planner tools. market and articles may be nil.
func (b *ToolsBuilder) BuildRegistry(market research.MarketData, articles *research.ArticleReader) *tools.Registry {
	registry := tools.NewPlannerRegistry(tools.Deps{
		Queues:   b.queues,
		Market:   market,
		Articles: articles,
		Now:      b.now,
		Logger:   b.logger,
	})
	b.logger.Info("planner tools registered", logger.Field{Key: "tools", Value: len(registry.List())})
	return registry
}
