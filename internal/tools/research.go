package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/research"
)

const (
	defaultCurrency      = "usd"
	defaultTrendingLimit = 7
	noMarketData         = "No market data available right now."
)

// MarketPriceTool quotes spot prices. Upstream failures degrade to a
// "no data" answer so the planner can continue.
type MarketPriceTool struct {
	market research.MarketData
	logger *logger.Logger
}

// NewMarketPriceTool creates market_price.
func NewMarketPriceTool(market research.MarketData, log *logger.Logger) *MarketPriceTool {
	return &MarketPriceTool{market: market, logger: log}
}

type marketPriceArgs struct {
	Coins    []string `json:"coins"`
	Currency string   `json:"currency"`
}

func (t *MarketPriceTool) Name() string { return "market_price" }

func (t *MarketPriceTool) Description() string {
	return "Current price and 24h change for CoinGecko coin IDs such as bitcoin or ethereum."
}

func (t *MarketPriceTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"coins": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"currency": stringProp("Quote currency, default usd."),
	}, "coins")
}

func (t *MarketPriceTool) Execute(args string) (string, error) {
	return t.ExecuteWithContext(context.Background(), args)
}

func (t *MarketPriceTool) ExecuteWithContext(ctx context.Context, args string) (string, error) {
	var a marketPriceArgs
	if err := parseJSON(args, &a); err != nil {
		return "", err
	}
	if len(a.Coins) == 0 {
		return "", NewValidationError("missing_coins", "coins must list at least one coin id", nil)
	}
	currency := strings.ToLower(a.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	quotes, err := t.market.Prices(ctx, a.Coins, currency)
	if err != nil {
		t.logger.WarnCtx(ctx, "market price lookup failed", logger.Field{Key: "error", Value: err.Error()})
		return noMarketData, nil
	}
	if len(quotes) == 0 {
		return noMarketData, nil
	}
	var b strings.Builder
	for _, q := range quotes {
		fmt.Fprintf(&b, "%s: %.2f %s (%+.2f%% 24h)\n", q.ID, q.Price, strings.ToUpper(q.Currency), q.Change24h)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// MarketTrendingTool lists trending coins.
type MarketTrendingTool struct {
	market research.MarketData
	logger *logger.Logger
}

// NewMarketTrendingTool creates market_trending.
func NewMarketTrendingTool(market research.MarketData, log *logger.Logger) *MarketTrendingTool {
	return &MarketTrendingTool{market: market, logger: log}
}

func (t *MarketTrendingTool) Name() string { return "market_trending" }

func (t *MarketTrendingTool) Description() string {
	return "Coins trending in search right now, useful as post topics."
}

func (t *MarketTrendingTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"limit": map[string]interface{}{"type": "integer"},
	})
}

func (t *MarketTrendingTool) Execute(args string) (string, error) {
	return t.ExecuteWithContext(context.Background(), args)
}

func (t *MarketTrendingTool) ExecuteWithContext(ctx context.Context, args string) (string, error) {
	var a struct {
		Limit int `json:"limit"`
	}
	if err := parseJSON(args, &a); err != nil {
		return "", err
	}
	if a.Limit <= 0 {
		a.Limit = defaultTrendingLimit
	}
	coins, err := t.market.Trending(ctx, a.Limit)
	if err != nil {
		t.logger.WarnCtx(ctx, "trending lookup failed", logger.Field{Key: "error", Value: err.Error()})
		return noMarketData, nil
	}
	if len(coins) == 0 {
		return noMarketData, nil
	}
	var b strings.Builder
	for i, c := range coins {
		fmt.Fprintf(&b, "%d. %s (%s)", i+1, c.Name, strings.ToUpper(c.Symbol))
		if c.MarketCapRank > 0 {
			fmt.Fprintf(&b, " rank #%d", c.MarketCapRank)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// ReadArticleTool fetches a news page as markdown.
type ReadArticleTool struct {
	reader *research.ArticleReader
}

// NewReadArticleTool creates read_article.
func NewReadArticleTool(reader *research.ArticleReader) *ReadArticleTool {
	return &ReadArticleTool{reader: reader}
}

func (t *ReadArticleTool) Name() string { return "read_article" }

func (t *ReadArticleTool) Description() string {
	return "Fetch a news article and return its main text as markdown."
}

func (t *ReadArticleTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"url": stringProp("http or https URL of the article."),
	}, "url")
}

func (t *ReadArticleTool) Execute(args string) (string, error) {
	return t.ExecuteWithContext(context.Background(), args)
}

func (t *ReadArticleTool) ExecuteWithContext(ctx context.Context, args string) (string, error) {
	var a struct {
		URL string `json:"url"`
	}
	if err := parseJSON(args, &a); err != nil {
		return "", err
	}
	if !strings.HasPrefix(a.URL, "http://") && !strings.HasPrefix(a.URL, "https://") {
		return "", NewValidationError("invalid_url", "url must start with http:// or https://", map[string]any{"url": a.URL})
	}
	article, err := t.reader.Read(ctx, a.URL)
	if err != nil {
		return "", fmt.Errorf("failed to read article: %w", err)
	}
	if article.Title == "" {
		return article.Markdown, nil
	}
	return "# " + article.Title + "\n\n" + article.Markdown, nil
}
