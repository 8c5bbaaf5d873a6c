// Package research provides the read-only data sources the agent draws
// post context from: market prices and trending coins from CoinGecko and
// news articles converted to markdown.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/retry"
)

// DefaultCoinGeckoURL is the public API root.
const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

// Quote is the spot price of one coin.
type Quote struct {
	ID        string
	Price     float64
	Change24h float64
	Currency  string
}

// TrendingCoin is an entry of the trending search list.
type TrendingCoin struct {
	ID            string
	Name          string
	Symbol        string
	MarketCapRank int
	Score         int
}

// MarketData is implemented by CoinGecko and by test fakes.
type MarketData interface {
	Prices(ctx context.Context, ids []string, currency string) ([]Quote, error)
	Trending(ctx context.Context, limit int) ([]TrendingCoin, error)
}

// StatusError is a non-2xx response from a research source.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.StatusCode)
}

// HTTPStatus lets retry.IsRetryable classify the error.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// CoinGeckoConfig configures the client.
type CoinGeckoConfig struct {
	BaseURL string
	APIKey  string // demo key, sent as x-cg-demo-api-key
	Timeout time.Duration
	Retry   retry.Config
}

// CoinGecko is a minimal CoinGecko API client.
type CoinGecko struct {
	cfg    CoinGeckoConfig
	http   *http.Client
	logger *logger.Logger
}

var _ MarketData = (*CoinGecko)(nil)

// NewCoinGecko creates a client.
func NewCoinGecko(cfg CoinGeckoConfig, log *logger.Logger) *CoinGecko {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCoinGeckoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("coingecko")
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = log
	}
	return &CoinGecko{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: log,
	}
}

func (c *CoinGecko) get(ctx context.Context, path string, q url.Values, v any) error {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	body, err := retry.Do(ctx, c.cfg.Retry, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("x-cg-demo-api-key", c.cfg.APIKey)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{URL: path, StatusCode: resp.StatusCode}
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}

// Prices returns quotes for ids in the given currency, ordered as requested.
// Unknown ids are omitted.
func (c *CoinGecko) Prices(ctx context.Context, ids []string, currency string) ([]Quote, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if currency == "" {
		currency = "usd"
	}
	currency = strings.ToLower(currency)

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", currency)
	q.Set("include_24hr_change", "true")

	var raw map[string]map[string]float64
	if err := c.get(ctx, "/simple/price", q, &raw); err != nil {
		return nil, err
	}

	quotes := make([]Quote, 0, len(ids))
	for _, id := range ids {
		data, ok := raw[id]
		if !ok {
			continue
		}
		quotes = append(quotes, Quote{
			ID:        id,
			Price:     data[currency],
			Change24h: data[currency+"_24h_change"],
			Currency:  currency,
		})
	}
	return quotes, nil
}

// Trending returns up to limit trending coins. CoinGecko scores from 0
// (hottest) upward.
func (c *CoinGecko) Trending(ctx context.Context, limit int) ([]TrendingCoin, error) {
	var raw struct {
		Coins []struct {
			Item struct {
				ID            string `json:"id"`
				Name          string `json:"name"`
				Symbol        string `json:"symbol"`
				MarketCapRank int    `json:"market_cap_rank"`
				Score         int    `json:"score"`
			} `json:"item"`
		} `json:"coins"`
	}
	if err := c.get(ctx, "/search/trending", nil, &raw); err != nil {
		return nil, err
	}

	coins := make([]TrendingCoin, 0, len(raw.Coins))
	for _, entry := range raw.Coins {
		coins = append(coins, TrendingCoin(entry.Item))
	}
	sort.SliceStable(coins, func(i, j int) bool { return coins[i].Score < coins[j].Score })
	if limit > 0 && len(coins) > limit {
		coins = coins[:limit]
	}
	return coins, nil
}
