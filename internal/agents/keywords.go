package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/wasilibs/go-re2"
)

// DefaultKeywords are topics the account engages with.
var DefaultKeywords = []string{
	"bitcoin", "btc", "ethereum", "eth", "solana", "sol", "crypto", "defi",
	"altcoin", "memecoin", "stablecoin", "etf", "halving", "onchain", "on-chain",
	"web3", "token", "blockchain", "airdrop", "staking", "layer 2", "l2",
}

// DefaultExcluded marks spam that is never engaged with.
var DefaultExcluded = []string{
	"dm me", "send me", "free giveaway", "guaranteed profit", "double your",
	"whatsapp", "telegram me",
}

// KeywordClassifier is a regex relevance filter. A text is relevant when it
// matches an included keyword and no excluded phrase.
type KeywordClassifier struct {
	include *re2.Regexp
	exclude *re2.Regexp
}

var _ RelevanceClassifier = (*KeywordClassifier)(nil)

// NewKeywordClassifier compiles whole-word, case-insensitive matchers.
// Empty include means every non-excluded text is relevant.
func NewKeywordClassifier(include, exclude []string) (*KeywordClassifier, error) {
	c := &KeywordClassifier{}
	var err error
	if c.include, err = wordPattern(include); err != nil {
		return nil, fmt.Errorf("include keywords: %w", err)
	}
	if c.exclude, err = wordPattern(exclude); err != nil {
		return nil, fmt.Errorf("exclude keywords: %w", err)
	}
	return c, nil
}

func wordPattern(words []string) (*re2.Regexp, error) {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		quoted = append(quoted, re2.QuoteMeta(strings.ToLower(w)))
	}
	if len(quoted) == 0 {
		return nil, nil
	}
	// $ and # prefixes are common for tickers and tags
	return re2.Compile(`(?i)(?:^|[^\pL\pN])[$#]?(?:` + strings.Join(quoted, "|") + `)(?:$|[^\pL\pN])`)
}

// Match reports relevance without a context.
func (c *KeywordClassifier) Match(text string) bool {
	if c.exclude != nil && c.exclude.MatchString(text) {
		return false
	}
	if c.include == nil {
		return true
	}
	return c.include.MatchString(text)
}

// IsRelevant implements RelevanceClassifier.
func (c *KeywordClassifier) IsRelevant(_ context.Context, text string) (bool, error) {
	return c.Match(text), nil
}
