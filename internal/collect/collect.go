// Package collect fills the candidate pools the daily pipeline picks from:
// retweet candidates from influencer accounts and competitor tweets worth
// commenting on.
package collect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/platform"
)

// Account is a watched account. Link is the website appended to comments
// on its tweets; influencers usually leave it empty.
type Account struct {
	Username string `toml:"username" yaml:"username"`
	Link     string `toml:"link" yaml:"link"`
}

// Result summarizes one collection run.
type Result struct {
	Accounts int
	Fetched  int
	Added    int
	Failed   []string
}

func (r Result) String() string {
	return fmt.Sprintf("accounts=%d fetched=%d added=%d failed=%d", r.Accounts, r.Fetched, r.Added, len(r.Failed))
}

// ErrAllFailed is returned when no account could be fetched.
var ErrAllFailed = errors.New("all accounts failed")

// CleanHandle strips the @ and stray quotes from a configured handle.
func CleanHandle(h string) string {
	h = strings.Trim(strings.TrimSpace(h), `"'`)
	return strings.TrimSpace(strings.TrimPrefix(h, "@"))
}

// fetchAll calls FetchUserTweets for every account. fn is called once per
// account with the fetched tweets; failures are logged and collected.
func fetchAll(ctx context.Context, client platform.Client, log *logger.Logger, accounts []Account,
	since time.Time, limit int, fn func(Account, []platform.Tweet)) (Result, error) {
	res := Result{}
	for _, acc := range accounts {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		username := CleanHandle(acc.Username)
		if username == "" {
			continue
		}
		res.Accounts++
		tweets, err := client.FetchUserTweets(ctx, username, since, limit)
		if err != nil {
			log.WarnCtx(ctx, "failed to fetch account tweets",
				logger.Field{Key: "username", Value: username},
				logger.Field{Key: "error", Value: err.Error()})
			res.Failed = append(res.Failed, username)
			continue
		}
		res.Fetched += len(tweets)
		acc.Username = username
		fn(acc, tweets)
	}
	if res.Accounts > 0 && len(res.Failed) == res.Accounts {
		return res, ErrAllFailed
	}
	return res, nil
}
