package collect

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/platform"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
)

// CompetitorConfig tunes CompetitorCollector.
type CompetitorConfig struct {
	Competitors []Account
	Lookback    time.Duration
	PerAccount  int
	// MaxTotal caps the newest tweets kept from one run.
	MaxTotal int
}

// CompetitorCollector gathers competitor tweets into the competitor pool.
type CompetitorCollector struct {
	cfg      CompetitorConfig
	queues   *schedule.Queues
	platform platform.Client
	now      func() time.Time
	logger   *logger.Logger
}

func NewCompetitorCollector(cfg CompetitorConfig, queues *schedule.Queues, client platform.Client,
	now func() time.Time, log *logger.Logger) *CompetitorCollector {
	if cfg.Lookback <= 0 {
		cfg.Lookback = constants.DefaultCollectLookback
	}
	if cfg.PerAccount <= 0 {
		cfg.PerAccount = constants.DefaultCompetitorTweets
	}
	if cfg.MaxTotal <= 0 {
		cfg.MaxTotal = constants.DefaultMaxCompetitorTweets
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CompetitorCollector{
		cfg:      cfg,
		queues:   queues,
		platform: client,
		now:      now,
		logger:   log.Component("competitor_collector"),
	}
}

type competitorTweet struct {
	account Account
	tweet   platform.Tweet
}

// Collect stores the newest competitor tweets, skipping tweets already in
// the pool or already scheduled for a comment.
func (c *CompetitorCollector) Collect(ctx context.Context) (Result, error) {
	since := c.now().UTC().Add(-c.cfg.Lookback)
	var all []competitorTweet

	res, err := fetchAll(ctx, c.platform, c.logger, c.cfg.Competitors, since, c.cfg.PerAccount,
		func(acc Account, tweets []platform.Tweet) {
			for _, t := range tweets {
				if t.InReplyToID != "" {
					continue
				}
				all = append(all, competitorTweet{account: acc, tweet: t})
			}
		})

	slices.SortStableFunc(all, func(a, b competitorTweet) int {
		return cmp.Compare(b.tweet.CreatedAt.UnixNano(), a.tweet.CreatedAt.UnixNano())
	})
	if len(all) > c.cfg.MaxTotal {
		all = all[:c.cfg.MaxTotal]
	}

	scheduled := make(map[string]bool)
	for _, cs := range c.queues.Comments.All() {
		scheduled[cs.TweetID] = true
	}
	for _, ct := range all {
		if scheduled[ct.tweet.ID] || c.queues.Competitors.Find(ct.tweet.ID) != nil {
			continue
		}
		c.queues.Competitors.Add(&schedule.CompetitorComment{
			TweetID:      ct.tweet.ID,
			Username:     ct.account.Username,
			Text:         ct.tweet.Text,
			TimePosted:   ct.tweet.CreatedAt,
			LikeCount:    ct.tweet.LikeCount,
			ReplyCount:   ct.tweet.ReplyCount,
			RetweetCount: ct.tweet.RetweetCount,
			CompanyLink:  ct.account.Link,
		})
		res.Added++
	}

	c.logger.InfoCtx(ctx, "competitor tweets collected",
		logger.Field{Key: "accounts", Value: res.Accounts},
		logger.Field{Key: "fetched", Value: res.Fetched},
		logger.Field{Key: "added", Value: res.Added},
		logger.Field{Key: "pool", Value: c.queues.Competitors.Len()})
	return res, err
}

// CommentTransfer moves competitor tweets into the comment schedule.
type CommentTransfer struct {
	queues *schedule.Queues
	now    func() time.Time
	logger *logger.Logger
}

func NewCommentTransfer(queues *schedule.Queues, now func() time.Time, log *logger.Logger) *CommentTransfer {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CommentTransfer{queues: queues, now: now, logger: log.Component("comment_transfer")}
}

// TransferTop schedules comments, due now, on the n most engaged competitor
// tweets and removes them from the pool. The comment text is left empty so
// it is written when the comment is posted.
func (t *CommentTransfer) TransferTop(n int) []*schedule.CommentSchedule {
	if n <= 0 {
		return nil
	}
	now := t.now().UTC()
	var out []*schedule.CommentSchedule
	for _, c := range t.queues.Competitors.Top(n) {
		cs := t.queues.Comments.AddComment(&schedule.CommentSchedule{
			ActionMeta:  schedule.ActionMeta{ScheduledTime: now},
			TimePosted:  c.TimePosted,
			TweetID:     c.TweetID,
			CommentText: c.CommentText,
			CompanyLink: c.CompanyLink,
		})
		t.queues.Competitors.Remove(c.TweetID)
		out = append(out, cs)
		t.logger.Info("competitor tweet transferred",
			logger.Field{Key: "tweet_id", Value: c.TweetID},
			logger.Field{Key: "username", Value: c.Username},
			logger.Field{Key: "engagement", Value: c.Engagement()})
	}
	return out
}
