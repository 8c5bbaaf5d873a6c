package collect

import (
	"context"
	"slices"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/platform"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
)

// RetweetConfig tunes RetweetCollector.
type RetweetConfig struct {
	Influencers []Account
	MinLikes    int
	MaxAge      time.Duration
	PerAccount  int
	// Lag between selection and the scheduled retweet.
	Lag time.Duration
}

// RetweetCollector gathers influencer tweets into the candidate pool and
// promotes the best candidates to scheduled retweets.
type RetweetCollector struct {
	cfg      RetweetConfig
	retweets *schedule.RetweetManager
	platform platform.Client
	now      func() time.Time
	logger   *logger.Logger
}

func NewRetweetCollector(cfg RetweetConfig, retweets *schedule.RetweetManager, client platform.Client,
	now func() time.Time, log *logger.Logger) *RetweetCollector {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = constants.DefaultCandidateMaxAge
	}
	if cfg.PerAccount <= 0 {
		cfg.PerAccount = constants.DefaultInfluencerTweets
	}
	if cfg.Lag <= 0 {
		cfg.Lag = constants.DefaultTransferRetweetLag
	}
	if cfg.MinLikes < 0 {
		cfg.MinLikes = 0
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RetweetCollector{
		cfg:      cfg,
		retweets: retweets,
		platform: client,
		now:      now,
		logger:   log.Component("retweet_collector"),
	}
}

// Collect adds fresh original influencer tweets with at least MinLikes
// likes as candidates. The pool itself rejects tweets already scheduled.
func (c *RetweetCollector) Collect(ctx context.Context) (Result, error) {
	now := c.now().UTC()
	cutoff := now.Add(-c.cfg.MaxAge)
	added := 0

	res, err := fetchAll(ctx, c.platform, c.logger, c.cfg.Influencers, cutoff, c.cfg.PerAccount,
		func(acc Account, tweets []platform.Tweet) {
			for _, t := range tweets {
				if t.InReplyToID != "" || t.LikeCount < c.cfg.MinLikes || t.CreatedAt.Before(cutoff) {
					continue
				}
				if c.retweets.AddCandidate(&schedule.RetweetCandidate{
					TweetID:      t.ID,
					SourceAcc:    acc.Username,
					TweetText:    t.Text,
					TimePosted:   t.CreatedAt,
					LikeCount:    t.LikeCount,
					RetweetCount: t.RetweetCount,
				}) {
					added++
				}
			}
		})
	res.Added = added
	c.logger.InfoCtx(ctx, "retweet candidates collected",
		logger.Field{Key: "accounts", Value: res.Accounts},
		logger.Field{Key: "fetched", Value: res.Fetched},
		logger.Field{Key: "added", Value: res.Added},
		logger.Field{Key: "pool", Value: c.retweets.CandidateCount()})
	return res, err
}

// ScheduleTop promotes up to n ranked candidates, taking at most one tweet
// per source account before repeating a source.
func (c *RetweetCollector) ScheduleTop(n int) []*schedule.RetweetSchedule {
	if n <= 0 {
		return nil
	}
	candidates := c.retweets.AllCandidates()
	picked := make([]*schedule.RetweetCandidate, 0, n)
	seen := make(map[string]bool)
	for _, pass := range []bool{true, false} {
		for _, cand := range candidates {
			if len(picked) >= n {
				break
			}
			if cand.Selected || (pass && seen[cand.SourceAcc]) || slices.Contains(picked, cand) {
				continue
			}
			seen[cand.SourceAcc] = true
			picked = append(picked, cand)
		}
	}

	when := c.now().UTC().Add(c.cfg.Lag)
	var out []*schedule.RetweetSchedule
	for _, cand := range picked {
		if r := c.retweets.ScheduleFromCandidate(cand.TweetID, when); r != nil {
			out = append(out, r)
		}
	}
	return out
}
