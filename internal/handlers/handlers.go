// Package handlers turns due queue items and platform activity into
// posts, polls, retweets, comments and mention replies.
//
// Every handler follows the same shape: fetch due items, filter, act,
// record. A failing item never aborts its batch; it is reported as an
// ItemResult and, unless stated otherwise, stays pending for the next cycle.
// Handlers are not safe for concurrent use; the cycle scheduler serializes them.
package handlers

import (
	"context"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/agents"
	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/media"
	"github.com/aatumaykin/cryptopilot/internal/platform"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

// Config tunes the handlers. Zero values fall back to defaults, except
// Throttle: zero disables the delay between actions.
type Config struct {
	Handle              string // account handle without @
	Throttle            time.Duration
	RetweetBatchSize    int
	EngageBatchSize     int
	CommentFreshness    time.Duration
	ReplierLookback     time.Duration
	TweetsPerAccount    int
	CacheTTL            time.Duration
	MinCommentLikes     int
	MinCommentChars     int
	MaxRepliesPerTweet  int
	MaxRepliesPerBatch  int
	TweetLikesThreshold int
	MaxDirectReplies    int
	MentionLookback     time.Duration
	MaxMentionsPerRun   int // mentions past the basic check per pass
	HistorySize         int
	Targets             []string // accounts watched by CommentReplier
}

func (c Config) withDefaults() Config {
	if c.Throttle < 0 {
		c.Throttle = 0
	}
	if c.RetweetBatchSize <= 0 {
		c.RetweetBatchSize = constants.DefaultRetweetBatchSize
	}
	if c.EngageBatchSize <= 0 {
		c.EngageBatchSize = constants.DefaultEngageBatchSize
	}
	if c.CommentFreshness <= 0 {
		c.CommentFreshness = constants.DefaultCommentFreshness
	}
	if c.ReplierLookback <= 0 {
		c.ReplierLookback = constants.DefaultReplierLookback
	}
	if c.TweetsPerAccount <= 0 {
		c.TweetsPerAccount = constants.DefaultTweetsPerAccount
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = constants.DefaultReplierCacheTTL
	}
	if c.MinCommentLikes < 0 {
		c.MinCommentLikes = 0
	}
	if c.MinCommentChars <= 0 {
		c.MinCommentChars = constants.DefaultMinCommentChars
	}
	if c.MaxRepliesPerTweet <= 0 {
		c.MaxRepliesPerTweet = constants.DefaultMaxRepliesPerTweet
	}
	if c.MaxRepliesPerBatch <= 0 {
		c.MaxRepliesPerBatch = constants.DefaultMaxRepliesPerBatch
	}
	if c.TweetLikesThreshold < 0 {
		c.TweetLikesThreshold = 0
	}
	if c.MaxDirectReplies <= 0 {
		c.MaxDirectReplies = constants.DefaultMaxDirectReplies
	}
	if c.MentionLookback <= 0 {
		c.MentionLookback = constants.DefaultMentionLookback
	}
	if c.MaxMentionsPerRun <= 0 {
		c.MaxMentionsPerRun = constants.DefaultMaxMentionsPerRun
	}
	if c.HistorySize <= 0 {
		c.HistorySize = constants.DefaultHistorySize
	}
	return c
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	c := Config{
		Throttle:            constants.DefaultThrottle,
		MinCommentLikes:     constants.DefaultMinCommentLikes,
		TweetLikesThreshold: constants.DefaultTweetLikesThreshold,
	}
	return c.withDefaults()
}

// Observer receives one call per processed item, e.g. for metrics.
type Observer interface {
	ObserveAction(handler string, outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) ObserveAction(string, Outcome) {}

// Deps are the collaborators shared by the handlers. Writer, Relevance,
// Decider and Media are optional: a handler built without one logs an
// error and skips the items that need it.
type Deps struct {
	Queues    *schedule.Queues
	Tracker   *tracker.TweetTracker
	Platform  platform.Client
	Writer    agents.TextGenerator
	Relevance agents.RelevanceClassifier
	Decider   agents.DecisionClassifier
	Media     media.Producer
	Quota     *Quota
	Observer  Observer
	Logger    *logger.Logger
	Now       func() time.Time
}

// base carries what every handler needs to act and to report.
type base struct {
	name     string
	logger   *logger.Logger
	observer Observer
	quota    *Quota
	now      func() time.Time
	throttle *throttle
}

func newBase(name string, deps Deps, cfg Config) base {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	observer := deps.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return base{
		name:     name,
		logger:   log.Component(name + "_handler"),
		observer: observer,
		quota:    deps.Quota,
		now:      func() time.Time { return now().UTC() },
		throttle: newThrottle(cfg.Throttle),
	}
}

// requireDep logs a missing optional collaborator once, at construction.
func (b *base) requireDep(present bool, what string) {
	if !present {
		b.logger.Error("handler built without "+what+"; items needing it will be skipped", nil)
	}
}

// record aggregates, observes and logs r.
func (b *base) record(ctx context.Context, stats *BatchStats, r ItemResult) {
	stats.Add(r)
	b.observer.ObserveAction(b.name, r.Outcome)

	fields := r.fields()
	switch r.Outcome {
	case OutcomeSuccess:
		b.logger.InfoCtx(ctx, "action completed", fields...)
	case OutcomeDuplicate:
		b.logger.InfoCtx(ctx, "duplicate content rejected by platform", fields...)
	case OutcomeSkip:
		b.logger.DebugCtx(ctx, "item skipped", fields...)
	case OutcomeFail:
		b.logger.ErrorCtx(ctx, "action failed", r.Err, fields...)
	}
}

// throttle spaces consecutive external actions within one batch.
type throttle struct {
	delay time.Duration
	sleep func(context.Context, time.Duration) error
	armed bool
}

func newThrottle(delay time.Duration) *throttle {
	return &throttle{delay: delay, sleep: sleepCtx}
}

// wait blocks before every action except the first of a batch.
func (t *throttle) wait(ctx context.Context) error {
	if t.armed && t.delay > 0 {
		if err := t.sleep(ctx, t.delay); err != nil {
			return err
		}
	}
	t.armed = true
	return nil
}

func (t *throttle) reset() {
	t.armed = false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
