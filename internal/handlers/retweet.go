package handlers

import (
	"context"
	"errors"

	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/platform"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

// RetweetProcessor executes scheduled retweets.
type RetweetProcessor struct {
	base
	retweets  *schedule.RetweetManager
	tracker   *tracker.TweetTracker
	platform  platform.Client
	history   *History
	batchSize int
}

func NewRetweetProcessor(deps Deps, cfg Config) *RetweetProcessor {
	cfg = cfg.withDefaults()
	return &RetweetProcessor{
		base:      newBase(constants.HandlerRetweet, deps, cfg),
		retweets:  deps.Queues.Retweets,
		tracker:   deps.Tracker,
		platform:  deps.Platform,
		history:   NewHistory(cfg.HistorySize),
		batchSize: cfg.RetweetBatchSize,
	}
}

// History exposes the tweets retweeted since the last daily reset.
func (h *RetweetProcessor) History() *History { return h.history }

// ProcessPending retweets up to the batch size of overdue entries. Targets
// that no longer exist are completed as skipped; other failures stay pending.
func (h *RetweetProcessor) ProcessPending(ctx context.Context) BatchStats {
	var stats BatchStats
	due := h.retweets.OverdueRetweets()
	if len(due) > h.batchSize {
		due = due[:h.batchSize]
	}

	h.throttle.reset()
	for _, r := range due {
		if ctx.Err() != nil {
			break
		}
		if !h.quota.Allow(h.name) {
			h.record(ctx, &stats, skip(r.ID, r.TweetID, "daily quota reached"))
			break
		}
		h.record(ctx, &stats, h.process(ctx, r))
	}
	return stats
}

func (h *RetweetProcessor) process(ctx context.Context, r *schedule.RetweetSchedule) ItemResult {
	if h.history.Contains(r.TweetID) || h.retweets.AlreadyRetweeted(r.TweetID) {
		h.retweets.MarkRetweetCompleted(r)
		return skip(r.ID, r.TweetID, "already retweeted")
	}

	if _, err := h.platform.GetTweet(ctx, r.TweetID); err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			h.retweets.MarkRetweetCompleted(r)
			return skip(r.ID, r.TweetID, "target tweet no longer exists")
		}
		return fail(r.ID, r.TweetID, "target lookup failed", err)
	}

	if err := h.throttle.wait(ctx); err != nil {
		return fail(r.ID, r.TweetID, "cancelled", err)
	}
	if err := h.platform.Retweet(ctx, r.TweetID); err != nil {
		if errors.Is(err, platform.ErrDuplicateContent) {
			h.retweets.MarkRetweetCompleted(r)
			h.history.Add(r.TweetID)
			return ItemResult{ID: r.ID, Target: r.TweetID, Outcome: OutcomeDuplicate, Reason: "already retweeted on platform", Err: err}
		}
		return fail(r.ID, r.TweetID, "retweet failed", err)
	}

	h.retweets.MarkRetweetCompleted(r)
	h.history.Add(r.TweetID)
	h.tracker.AddRetweet(r.TweetID)
	h.quota.Use(h.name)
	return success(r.ID, r.TweetID, "")
}
