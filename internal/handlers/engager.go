package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/agents"
	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/platform"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

// CommentEngager posts the scheduled comments on other accounts' tweets.
type CommentEngager struct {
	base
	comments  *schedule.CommentManager
	tracker   *tracker.TweetTracker
	platform  platform.Client
	writer    agents.TextGenerator
	relevance agents.RelevanceClassifier
	history   *History
	freshness time.Duration
	batchSize int
}

func NewCommentEngager(deps Deps, cfg Config) *CommentEngager {
	cfg = cfg.withDefaults()
	h := &CommentEngager{
		base:      newBase(constants.HandlerComment, deps, cfg),
		comments:  deps.Queues.Comments,
		tracker:   deps.Tracker,
		platform:  deps.Platform,
		writer:    deps.Writer,
		relevance: deps.Relevance,
		history:   NewHistory(cfg.HistorySize),
		freshness: cfg.CommentFreshness,
		batchSize: cfg.EngageBatchSize,
	}
	h.requireDep(h.relevance != nil, "relevance classifier")
	h.requireDep(h.writer != nil, "text generator")
	return h
}

func (h *CommentEngager) History() *History { return h.history }

// ProcessDue comments on due CommentSchedules until the batch size is
// reached. Items rejected by a filter are completed as skipped, since the
// filters do not change between cycles; failures stay pending.
func (h *CommentEngager) ProcessDue(ctx context.Context) BatchStats {
	var stats BatchStats
	// FutureComments returns the due items.
	due := h.comments.FutureComments()

	h.throttle.reset()
	for _, c := range due {
		if ctx.Err() != nil || stats.Succeeded >= h.batchSize {
			break
		}
		if !h.quota.Allow(h.name) {
			h.record(ctx, &stats, skip(c.ID, c.TweetID, "daily quota reached"))
			break
		}
		r := h.process(ctx, c)
		if r.Outcome == OutcomeSkip && r.Reason != reasonNoClassifier {
			h.comments.MarkCommentCompleted(c)
		}
		h.record(ctx, &stats, r)
	}
	return stats
}

const reasonNoClassifier = "no relevance classifier"

func (h *CommentEngager) process(ctx context.Context, c *schedule.CommentSchedule) ItemResult {
	if h.tracker.IsOurTweet(c.TweetID) {
		return skip(c.ID, c.TweetID, "own tweet")
	}
	if h.history.Contains(c.TweetID) {
		return skip(c.ID, c.TweetID, "already engaged")
	}
	if c.TimePosted.IsZero() || h.now().Sub(c.TimePosted) > h.freshness {
		return skip(c.ID, c.TweetID, "tweet too old")
	}
	if h.relevance == nil {
		return skip(c.ID, c.TweetID, reasonNoClassifier)
	}

	tweet, err := h.platform.GetTweet(ctx, c.TweetID)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return skip(c.ID, c.TweetID, "tweet no longer exists")
		}
		return fail(c.ID, c.TweetID, "tweet lookup failed", err)
	}
	relevant, err := h.relevance.IsRelevant(ctx, tweet.Text)
	if err != nil {
		return fail(c.ID, c.TweetID, "relevance check failed", err)
	}
	if !relevant {
		return skip(c.ID, c.TweetID, "not relevant")
	}
	if !h.tracker.CanComment(c.TweetID) {
		return skip(c.ID, c.TweetID, "comment limit reached")
	}

	text := c.CommentText
	if text == "" {
		if h.writer == nil {
			return fail(c.ID, c.TweetID, "no text generator", nil)
		}
		if text, err = h.writer.GenerateComment(ctx, agents.CommentBrief{TweetText: tweet.Text, Author: tweet.AuthorUsername}); err != nil {
			return fail(c.ID, c.TweetID, "comment generation failed", err)
		}
	}
	text = withLink(text, c.CompanyLink)
	if text == "" {
		return fail(c.ID, c.TweetID, "comment generation failed", agents.ErrEmptyOutput)
	}

	if err := h.throttle.wait(ctx); err != nil {
		return fail(c.ID, c.TweetID, "cancelled", err)
	}
	replyID, err := h.platform.Post(ctx, platform.PostRequest{Text: text, InReplyTo: c.TweetID})
	switch {
	case errors.Is(err, platform.ErrDuplicateContent):
		h.comments.MarkCommentCompleted(c)
		h.history.Add(c.TweetID)
		return ItemResult{ID: c.ID, Target: c.TweetID, Outcome: OutcomeDuplicate, Reason: "duplicate comment", Err: err}
	case err != nil:
		return fail(c.ID, c.TweetID, "reply failed", err)
	case replyID == "":
		return fail(c.ID, c.TweetID, "reply failed", fmt.Errorf("platform returned no id"))
	}

	if err := h.tracker.AddComment(replyID, c.TweetID); err != nil {
		h.logger.ErrorCtx(ctx, "comment recorded past its limit", err)
	}
	h.comments.MarkCommentCompleted(c)
	h.history.Add(c.TweetID)
	h.quota.Use(h.name)
	return success(c.ID, c.TweetID, replyID)
}
