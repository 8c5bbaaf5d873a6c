package handlers

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/aatumaykin/cryptopilot/internal/agents"
	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/platform"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

// CommentReplier engages with the audience of the watched accounts: it
// answers popular replies under their tweets (ProcessComments) and replies
// to the tweets themselves (ProcessTweets).
type CommentReplier struct {
	base
	tracker   *tracker.TweetTracker
	platform  platform.Client
	writer    agents.TextGenerator
	relevance agents.RelevanceClassifier
	history   *History
	cfg       Config

	group     singleflight.Group
	cacheMu   sync.Mutex
	cached    []platform.Tweet
	fetchedAt time.Time
}

func NewCommentReplier(deps Deps, cfg Config) *CommentReplier {
	cfg = cfg.withDefaults()
	h := &CommentReplier{
		base:      newBase(constants.HandlerReplier, deps, cfg),
		tracker:   deps.Tracker,
		platform:  deps.Platform,
		writer:    deps.Writer,
		relevance: deps.Relevance,
		history:   NewHistory(cfg.HistorySize),
		cfg:       cfg,
	}
	h.requireDep(h.relevance != nil, "relevance classifier")
	h.requireDep(h.writer != nil, "text generator")
	if len(cfg.Targets) == 0 {
		h.logger.Warn("no target accounts configured")
	}
	return h
}

func (h *CommentReplier) History() *History { return h.history }

// ClearCache forces the next run to refetch target tweets.
func (h *CommentReplier) ClearCache() {
	h.cacheMu.Lock()
	defer h.cacheMu.Unlock()
	h.cached = nil
	h.fetchedAt = time.Time{}
}

// recentTweets returns the targets' recent tweets, cached for CacheTTL.
// Concurrent callers share one fetch.
func (h *CommentReplier) recentTweets(ctx context.Context) []platform.Tweet {
	h.cacheMu.Lock()
	if len(h.cached) > 0 && h.now().Sub(h.fetchedAt) < h.cfg.CacheTTL {
		tweets := slices.Clone(h.cached)
		h.cacheMu.Unlock()
		h.logger.DebugCtx(ctx, "using cached target tweets", logger.Field{Key: "count", Value: len(tweets)})
		return tweets
	}
	h.cacheMu.Unlock()

	v, _, _ := h.group.Do("recent", func() (any, error) {
		since := h.now().Add(-h.cfg.ReplierLookback)
		var all []platform.Tweet
		for _, username := range h.cfg.Targets {
			tweets, err := h.platform.FetchUserTweets(ctx, username, since, h.cfg.TweetsPerAccount)
			if err != nil {
				h.logger.WarnCtx(ctx, "failed to fetch target tweets",
					logger.Field{Key: "username", Value: username},
					logger.Field{Key: "error", Value: err.Error()})
				continue
			}
			for _, t := range tweets {
				if utf8.RuneCountInString(strings.TrimSpace(t.Text)) < h.cfg.MinCommentChars {
					continue
				}
				if t.AuthorUsername == "" {
					t.AuthorUsername = username
				}
				all = append(all, t)
			}
		}

		h.cacheMu.Lock()
		h.cached = all
		h.fetchedAt = h.now()
		h.cacheMu.Unlock()
		return all, nil
	})
	tweets, _ := v.([]platform.Tweet)
	return slices.Clone(tweets)
}

func (h *CommentReplier) self(ctx context.Context) string {
	me, err := h.platform.Me(ctx)
	if err != nil {
		h.logger.WarnCtx(ctx, "failed to resolve own account", logger.Field{Key: "error", Value: err.Error()})
		return ""
	}
	return me.ID
}

func (h *CommentReplier) relevant(ctx context.Context, text string) (bool, error) {
	if h.relevance == nil {
		return false, nil
	}
	return h.relevance.IsRelevant(ctx, text)
}

// ProcessComments answers replies under the targets' tweets, most engaged
// tweets first, at most MaxRepliesPerTweet per tweet and MaxRepliesPerBatch
// per run.
func (h *CommentReplier) ProcessComments(ctx context.Context) BatchStats {
	var stats BatchStats
	if h.relevance == nil || h.writer == nil {
		return stats
	}
	tweets := h.recentTweets(ctx)
	slices.SortStableFunc(tweets, func(a, b platform.Tweet) int {
		return cmp.Compare(b.LikeCount+b.RetweetCount+b.ReplyCount, a.LikeCount+a.RetweetCount+a.ReplyCount)
	})
	selfID := h.self(ctx)

	h.throttle.reset()
	for _, tweet := range tweets {
		if ctx.Err() != nil || stats.Succeeded >= h.cfg.MaxRepliesPerBatch {
			break
		}
		ok, err := h.relevant(ctx, tweet.Text)
		if err != nil || !ok {
			continue
		}
		conversation := cmp.Or(tweet.ConversationID, tweet.ID)
		replies, err := h.platform.FetchReplies(ctx, conversation, constants.DefaultRepliesFetched)
		if err != nil {
			h.logger.WarnCtx(ctx, "failed to fetch replies",
				logger.Field{Key: "tweet_id", Value: tweet.ID},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		slices.SortStableFunc(replies, func(a, b platform.Tweet) int { return cmp.Compare(b.LikeCount, a.LikeCount) })

		perTweet := 0
		for _, reply := range replies {
			if ctx.Err() != nil || perTweet >= h.cfg.MaxRepliesPerTweet || stats.Succeeded >= h.cfg.MaxRepliesPerBatch {
				break
			}
			if !h.quota.Allow(h.name) {
				h.record(ctx, &stats, skip(reply.ID, reply.ID, "daily quota reached"))
				return stats
			}
			r := h.replyToComment(ctx, tweet, reply, conversation, selfID)
			if r.Outcome == OutcomeSkip && r.Reason == "below thresholds" {
				continue
			}
			h.record(ctx, &stats, r)
			if r.Outcome == OutcomeSuccess {
				perTweet++
			}
		}
	}
	return stats
}

func (h *CommentReplier) replyToComment(ctx context.Context, parent, reply platform.Tweet, conversation, selfID string) ItemResult {
	if reply.LikeCount < h.cfg.MinCommentLikes || utf8.RuneCountInString(strings.TrimSpace(reply.Text)) < h.cfg.MinCommentChars {
		return skip(reply.ID, reply.ID, "below thresholds")
	}
	if h.tracker.IsOurTweet(reply.ID) || (selfID != "" && reply.AuthorID == selfID) {
		return skip(reply.ID, reply.ID, "own tweet")
	}
	if h.history.Contains(reply.ID) {
		return skip(reply.ID, reply.ID, "already engaged")
	}
	ok, err := h.relevant(ctx, fmt.Sprintf("Parent post: %s\nComment: %s", parent.Text, reply.Text))
	if err != nil {
		return fail(reply.ID, reply.ID, "relevance check failed", err)
	}
	if !ok {
		h.history.Add(reply.ID)
		return skip(reply.ID, reply.ID, "not relevant")
	}
	if !h.tracker.CanComment(conversation) {
		return skip(reply.ID, reply.ID, "comment limit reached")
	}

	text, err := h.writer.GenerateReply(ctx, agents.ReplyBrief{
		MentionText: reply.Text,
		ThreadText:  parent.Text,
		Author:      reply.AuthorUsername,
	})
	if err != nil {
		return fail(reply.ID, reply.ID, "reply generation failed", err)
	}
	return h.post(ctx, reply.ID, conversation, text)
}

// ProcessTweets replies directly to target tweets above the likes threshold.
func (h *CommentReplier) ProcessTweets(ctx context.Context) BatchStats {
	var stats BatchStats
	if h.relevance == nil || h.writer == nil {
		return stats
	}
	tweets := h.recentTweets(ctx)
	slices.SortStableFunc(tweets, func(a, b platform.Tweet) int { return cmp.Compare(b.LikeCount, a.LikeCount) })

	h.throttle.reset()
	for _, tweet := range tweets {
		if ctx.Err() != nil || stats.Succeeded >= h.cfg.MaxDirectReplies {
			break
		}
		if tweet.LikeCount < h.cfg.TweetLikesThreshold {
			continue
		}
		if !h.quota.Allow(h.name) {
			h.record(ctx, &stats, skip(tweet.ID, tweet.ID, "daily quota reached"))
			break
		}
		h.record(ctx, &stats, h.replyToTweet(ctx, tweet))
	}
	return stats
}

func (h *CommentReplier) replyToTweet(ctx context.Context, tweet platform.Tweet) ItemResult {
	if h.tracker.IsOurTweet(tweet.ID) {
		return skip(tweet.ID, tweet.ID, "own tweet")
	}
	if h.history.Contains(tweet.ID) {
		return skip(tweet.ID, tweet.ID, "already engaged")
	}
	ok, err := h.relevant(ctx, tweet.Text)
	if err != nil {
		return fail(tweet.ID, tweet.ID, "relevance check failed", err)
	}
	if !ok {
		h.history.Add(tweet.ID)
		return skip(tweet.ID, tweet.ID, "not relevant")
	}
	conversation := cmp.Or(tweet.ConversationID, tweet.ID)
	if !h.tracker.CanComment(conversation) {
		return skip(tweet.ID, tweet.ID, "comment limit reached")
	}

	text, err := h.writer.GenerateComment(ctx, agents.CommentBrief{TweetText: tweet.Text, Author: tweet.AuthorUsername})
	if err != nil {
		return fail(tweet.ID, tweet.ID, "comment generation failed", err)
	}
	return h.post(ctx, tweet.ID, conversation, text)
}

func (h *CommentReplier) post(ctx context.Context, target, conversation, text string) ItemResult {
	text = truncate(text)
	if text == "" {
		return fail(target, target, "generation failed", agents.ErrEmptyOutput)
	}
	if err := h.throttle.wait(ctx); err != nil {
		return fail(target, target, "cancelled", err)
	}
	replyID, err := h.platform.Post(ctx, platform.PostRequest{Text: text, InReplyTo: target})
	switch {
	case errors.Is(err, platform.ErrDuplicateContent):
		h.history.Add(target)
		return ItemResult{ID: target, Target: target, Outcome: OutcomeDuplicate, Reason: "duplicate reply", Err: err}
	case err != nil:
		return fail(target, target, "reply failed", err)
	case replyID == "":
		return fail(target, target, "reply failed", fmt.Errorf("platform returned no id"))
	}
	if err := h.tracker.AddComment(replyID, conversation); err != nil {
		h.logger.ErrorCtx(ctx, "comment recorded past its limit", err)
	}
	h.history.Add(target)
	h.quota.Use(h.name)
	return success(target, target, replyID)
}
