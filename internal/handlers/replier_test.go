package handlers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cryptopilot/internal/platform"
)

func targetTweet(id string, likes int) platform.Tweet {
	return platform.Tweet{
		ID:             id,
		Text:           "Market update for " + id,
		AuthorID:       "500",
		AuthorUsername: "whale",
		ConversationID: id,
		CreatedAt:      testNow.Add(-time.Hour),
		LikeCount:      likes,
	}
}

func replyTweet(id, conversation string, likes int) platform.Tweet {
	return platform.Tweet{
		ID:             id,
		Text:           "Interesting point about " + id,
		AuthorID:       "u" + id,
		AuthorUsername: "fan" + id,
		ConversationID: conversation,
		CreatedAt:      testNow.Add(-30 * time.Minute),
		LikeCount:      likes,
	}
}

func TestCommentReplier_ProcessTweets(t *testing.T) {
	f := newFixture(t)
	f.platform.ByUser["whale"] = []platform.Tweet{
		targetTweet("10", 50),
		targetTweet("11", 2),
		{ID: "12", Text: "gm", CreatedAt: testNow, LikeCount: 90},
	}
	cfg := testConfig()
	cfg.TweetLikesThreshold = 5

	h := NewCommentReplier(f.deps, cfg)
	stats := h.ProcessTweets(context.Background())

	assert.Equal(t, BatchStats{Total: 1, Succeeded: 1}, stats)
	require.Len(t, f.platform.Posts, 1)
	assert.Equal(t, "10", f.platform.Posts[0].InReplyTo)
	assert.Equal(t, 1, f.tracker.CommentCount("10"))
	assert.True(t, h.History().Contains("10"))

	// already engaged on the second run
	stats = h.ProcessTweets(context.Background())
	assert.Equal(t, 1, stats.Skipped)
	assert.Len(t, f.platform.Posts, 1)
}

func TestCommentReplier_CacheAndClear(t *testing.T) {
	f := newFixture(t)
	f.platform.ByUser["whale"] = []platform.Tweet{targetTweet("10", 1)}
	cfg := testConfig()
	cfg.TweetLikesThreshold = 5

	h := NewCommentReplier(f.deps, cfg)
	h.ProcessTweets(context.Background())
	h.ProcessTweets(context.Background())
	assert.Equal(t, 1, f.platform.FetchCalls())

	h.ClearCache()
	h.ProcessTweets(context.Background())
	assert.Equal(t, 2, f.platform.FetchCalls())
}

func TestCommentReplier_EmptyFetchIsNotCached(t *testing.T) {
	f := newFixture(t)
	h := NewCommentReplier(f.deps, testConfig())

	h.ProcessTweets(context.Background())
	h.ProcessTweets(context.Background())

	assert.Equal(t, 2, f.platform.FetchCalls())
}

func TestCommentReplier_ProcessComments(t *testing.T) {
	f := newFixture(t)
	f.platform.ByUser["whale"] = []platform.Tweet{targetTweet("10", 50)}
	own := replyTweet("r-own", "10", 100)
	own.AuthorID = f.platform.Self.ID
	f.platform.Replies["10"] = []platform.Tweet{
		replyTweet("r1", "10", 3),
		replyTweet("r2", "10", 9),
		replyTweet("r-cold", "10", 0),
		own,
		replyTweet("r3", "10", 1),
	}
	f.tracker.SetCommentLimit("10", 10)
	cfg := testConfig()
	cfg.MinCommentLikes = 1
	cfg.MaxRepliesPerTweet = 2

	stats := NewCommentReplier(f.deps, cfg).ProcessComments(context.Background())

	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, f.platform.Posts, 2)
	assert.Equal(t, "r2", f.platform.Posts[0].InReplyTo)
	assert.Equal(t, "r1", f.platform.Posts[1].InReplyTo)
	assert.Equal(t, 2, f.tracker.CommentCount("10"))
	require.NotEmpty(t, f.writer.replies)
	assert.Equal(t, "Market update for 10", f.writer.replies[0].ThreadText)
}

func TestCommentReplier_BatchCap(t *testing.T) {
	f := newFixture(t)
	f.platform.ByUser["whale"] = []platform.Tweet{targetTweet("10", 50), targetTweet("20", 40)}
	for _, conv := range []string{"10", "20"} {
		f.tracker.SetCommentLimit(conv, 10)
		for i := range 3 {
			f.platform.Replies[conv] = append(f.platform.Replies[conv], replyTweet(fmt.Sprintf("%s-%d", conv, i), conv, 5))
		}
	}
	cfg := testConfig()
	cfg.MaxRepliesPerTweet = 2
	cfg.MaxRepliesPerBatch = 3

	stats := NewCommentReplier(f.deps, cfg).ProcessComments(context.Background())

	assert.Equal(t, 3, stats.Succeeded)
	assert.Equal(t, 2, f.tracker.CommentCount("10"))
	assert.Equal(t, 1, f.tracker.CommentCount("20"))
}

func TestCommentReplier_ThreadLimit(t *testing.T) {
	f := newFixture(t)
	f.platform.ByUser["whale"] = []platform.Tweet{targetTweet("10", 50)}
	f.platform.Replies["10"] = []platform.Tweet{replyTweet("r1", "10", 5), replyTweet("r2", "10", 4), replyTweet("r3", "10", 3)}
	cfg := testConfig()
	cfg.MaxRepliesPerTweet = 5

	stats := NewCommentReplier(f.deps, cfg).ProcessComments(context.Background())

	// fixture tracker allows two comments per conversation
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 1, stats.Skipped)
	assert.False(t, f.tracker.CanComment("10"))
}

func TestCommentReplier_IrrelevantTargetsSkipped(t *testing.T) {
	f := newFixture(t)
	f.decider.relevant = false
	f.platform.ByUser["whale"] = []platform.Tweet{targetTweet("10", 50)}
	f.platform.Replies["10"] = []platform.Tweet{replyTweet("r1", "10", 5)}

	stats := NewCommentReplier(f.deps, testConfig()).ProcessComments(context.Background())

	assert.Zero(t, stats.Total)
	assert.Zero(t, f.platform.PostCount())
}
