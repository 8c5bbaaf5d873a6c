package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/research"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fakeMarket struct {
	quotes   []research.Quote
	trending []research.TrendingCoin
	err      error
}

func (f *fakeMarket) Prices(context.Context, []string, string) ([]research.Quote, error) {
	return f.quotes, f.err
}

func (f *fakeMarket) Trending(context.Context, int) ([]research.TrendingCoin, error) {
	return f.trending, f.err
}

func newTestRegistry(t *testing.T, market research.MarketData) (*Registry, *schedule.Queues) {
	t.Helper()
	q := schedule.NewQueues(schedule.WithClock(clock))
	r := NewPlannerRegistry(Deps{Queues: q, Market: market, Now: clock, Logger: logger.Nop()})
	return r, q
}

func call(t *testing.T, r *Registry, name, args string) ToolResult {
	t.Helper()
	return ExecuteToolCall(context.Background(), r, ToolCall{ID: "c", Name: name, Arguments: args}, time.Second)
}

func TestNewPlannerRegistry_Tools(t *testing.T) {
	r, _ := newTestRegistry(t, nil)
	var names []string
	for _, tool := range r.List() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{
		"current_time", "list_candidates", "list_schedule", "schedule_media_post",
		"schedule_poll", "schedule_post", "transfer_comment", "transfer_retweet",
	}, names)

	r, _ = newTestRegistry(t, &fakeMarket{})
	_, ok := r.Get("market_price")
	assert.True(t, ok)
}

func TestCurrentTime(t *testing.T) {
	r, _ := newTestRegistry(t, nil)
	res := call(t, r, "current_time", "")
	require.Nil(t, res.Error)
	assert.Contains(t, res.Content, "2025-03-01T12:00:00Z")
	assert.Contains(t, res.Content, "Saturday")
}

func TestSchedulePost(t *testing.T) {
	r, q := newTestRegistry(t, nil)

	res := call(t, r, "schedule_post", `{"current_events":"ETF inflows","content":"bullish take"}`)
	require.Nil(t, res.Error)
	pending := q.Posts.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, fixedNow, pending[0].ScheduledTime)
	assert.False(t, pending[0].WantsMedia())

	res = call(t, r, "schedule_post", `{"time":"2025-03-01T18:00:00Z","current_events":"later"}`)
	require.Nil(t, res.Error)
	assert.Equal(t, 2, len(q.Posts.Pending()))

	tests := []struct {
		name string
		tool string
		args string
		code string
	}{
		{"no topic", "schedule_post", `{}`, "missing_topic"},
		{"bad time", "schedule_post", `{"time":"tomorrow","content":"x"}`, "invalid_time"},
		{"unknown field", "schedule_post", `{"contnet":"x"}`, "invalid_arguments"},
		{"media on text tool", "schedule_post", `{"content":"x","media_type":"image"}`, "media_not_supported"},
		{"media type missing", "schedule_media_post", `{"content":"x","media_prompt":"a chart"}`, "invalid_media_type"},
		{"media type unknown", "schedule_media_post", `{"content":"x","media_type":"gif","media_prompt":"p"}`, "invalid_media_type"},
		{"media prompt missing", "schedule_media_post", `{"content":"x","media_type":"video"}`, "missing_media_prompt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, r, tt.tool, tt.args)
			require.NotNil(t, res.Error)
			assert.Equal(t, tt.code, res.Error.Code)
			assert.Equal(t, 2, len(q.Posts.Pending()))
		})
	}
}

func TestScheduleMediaPost(t *testing.T) {
	r, q := newTestRegistry(t, nil)
	res := call(t, r, "schedule_media_post", `{"current_events":"halving","media_type":"VIDEO","media_prompt":"clock ticking"}`)
	require.Nil(t, res.Error)

	pending := q.Posts.Pending()
	require.Len(t, pending, 1)
	assert.True(t, pending[0].WantsMedia())
	assert.Equal(t, schedule.MediaVideo, pending[0].MediaType)
	assert.Equal(t, "clock ticking", pending[0].MediaPrompt)
}

func TestSchedulePoll(t *testing.T) {
	r, q := newTestRegistry(t, nil)

	res := call(t, r, "schedule_poll", `{"question":"Next ATH?","options":["BTC","ETH","SOL","DOGE","PEPE"]}`)
	require.NotNil(t, res.Error)
	assert.Equal(t, "invalid_poll", res.Error.Code)
	assert.Contains(t, res.ForModel(), "options")
	assert.Empty(t, q.Polls.Pending())

	res = call(t, r, "schedule_poll", `{"question":"Next ATH?","options":["BTC","an option that is far too long to fit"]}`)
	require.NotNil(t, res.Error)
	assert.Empty(t, q.Polls.Pending())

	res = call(t, r, "schedule_poll", `{"question":"Next ATH?","options":[" BTC ","ETH"]}`)
	require.Nil(t, res.Error)
	polls := q.Polls.Pending()
	require.Len(t, polls, 1)
	assert.Equal(t, []string{"BTC", "ETH"}, polls[0].Options)
	assert.Equal(t, 1440, polls[0].DurationMinutes)
}

func TestListSchedule(t *testing.T) {
	r, q := newTestRegistry(t, nil)
	assert.Equal(t, "Nothing is scheduled.", call(t, r, "list_schedule", "").Content)

	q.Posts.AddSchedule(&schedule.Schedule{ActionMeta: schedule.ActionMeta{ScheduledTime: fixedNow}, CurrentEvents: "news"})
	q.Polls.AddPoll(&schedule.PollSchedule{ActionMeta: schedule.ActionMeta{ScheduledTime: fixedNow}, Question: "q?", Options: []string{"a", "b"}})

	out := call(t, r, "list_schedule", "").Content
	assert.Contains(t, out, "post ")
	assert.Contains(t, out, "poll ")
	assert.Contains(t, out, "a / b")
}

func TestTransferRetweet(t *testing.T) {
	r, q := newTestRegistry(t, nil)
	q.Retweets.AddCandidate(&schedule.RetweetCandidate{
		TweetID: "42", SourceAcc: "whale", TweetText: "gm", TimePosted: fixedNow.Add(-time.Hour), RetweetCount: 10,
	})

	out := call(t, r, "list_candidates", "")
	assert.Contains(t, out.Content, "42 @whale rt=10")

	res := call(t, r, "transfer_retweet", `{"tweet_id":"42"}`)
	require.Nil(t, res.Error)
	pending := q.Retweets.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, fixedNow.Add(time.Minute), pending[0].ScheduledTime)

	res = call(t, r, "transfer_retweet", `{"tweet_id":"42"}`)
	require.NotNil(t, res.Error)
	assert.Equal(t, "candidate_not_found", res.Error.Code)
}

func TestTransferComment(t *testing.T) {
	r, q := newTestRegistry(t, nil)
	q.Competitors.Add(&schedule.CompetitorComment{TweetID: "7", Username: "rival", Text: "hot take", TimePosted: fixedNow, LikeCount: 3})

	res := call(t, r, "transfer_comment", `{"tweet_id":"7","comment":"disagree politely"}`)
	require.Nil(t, res.Error)

	comments := q.Comments.Pending()
	require.Len(t, comments, 1)
	assert.Equal(t, "7", comments[0].TweetID)
	assert.Equal(t, "disagree politely", comments[0].CommentText)
	assert.Equal(t, fixedNow, comments[0].ScheduledTime)
	assert.Zero(t, q.Competitors.Len())

	res = call(t, r, "transfer_comment", `{"tweet_id":"7"}`)
	require.NotNil(t, res.Error)
	assert.Equal(t, "competitor_not_found", res.Error.Code)
}

func TestMarketTools(t *testing.T) {
	market := &fakeMarket{
		quotes:   []research.Quote{{ID: "bitcoin", Price: 65000.5, Change24h: -1.25, Currency: "usd"}},
		trending: []research.TrendingCoin{{Name: "Pepe", Symbol: "pepe", MarketCapRank: 30}},
	}
	r, _ := newTestRegistry(t, market)

	res := call(t, r, "market_price", `{"coins":["bitcoin"]}`)
	require.Nil(t, res.Error)
	assert.Equal(t, "bitcoin: 65000.50 USD (-1.25% 24h)", res.Content)

	res = call(t, r, "market_trending", "")
	assert.Equal(t, "1. Pepe (PEPE) rank #30", res.Content)

	res = call(t, r, "market_price", `{}`)
	require.NotNil(t, res.Error)
	assert.Equal(t, "missing_coins", res.Error.Code)

	market.err = errors.New("upstream down")
	assert.Equal(t, noMarketData, call(t, r, "market_price", `{"coins":["bitcoin"]}`).Content)
	assert.Equal(t, noMarketData, call(t, r, "market_trending", "").Content)
}

func TestReadArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Big News</title></head><body><article><p>Bitcoin rallies.</p></article></body></html>`))
	}))
	defer srv.Close()

	q := schedule.NewQueues()
	r := NewPlannerRegistry(Deps{Queues: q, Articles: research.NewArticleReader(time.Second, 0, nil)})

	res := call(t, r, "read_article", `{"url":"`+srv.URL+`"}`)
	require.Nil(t, res.Error)
	assert.Contains(t, res.Content, "# Big News")
	assert.Contains(t, res.Content, "Bitcoin rallies.")

	res = call(t, r, "read_article", `{"url":"ftp://x"}`)
	require.NotNil(t, res.Error)
	assert.Equal(t, "invalid_url", res.Error.Code)
}
