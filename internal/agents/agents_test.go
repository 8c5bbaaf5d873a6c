package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cryptopilot/internal/llm"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tools"
)

func TestKeywordClassifier(t *testing.T) {
	c, err := NewKeywordClassifier(DefaultKeywords, DefaultExcluded)
	require.NoError(t, err)

	tests := []struct {
		text string
		want bool
	}{
		{"Bitcoin just broke 70k", true},
		{"$ETH looks strong today", true},
		{"#Solana season?", true},
		{"love the #crypto community", true},
		{"something about methods and ethics", false},
		{"Free giveaway! DM me for BTC", false},
		{"what a nice day", false},
		{"Layer 2 fees are tiny now", true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Match(tt.text))
			got, err := c.IsRelevant(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeywordClassifier_EmptyInclude(t *testing.T) {
	c, err := NewKeywordClassifier(nil, []string{"spam"})
	require.NoError(t, err)
	assert.True(t, c.Match("anything goes"))
	assert.False(t, c.Match("this is SPAM"))
}

func newAgent(provider llm.Provider, prefilter *KeywordClassifier) *LLMAgent {
	return NewLLMAgent(provider, Config{Handle: "cryptopilot"}, prefilter, logger.Nop())
}

func TestLLMAgent_Generate(t *testing.T) {
	provider := llm.NewFixedProvider(`"BTC dominance keeps climbing."`)
	a := newAgent(provider, nil)
	ctx := context.Background()

	text, err := a.GeneratePost(ctx, PostBrief{CurrentEvents: "dominance at 55%", Content: "alt season is not here"})
	require.NoError(t, err)
	assert.Equal(t, "BTC dominance keeps climbing.", text)

	_, err = a.GenerateComment(ctx, CommentBrief{TweetText: "gm", Author: "rival"})
	require.NoError(t, err)
	_, err = a.GenerateReply(ctx, ReplyBrief{MentionText: "wen moon?", Author: "fan", OwnThread: true})
	require.NoError(t, err)

	reqs := provider.Requests()
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[0].Messages[1].Content, "dominance at 55%")
	assert.Contains(t, reqs[1].Messages[1].Content, "@rival")
	assert.Contains(t, reqs[2].Messages[0].Content, "our own tweet")
	assert.False(t, reqs[0].JSONMode)
}

func TestLLMAgent_EmptyOutput(t *testing.T) {
	a := newAgent(llm.NewFixedProvider("   "), nil)
	_, err := a.GeneratePost(context.Background(), PostBrief{Content: "x"})
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestLLMAgent_IsRelevant(t *testing.T) {
	prefilter, err := NewKeywordClassifier(DefaultKeywords, DefaultExcluded)
	require.NoError(t, err)

	tests := []struct {
		name      string
		output    string
		text      string
		want      bool
		wantErr   bool
		wantCalls int
	}{
		{"prefilter rejects", `{"relevant": true}`, "nice weather", false, false, 0},
		{"model says yes", "```json\n{\"relevant\": true}\n```", "bitcoin etf inflows", true, false, 1},
		{"model says no", `{"relevant": false}`, "bitcoin giveaway scam", false, false, 1},
		{"missing field", `{"ok": 1}`, "bitcoin", false, true, 1},
		{"not json", "yes", "bitcoin", false, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := llm.NewFixedProvider(tt.output)
			got, err := newAgent(provider, prefilter).IsRelevant(context.Background(), tt.text)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCalls, provider.GetCallCount())
			if tt.wantCalls > 0 {
				assert.True(t, provider.Requests()[0].JSONMode)
			}
		})
	}
}

func TestLLMAgent_DecideMention(t *testing.T) {
	tests := []struct {
		output  string
		reply   bool
		wantErr bool
	}{
		{`{"decision":"reply","reason":"question"}`, true, false},
		{`{"decision":"IGNORE","reason":"spam"}`, false, false},
		{`{"decision":"maybe"}`, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			d, err := newAgent(llm.NewFixedProvider(tt.output), nil).DecideMention(context.Background(),
				MentionContext{MentionText: "@cryptopilot what about ETH?", Author: "fan"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.reply, d.Reply)
		})
	}
}

func TestLLMAgent_ShapeResponse(t *testing.T) {
	m := MentionContext{MentionText: "draw me a bull", Author: "fan"}

	shape, err := newAgent(llm.NewFixedProvider(`{"type":"image","prompt":""}`), nil).ShapeResponse(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, ShapeImage, shape.Type)
	assert.Equal(t, "draw me a bull", shape.Prompt)

	shape, err = newAgent(llm.NewFixedProvider(`{"type":"no_reply"}`), nil).ShapeResponse(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, ShapeNoReply, shape.Type)

	_, err = newAgent(llm.NewFixedProvider(`{"type":"gif"}`), nil).ShapeResponse(context.Background(), m)
	assert.Error(t, err)
}

func newPlannerFixture(provider llm.Provider) (*Planner, *schedule.Queues) {
	now := func() time.Time { return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC) }
	q := schedule.NewQueues(schedule.WithClock(now))
	registry := tools.NewPlannerRegistry(tools.Deps{Queues: q, Now: now})
	return NewPlanner(provider, registry, PlannerConfig{}, logger.Nop()), q
}

func TestPlanner_SchedulesThroughTools(t *testing.T) {
	provider := llm.NewScriptProvider(
		&llm.ChatResponse{ToolCalls: []llm.ToolCall{
			{ID: "1", Name: "current_time", Arguments: "{}"},
			{ID: "2", Name: "schedule_post", Arguments: `{"time":"2025-03-01T15:00:00Z","current_events":"ETF flows","content":"record inflows"}`},
		}},
		&llm.ChatResponse{ToolCalls: []llm.ToolCall{
			{ID: "3", Name: "schedule_poll", Arguments: `{"question":"Top coin?","options":["BTC"]}`},
			{ID: "4", Name: "schedule_poll", Arguments: `{"question":"Top coin?","options":["BTC","ETH"]}`},
		}},
		&llm.ChatResponse{Content: "Scheduled one post and one poll."},
	)
	p, q := newPlannerFixture(provider)
	require.True(t, p.CanPlan())

	res, err := p.Plan(context.Background(), PlanRequest{Posts: 1, Polls: 1})
	require.NoError(t, err)
	assert.Equal(t, "Scheduled one post and one poll.", res.Summary)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 4, res.ToolCalls)
	assert.Equal(t, 1, res.ToolErrors)

	assert.Len(t, q.Posts.Pending(), 1)
	assert.Len(t, q.Polls.Pending(), 1)

	reqs := provider.Requests()
	require.Len(t, reqs, 3)
	assert.NotEmpty(t, reqs[0].Tools)

	// second request carries the assistant tool calls and both tool results
	second := reqs[1].Messages
	require.Len(t, second, 5)
	assert.Equal(t, llm.RoleAssistant, second[2].Role)
	assert.Len(t, second[2].ToolCalls, 2)
	assert.Equal(t, llm.RoleTool, second[3].Role)
	assert.Equal(t, "1", second[3].ToolCallID)
	assert.Contains(t, second[3].Content, "2025-03-01T09:00:00Z")

	third := reqs[2].Messages
	assert.Contains(t, third[len(third)-2].Content, "invalid_poll")
}

func TestPlanner_IterationLimit(t *testing.T) {
	provider := llm.NewScriptProvider(&llm.ChatResponse{ToolCalls: []llm.ToolCall{{ID: "x", Name: "list_schedule"}}})
	p, _ := newPlannerFixture(provider)
	p.cfg.MaxIterations = 3

	res, err := p.Plan(context.Background(), PlanRequest{Posts: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 3, provider.GetCallCount())
	assert.Contains(t, res.Summary, "stopped after 3")
}

func TestPlanner_ProviderError(t *testing.T) {
	provider := llm.NewMockProvider(llm.MockConfig{Mode: llm.MockModeError, ToolCalling: true})
	p, _ := newPlannerFixture(provider)
	_, err := p.Plan(context.Background(), PlanRequest{})
	assert.Error(t, err)
}

func TestPlanner_NoToolCalling(t *testing.T) {
	p, _ := newPlannerFixture(llm.NewFixedProvider("x"))
	assert.False(t, p.CanPlan())
	_, err := p.Plan(context.Background(), PlanRequest{})
	assert.Error(t, err)
}

func TestPlanner_Cancelled(t *testing.T) {
	p, _ := newPlannerFixture(llm.NewScriptProvider(&llm.ChatResponse{Content: "done"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Plan(ctx, PlanRequest{})
	assert.True(t, errors.Is(err, context.Canceled))
}
