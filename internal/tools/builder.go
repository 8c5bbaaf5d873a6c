package tools

import (
	"time"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/research"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
)

// Deps are the collaborators of the planner tool set. Market and Articles
// are optional; their tools are omitted when nil.
type Deps struct {
	Queues   *schedule.Queues
	Market   research.MarketData
	Articles *research.ArticleReader
	Now      func() time.Time
	Logger   *logger.Logger
}

// NewPlannerRegistry registers every tool the daily planner may call.
func NewPlannerRegistry(deps Deps) *Registry {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("tools")

	q := deps.Queues
	list := []Tool{
		NewCurrentTimeTool(now),
		NewSchedulePostTool(q.Posts, now, log),
		NewScheduleMediaPostTool(q.Posts, now, log),
		NewSchedulePollTool(q.Polls, now, log),
		NewListScheduleTool(q),
		NewListCandidatesTool(q),
		NewTransferRetweetTool(q.Retweets, now, log),
		NewTransferCommentTool(q, now, log),
	}
	if deps.Market != nil {
		list = append(list, NewMarketPriceTool(deps.Market, log), NewMarketTrendingTool(deps.Market, log))
	}
	if deps.Articles != nil {
		list = append(list, NewReadArticleTool(deps.Articles))
	}

	r := NewRegistry()
	for _, tool := range list {
		_ = r.Register(tool)
	}
	return r
}
