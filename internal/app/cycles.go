package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aatumaykin/cryptopilot/internal/agents"
	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/cycle"
	"github.com/aatumaykin/cryptopilot/internal/handlers"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/notify"
)

func (a *App) cycleBodies() map[string]cycle.Func {
	return map[string]cycle.Func{
		constants.CycleMain:           a.runMain,
		constants.CycleMentions:       a.runMentions,
		constants.CycleCommentReplier: a.runCommentReplier,
		constants.CyclePolls:          a.runPolls,
		constants.CycleDailyPipeline:  a.runDailyPipeline,
		constants.CycleDailyReset:     a.runDailyReset,
	}
}

func statsField(key string, s handlers.BatchStats) logger.Field {
	return logger.Field{Key: key, Value: fmt.Sprintf("total=%d ok=%d skip=%d fail=%d dup=%d",
		s.Total, s.Succeeded, s.Skipped, s.Failed, s.Duplicates)}
}

// runMain posts due content, then retweets, then engages.
func (a *App) runMain(ctx context.Context) error {
	posts := a.handlers.Posts.ProcessDue(ctx)
	retweets := a.handlers.Retweets.ProcessPending(ctx)
	comments := a.handlers.Engager.ProcessDue(ctx)

	a.logger.InfoCtx(ctx, "main cycle finished",
		statsField("posts", posts),
		statsField("retweets", retweets),
		statsField("comments", comments))
	return ctx.Err()
}

func (a *App) runMentions(ctx context.Context) error {
	stats := a.handlers.Mentions.ProcessMentions(ctx)
	a.logger.InfoCtx(ctx, "mentions processed",
		statsField("mentions", stats.BatchStats),
		logger.Field{Key: "attempted", Value: stats.Attempted})
	return ctx.Err()
}

func (a *App) runCommentReplier(ctx context.Context) error {
	comments := a.handlers.Replier.ProcessComments(ctx)
	tweets := a.handlers.Replier.ProcessTweets(ctx)
	a.logger.InfoCtx(ctx, "comment replier finished",
		statsField("comments", comments),
		statsField("tweets", tweets))
	return ctx.Err()
}

func (a *App) runPolls(ctx context.Context) error {
	stats := a.handlers.Polls.PostDuePoll(ctx)
	a.logger.InfoCtx(ctx, "poll cycle finished", statsField("polls", stats))
	return ctx.Err()
}

// runDailyPipeline refills the candidate pools and plans the day. Without
// a tool-calling model, or when planning fails, the strongest candidates
// and competitor tweets are scheduled directly; posts and polls are then
// left to the seed and to earlier plans.
func (a *App) runDailyPipeline(ctx context.Context) error {
	var errs []error
	if _, err := a.retweets.Collect(ctx); err != nil {
		errs = append(errs, fmt.Errorf("collect retweet candidates: %w", err))
	}
	if _, err := a.competitors.Collect(ctx); err != nil {
		errs = append(errs, fmt.Errorf("collect competitor tweets: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	daily := a.config.Agent.Daily
	if a.planner.CanPlan() {
		res, err := a.planner.Plan(ctx, agents.PlanRequest{
			Posts:      daily.Posts,
			MediaPosts: daily.MediaPosts,
			Polls:      daily.Polls,
			Retweets:   daily.Retweets,
			Comments:   daily.Comments,
			Notes:      daily.Notes,
		})
		if err == nil {
			a.logger.InfoCtx(ctx, "daily plan finished",
				logger.Field{Key: "iterations", Value: res.Iterations},
				logger.Field{Key: "tool_calls", Value: res.ToolCalls},
				logger.Field{Key: "tool_errors", Value: res.ToolErrors},
				logger.Field{Key: "summary", Value: res.Summary})
			return errors.Join(errs...)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.logger.ErrorCtx(ctx, "planner failed, falling back to deterministic selection", err)
	}

	retweets := a.retweets.ScheduleTop(daily.Retweets)
	comments := a.transfer.TransferTop(daily.Comments)
	a.logger.InfoCtx(ctx, "daily selection scheduled",
		logger.Field{Key: "retweets", Value: len(retweets)},
		logger.Field{Key: "comments", Value: len(comments)})
	return errors.Join(errs...)
}

// runDailyReset clears the per-day histories and quotas and reports the
// day that ended.
func (a *App) runDailyReset(ctx context.Context) error {
	summary := notify.Summary{
		Date:          a.now().UTC(),
		Actions:       a.handlers.Quota.Used(),
		Queues:        a.queues.Stats(),
		TrackedTweets: a.tracker.TweetCount(),
	}
	a.handlers.ResetDaily()
	a.logger.InfoCtx(ctx, "daily counters reset")

	if !a.config.Notify.Telegram.DailySummary {
		return nil
	}
	if err := a.notifier.DailySummary(ctx, summary); err != nil {
		return fmt.Errorf("failed to send daily summary: %w", err)
	}
	return nil
}
