package app

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/app/builders"
	"github.com/aatumaykin/cryptopilot/internal/collect"
	"github.com/aatumaykin/cryptopilot/internal/config"
	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/cycle"
	"github.com/aatumaykin/cryptopilot/internal/handlers"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/metrics"
	"github.com/aatumaykin/cryptopilot/internal/pidfile"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
	"github.com/aatumaykin/cryptopilot/internal/version"
)

// cycleOrder is the registration order, which is also the order of the
// run-on-start executions.
var cycleOrder = []string{
	constants.CycleDailyPipeline,
	constants.CycleMain,
	constants.CycleMentions,
	constants.CycleCommentReplier,
	constants.CyclePolls,
	constants.CycleDailyReset,
}

// Initialize initializes all application components.
// It restores the saved state, builds the collaborators missing from the
// options, the handlers, collectors and planner, and registers the cycles.
// Nothing runs until Start.
func (a *App) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("application already initialized")
	}

	// 1. Create application context
	a.ctx, a.cancel = context.WithCancel(ctx)
	clock := func() time.Time { return a.now().UTC() }
	cfg := a.config

	fail := func(err error) error {
		a.closeStore()
		a.releasePID()
		a.cancel()
		return err
	}

	if err := pidfile.Acquire(a.stateDir()); err != nil {
		a.cancel()
		return err
	}

	// 2. Queues and tracker
	a.queues = schedule.NewQueues(
		schedule.WithClock(clock),
		schedule.WithCandidateMaxAge(hours(cfg.Handlers.CandidateMaxAgeHours)),
		schedule.WithLogger(a.logger.Component("schedule")),
	)
	a.tracker = tracker.New(cfg.Agent.DefaultCommentLimit, a.logger)

	// 3. Restore state, import the seed on a fresh start
	if a.store == nil {
		st, err := builders.NewStoreBuilder(cfg, a.logger).Build()
		if err != nil {
			return fail(err)
		}
		a.store = st
	}
	snap, err := LoadState(a.ctx, a.store, a.queues, a.tracker, a.logger)
	if err != nil {
		return fail(err)
	}
	if snap == nil && cfg.State.SeedFile != "" {
		posts, polls, err := ImportSeed(a.queues, cfg.State.SeedFile)
		if err != nil {
			return fail(fmt.Errorf("failed to import seed: %w", err))
		}
		a.logger.Info("seed imported",
			logger.Field{Key: "file", Value: cfg.State.SeedFile},
			logger.Field{Key: "posts", Value: posts},
			logger.Field{Key: "polls", Value: polls})
	}

	// 4. External collaborators
	if a.platform == nil {
		a.platform = builders.NewPlatformBuilder(cfg, a.logger).Build()
	}
	if a.provider == nil {
		provider, err := builders.NewLLMBuilder(cfg, a.logger).Build()
		if err != nil {
			return fail(err)
		}
		a.provider = provider
	}
	agentBuilder := builders.NewAgentBuilder(cfg, a.logger, a.provider)
	agent, err := agentBuilder.BuildAgent()
	if err != nil {
		return fail(err)
	}
	producer := builders.NewPlatformBuilder(cfg, a.logger).BuildMedia(a.platform)

	toolsBuilder := builders.NewToolsBuilder(cfg, a.logger, a.queues, clock)
	market, articles := toolsBuilder.BuildResearch()
	if a.market != nil {
		market = a.market
	}
	a.planner = agentBuilder.BuildPlanner(toolsBuilder.BuildRegistry(market, articles))

	if a.notifier == nil {
		notifier, err := builders.NewTelegramBuilder(cfg, a.logger).Build()
		if err != nil {
			return fail(err)
		}
		a.notifier = notifier
	}

	// 5. Metrics
	var actionObserver handlers.Observer
	var cycleObserver cycle.Observer
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(cfg.Metrics.Namespace)
		a.metrics.WatchState(cfg.Metrics.Namespace, a.queues, a.tracker)
		a.metricsServer = metrics.NewServer(cfg.Metrics.Listen, a.metrics, a.logger)
		actionObserver = a.metrics
		cycleObserver = a.metrics
	}

	// 6. Handlers
	deps := handlers.Deps{
		Queues:    a.queues,
		Tracker:   a.tracker,
		Platform:  a.platform,
		Writer:    agent,
		Relevance: agent,
		Decider:   agent,
		Media:     producer,
		Quota:     handlers.NewQuota(cfg.Handlers.DailyLimits()),
		Observer:  actionObserver,
		Logger:    a.logger,
		Now:       clock,
	}
	a.handlers = handlers.NewSet(deps, handlerConfig(cfg))
	if snap != nil && !snap.MentionCursor.IsZero() {
		a.handlers.Mentions.SetLastCheck(snap.MentionCursor)
	}

	// 7. Collectors
	a.retweets = collect.NewRetweetCollector(collect.RetweetConfig{
		Influencers: accounts(cfg.Agent.Influencers),
		MinLikes:    cfg.Agent.CandidateMinLikes,
		MaxAge:      hours(cfg.Handlers.CandidateMaxAgeHours),
		Lag:         seconds(cfg.Handlers.TransferRetweetLagSeconds),
	}, a.queues.Retweets, a.platform, clock, a.logger)
	competitors := make([]collect.Account, 0, len(cfg.Agent.Competitors))
	for _, c := range cfg.Agent.Competitors {
		competitors = append(competitors, collect.Account{Username: c.Username, Link: c.Link})
	}
	a.competitors = collect.NewCompetitorCollector(collect.CompetitorConfig{
		Competitors: competitors,
	}, a.queues, a.platform, clock, a.logger)
	a.transfer = collect.NewCommentTransfer(a.queues, clock, a.logger)

	// 8. Cycles
	opts := []cycle.Option{
		cycle.WithNotifier(a.notifier),
		cycle.WithAfterRun(a.saveState),
		cycle.WithClock(a.now),
	}
	if cycleObserver != nil {
		opts = append(opts, cycle.WithObserver(cycleObserver))
	}
	scheduler, err := builders.NewCronBuilder(cfg, a.logger).Build(a.cycleBodies(), cycleOrder, opts...)
	if err != nil {
		return fail(err)
	}
	a.scheduler = scheduler

	a.started = true
	a.logger.Info("Application initialized",
		logger.Field{Key: "handle", Value: cfg.Agent.Handle},
		logger.Field{Key: "cycles", Value: len(scheduler.Cycles())})
	return nil
}

// Start launches the metrics endpoint and the cycle scheduler and announces
// the start to the operator.
func (a *App) Start() error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.started {
		return fmt.Errorf("application is not initialized")
	}
	if a.metricsServer != nil {
		a.metricsServer.Start()
	}
	if err := a.scheduler.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start cycle scheduler: %w", err)
	}
	if err := a.notifier.Send(a.ctx, version.FormatStartupMessage(collect.CleanHandle(a.config.Agent.Handle))); err != nil {
		a.logger.Warn("failed to send startup notification", logger.Field{Key: "error", Value: err.Error()})
	}
	return nil
}

func handlerConfig(cfg *config.Config) handlers.Config {
	h := cfg.Handlers
	return handlers.Config{
		Handle:              collect.CleanHandle(cfg.Agent.Handle),
		Throttle:            seconds(h.ThrottleSeconds),
		RetweetBatchSize:    h.RetweetBatchSize,
		EngageBatchSize:     h.EngageBatchSize,
		CommentFreshness:    hours(h.CommentFreshnessHours),
		ReplierLookback:     hours(h.ReplierLookbackHours),
		TweetsPerAccount:    h.TweetsPerAccount,
		CacheTTL:            time.Duration(h.CacheTTLMinutes) * time.Minute,
		MinCommentLikes:     h.MinCommentLikes,
		MinCommentChars:     h.MinCommentChars,
		MaxRepliesPerTweet:  h.MaxRepliesPerTweet,
		MaxRepliesPerBatch:  h.MaxRepliesPerBatch,
		TweetLikesThreshold: h.TweetLikesThreshold,
		MaxDirectReplies:    h.MaxDirectReplies,
		MentionLookback:     time.Duration(h.MentionLookbackMinutes) * time.Minute,
		MaxMentionsPerRun:   h.MaxMentionsPerRun,
		HistorySize:         h.HistorySize,
		Targets:             cfg.Agent.Targets,
	}
}

func accounts(usernames []string) []collect.Account {
	out := make([]collect.Account, 0, len(usernames))
	for _, u := range usernames {
		out = append(out, collect.Account{Username: u})
	}
	return out
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func hours(n int) time.Duration { return time.Duration(n) * time.Hour }
