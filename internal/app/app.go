// Package app provides the main application structure for CryptoPilot.
// It wires the queues, tweet tracker, handlers, collectors, daily planner,
// state store, notifier and metrics, and drives them from the cycle
// scheduler.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/agents"
	"github.com/aatumaykin/cryptopilot/internal/collect"
	"github.com/aatumaykin/cryptopilot/internal/config"
	"github.com/aatumaykin/cryptopilot/internal/cycle"
	"github.com/aatumaykin/cryptopilot/internal/handlers"
	"github.com/aatumaykin/cryptopilot/internal/llm"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/metrics"
	"github.com/aatumaykin/cryptopilot/internal/notify"
	"github.com/aatumaykin/cryptopilot/internal/platform"
	"github.com/aatumaykin/cryptopilot/internal/research"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/store"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

// App represents the main application structure.
// It holds references to all major components and manages their lifecycle.
type App struct {
	// Configuration and core services
	config *config.Config
	logger *logger.Logger
	now    func() time.Time

	// Agent state
	queues  *schedule.Queues
	tracker *tracker.TweetTracker

	// Collaborators, injectable through options
	platform platform.Client
	provider llm.Provider
	market   research.MarketData
	store    store.Store
	notifier notify.Notifier

	// Actions
	handlers    *handlers.Set
	retweets    *collect.RetweetCollector
	competitors *collect.CompetitorCollector
	transfer    *collect.CommentTransfer
	planner     *agents.Planner

	// Observability
	metrics       *metrics.Metrics
	metricsServer *metrics.Server

	// Periodic cycles
	scheduler *cycle.Scheduler

	// Context management
	ctx    context.Context
	cancel context.CancelFunc

	// Thread-safety
	mu      sync.RWMutex
	started bool
}

// Option overrides a collaborator that Initialize would otherwise build
// from the configuration.
type Option func(*App)

func WithPlatform(c platform.Client) Option { return func(a *App) { a.platform = c } }

func WithProvider(p llm.Provider) Option { return func(a *App) { a.provider = p } }

func WithMarket(m research.MarketData) Option { return func(a *App) { a.market = m } }

func WithStore(s store.Store) Option { return func(a *App) { a.store = s } }

func WithNotifier(n notify.Notifier) Option { return func(a *App) { a.notifier = n } }

// WithClock overrides time.Now for every component.
func WithClock(now func() time.Time) Option { return func(a *App) { a.now = now } }

// New creates a new App instance with the provided configuration and logger.
// Only initializes config and logger fields; other components are initialized
// in the Initialize() method.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) *App {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{
		config: cfg,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until the context is cancelled.
// It performs the following steps:
//  1. Initializes all components via Initialize()
//  2. Starts the metrics endpoint and the cycle scheduler via Start()
//  3. Waits for the context to be cancelled
//  4. Performs graceful shutdown via Shutdown()
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		return err
	}

	if err := a.Start(); err != nil {
		_ = a.Shutdown()
		return err
	}

	a.logger.Info("Application is running")

	<-ctx.Done()

	return a.Shutdown()
}

// RunCycle executes one cycle synchronously, for one-shot CLI runs.
// The state is saved afterwards like after a scheduled run.
func (a *App) RunCycle(ctx context.Context, name string) error {
	return a.scheduler.RunNow(ctx, name)
}

// Queues returns the live queues.
func (a *App) Queues() *schedule.Queues { return a.queues }

// Tracker returns the live tweet tracker.
func (a *App) Tracker() *tracker.TweetTracker { return a.tracker }

// Handlers returns the handler set.
func (a *App) Handlers() *handlers.Set { return a.handlers }

// Scheduler returns the cycle scheduler.
func (a *App) Scheduler() *cycle.Scheduler { return a.scheduler }

// Metrics returns the metrics registry, nil when [metrics] is disabled.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }
