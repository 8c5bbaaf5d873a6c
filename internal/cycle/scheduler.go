// Package cycle runs the agent's periodic cycles on a robfig/cron scheduler.
// All cycle bodies share one mutex, so at most one of them mutates agent
// state at a time; the wait between runs happens outside the lock.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aatumaykin/cryptopilot/internal/logger"
)

var (
	// ErrUnknownCycle is returned by RunNow for an unregistered name.
	ErrUnknownCycle = errors.New("unknown cycle")
	// ErrBusy means a run of the same cycle is still in progress.
	ErrBusy = errors.New("cycle already running")
	// ErrPanic wraps a recovered panic of a cycle body.
	ErrPanic = errors.New("cycle panicked")
)

// Func is a cycle body.
type Func func(ctx context.Context) error

// Cycle describes one periodic job.
type Cycle struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Run        Func
}

// Status is the outcome of one run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusPanic   Status = "panic"
	StatusSkipped Status = "skipped"
)

// Observer receives one call per run, e.g. for metrics.
type Observer interface {
	ObserveCycle(name string, status Status, duration time.Duration)
}

// Notifier is told about failed and panicked runs.
type Notifier interface {
	CycleFailed(ctx context.Context, name string, err error)
}

// AfterRunFunc runs under the shared lock after every executed body,
// whatever its outcome. Used to persist state.
type AfterRunFunc func(ctx context.Context, name string)

// Info is a snapshot of a registered cycle.
type Info struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Next       time.Time
	LastRun    time.Time
	LastStatus Status
	LastError  string
	Runs       int
}

type entry struct {
	cycle   Cycle
	id      cron.EntryID
	running atomic.Bool

	// guarded by Scheduler.infoMu
	lastRun    time.Time
	lastStatus Status
	lastErr    string
	runs       int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithObserver(o Observer) Option { return func(s *Scheduler) { s.observer = o } }

func WithNotifier(n Notifier) Option { return func(s *Scheduler) { s.notifier = n } }

func WithAfterRun(fn AfterRunFunc) Option { return func(s *Scheduler) { s.afterRun = fn } }

// WithClock overrides time.Now for run timestamps and durations.
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

// Scheduler owns the cycles and the lock they share.
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger

	observer Observer
	notifier Notifier
	afterRun AfterRunFunc
	now      func() time.Time

	// lock serializes every cycle body
	lock sync.Mutex

	mu      sync.RWMutex
	entries []*entry
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup

	infoMu sync.Mutex
}

// New creates a scheduler. Cycles are added with Add before or after Start.
func New(log *logger.Logger, opts ...Option) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("cycles")
	s := &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger{log})),
		logger: log,
		now:    time.Now,
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers c as an "@every interval" entry.
func (s *Scheduler) Add(c Cycle) error {
	if c.Name == "" {
		return fmt.Errorf("cycle name is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("cycle %s: interval must be positive", c.Name)
	}
	if c.Run == nil {
		return fmt.Errorf("cycle %s: run func is required", c.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.ContainsFunc(s.entries, func(e *entry) bool { return e.cycle.Name == c.Name }) {
		return fmt.Errorf("cycle %s already registered", c.Name)
	}
	e := &entry{cycle: c}
	id, err := s.cron.AddFunc("@every "+c.Interval.String(), func() {
		_ = s.execute(s.runContext(), e)
	})
	if err != nil {
		return fmt.Errorf("cycle %s: %w", c.Name, err)
	}
	e.id = id
	s.entries = append(s.entries, e)

	s.logger.Info("cycle registered",
		logger.Field{Key: "cycle", Value: c.Name},
		logger.Field{Key: "interval", Value: c.Interval.String()},
		logger.Field{Key: "run_on_start", Value: c.RunOnStart})
	return nil
}

func (s *Scheduler) runContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// Start launches the cron loop and, in registration order, the cycles
// marked RunOnStart. It does not block.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	startup := slices.DeleteFunc(slices.Clone(s.entries), func(e *entry) bool { return !e.cycle.RunOnStart })
	runCtx := s.ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("cycle scheduler started", logger.Field{Key: "cycles", Value: len(s.entries)})

	if len(startup) > 0 {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for _, e := range startup {
				if runCtx.Err() != nil {
					return
				}
				_ = s.execute(runCtx, e)
			}
		}()
	}
	return nil
}

// Stop cancels the run context and waits for in-flight bodies.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler not started")
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("cycle scheduler stopped")
	return nil
}

// RunNow executes the named cycle synchronously and returns its error.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	idx := slices.IndexFunc(s.entries, func(e *entry) bool { return e.cycle.Name == name })
	var e *entry
	if idx >= 0 {
		e = s.entries[idx]
	}
	s.mu.RUnlock()

	if e == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCycle, name)
	}
	return s.execute(ctx, e)
}

// Exclusive runs fn under the lock shared by the cycle bodies.
func (s *Scheduler) Exclusive(fn func()) {
	s.lock.Lock()
	defer s.lock.Unlock()
	fn()
}

// Cycles returns the registered cycles in registration order.
func (s *Scheduler) Cycles() []Info {
	s.mu.RLock()
	entries := slices.Clone(s.entries)
	s.mu.RUnlock()

	s.infoMu.Lock()
	defer s.infoMu.Unlock()
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		out = append(out, Info{
			Name:       e.cycle.Name,
			Interval:   e.cycle.Interval,
			RunOnStart: e.cycle.RunOnStart,
			Next:       s.cron.Entry(e.id).Next,
			LastRun:    e.lastRun,
			LastStatus: e.lastStatus,
			LastError:  e.lastErr,
			Runs:       e.runs,
		})
	}
	return out
}

func (s *Scheduler) execute(ctx context.Context, e *entry) error {
	name := e.cycle.Name
	if !e.running.CompareAndSwap(false, true) {
		s.logger.WarnCtx(ctx, "previous run still in progress, skipping", logger.Field{Key: "cycle", Value: name})
		s.observe(name, StatusSkipped, 0)
		return fmt.Errorf("%w: %s", ErrBusy, name)
	}
	defer e.running.Store(false)

	s.lock.Lock()
	defer s.lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	start := s.now()
	s.logger.DebugCtx(ctx, "cycle started", logger.Field{Key: "cycle", Value: name})
	err := s.safeRun(ctx, e.cycle.Run)
	duration := s.now().Sub(start)

	status := StatusSuccess
	switch {
	case errors.Is(err, ErrPanic):
		status = StatusPanic
	case err != nil:
		status = StatusError
	}

	if status == StatusSuccess {
		s.logger.InfoCtx(ctx, "cycle finished",
			logger.Field{Key: "cycle", Value: name},
			logger.Field{Key: "duration", Value: duration.String()})
	} else {
		s.logger.ErrorCtx(ctx, "cycle failed", err,
			logger.Field{Key: "cycle", Value: name},
			logger.Field{Key: "status", Value: string(status)},
			logger.Field{Key: "duration", Value: duration.String()})
		if s.notifier != nil {
			s.notifier.CycleFailed(ctx, name, err)
		}
	}
	s.observe(name, status, duration)

	s.infoMu.Lock()
	e.lastRun = start
	e.lastStatus = status
	e.lastErr = ""
	if err != nil {
		e.lastErr = err.Error()
	}
	e.runs++
	s.infoMu.Unlock()

	if s.afterRun != nil {
		s.safeAfterRun(ctx, name)
	}
	return err
}

func (s *Scheduler) safeRun(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
		}
	}()
	return fn(ctx)
}

func (s *Scheduler) safeAfterRun(ctx context.Context, name string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorCtx(ctx, "after-run hook panicked", fmt.Errorf("%v", r),
				logger.Field{Key: "cycle", Value: name})
		}
	}()
	s.afterRun(ctx, name)
}

func (s *Scheduler) observe(name string, status Status, d time.Duration) {
	if s.observer != nil {
		s.observer.ObserveCycle(name, status, d)
	}
}

// cronLogger routes robfig/cron's own messages into our logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, err, kvFields(keysAndValues)...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Field{Key: fmt.Sprint(kv[i]), Value: kv[i+1]})
	}
	return fields
}
