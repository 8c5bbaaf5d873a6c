package schedule

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aatumaykin/cryptopilot/internal/logger"
)

// Clock returns the current time. Managers compare against its UTC value.
type Clock func() time.Time

// Option configures a manager.
type Option func(*options)

type options struct {
	clock  Clock
	maxAge time.Duration
	logger *logger.Logger
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithCandidateMaxAge sets how long retweet candidates stay eligible.
func WithCandidateMaxAge(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxAge = d
		}
	}
}

// WithLogger sets the logger for entries the managers drop.
func WithLogger(log *logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.logger = log
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now, logger: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type record interface {
	meta() *ActionMeta
	normalizeTimes()
}

// queue is the pending/completed split shared by every manager.
type queue[T record] struct {
	mu        sync.RWMutex
	pending   []T
	completed []T
	clock     Clock
}

func newQueue[T record](clock Clock) *queue[T] {
	return &queue[T]{clock: clock}
}

func (q *queue[T]) now() time.Time {
	return q.clock().UTC()
}

func byScheduledTime[T record](a, b T) int {
	return a.meta().ScheduledTime.Compare(b.meta().ScheduledTime)
}

// prepare normalizes times and assigns an ID.
func prepare[T record](item T) {
	item.normalizeTimes()
	m := item.meta()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
}

func (q *queue[T]) add(item T) T {
	prepare(item)
	item.meta().Completed = false

	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, item)
	slices.SortStableFunc(q.pending, byScheduledTime[T])
	return item
}

func (q *queue[T]) pendingItems() []T {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return slices.Clone(q.pending)
}

func (q *queue[T]) completedItems() []T {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return slices.Clone(q.completed)
}

// all returns pending and completed merged by time. Pending items come first on ties.
func (q *queue[T]) all() []T {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]T, 0, len(q.pending)+len(q.completed))
	out = append(out, q.pending...)
	out = append(out, q.completed...)
	slices.SortStableFunc(out, byScheduledTime[T])
	return out
}

func (q *queue[T]) filterPending(keep func(time.Time, time.Time) bool) []T {
	now := q.now()

	q.mu.RLock()
	defer q.mu.RUnlock()

	var out []T
	for _, item := range q.pending {
		if keep(item.meta().ScheduledTime, now) {
			out = append(out, item)
		}
	}
	return out
}

func dueAt(scheduled, now time.Time) bool { return !scheduled.After(now) }
func futureAt(scheduled, now time.Time) bool { return scheduled.After(now) }

func (q *queue[T]) overdue() []T { return q.filterPending(dueAt) }
func (q *queue[T]) future() []T { return q.filterPending(futureAt) }

func (q *queue[T]) next() (T, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var zero T
	if len(q.pending) == 0 {
		return zero, false
	}
	return q.pending[0], true
}

// complete moves the pending item with the same ID to completed.
// It reports false when the item is not pending.
func (q *queue[T]) complete(id string) bool {
	if id == "" {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	idx := slices.IndexFunc(q.pending, func(item T) bool { return item.meta().ID == id })
	if idx < 0 {
		return false
	}
	item := q.pending[idx]
	q.pending = slices.Delete(q.pending, idx, idx+1)
	item.meta().Completed = true
	q.completed = append(q.completed, item)
	return true
}

func (q *queue[T]) anyMatch(match func(T) bool) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return slices.ContainsFunc(q.pending, match) || slices.ContainsFunc(q.completed, match)
}

func (q *queue[T]) counts() (pending, completed int) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.pending), len(q.completed)
}

// restore replaces both lists, e.g. after loading persisted state.
func (q *queue[T]) restore(pending, completed []T) {
	for _, item := range pending {
		prepare(item)
		item.meta().Completed = false
	}
	for _, item := range completed {
		prepare(item)
		item.meta().Completed = true
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = slices.Clone(pending)
	slices.SortStableFunc(q.pending, byScheduledTime[T])
	q.completed = slices.Clone(completed)
}
