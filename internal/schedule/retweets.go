package schedule

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/logger"
)

// RetweetManager owns scheduled retweets and the candidate pool they are
// promoted from. A tweet ID is accepted at most once across the pool, the
// pending list and the completed list.
type RetweetManager struct {
	q *queue[*RetweetSchedule]

	mu         sync.Mutex
	candidates []*RetweetCandidate
	maxAge     time.Duration
	clock      Clock
	logger     *logger.Logger
}

// NewRetweetManager creates an empty manager. Candidates expire after
// WithCandidateMaxAge (default 24h).
func NewRetweetManager(opts ...Option) *RetweetManager {
	o := buildOptions(opts)
	if o.maxAge <= 0 {
		o.maxAge = constants.DefaultCandidateMaxAge
	}
	return &RetweetManager{
		q:      newQueue[*RetweetSchedule](o.clock),
		maxAge: o.maxAge,
		clock:  o.clock,
		logger: o.logger,
	}
}

func (m *RetweetManager) scheduled(tweetID string) bool {
	return m.q.anyMatch(func(r *RetweetSchedule) bool { return r.TweetID == tweetID })
}

// AddRetweet inserts r unless its tweet is already pending or completed.
func (m *RetweetManager) AddRetweet(r *RetweetSchedule) bool {
	if r == nil || r.TweetID == "" || m.scheduled(r.TweetID) {
		return false
	}
	m.q.add(r)
	return true
}

// AlreadyRetweeted reports whether tweetID has a completed retweet.
func (m *RetweetManager) AlreadyRetweeted(tweetID string) bool {
	return slices.ContainsFunc(m.q.completedItems(), func(r *RetweetSchedule) bool {
		return r.TweetID == tweetID
	})
}

func (m *RetweetManager) Pending() []*RetweetSchedule { return m.q.pendingItems() }
func (m *RetweetManager) Completed() []*RetweetSchedule { return m.q.completedItems() }
func (m *RetweetManager) All() []*RetweetSchedule { return m.q.all() }
func (m *RetweetManager) OverdueRetweets() []*RetweetSchedule { return m.q.overdue() }
func (m *RetweetManager) FutureRetweets() []*RetweetSchedule { return m.q.future() }

func (m *RetweetManager) NextRetweet() *RetweetSchedule {
	r, _ := m.q.next()
	return r
}

// MarkRetweetCompleted moves r to completed; false when r is not pending.
func (m *RetweetManager) MarkRetweetCompleted(r *RetweetSchedule) bool {
	if r == nil {
		return false
	}
	return m.q.complete(r.ID)
}

func (m *RetweetManager) Counts() (pending, completed int) { return m.q.counts() }

// SetMaxAge changes the candidate expiry window.
func (m *RetweetManager) SetMaxAge(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.maxAge = d
	}
}

func (m *RetweetManager) cutoff() time.Time {
	return m.clock().UTC().Add(-m.maxAge)
}

// AddCandidate puts c in the pool. Duplicates by tweet ID and candidates
// already older than the max age are rejected. Every call prunes expired
// candidates and re-ranks the pool by (retweets, likes) descending.
func (m *RetweetManager) AddCandidate(c *RetweetCandidate) bool {
	if c == nil || c.TweetID == "" {
		return false
	}
	c.TimePosted = c.TimePosted.UTC()

	if m.scheduled(c.TweetID) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.ContainsFunc(m.candidates, func(x *RetweetCandidate) bool { return x.TweetID == c.TweetID }) {
		return false
	}
	if c.TimePosted.Before(m.cutoff()) {
		m.pruneLocked()
		return false
	}
	m.candidates = append(m.candidates, c)
	m.pruneLocked()
	return true
}

func (m *RetweetManager) pruneLocked() {
	cutoff := m.cutoff()
	m.candidates = slices.DeleteFunc(m.candidates, func(c *RetweetCandidate) bool {
		return c.TimePosted.Before(cutoff)
	})
	slices.SortStableFunc(m.candidates, func(a, b *RetweetCandidate) int {
		if n := cmp.Compare(b.RetweetCount, a.RetweetCount); n != 0 {
			return n
		}
		return cmp.Compare(b.LikeCount, a.LikeCount)
	})
}

// AllCandidates returns unexpired candidates in ranking order.
func (m *RetweetManager) AllCandidates() []*RetweetCandidate {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.cutoff()
	out := make([]*RetweetCandidate, 0, len(m.candidates))
	for _, c := range m.candidates {
		if !c.TimePosted.Before(cutoff) {
			out = append(out, c)
		}
	}
	return out
}

// ScheduleFromCandidate promotes the unselected candidate tweetID to a
// RetweetSchedule at when. It returns nil when no such candidate exists.
func (m *RetweetManager) ScheduleFromCandidate(tweetID string, when time.Time) *RetweetSchedule {
	m.mu.Lock()
	idx := slices.IndexFunc(m.candidates, func(c *RetweetCandidate) bool {
		return c.TweetID == tweetID && !c.Selected
	})
	if idx < 0 {
		m.mu.Unlock()
		return nil
	}
	c := m.candidates[idx]
	c.Selected = true
	m.candidates = slices.Delete(m.candidates, idx, idx+1)
	m.mu.Unlock()

	r := &RetweetSchedule{
		ActionMeta:   ActionMeta{ScheduledTime: when},
		TimePosted:   c.TimePosted,
		SourceAcc:    c.SourceAcc,
		TweetID:      c.TweetID,
		LikeCount:    c.LikeCount,
		RetweetCount: c.RetweetCount,
	}
	if !m.AddRetweet(r) {
		m.logger.Warn("candidate dropped, tweet already scheduled",
			logger.Field{Key: "tweet_id", Value: tweetID},
			logger.Field{Key: "source", Value: c.SourceAcc})
		return nil
	}
	return r
}

// CandidateCount returns the pool size including expired entries not yet pruned.
func (m *RetweetManager) CandidateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.candidates)
}

// Restore replaces scheduled retweets and the candidate pool.
func (m *RetweetManager) Restore(pending, completed []*RetweetSchedule, candidates []*RetweetCandidate) {
	m.q.restore(pending, completed)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = m.candidates[:0]
	for _, c := range candidates {
		c.TimePosted = c.TimePosted.UTC()
		m.candidates = append(m.candidates, c)
	}
	m.pruneLocked()
}
