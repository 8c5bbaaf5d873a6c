package handlers

import (
	"maps"
	"sync"
)

// Quota counts actions per handler per day. A limit of zero or a missing
// entry means unlimited. A nil *Quota allows everything.
type Quota struct {
	mu     sync.Mutex
	limits map[string]int
	used   map[string]int
}

// NewQuota creates a quota with per-handler daily limits.
func NewQuota(limits map[string]int) *Quota {
	return &Quota{limits: maps.Clone(limits), used: make(map[string]int)}
}

// Allow reports whether handler may act once more today.
func (q *Quota) Allow(handler string) bool {
	if q == nil {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	limit := q.limits[handler]
	return limit <= 0 || q.used[handler] < limit
}

// Use counts one action.
func (q *Quota) Use(handler string) {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used[handler]++
}

// Used returns today's counters.
func (q *Quota) Used() map[string]int {
	if q == nil {
		return map[string]int{}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return maps.Clone(q.used)
}

// Reset zeroes the counters; called by the daily reset cycle.
func (q *Quota) Reset() {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used = make(map[string]int)
}
