// Package tracker records every tweet the agent produced and enforces the
// per-conversation comment limit.
package tracker

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/logger"
)

// ErrLimitExceeded is returned by AddComment when the recorded count went
// past the limit, which means a caller skipped CanComment.
var ErrLimitExceeded = errors.New("comment limit exceeded")

// CommentStat describes one tracked parent.
type CommentStat struct {
	Count     int `json:"count"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// State is the serializable form of a TweetTracker.
type State struct {
	OurTweetIDs   []string       `json:"our_tweet_ids"`
	CommentCounts map[string]int `json:"comment_counts"`
	CommentLimits map[string]int `json:"comment_limits"`
	DefaultLimit  int            `json:"default_limit"`
}

// TweetTracker is safe for concurrent use.
type TweetTracker struct {
	mu            sync.RWMutex
	ourTweetIDs   map[string]struct{}
	commentCounts map[string]int
	commentLimits map[string]int
	defaultLimit  int
	onViolation   func(invariant string)
	logger        *logger.Logger
}

// New creates a tracker. A non-positive defaultLimit falls back to 5.
func New(defaultLimit int, log *logger.Logger) *TweetTracker {
	if defaultLimit <= 0 {
		defaultLimit = constants.DefaultCommentLimit
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TweetTracker{
		ourTweetIDs:   make(map[string]struct{}),
		commentCounts: make(map[string]int),
		commentLimits: make(map[string]int),
		defaultLimit:  defaultLimit,
		logger:        log.Component("tracker"),
	}
}

// DefaultLimit returns the limit used for parents without an override.
func (t *TweetTracker) DefaultLimit() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.defaultLimit
}

// track must be called with mu held.
func (t *TweetTracker) track(id string) {
	if id == "" {
		return
	}
	t.ourTweetIDs[id] = struct{}{}
	if _, ok := t.commentCounts[id]; !ok {
		t.commentCounts[id] = 0
	}
}

func (t *TweetTracker) add(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.track(id)
}

// AddTweet marks id as produced by us. Repeated calls are harmless.
func (t *TweetTracker) AddTweet(id string) { t.add(id) }

func (t *TweetTracker) AddPost(id string) { t.add(id) }

func (t *TweetTracker) AddReply(id string) { t.add(id) }

func (t *TweetTracker) AddRetweet(id string) { t.add(id) }

func (t *TweetTracker) AddPoll(id string) { t.add(id) }

// AddComment records commentID as ours and counts it against parentID.
// It must be called once per comment the platform confirmed.
func (t *TweetTracker) AddComment(commentID, parentID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.track(commentID)
	t.commentCounts[parentID]++

	count, limit := t.commentCounts[parentID], t.limitLocked(parentID)
	if count > limit {
		t.logger.Error("comment limit invariant violated", ErrLimitExceeded,
			logger.Field{Key: "invariant", Value: "comment_limit"},
			logger.Field{Key: "parent_id", Value: parentID},
			logger.Field{Key: "count", Value: count},
			logger.Field{Key: "limit", Value: limit})
		if t.onViolation != nil {
			t.onViolation("comment_limit")
		}
		return fmt.Errorf("%w: parent %s has %d comments, limit %d", ErrLimitExceeded, parentID, count, limit)
	}
	return nil
}

// OnViolation registers fn to be called when an invariant breaks, e.g. to
// count violations in metrics.
func (t *TweetTracker) OnViolation(fn func(invariant string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onViolation = fn
}

// IsOurTweet reports whether id was produced by this agent.
func (t *TweetTracker) IsOurTweet(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ourTweetIDs[id]
	return ok
}

func (t *TweetTracker) limitLocked(parentID string) int {
	if limit, ok := t.commentLimits[parentID]; ok {
		return limit
	}
	return t.defaultLimit
}

// CanComment reports whether another comment fits under parentID's limit.
func (t *TweetTracker) CanComment(parentID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.commentCounts[parentID] < t.limitLocked(parentID)
}

// SetCommentLimit overrides the limit for one parent.
func (t *TweetTracker) SetCommentLimit(parentID string, limit int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commentLimits[parentID] = limit
	if _, ok := t.commentCounts[parentID]; !ok {
		t.commentCounts[parentID] = 0
	}
}

// CommentCount returns how many comments we made under parentID.
func (t *TweetTracker) CommentCount(parentID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.commentCounts[parentID]
}

// TweetCount returns the number of tracked IDs.
func (t *TweetTracker) TweetCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ourTweetIDs)
}

// CommentStats returns a snapshot for every tracked parent.
func (t *TweetTracker) CommentStats() map[string]CommentStat {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := make(map[string]CommentStat, len(t.commentCounts))
	for id, count := range t.commentCounts {
		limit := t.limitLocked(id)
		stats[id] = CommentStat{Count: count, Limit: limit, Remaining: max(limit-count, 0)}
	}
	return stats
}

// Snapshot returns a copy of the tracker state, IDs sorted.
func (t *TweetTracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.ourTweetIDs))
	for id := range t.ourTweetIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	counts := make(map[string]int, len(t.commentCounts))
	for k, v := range t.commentCounts {
		counts[k] = v
	}
	limits := make(map[string]int, len(t.commentLimits))
	for k, v := range t.commentLimits {
		limits[k] = v
	}
	return State{OurTweetIDs: ids, CommentCounts: counts, CommentLimits: limits, DefaultLimit: t.defaultLimit}
}

// Restore replaces the tracker contents with s.
func (t *TweetTracker) Restore(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ourTweetIDs = make(map[string]struct{}, len(s.OurTweetIDs))
	for _, id := range s.OurTweetIDs {
		t.ourTweetIDs[id] = struct{}{}
	}
	t.commentCounts = make(map[string]int, len(s.CommentCounts))
	for k, v := range s.CommentCounts {
		t.commentCounts[k] = v
	}
	t.commentLimits = make(map[string]int, len(s.CommentLimits))
	for k, v := range s.CommentLimits {
		t.commentLimits[k] = v
	}
	if s.DefaultLimit > 0 {
		t.defaultLimit = s.DefaultLimit
	}
}
