package schedule

import (
	"slices"
	"sync"
)

// CompetitorCommentManager holds competitor tweets waiting to be transferred
// into the comment schedule. Entries are kept sorted by TimePosted.
type CompetitorCommentManager struct {
	mu    sync.RWMutex
	items []*CompetitorComment
}

func NewCompetitorCommentManager() *CompetitorCommentManager {
	return &CompetitorCommentManager{}
}

// Add stores c. Callers check Find first when duplicates matter.
func (m *CompetitorCommentManager) Add(c *CompetitorComment) {
	if c == nil {
		return
	}
	c.TimePosted = c.TimePosted.UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = append(m.items, c)
	slices.SortStableFunc(m.items, func(a, b *CompetitorComment) int {
		return a.TimePosted.Compare(b.TimePosted)
	})
}

// Remove deletes the entry for tweetID and reports whether one was found.
func (m *CompetitorCommentManager) Remove(tweetID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := slices.IndexFunc(m.items, func(c *CompetitorComment) bool { return c.TweetID == tweetID })
	if idx < 0 {
		return false
	}
	m.items = slices.Delete(m.items, idx, idx+1)
	return true
}

// Find returns the entry for tweetID or nil.
func (m *CompetitorCommentManager) Find(tweetID string) *CompetitorComment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.items {
		if c.TweetID == tweetID {
			return c
		}
	}
	return nil
}

// All returns every entry sorted by TimePosted.
func (m *CompetitorCommentManager) All() []*CompetitorComment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.items)
}

// Top returns up to n entries ranked by engagement, highest first.
func (m *CompetitorCommentManager) Top(n int) []*CompetitorComment {
	ranked := m.All()
	slices.SortStableFunc(ranked, func(a, b *CompetitorComment) int {
		return b.Engagement() - a.Engagement()
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

func (m *CompetitorCommentManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Restore replaces the contents with persisted entries.
func (m *CompetitorCommentManager) Restore(items []*CompetitorComment) {
	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()
	for _, c := range items {
		m.Add(c)
	}
}
