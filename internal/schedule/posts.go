package schedule

// ScheduleManager owns planned posts.
type ScheduleManager struct {
	q *queue[*Schedule]
}

// NewScheduleManager creates an empty post queue.
func NewScheduleManager(opts ...Option) *ScheduleManager {
	o := buildOptions(opts)
	return &ScheduleManager{q: newQueue[*Schedule](o.clock)}
}

// AddSchedule inserts s into the pending list and returns it.
func (m *ScheduleManager) AddSchedule(s *Schedule) *Schedule {
	if s == nil {
		return nil
	}
	return m.q.add(s)
}

// Pending returns pending posts in time order.
func (m *ScheduleManager) Pending() []*Schedule { return m.q.pendingItems() }

// Completed returns posts in completion order.
func (m *ScheduleManager) Completed() []*Schedule { return m.q.completedItems() }

// All returns pending and completed posts sorted by time.
func (m *ScheduleManager) All() []*Schedule { return m.q.all() }

// OverdueEvents returns pending posts scheduled at or before now.
func (m *ScheduleManager) OverdueEvents() []*Schedule { return m.q.overdue() }

// FutureEvents returns pending posts scheduled after now.
func (m *ScheduleManager) FutureEvents() []*Schedule { return m.q.future() }

// NextEvent returns the earliest pending post or nil.
func (m *ScheduleManager) NextEvent() *Schedule {
	s, _ := m.q.next()
	return s
}

// RemoveScheduledPost moves s to completed. It is a no-op returning false
// when s is not pending.
func (m *ScheduleManager) RemoveScheduledPost(s *Schedule) bool {
	if s == nil {
		return false
	}
	return m.q.complete(s.ID)
}

// Counts returns the pending and completed sizes.
func (m *ScheduleManager) Counts() (pending, completed int) { return m.q.counts() }

// Restore replaces the queue contents with persisted records.
func (m *ScheduleManager) Restore(pending, completed []*Schedule) {
	m.q.restore(pending, completed)
}
