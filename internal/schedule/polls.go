package schedule

// PollScheduleManager owns planned polls.
type PollScheduleManager struct {
	q *queue[*PollSchedule]
}

func NewPollScheduleManager(opts ...Option) *PollScheduleManager {
	o := buildOptions(opts)
	return &PollScheduleManager{q: newQueue[*PollSchedule](o.clock)}
}

// AddPoll inserts p. Options are not validated here; see ValidatePoll.
func (m *PollScheduleManager) AddPoll(p *PollSchedule) *PollSchedule {
	if p == nil {
		return nil
	}
	return m.q.add(p)
}

func (m *PollScheduleManager) Pending() []*PollSchedule { return m.q.pendingItems() }
func (m *PollScheduleManager) Completed() []*PollSchedule { return m.q.completedItems() }
func (m *PollScheduleManager) All() []*PollSchedule { return m.q.all() }
func (m *PollScheduleManager) OverduePolls() []*PollSchedule { return m.q.overdue() }
func (m *PollScheduleManager) FuturePolls() []*PollSchedule { return m.q.future() }

// NextPoll returns the earliest pending poll, due or not.
func (m *PollScheduleManager) NextPoll() *PollSchedule {
	p, _ := m.q.next()
	return p
}

// MarkPollCompleted moves p to completed; false when p is not pending.
func (m *PollScheduleManager) MarkPollCompleted(p *PollSchedule) bool {
	if p == nil {
		return false
	}
	return m.q.complete(p.ID)
}

func (m *PollScheduleManager) Counts() (pending, completed int) { return m.q.counts() }

func (m *PollScheduleManager) Restore(pending, completed []*PollSchedule) {
	m.q.restore(pending, completed)
}
