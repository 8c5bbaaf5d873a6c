package schedule

// CommentManager owns planned replies to other accounts' tweets.
type CommentManager struct {
	q *queue[*CommentSchedule]
}

func NewCommentManager(opts ...Option) *CommentManager {
	o := buildOptions(opts)
	return &CommentManager{q: newQueue[*CommentSchedule](o.clock)}
}

// AddComment inserts c into the pending list.
func (m *CommentManager) AddComment(c *CommentSchedule) *CommentSchedule {
	if c == nil {
		return nil
	}
	return m.q.add(c)
}

func (m *CommentManager) Pending() []*CommentSchedule { return m.q.pendingItems() }
func (m *CommentManager) Completed() []*CommentSchedule { return m.q.completedItems() }
func (m *CommentManager) All() []*CommentSchedule { return m.q.all() }

// OverdueComments returns pending comments scheduled at or before now.
func (m *CommentManager) OverdueComments() []*CommentSchedule { return m.q.overdue() }

// FutureComments returns the comments that are ready to post, i.e. pending
// items scheduled at or before now. Unlike FutureEvents and FuturePolls it
// does not return items scheduled after now; the engager relies on this
// due-items behaviour and the name is kept as is.
func (m *CommentManager) FutureComments() []*CommentSchedule { return m.q.overdue() }

// NextComment returns the earliest pending comment or nil.
func (m *CommentManager) NextComment() *CommentSchedule {
	c, _ := m.q.next()
	return c
}

// MarkCommentCompleted moves c to completed; false when c is not pending.
func (m *CommentManager) MarkCommentCompleted(c *CommentSchedule) bool {
	if c == nil {
		return false
	}
	return m.q.complete(c.ID)
}

func (m *CommentManager) Counts() (pending, completed int) { return m.q.counts() }

func (m *CommentManager) Restore(pending, completed []*CommentSchedule) {
	m.q.restore(pending, completed)
}
