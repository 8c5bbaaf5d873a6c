package schedule

// Queues bundles the managers owned by one agent instance.
type Queues struct {
	Posts       *ScheduleManager
	Polls       *PollScheduleManager
	Retweets    *RetweetManager
	Comments    *CommentManager
	Competitors *CompetitorCommentManager
}

// NewQueues creates empty managers sharing the same options.
func NewQueues(opts ...Option) *Queues {
	return &Queues{
		Posts:       NewScheduleManager(opts...),
		Polls:       NewPollScheduleManager(opts...),
		Retweets:    NewRetweetManager(opts...),
		Comments:    NewCommentManager(opts...),
		Competitors: NewCompetitorCommentManager(),
	}
}

// QueueStat is a pending/completed pair.
type QueueStat struct {
	Pending   int
	Completed int
}

// Stats returns sizes per queue name (post, poll, retweet, comment) plus
// the candidate and competitor pools, which only fill Pending.
func (q *Queues) Stats() map[string]QueueStat {
	stats := make(map[string]QueueStat, 6)
	p, c := q.Posts.Counts()
	stats[string(KindPost)] = QueueStat{p, c}
	p, c = q.Polls.Counts()
	stats[string(KindPoll)] = QueueStat{p, c}
	p, c = q.Retweets.Counts()
	stats[string(KindRetweet)] = QueueStat{p, c}
	p, c = q.Comments.Counts()
	stats[string(KindComment)] = QueueStat{p, c}
	stats["retweet_candidate"] = QueueStat{Pending: q.Retweets.CandidateCount()}
	stats["competitor"] = QueueStat{Pending: q.Competitors.Len()}
	return stats
}
