package handlers

// Set bundles the handlers of one agent instance.
type Set struct {
	Posts    *PostHandler
	Polls    *PollHandler
	Retweets *RetweetProcessor
	Engager  *CommentEngager
	Replier  *CommentReplier
	Mentions *MentionResponder
	Quota    *Quota
}

// NewSet builds every handler from shared deps.
func NewSet(deps Deps, cfg Config) *Set {
	return &Set{
		Posts:    NewPostHandler(deps, cfg),
		Polls:    NewPollHandler(deps, cfg),
		Retweets: NewRetweetProcessor(deps, cfg),
		Engager:  NewCommentEngager(deps, cfg),
		Replier:  NewCommentReplier(deps, cfg),
		Mentions: NewMentionResponder(deps, cfg),
		Quota:    deps.Quota,
	}
}

// ResetDaily clears the dedup histories, the replier cache and the daily
// quota counters.
func (s *Set) ResetDaily() {
	s.Retweets.History().Clear()
	s.Engager.History().Clear()
	s.Replier.History().Clear()
	s.Mentions.History().Clear()
	s.Replier.ClearCache()
	s.Quota.Reset()
}
