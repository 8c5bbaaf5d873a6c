// Package schedule holds the schedulable action records and the queue
// managers that own them. Every manager keeps a pending list sorted by
// ScheduledTime and a completed list; an item lives in exactly one of them.
package schedule

import (
	"time"
)

// Kind tags a record for persistence.
type Kind string

const (
	KindPost    Kind = "post"
	KindPoll    Kind = "poll"
	KindRetweet Kind = "retweet"
	KindComment Kind = "comment"
)

// MediaType is the kind of media attached to a scheduled post.
type MediaType string

const (
	MediaNone  MediaType = ""
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Valid reports whether m is a known media type.
func (m MediaType) Valid() bool {
	return m == MediaNone || m == MediaImage || m == MediaVideo
}

// ActionMeta is embedded in every schedulable record.
type ActionMeta struct {
	ID            string    `json:"id"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Completed     bool      `json:"completed"`
}

func (m *ActionMeta) meta() *ActionMeta { return m }

func (m *ActionMeta) normalizeTimes() {
	m.ScheduledTime = m.ScheduledTime.UTC()
}

// Due reports whether the item is due at now.
func (m *ActionMeta) Due(now time.Time) bool {
	return !m.ScheduledTime.After(now)
}

// Schedule is a planned post.
type Schedule struct {
	ActionMeta
	CurrentEvents string    `json:"current_events"`
	Content       string    `json:"content"`
	IncludeMedia  bool      `json:"include_media,omitempty"`
	MediaType     MediaType `json:"media_type,omitempty"`
	MediaPrompt   string    `json:"media_prompt,omitempty"`
}

// WantsMedia reports whether media should be generated for the post.
func (s *Schedule) WantsMedia() bool {
	return s.IncludeMedia && s.MediaType != MediaNone
}

// PollSchedule is a planned poll.
type PollSchedule struct {
	ActionMeta
	Question        string   `json:"poll_question"`
	Options         []string `json:"poll_options"`
	DurationMinutes int      `json:"poll_duration_minutes"`
}

// RetweetSchedule is a retweet committed to a time slot.
type RetweetSchedule struct {
	ActionMeta
	TimePosted   time.Time `json:"time_posted"`
	SourceAcc    string    `json:"source_acc"`
	TweetID      string    `json:"tweet_id"`
	LikeCount    int       `json:"like_count"`
	RetweetCount int       `json:"retweet_count"`
}

func (r *RetweetSchedule) normalizeTimes() {
	r.ActionMeta.normalizeTimes()
	r.TimePosted = r.TimePosted.UTC()
}

// CommentSchedule is a planned reply to someone else's tweet.
type CommentSchedule struct {
	ActionMeta
	TimePosted  time.Time `json:"time_posted"`
	TweetID     string    `json:"tweet_id"`
	CommentText string    `json:"comment_text"`
	CompanyLink string    `json:"company_link,omitempty"`
}

func (c *CommentSchedule) normalizeTimes() {
	c.ActionMeta.normalizeTimes()
	c.TimePosted = c.TimePosted.UTC()
}

// RetweetCandidate sits in the candidate pool until it is scheduled or expires.
type RetweetCandidate struct {
	TweetID      string    `json:"tweet_id"`
	SourceAcc    string    `json:"source_acc"`
	TweetText    string    `json:"tweet_text"`
	TimePosted   time.Time `json:"time_posted"`
	LikeCount    int       `json:"like_count"`
	RetweetCount int       `json:"retweet_count"`
	Selected     bool      `json:"selected"`
}

// CompetitorComment is a competitor tweet waiting to be turned into a CommentSchedule.
type CompetitorComment struct {
	TweetID      string    `json:"tweet_id"`
	Username     string    `json:"username"`
	Text         string    `json:"text"`
	TimePosted   time.Time `json:"time_posted"`
	LikeCount    int       `json:"like_count"`
	ReplyCount   int       `json:"reply_count"`
	RetweetCount int       `json:"retweet_count"`
	CommentText  string    `json:"comment_text,omitempty"`
	CompanyLink  string    `json:"company_link,omitempty"`
}

// Engagement is the ranking score used when picking competitor tweets.
func (c *CompetitorComment) Engagement() int {
	return c.LikeCount + c.ReplyCount
}
