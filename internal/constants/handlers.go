package constants

import "time"

// Platform limits.
const (
	// TweetMaxChars is the hard ceiling for any generated post or reply.
	TweetMaxChars = 280
	// Ellipsis is appended to text cut at TweetMaxChars.
	Ellipsis = "..."
	// PollMinOptions and PollMaxOptions bound the number of poll choices.
	PollMinOptions = 2
	PollMaxOptions = 4
	// PollOptionMaxChars is the platform limit for a single poll option.
	PollOptionMaxChars = 25
	// DefaultPollDurationMinutes is one day.
	DefaultPollDurationMinutes = 1440
)

// Engagement defaults.
const (
	DefaultCommentLimit        = 5
	DefaultThrottle            = 30 * time.Second
	DefaultCommentFreshness    = 36 * time.Hour
	DefaultCandidateMaxAge     = 24 * time.Hour
	DefaultReplierCacheTTL     = 5 * time.Hour
	DefaultRetweetBatchSize    = 5
	DefaultMinCommentChars     = 10
	DefaultMinCommentLikes     = 1
	DefaultMaxRepliesPerTweet  = 2
	DefaultMaxRepliesPerBatch  = 10
	DefaultTweetLikesThreshold = 5
	DefaultMentionLookback     = 2 * time.Hour
	DefaultMaxMentionsPerRun   = 10
	DefaultHistorySize         = 1000
	DefaultTransferRetweetLag  = time.Minute
	DefaultEngageBatchSize     = 5
	DefaultReplierLookback     = 24 * time.Hour
	DefaultTweetsPerAccount    = 3
	DefaultMaxDirectReplies    = 5
	DefaultRepliesFetched      = 20
)

// Handler names, shared by metrics labels, daily quotas and logs.
const (
	HandlerPost    = "post"
	HandlerPoll    = "poll"
	HandlerRetweet = "retweet"
	HandlerComment = "comment"
	HandlerReplier = "comment_replier"
	HandlerMention = "mention"
)

// Media polling defaults.
const (
	DefaultMediaPollAttempts = 30
	DefaultMediaPollInterval = 5 * time.Second
	MaxMediaPollInterval     = time.Minute
)
