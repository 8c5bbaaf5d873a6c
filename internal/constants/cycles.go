package constants

import "time"

// Cycle names used by the cycle scheduler, metrics labels and the CLI.
const (
	CycleMain           = "main"
	CycleMentions       = "mentions"
	CycleCommentReplier = "comment_replier"
	CyclePolls          = "polls"
	CycleDailyPipeline  = "daily_pipeline"
	CycleDailyReset     = "daily_reset"
)

// Default intervals between cycle runs.
const (
	DefaultMainInterval           = time.Hour
	DefaultMentionsInterval       = 120 * time.Second
	DefaultCommentReplierInterval = 3 * time.Hour
	DefaultPollsInterval          = 24 * time.Hour
	DefaultDailyPipelineInterval  = 24 * time.Hour
	DefaultDailyResetInterval     = 24 * time.Hour
)
