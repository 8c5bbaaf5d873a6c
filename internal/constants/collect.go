package constants

import "time"

// Collector and daily pipeline defaults.
const (
	DefaultCollectLookback     = 24 * time.Hour
	DefaultInfluencerTweets    = 20
	DefaultCandidateMinLikes   = 10
	DefaultCompetitorTweets    = 10
	DefaultMaxCompetitorTweets = 100

	// DefaultDaily* is what the daily pipeline asks the planner for.
	DefaultDailyPosts      = 3
	DefaultDailyMediaPosts = 1
	DefaultDailyPolls      = 1
	DefaultDailyRetweets   = 2
	DefaultDailyComments   = 2
)
