// Package config provides configuration loading and validation for
// CryptoPilot. It supports TOML configuration files with environment
// variable expansion, default values and validation.
//
// Configuration structure:
//   - [logging]: Logging level, format and output
//   - [llm]: Chat completion provider (OpenAI-compatible or mock)
//   - [platform]: X API credentials and transport settings
//   - [media]: Image/video generation (fal.ai)
//   - [market]: CoinGecko and article reader
//   - [agent]: Account handle, persona, watched accounts and daily plan
//   - [cycles]: Cycle intervals and run-on-start flags
//   - [handlers]: Throttle, batch sizes, thresholds and daily quotas
//   - [state]: Persistence backend, path and seed file
//   - [notify.telegram]: Operator alerts
//   - [metrics]: Prometheus endpoint
//
// Environment variables:
// Secrets and paths can be referenced using ${VAR} or ${VAR:default} syntax.
// For example: access_token = "${X_ACCESS_TOKEN}"
package config

// Config represents the main application configuration.
type Config struct {
	Logging  LoggingConfig  `toml:"logging"`
	LLM      LLMConfig      `toml:"llm"`
	Platform PlatformConfig `toml:"platform"`
	Media    MediaConfig    `toml:"media"`
	Market   MarketConfig   `toml:"market"`
	Agent    AgentConfig    `toml:"agent"`
	Cycles   CyclesConfig   `toml:"cycles"`
	Handlers HandlersConfig `toml:"handlers"`
	State    StateConfig    `toml:"state"`
	Notify   NotifyConfig   `toml:"notify"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// LoggingConfig представляет конфигурацию логирования
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// LLMConfig представляет конфигурацию LLM провайдера
type LLMConfig struct {
	Provider          string  `toml:"provider"` // openai | mock
	Endpoint          string  `toml:"endpoint"`
	APIKey            string  `toml:"api_key"`
	Model             string  `toml:"model"`
	Temperature       float64 `toml:"temperature"`
	MaxTokens         int     `toml:"max_tokens"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	MaxRetries        int     `toml:"max_retries"`
	RequestsPerMinute int     `toml:"requests_per_minute"` // 0 disables the limiter
	PlannerIterations int     `toml:"planner_iterations"`
}

// PlatformConfig holds the X API settings.
type PlatformConfig struct {
	BaseURL        string `toml:"base_url"`
	AccessToken    string `toml:"access_token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

// MediaConfig holds the media generation settings. Media is optional:
// with Enabled=false every media post degrades to text.
type MediaConfig struct {
	Enabled             bool   `toml:"enabled"`
	BaseURL             string `toml:"base_url"`
	APIKey              string `toml:"api_key"`
	ImageModel          string `toml:"image_model"`
	VideoModel          string `toml:"video_model"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	PollAttempts        int    `toml:"poll_attempts"`
}

// MarketConfig holds the research sources used by the planner tools.
type MarketConfig struct {
	Enabled         bool   `toml:"enabled"`
	CoinGeckoURL    string `toml:"coingecko_url"`
	CoinGeckoAPIKey string `toml:"coingecko_api_key"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	ArticleMaxChars int    `toml:"article_max_chars"`
}

// AccountConfig is a watched account with an optional company link.
type AccountConfig struct {
	Username string `toml:"username"`
	Link     string `toml:"link"`
}

// DailyConfig is what the daily pipeline plans per run.
type DailyConfig struct {
	Posts      int    `toml:"posts"`
	MediaPosts int    `toml:"media_posts"`
	Polls      int    `toml:"polls"`
	Retweets   int    `toml:"retweets"`
	Comments   int    `toml:"comments"`
	Notes      string `toml:"notes"`
}

// AgentConfig describes the account and what it watches.
type AgentConfig struct {
	Handle              string          `toml:"handle"`
	Persona             string          `toml:"persona"`
	DefaultCommentLimit int             `toml:"default_comment_limit"`
	Targets             []string        `toml:"targets"`     // comment replier
	Influencers         []string        `toml:"influencers"` // retweet candidates
	Competitors         []AccountConfig `toml:"competitors"`
	Keywords            []string        `toml:"keywords"`
	ExcludeKeywords     []string        `toml:"exclude_keywords"`
	CandidateMinLikes   int             `toml:"candidate_min_likes"`
	Daily               DailyConfig     `toml:"daily"`
}

// CycleConfig is one periodic cycle.
type CycleConfig struct {
	IntervalSeconds int   `toml:"interval_seconds"`
	RunOnStart      *bool `toml:"run_on_start"`
	Disabled        bool  `toml:"disabled"`
}

// CyclesConfig lists the agent cycles.
type CyclesConfig struct {
	Main           CycleConfig `toml:"main"`
	Mentions       CycleConfig `toml:"mentions"`
	CommentReplier CycleConfig `toml:"comment_replier"`
	Polls          CycleConfig `toml:"polls"`
	DailyPipeline  CycleConfig `toml:"daily_pipeline"`
	DailyReset     CycleConfig `toml:"daily_reset"`
}

// HandlersConfig tunes the action handlers.
type HandlersConfig struct {
	ThrottleSeconds           int `toml:"throttle_seconds"`
	RetweetBatchSize          int `toml:"retweet_batch_size"`
	EngageBatchSize           int `toml:"engage_batch_size"`
	CommentFreshnessHours     int `toml:"comment_freshness_hours"`
	ReplierLookbackHours      int `toml:"replier_lookback_hours"`
	TweetsPerAccount          int `toml:"tweets_per_account"`
	CacheTTLMinutes           int `toml:"cache_ttl_minutes"`
	MinCommentLikes           int `toml:"min_comment_likes"`
	MinCommentChars           int `toml:"min_comment_chars"`
	MaxRepliesPerTweet        int `toml:"max_replies_per_tweet"`
	MaxRepliesPerBatch        int `toml:"max_replies_per_batch"`
	TweetLikesThreshold       int `toml:"tweet_likes_threshold"`
	MaxDirectReplies          int `toml:"max_direct_replies"`
	MentionLookbackMinutes    int `toml:"mention_lookback_minutes"`
	MaxMentionsPerRun         int `toml:"max_mentions_per_run"`
	HistorySize               int `toml:"history_size"`
	DailyPostLimit            int `toml:"daily_post_limit"` // 0 = unlimited
	DailyPollLimit            int `toml:"daily_poll_limit"`
	DailyRetweetLimit         int `toml:"daily_retweet_limit"`
	DailyCommentLimit         int `toml:"daily_comment_limit"`
	DailyReplierLimit         int `toml:"daily_replier_limit"`
	DailyMentionLimit         int `toml:"daily_mention_limit"`
	CandidateMaxAgeHours      int `toml:"candidate_max_age_hours"`
	TransferRetweetLagSeconds int `toml:"transfer_retweet_lag_seconds"`
}

// StateConfig selects the persistence backend.
type StateConfig struct {
	Backend  string `toml:"backend"` // file | sqlite
	Path     string `toml:"path"`
	SeedFile string `toml:"seed_file"`
}

// NotifyConfig groups operator notification channels.
type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

// TelegramConfig представляет конфигурацию Telegram уведомлений
type TelegramConfig struct {
	Enabled      bool    `toml:"enabled"`
	Token        string  `toml:"token"`
	ChatIDs      []int64 `toml:"chat_ids"`
	DailySummary bool    `toml:"daily_summary"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Listen    string `toml:"listen"`
	Namespace string `toml:"namespace"`
}
