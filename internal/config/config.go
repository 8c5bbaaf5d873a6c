package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/aatumaykin/cryptopilot/internal/constants"
)

// Load загружает конфигурацию из TOML файла
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML data, applies defaults and expands ${VAR} references.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := expandEnvVars(&cfg); err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	return &cfg, nil
}

// Validate проверяет валидность конфигурации
func (c *Config) Validate() []error {
	var errors []error

	if c.Agent.Handle == "" {
		errors = append(errors, fmt.Errorf("agent.handle is required"))
	} else if strings.HasPrefix(c.Agent.Handle, "@") {
		errors = append(errors, fmt.Errorf("agent.handle must not start with @"))
	}
	if c.Agent.DefaultCommentLimit < 1 {
		errors = append(errors, fmt.Errorf("agent.default_comment_limit must be >= 1"))
	}
	for i, comp := range c.Agent.Competitors {
		if strings.TrimSpace(comp.Username) == "" {
			errors = append(errors, fmt.Errorf("agent.competitors[%d].username is required", i))
		}
		if comp.Link != "" {
			if err := validateURL(comp.Link, fmt.Sprintf("agent.competitors[%d].link", i)); err != nil {
				errors = append(errors, err)
			}
		}
	}

	// Проверка LLM конфигурации
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			errors = append(errors, fmt.Errorf("llm.api_key is required when provider is 'openai'"))
		} else if err := validateAPIKey(c.LLM.APIKey, "llm.api_key"); err != nil {
			errors = append(errors, err)
		}
		if err := validateURL(c.LLM.Endpoint, "llm.endpoint"); err != nil {
			errors = append(errors, err)
		}
	case "mock":
	default:
		errors = append(errors, fmt.Errorf("invalid llm.provider: %s (expected: openai, mock)", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, fmt.Errorf("llm.temperature must be between 0 and 2 (got %g)", c.LLM.Temperature))
	}

	if c.Platform.AccessToken == "" {
		errors = append(errors, fmt.Errorf("platform.access_token is required"))
	} else if err := validateAPIKey(c.Platform.AccessToken, "platform.access_token"); err != nil {
		errors = append(errors, err)
	}
	if err := validateURL(c.Platform.BaseURL, "platform.base_url"); err != nil {
		errors = append(errors, err)
	}

	if c.Media.Enabled {
		if c.Media.APIKey == "" {
			errors = append(errors, fmt.Errorf("media.api_key is required when media is enabled"))
		} else if err := validateAPIKey(c.Media.APIKey, "media.api_key"); err != nil {
			errors = append(errors, err)
		}
	}

	for name, cycle := range c.Cycles.byName() {
		if cycle.IntervalSeconds < 1 {
			errors = append(errors, fmt.Errorf("cycles.%s.interval_seconds must be >= 1", name))
		}
	}

	if c.Handlers.ThrottleSeconds < 0 {
		errors = append(errors, fmt.Errorf("handlers.throttle_seconds must be >= 0"))
	}
	for name, limit := range c.Handlers.DailyLimits() {
		if limit < 0 {
			errors = append(errors, fmt.Errorf("handlers.daily_%s_limit must be >= 0 (0 = unlimited)", name))
		}
	}

	switch c.State.Backend {
	case "file", "sqlite":
	default:
		errors = append(errors, fmt.Errorf("invalid state.backend: %s (expected: file, sqlite)", c.State.Backend))
	}
	if err := validatePath(c.State.Path, "state.path"); err != nil {
		errors = append(errors, err)
	}

	// Проверка Telegram уведомлений
	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.Token == "" {
			errors = append(errors, fmt.Errorf("notify.telegram.token is required when telegram is enabled"))
		} else if err := validateTelegramToken(c.Notify.Telegram.Token); err != nil {
			errors = append(errors, err)
		}
		if len(c.Notify.Telegram.ChatIDs) == 0 {
			errors = append(errors, fmt.Errorf("notify.telegram.chat_ids cannot be empty when telegram is enabled"))
		}
	}

	if c.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			errors = append(errors, fmt.Errorf("invalid metrics.listen %q: %w", c.Metrics.Listen, err))
		}
	}

	// Проверка logging config
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}

	return errors
}

// Helper validation functions
func validateAPIKey(key, fieldName string) error {
	if key == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	if len(key) < 10 {
		return formatValidationError(fieldName, fmt.Sprintf("is too short (minimum 10 characters, got %d)", len(key)), key)
	}

	return nil
}

func validateTelegramToken(token string) error {
	if token == "" {
		return fmt.Errorf("telegram token cannot be empty")
	}

	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return fmt.Errorf("telegram token has invalid format (expected format: <bot_id>:<token>, got: %s)", maskTelegramToken(token))
	}

	botID := parts[0]
	botToken := parts[1]

	if len(botID) < 3 || len(botID) > 15 {
		return fmt.Errorf("telegram token has invalid bot ID length (expected 3-15 digits, got %d digits)", len(botID))
	}

	for _, r := range botID {
		if r < '0' || r > '9' {
			return fmt.Errorf("telegram token has invalid bot ID (expected digits only, got: %s)", botID)
		}
	}

	if len(botToken) < 10 || len(botToken) > 50 {
		return fmt.Errorf("telegram token has invalid token length (expected 10-50 characters, got %d)", len(botToken))
	}

	return nil
}

func validatePath(path, fieldName string) error {
	if path == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
	}

	return nil
}

func validateURL(raw, fieldName string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an http(s) URL (got %q)", fieldName, raw)
	}
	return nil
}

// applyDefaults применяет значения по умолчанию
func applyDefaults(c *Config) {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.8
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 512
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 3
	}
	if c.LLM.PlannerIterations == 0 {
		c.LLM.PlannerIterations = 12
	}

	if c.Platform.BaseURL == "" {
		c.Platform.BaseURL = "https://api.x.com"
	}
	if c.Platform.TimeoutSeconds == 0 {
		c.Platform.TimeoutSeconds = 30
	}
	if c.Platform.MaxRetries == 0 {
		c.Platform.MaxRetries = 3
	}

	if c.Media.BaseURL == "" {
		c.Media.BaseURL = "https://queue.fal.run"
	}
	if c.Media.ImageModel == "" {
		c.Media.ImageModel = "fal-ai/flux/schnell"
	}
	if c.Media.VideoModel == "" {
		c.Media.VideoModel = "fal-ai/kling-video/v1/standard/text-to-video"
	}
	if c.Media.TimeoutSeconds == 0 {
		c.Media.TimeoutSeconds = 60
	}
	if c.Media.PollIntervalSeconds == 0 {
		c.Media.PollIntervalSeconds = int(constants.DefaultMediaPollInterval / time.Second)
	}
	if c.Media.PollAttempts == 0 {
		c.Media.PollAttempts = constants.DefaultMediaPollAttempts
	}

	if c.Market.TimeoutSeconds == 0 {
		c.Market.TimeoutSeconds = 15
	}
	if c.Market.ArticleMaxChars == 0 {
		c.Market.ArticleMaxChars = 4000
	}

	if c.Agent.DefaultCommentLimit == 0 {
		c.Agent.DefaultCommentLimit = constants.DefaultCommentLimit
	}
	if c.Agent.CandidateMinLikes == 0 {
		c.Agent.CandidateMinLikes = constants.DefaultCandidateMinLikes
	}
	applyDailyDefaults(&c.Agent.Daily)

	applyCycleDefaults(&c.Cycles.Main, constants.DefaultMainInterval, true)
	applyCycleDefaults(&c.Cycles.Mentions, constants.DefaultMentionsInterval, true)
	applyCycleDefaults(&c.Cycles.CommentReplier, constants.DefaultCommentReplierInterval, false)
	applyCycleDefaults(&c.Cycles.Polls, constants.DefaultPollsInterval, true)
	applyCycleDefaults(&c.Cycles.DailyPipeline, constants.DefaultDailyPipelineInterval, true)
	applyCycleDefaults(&c.Cycles.DailyReset, constants.DefaultDailyResetInterval, false)

	applyHandlerDefaults(&c.Handlers)

	if c.State.Backend == "" {
		c.State.Backend = "file"
	}
	if c.State.Path == "" {
		if c.State.Backend == "sqlite" {
			c.State.Path = "~/.cryptopilot/state.db"
		} else {
			c.State.Path = "~/.cryptopilot/state.jsonl"
		}
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9090"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "cryptopilot"
	}
}

func applyDailyDefaults(d *DailyConfig) {
	if d.Posts == 0 {
		d.Posts = constants.DefaultDailyPosts
	}
	if d.MediaPosts == 0 {
		d.MediaPosts = constants.DefaultDailyMediaPosts
	}
	if d.Polls == 0 {
		d.Polls = constants.DefaultDailyPolls
	}
	if d.Retweets == 0 {
		d.Retweets = constants.DefaultDailyRetweets
	}
	if d.Comments == 0 {
		d.Comments = constants.DefaultDailyComments
	}
}

func applyCycleDefaults(c *CycleConfig, interval time.Duration, runOnStart bool) {
	if c.IntervalSeconds == 0 {
		c.IntervalSeconds = int(interval / time.Second)
	}
	if c.RunOnStart == nil {
		c.RunOnStart = &runOnStart
	}
}

func applyHandlerDefaults(h *HandlersConfig) {
	if h.ThrottleSeconds == 0 {
		h.ThrottleSeconds = int(constants.DefaultThrottle / time.Second)
	}
	if h.RetweetBatchSize == 0 {
		h.RetweetBatchSize = constants.DefaultRetweetBatchSize
	}
	if h.EngageBatchSize == 0 {
		h.EngageBatchSize = constants.DefaultEngageBatchSize
	}
	if h.CommentFreshnessHours == 0 {
		h.CommentFreshnessHours = int(constants.DefaultCommentFreshness / time.Hour)
	}
	if h.ReplierLookbackHours == 0 {
		h.ReplierLookbackHours = int(constants.DefaultReplierLookback / time.Hour)
	}
	if h.TweetsPerAccount == 0 {
		h.TweetsPerAccount = constants.DefaultTweetsPerAccount
	}
	if h.CacheTTLMinutes == 0 {
		h.CacheTTLMinutes = int(constants.DefaultReplierCacheTTL / time.Minute)
	}
	if h.MinCommentLikes == 0 {
		h.MinCommentLikes = constants.DefaultMinCommentLikes
	}
	if h.MinCommentChars == 0 {
		h.MinCommentChars = constants.DefaultMinCommentChars
	}
	if h.MaxRepliesPerTweet == 0 {
		h.MaxRepliesPerTweet = constants.DefaultMaxRepliesPerTweet
	}
	if h.MaxRepliesPerBatch == 0 {
		h.MaxRepliesPerBatch = constants.DefaultMaxRepliesPerBatch
	}
	if h.TweetLikesThreshold == 0 {
		h.TweetLikesThreshold = constants.DefaultTweetLikesThreshold
	}
	if h.MaxDirectReplies == 0 {
		h.MaxDirectReplies = constants.DefaultMaxDirectReplies
	}
	if h.MentionLookbackMinutes == 0 {
		h.MentionLookbackMinutes = int(constants.DefaultMentionLookback / time.Minute)
	}
	if h.MaxMentionsPerRun == 0 {
		h.MaxMentionsPerRun = constants.DefaultMaxMentionsPerRun
	}
	if h.HistorySize == 0 {
		h.HistorySize = constants.DefaultHistorySize
	}
	if h.CandidateMaxAgeHours == 0 {
		h.CandidateMaxAgeHours = int(constants.DefaultCandidateMaxAge / time.Hour)
	}
	if h.TransferRetweetLagSeconds == 0 {
		h.TransferRetweetLagSeconds = int(constants.DefaultTransferRetweetLag / time.Second)
	}
}

// expandEnvVars расширяет переменные окружения в конфигурации
func expandEnvVars(c *Config) error {
	for _, field := range []*string{
		&c.LLM.APIKey,
		&c.LLM.Endpoint,
		&c.Platform.AccessToken,
		&c.Media.APIKey,
		&c.Market.CoinGeckoAPIKey,
		&c.Notify.Telegram.Token,
		&c.State.Path,
		&c.State.SeedFile,
		&c.Agent.Handle,
	} {
		*field = expandEnv(*field)
	}

	c.State.Path = expandHome(c.State.Path)
	c.State.SeedFile = expandHome(c.State.SeedFile)
	if c.Logging.Output != "stdout" && c.Logging.Output != "stderr" {
		c.Logging.Output = expandHome(expandEnv(c.Logging.Output))
	}

	return nil
}

// expandEnv расширяет переменную окружения формата ${VAR:default}
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		key := parts[0]
		defaultVal := parts[1]
		if val := os.Getenv(key); val != "" {
			return val + s[end+1:]
		}
		return defaultVal + s[end+1:]
	}

	// Без значения по умолчанию
	return os.Getenv(content) + s[end+1:]
}

// expandHome расширяет ~ в пути
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Interval returns the cycle period.
func (c CycleConfig) Interval() time.Duration { return seconds(c.IntervalSeconds) }

// StartsImmediately reports whether the cycle runs once at startup.
func (c CycleConfig) StartsImmediately() bool { return c.RunOnStart != nil && *c.RunOnStart }

func (c CyclesConfig) byName() map[string]CycleConfig {
	return map[string]CycleConfig{
		constants.CycleMain:           c.Main,
		constants.CycleMentions:       c.Mentions,
		constants.CycleCommentReplier: c.CommentReplier,
		constants.CyclePolls:          c.Polls,
		constants.CycleDailyPipeline:  c.DailyPipeline,
		constants.CycleDailyReset:     c.DailyReset,
	}
}

// ByName returns the cycle settings keyed by cycle name.
func (c CyclesConfig) ByName() map[string]CycleConfig { return c.byName() }

// DailyLimits returns the per-handler daily quotas keyed by handler name.
func (h HandlersConfig) DailyLimits() map[string]int {
	return map[string]int{
		constants.HandlerPost:    h.DailyPostLimit,
		constants.HandlerPoll:    h.DailyPollLimit,
		constants.HandlerRetweet: h.DailyRetweetLimit,
		constants.HandlerComment: h.DailyCommentLimit,
		constants.HandlerReplier: h.DailyReplierLimit,
		constants.HandlerMention: h.DailyMentionLimit,
	}
}
