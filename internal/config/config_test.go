package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cryptopilot/internal/constants"
)

const validTOML = `
[agent]
handle = "cryptopilot"
targets = ["whale_alert"]
influencers = ["VitalikButerin"]
competitors = [{ username = "rivalbot", link = "https://rival.example.com" }]

[llm]
api_key = "${CP_TEST_LLM_KEY:sk-test-0123456789}"

[platform]
access_token = "${CP_TEST_X_TOKEN}"

[cycles.mentions]
interval_seconds = 300
run_on_start = false

[handlers]
daily_post_limit = 4

[state]
backend = "sqlite"
`

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Setenv("CP_TEST_X_TOKEN", "x-token-0123456789")
	cfg, err := Parse([]byte(validTOML))
	require.NoError(t, err)
	return cfg
}

func TestConfigDefaults(t *testing.T) {
	cfg := Default()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"logging level", cfg.Logging.Level, "info"},
		{"logging format", cfg.Logging.Format, "json"},
		{"logging output", cfg.Logging.Output, "stdout"},
		{"llm provider", cfg.LLM.Provider, "openai"},
		{"platform base url", cfg.Platform.BaseURL, "https://api.x.com"},
		{"comment limit", cfg.Agent.DefaultCommentLimit, constants.DefaultCommentLimit},
		{"daily posts", cfg.Agent.Daily.Posts, constants.DefaultDailyPosts},
		{"main interval", cfg.Cycles.Main.Interval(), constants.DefaultMainInterval},
		{"mentions interval", cfg.Cycles.Mentions.Interval(), constants.DefaultMentionsInterval},
		{"replier interval", cfg.Cycles.CommentReplier.Interval(), constants.DefaultCommentReplierInterval},
		{"main runs on start", cfg.Cycles.Main.StartsImmediately(), true},
		{"reset waits", cfg.Cycles.DailyReset.StartsImmediately(), false},
		{"throttle", cfg.Handlers.ThrottleSeconds, 30},
		{"cache ttl", cfg.Handlers.CacheTTLMinutes, 300},
		{"mention lookback", cfg.Handlers.MentionLookbackMinutes, 120},
		{"mentions per run", cfg.Handlers.MaxMentionsPerRun, constants.DefaultMaxMentionsPerRun},
		{"state backend", cfg.State.Backend, "file"},
		{"metrics listen", cfg.Metrics.Listen, ":9090"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.NoError(t, expandEnvVars(cfg))
	assert.Equal(t, filepath.Join(home, ".cryptopilot", "state.jsonl"), cfg.State.Path)
}

func TestParse(t *testing.T) {
	cfg := validConfig(t)

	assert.Equal(t, "cryptopilot", cfg.Agent.Handle)
	assert.Equal(t, "sk-test-0123456789", cfg.LLM.APIKey, "default from ${VAR:default}")
	assert.Equal(t, "x-token-0123456789", cfg.Platform.AccessToken)
	assert.Equal(t, 5*time.Minute, cfg.Cycles.Mentions.Interval())
	assert.False(t, cfg.Cycles.Mentions.StartsImmediately(), "explicit false survives defaults")
	assert.Equal(t, 4, cfg.Handlers.DailyLimits()[constants.HandlerPost])
	assert.Equal(t, 0, cfg.Handlers.DailyLimits()[constants.HandlerRetweet])
	assert.True(t, strings.HasSuffix(cfg.State.Path, "state.db"), "sqlite default path")
	require.Len(t, cfg.Agent.Competitors, 1)
	assert.Equal(t, "https://rival.example.com", cfg.Agent.Competitors[0].Link)

	assert.Empty(t, cfg.Validate())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("[agent\nhandle = 1"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Setenv("CP_TEST_X_TOKEN", "x-token-0123456789")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(validTOML), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cryptopilot", cfg.Agent.Handle)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing handle", func(c *Config) { c.Agent.Handle = "" }, "agent.handle is required"},
		{"handle with @", func(c *Config) { c.Agent.Handle = "@pilot" }, "must not start with @"},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "zai" }, "invalid llm.provider"},
		{"mock needs no key", func(c *Config) { c.LLM.Provider = "mock"; c.LLM.APIKey = "" }, ""},
		{"openai needs key", func(c *Config) { c.LLM.APIKey = "" }, "llm.api_key is required"},
		{"short key is masked", func(c *Config) { c.LLM.APIKey = "sk-abc" }, "(value: ***)"},
		{"bad endpoint", func(c *Config) { c.LLM.Endpoint = "ftp://x" }, "llm.endpoint must be an http(s) URL"},
		{"missing token", func(c *Config) { c.Platform.AccessToken = "" }, "platform.access_token is required"},
		{"media without key", func(c *Config) { c.Media.Enabled = true }, "media.api_key is required"},
		{"zero interval", func(c *Config) { c.Cycles.Polls.IntervalSeconds = 0 }, "cycles.polls.interval_seconds"},
		{"negative quota", func(c *Config) { c.Handlers.DailyMentionLimit = -1 }, "handlers.daily_mention_limit"},
		{"bad backend", func(c *Config) { c.State.Backend = "redis" }, "invalid state.backend"},
		{"path traversal", func(c *Config) { c.State.Path = "../state.db" }, "path traversal"},
		{"competitor without name", func(c *Config) {
			c.Agent.Competitors = append(c.Agent.Competitors, AccountConfig{Link: "https://x.example"})
		}, "agent.competitors[1].username"},
		{"telegram without chats", func(c *Config) {
			c.Notify.Telegram.Enabled = true
			c.Notify.Telegram.Token = "123456789:ABCdefGHIjklMNOpqr"
		}, "notify.telegram.chat_ids"},
		{"bad metrics listen", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Listen = "9090"
		}, "invalid metrics.listen"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "invalid logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			errs := cfg.Validate()
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			var msgs []string
			for _, err := range errs {
				msgs = append(msgs, err.Error())
			}
			assert.Contains(t, strings.Join(msgs, "\n"), tt.wantErr)
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("CP_TEST_SET", "value")
	unsetForTest(t, "CP_TEST_UNSET")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple variable", "${CP_TEST_SET}", "value"},
		{"unset variable", "${CP_TEST_UNSET}", ""},
		{"variable with default", "${CP_TEST_UNSET:default}", "default"},
		{"set variable ignores default", "${CP_TEST_SET:default}", "value"},
		{"suffix is kept", "${CP_TEST_SET}/state.db", "value/state.db"},
		{"no expansion", "plain text", "plain text"},
		{"unterminated", "${CP_TEST_SET", "${CP_TEST_SET"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnv(tt.input))
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "state.db"), expandHome("~/state.db"))
	assert.Equal(t, "/var/lib/state.db", expandHome("/var/lib/state.db"))
	assert.Equal(t, "~user/state.db", expandHome("~user/state.db"))
}

func TestValidateTelegramToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", "123456789:ABCdefGHIjklMNOpqrsTUVwxyz", false},
		{"empty", "", true},
		{"no colon", "123456789ABCdef", true},
		{"letters in bot id", "12a456789:ABCdefGHIjklMNO", true},
		{"short bot id", "12:ABCdefGHIjklMNO", true},
		{"short token part", "123456789:ABC", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTelegramToken(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		expected string
	}{
		{"empty secret", "", ""},
		{"short secret", "abc", "***"},
		{"secret with 8 chars", "abcdefgh", "abcdefgh"},
		{"long secret", "sk-test-api-key-12345678", "sk-t****************5678"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskSecret(tt.secret))
		})
	}
}

func TestMaskTelegramToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected string
	}{
		{"empty token", "", ""},
		{"valid token", "1234567890:ABCdefGHIjklMNOpqrsTUVwxyz", "1234567890:ABCd******************wxyz"},
		{"invalid format", "invalid-token", "inva*****oken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskTelegramToken(tt.token))
		})
	}
}

func TestMasked(t *testing.T) {
	cfg := validConfig(t)
	cfg.Notify.Telegram.Token = "1234567890:ABCdefGHIjklMNOpqrsTUVwxyz"

	masked := cfg.Masked()
	assert.Equal(t, "sk-t**********6789", masked.LLM.APIKey)
	assert.Equal(t, "x-to**********6789", masked.Platform.AccessToken)
	assert.True(t, strings.HasPrefix(masked.Notify.Telegram.Token, "1234567890:"))
	assert.NotContains(t, masked.Notify.Telegram.Token, "GHIjkl")

	// the original is untouched
	assert.Equal(t, "sk-test-0123456789", cfg.LLM.APIKey)
}

func TestFormatValidationError(t *testing.T) {
	err := formatValidationError("llm.api_key", "is too short", "zai-short")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "llm.api_key", ve.Field)
	assert.Equal(t, "llm.api_key: is too short (value: zai-*hort)", err.Error())

	err = formatValidationError("agent.handle", "is required", "")
	assert.Equal(t, "agent.handle: is required", err.Error())
}
