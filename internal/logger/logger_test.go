package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"json stdout", Config{Level: "debug", Format: "json", Output: "stdout"}, false},
		{"text stderr", Config{Level: "info", Format: "text", Output: "stderr"}, false},
		{"file output", Config{Level: "warn", Format: "json", Output: filepath.Join(t.TempDir(), "agent.log")}, false},
		{"invalid level", Config{Level: "verbose", Format: "json", Output: "stdout"}, true},
		{"invalid format", Config{Level: "debug", Format: "xml", Output: "stdout"}, true},
		{"missing directory", Config{Level: "debug", Format: "json", Output: "/nonexistent/dir/agent.log"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, log)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return &Logger{slog: slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf).Component("poll_handler")

	log.Info("poll posted", Field{Key: "tweet_id", Value: "42"})

	entry := decodeLine(t, &buf)
	assert.Equal(t, "poll_handler", entry[ComponentKey])
	assert.Equal(t, "42", entry["tweet_id"])
	assert.Equal(t, "poll posted", entry["msg"])
}

func TestErrorField(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		var buf bytes.Buffer
		newBufferLogger(&buf).Error("retweet failed", errors.New("boom"))
		assert.Equal(t, "boom", decodeLine(t, &buf)["error"])
	})

	t.Run("nil error is omitted", func(t *testing.T) {
		var buf bytes.Buffer
		newBufferLogger(&buf).Error("invariant violated", nil, Field{Key: "invariant", Value: "comment_limit"})
		entry := decodeLine(t, &buf)
		_, ok := entry["error"]
		assert.False(t, ok)
		assert.Equal(t, "comment_limit", entry["invariant"])
	})
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.Debug("ignored")
		log.Error("ignored", errors.New("x"))
	})
}
