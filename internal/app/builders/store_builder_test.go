package builders

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cryptopilot/internal/config"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/notify"
	"github.com/aatumaykin/cryptopilot/internal/store"
)

func TestStoreBuilder_Build(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		want    any
		wantErr string
	}{
		{name: "file", backend: "file", want: &store.FileStore{}},
		{name: "sqlite", backend: "sqlite", want: &store.SQLiteStore{}},
		{name: "unknown", backend: "redis", wantErr: "unsupported state backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.State.Backend = tt.backend
			cfg.State.Path = filepath.Join(t.TempDir(), "state")

			s, err := NewStoreBuilder(cfg, logger.Nop()).Build()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer s.Close()
			assert.IsType(t, tt.want, s)
		})
	}
}

func TestTelegramBuilder_Disabled(t *testing.T) {
	n, err := NewTelegramBuilder(config.Default(), logger.Nop()).Build()
	require.NoError(t, err)
	assert.Equal(t, notify.Nop{}, n)
}

func TestPlatformBuilder_MediaDisabled(t *testing.T) {
	cfg := config.Default()
	b := NewPlatformBuilder(cfg, logger.Nop())
	assert.Nil(t, b.BuildMedia(b.Build()))
}
