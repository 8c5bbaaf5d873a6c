package builders

import (
	"time"

	"github.com/aatumaykin/cryptopilot/internal/config"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/media"
	"github.com/aatumaykin/cryptopilot/internal/platform"
	"github.com/aatumaykin/cryptopilot/internal/platform/xapi"
	"github.com/aatumaykin/cryptopilot/internal/retry"
)

type PlatformBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewPlatformBuilder(cfg *config.Config, log *logger.Logger) *PlatformBuilder {
	return &PlatformBuilder{
		config: cfg,
		logger: log,
	}
}

// Build creates the X API client.
func (b *PlatformBuilder) Build() platform.Client {
	client := xapi.New(xapi.Config{
		BaseURL:     b.config.Platform.BaseURL,
		AccessToken: b.config.Platform.AccessToken,
		Timeout:     time.Duration(b.config.Platform.TimeoutSeconds) * time.Second,
		MaxRetries:  b.config.Platform.MaxRetries,
	}, b.logger)
	b.logger.Info("platform client initialized", logger.Field{Key: "base_url", Value: b.config.Platform.BaseURL})
	return client
}

// BuildMedia returns the media producer uploading through uploader, or nil
// when [media] is disabled; posts then degrade to text.
func (b *PlatformBuilder) BuildMedia(uploader media.Uploader) media.Producer {
	mc := b.config.Media
	if !mc.Enabled {
		b.logger.Info("media generation disabled")
		return nil
	}
	pollInterval := time.Duration(mc.PollIntervalSeconds) * time.Second
	gen := media.NewFalGenerator(media.FalConfig{
		BaseURL:      mc.BaseURL,
		APIKey:       mc.APIKey,
		ImageModel:   mc.ImageModel,
		VideoModel:   mc.VideoModel,
		Timeout:      time.Duration(mc.TimeoutSeconds) * time.Second,
		PollInterval: pollInterval,
		MaxPolls:     mc.PollAttempts,
		Retry:        retry.Config{MaxAttempts: 2},
	}, b.logger)
	return media.NewPipeline(gen, uploader, media.PipelineConfig{
		PollAttempts: mc.PollAttempts,
		PollInterval: pollInterval,
	}, b.logger)
}
