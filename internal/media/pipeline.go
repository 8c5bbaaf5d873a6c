package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/platform"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
)

const maxDownloadBytes = 512 << 20

// Uploader is the slice of platform.Client the pipeline needs.
type Uploader interface {
	UploadMedia(ctx context.Context, r io.Reader, mimeType string, category platform.MediaCategory) (*platform.MediaHandle, error)
	MediaStatus(ctx context.Context, mediaID string) (*platform.MediaHandle, error)
}

// PipelineConfig bounds video processing polling and downloads.
type PipelineConfig struct {
	PollAttempts     int
	PollInterval     time.Duration // used when the server gives no hint
	MaxPollInterval  time.Duration
	DownloadTimeout  time.Duration
	MaxDownloadBytes int64
}

// Pipeline implements Producer: generate, download, upload, wait until ready.
type Pipeline struct {
	gen      Generator
	uploader Uploader
	http     *http.Client
	cfg      PipelineConfig
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *logger.Logger
}

var _ Producer = (*Pipeline)(nil)

// NewPipeline creates a pipeline.
func NewPipeline(gen Generator, uploader Uploader, cfg PipelineConfig, log *logger.Logger) *Pipeline {
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = constants.DefaultMediaPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultMediaPollInterval
	}
	if cfg.MaxPollInterval <= 0 {
		cfg.MaxPollInterval = constants.MaxMediaPollInterval
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 2 * time.Minute
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = maxDownloadBytes
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		gen:      gen,
		uploader: uploader,
		http:     &http.Client{Timeout: cfg.DownloadTimeout},
		cfg:      cfg,
		sleep:    sleepCtx,
		logger:   log.Component("media_pipeline"),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Produce renders prompt as kind and returns a platform media ID that can be
// attached to a post.
func (p *Pipeline) Produce(ctx context.Context, kind schedule.MediaType, prompt string) (string, error) {
	var (
		url      string
		err      error
		category platform.MediaCategory
	)
	switch kind {
	case schedule.MediaImage:
		category = platform.CategoryImage
		url, err = p.gen.GenerateImage(ctx, prompt)
	case schedule.MediaVideo:
		category = platform.CategoryVideo
		url, err = p.gen.GenerateVideo(ctx, prompt)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, kind)
	}
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", kind, err)
	}

	data, mimeType, err := p.download(ctx, url)
	if err != nil {
		return "", err
	}

	handle, err := p.uploader.UploadMedia(ctx, bytes.NewReader(data), mimeType, category)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", kind, err)
	}
	p.logger.Info("media uploaded",
		logger.Field{Key: "media_id", Value: handle.ID},
		logger.Field{Key: "kind", Value: kind},
		logger.Field{Key: "state", Value: handle.State})

	if handle.Ready() {
		return handle.ID, nil
	}
	return p.waitReady(ctx, handle)
}

// waitReady polls processing state, honouring the server's check_after hint.
func (p *Pipeline) waitReady(ctx context.Context, handle *platform.MediaHandle) (string, error) {
	id := handle.ID
	for attempt := 0; attempt < p.cfg.PollAttempts; attempt++ {
		if handle.State == platform.MediaFailed {
			return "", fmt.Errorf("media %s processing failed: %s", id, handle.Error)
		}

		wait := handle.CheckAfter
		if wait <= 0 {
			wait = p.cfg.PollInterval
		}
		wait = min(wait, p.cfg.MaxPollInterval)
		if err := p.sleep(ctx, wait); err != nil {
			return "", err
		}

		next, err := p.uploader.MediaStatus(ctx, id)
		if err != nil {
			return "", fmt.Errorf("media %s status: %w", id, err)
		}
		handle = next
		if handle.Ready() {
			p.logger.Debug("media ready",
				logger.Field{Key: "media_id", Value: id},
				logger.Field{Key: "polls", Value: attempt + 1})
			return id, nil
		}
	}
	if handle.State == platform.MediaFailed {
		return "", fmt.Errorf("media %s processing failed: %s", id, handle.Error)
	}
	return "", fmt.Errorf("media %s after %d polls: %w", id, p.cfg.PollAttempts, ErrNotReady)
}

func (p *Pipeline) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create download request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}
	limit := p.cfg.MaxDownloadBytes
	if resp.ContentLength > limit {
		return nil, "", fmt.Errorf("download %s: %d bytes over %d: %w", url, resp.ContentLength, limit, ErrTooLarge)
	}
	// one byte past the limit tells a full file from a truncated one
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("download %s: body over %d bytes: %w", url, limit, ErrTooLarge)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("download %s: empty body", url)
	}

	mimeType := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}
