package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/retry"
)

const (
	DefaultFalURL        = "https://queue.fal.run"
	DefaultFalImageModel = "fal-ai/flux/schnell"
	DefaultFalVideoModel = "fal-ai/kling-video/v1/standard/text-to-video"
)

// FalConfig configures the fal.ai queue client.
type FalConfig struct {
	BaseURL      string
	APIKey       string
	ImageModel   string
	VideoModel   string
	Timeout      time.Duration
	PollInterval time.Duration
	MaxPolls     int
	Retry        retry.Config
}

// FalGenerator submits jobs to the fal.ai queue and polls them to completion.
type FalGenerator struct {
	cfg    FalConfig
	http   *http.Client
	logger *logger.Logger
}

var _ Generator = (*FalGenerator)(nil)

// FalError is a non-2xx response from fal.
type FalError struct {
	StatusCode int
	Body       string
}

func (e *FalError) Error() string {
	return fmt.Sprintf("fal: status=%d, body=%s", e.StatusCode, e.Body)
}

// HTTPStatus lets retry.IsRetryable classify the error.
func (e *FalError) HTTPStatus() int {
	return e.StatusCode
}

// NewFalGenerator creates a generator.
func NewFalGenerator(cfg FalConfig, log *logger.Logger) *FalGenerator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultFalURL
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultFalImageModel
	}
	if cfg.VideoModel == "" {
		cfg.VideoModel = DefaultFalVideoModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 200
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("fal")
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = log
	}
	return &FalGenerator{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: log}
}

type falSubmit struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type falResult struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Video *struct {
		URL string `json:"url"`
	} `json:"video"`
}

// GenerateImage implements Generator.
func (g *FalGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	res, err := g.run(ctx, g.cfg.ImageModel, map[string]any{"prompt": prompt, "image_size": "landscape_16_9", "num_images": 1})
	if err != nil {
		return "", err
	}
	if len(res.Images) == 0 || res.Images[0].URL == "" {
		return "", fmt.Errorf("fal returned no image")
	}
	return res.Images[0].URL, nil
}

// GenerateVideo implements Generator.
func (g *FalGenerator) GenerateVideo(ctx context.Context, prompt string) (string, error) {
	res, err := g.run(ctx, g.cfg.VideoModel, map[string]any{"prompt": prompt, "duration": "5", "aspect_ratio": "16:9"})
	if err != nil {
		return "", err
	}
	if res.Video == nil || res.Video.URL == "" {
		return "", fmt.Errorf("fal returned no video")
	}
	return res.Video.URL, nil
}

func (g *FalGenerator) run(ctx context.Context, model string, input map[string]any) (*falResult, error) {
	var submit falSubmit
	if err := g.call(ctx, http.MethodPost, strings.TrimRight(g.cfg.BaseURL, "/")+"/"+model, input, &submit); err != nil {
		return nil, fmt.Errorf("fal submit: %w", err)
	}
	if submit.StatusURL == "" || submit.ResponseURL == "" {
		return nil, fmt.Errorf("fal submit returned no status url")
	}
	g.logger.Debug("fal job submitted",
		logger.Field{Key: "model", Value: model},
		logger.Field{Key: "request_id", Value: submit.RequestID})

	for poll := 0; poll < g.cfg.MaxPolls; poll++ {
		var status struct {
			Status string `json:"status"`
		}
		if err := g.call(ctx, http.MethodGet, submit.StatusURL, nil, &status); err != nil {
			return nil, fmt.Errorf("fal status: %w", err)
		}
		switch status.Status {
		case "COMPLETED":
			var res falResult
			if err := g.call(ctx, http.MethodGet, submit.ResponseURL, nil, &res); err != nil {
				return nil, fmt.Errorf("fal result: %w", err)
			}
			return &res, nil
		case "IN_QUEUE", "IN_PROGRESS":
		default:
			return nil, fmt.Errorf("fal job %s: status %q", submit.RequestID, status.Status)
		}

		timer := time.NewTimer(g.cfg.PollInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("fal job %s: %w", submit.RequestID, ErrNotReady)
}

func (g *FalGenerator) call(ctx context.Context, method, url string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	body, err := retry.Do(ctx, g.cfg.Retry, func(ctx context.Context) ([]byte, error) {
		var r io.Reader
		if payload != nil {
			r = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, r)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Key "+g.cfg.APIKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := g.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		// 202 is the normal answer while a job is still queued
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &FalError{StatusCode: resp.StatusCode, Body: string(data)}
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
