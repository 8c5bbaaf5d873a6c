// Package media turns a prompt into platform media: a Generator renders an
// image or video and returns its URL, the Pipeline downloads it, uploads it
// through the platform client and waits for video processing to finish.
package media

import (
	"context"
	"errors"

	"github.com/aatumaykin/cryptopilot/internal/schedule"
)

var (
	// ErrNotReady is returned when processing did not finish within the
	// polling budget.
	ErrNotReady = errors.New("media not ready")
	// ErrUnsupported is returned for media types other than image and video.
	ErrUnsupported = errors.New("unsupported media type")
	// ErrTooLarge is returned when a generated file exceeds the download limit.
	ErrTooLarge = errors.New("media too large")
)

// Generator renders media from a text prompt and returns a download URL.
type Generator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
	GenerateVideo(ctx context.Context, prompt string) (string, error)
}

// Producer yields an uploaded, ready-to-attach platform media ID.
type Producer interface {
	Produce(ctx context.Context, kind schedule.MediaType, prompt string) (string, error)
}
