package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/platform"
	"github.com/aatumaykin/cryptopilot/internal/retry"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
)

type staticGenerator struct {
	url string
	err error
}

func (g staticGenerator) GenerateImage(context.Context, string) (string, error) { return g.url, g.err }
func (g staticGenerator) GenerateVideo(context.Context, string) (string, error) { return g.url, g.err }

func mediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("binary"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestPipeline(gen Generator, up Uploader, waits *[]time.Duration) *Pipeline {
	p := NewPipeline(gen, up, PipelineConfig{PollAttempts: 3, PollInterval: 2 * time.Second, MaxPollInterval: 10 * time.Second}, logger.Nop())
	p.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return p
}

func TestPipeline_ImageReadyImmediately(t *testing.T) {
	srv := mediaServer(t)
	fake := platform.NewFake()
	var waits []time.Duration

	id, err := newTestPipeline(staticGenerator{url: srv.URL + "/img"}, fake, &waits).
		Produce(context.Background(), schedule.MediaImage, "bull run")

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []platform.MediaCategory{platform.CategoryImage}, fake.Uploads)
	assert.Empty(t, waits)
}

func TestPipeline_VideoPollsWithServerHint(t *testing.T) {
	srv := mediaServer(t)
	fake := platform.NewFake()
	fake.MediaStates = []platform.MediaHandle{
		{State: platform.MediaInProgress, CheckAfter: 5 * time.Second},
		{State: platform.MediaInProgress, CheckAfter: time.Hour},
		{State: platform.MediaSucceeded},
	}
	var waits []time.Duration

	id, err := newTestPipeline(staticGenerator{url: srv.URL + "/vid"}, fake, &waits).
		Produce(context.Background(), schedule.MediaVideo, "moon")

	require.NoError(t, err)
	assert.NotEmpty(t, id)
	// upload handle has no hint, then 5s, then the 1h hint is capped
	assert.Equal(t, []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}, waits)
}

func TestPipeline_VideoNeverReady(t *testing.T) {
	srv := mediaServer(t)
	fake := platform.NewFake()
	fake.MediaStates = []platform.MediaHandle{{State: platform.MediaInProgress}}
	var waits []time.Duration

	_, err := newTestPipeline(staticGenerator{url: srv.URL + "/vid"}, fake, &waits).
		Produce(context.Background(), schedule.MediaVideo, "moon")

	assert.ErrorIs(t, err, ErrNotReady)
	assert.Len(t, waits, 3)
}

func TestPipeline_VideoFailed(t *testing.T) {
	srv := mediaServer(t)
	fake := platform.NewFake()
	fake.MediaStates = []platform.MediaHandle{{State: platform.MediaFailed, Error: "InvalidMedia"}}
	var waits []time.Duration

	_, err := newTestPipeline(staticGenerator{url: srv.URL + "/vid"}, fake, &waits).
		Produce(context.Background(), schedule.MediaVideo, "moon")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidMedia")
	assert.NotErrorIs(t, err, ErrNotReady)
}

func TestPipeline_Failures(t *testing.T) {
	srv := mediaServer(t)
	var waits []time.Duration
	ctx := context.Background()

	t.Run("generator error", func(t *testing.T) {
		_, err := newTestPipeline(staticGenerator{err: errors.New("quota")}, platform.NewFake(), &waits).
			Produce(ctx, schedule.MediaImage, "x")
		assert.ErrorContains(t, err, "quota")
	})

	t.Run("download error", func(t *testing.T) {
		_, err := newTestPipeline(staticGenerator{url: srv.URL + "/gone"}, platform.NewFake(), &waits).
			Produce(ctx, schedule.MediaImage, "x")
		assert.ErrorContains(t, err, "status 404")
	})

	t.Run("upload error", func(t *testing.T) {
		fake := platform.NewFake()
		fake.UploadErr = errors.New("too large")
		_, err := newTestPipeline(staticGenerator{url: srv.URL + "/img"}, fake, &waits).
			Produce(ctx, schedule.MediaImage, "x")
		assert.ErrorContains(t, err, "too large")
	})

	t.Run("unsupported kind", func(t *testing.T) {
		_, err := newTestPipeline(staticGenerator{url: srv.URL}, platform.NewFake(), &waits).
			Produce(ctx, schedule.MediaNone, "x")
		assert.ErrorIs(t, err, ErrUnsupported)
	})
}

func TestPipeline_DownloadOverLimit(t *testing.T) {
	body := strings.Repeat("x", 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if r.URL.Path == "/chunked" {
			// no Content-Length, the limit applies to the body itself
			w.(http.Flusher).Flush()
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	tests := []struct {
		name  string
		path  string
		limit int64
		err   bool
	}{
		{"declared length over limit", "/sized", 32, true},
		{"streamed body over limit", "/chunked", 32, true},
		{"exactly at limit", "/sized", 64, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := platform.NewFake()
			p := NewPipeline(staticGenerator{url: srv.URL + tt.path}, fake,
				PipelineConfig{MaxDownloadBytes: tt.limit}, logger.Nop())

			_, err := p.Produce(context.Background(), schedule.MediaImage, "x")

			if tt.err {
				assert.ErrorIs(t, err, ErrTooLarge)
				assert.Empty(t, fake.Uploads, "truncated file must not be uploaded")
				return
			}
			require.NoError(t, err)
			assert.Len(t, fake.Uploads, 1)
		})
	}
}

func TestFalGenerator_ImageFlow(t *testing.T) {
	var polls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Key fal-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/fal-ai/flux/schnell":
			assert.Equal(t, http.MethodPost, r.Method)
			_, _ = w.Write([]byte(`{"request_id":"r1","status_url":"` + srv.URL + `/status","response_url":"` + srv.URL + `/result"}`))
		case "/status":
			if polls.Add(1) == 1 {
				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte(`{"status":"IN_QUEUE"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"COMPLETED"}`))
		case "/result":
			_, _ = w.Write([]byte(`{"images":[{"url":"https://cdn.example/img.png"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	gen := NewFalGenerator(FalConfig{
		BaseURL:      srv.URL,
		APIKey:       "fal-key",
		PollInterval: time.Millisecond,
		Retry:        retry.Config{MaxAttempts: 1},
	}, logger.Nop())

	url, err := gen.GenerateImage(context.Background(), "btc bull")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/img.png", url)
	assert.Equal(t, int32(2), polls.Load())
}

func TestFalGenerator_FailedJob(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			_, _ = w.Write([]byte(`{"status":"FAILED"}`))
		default:
			_, _ = w.Write([]byte(`{"request_id":"r2","status_url":"` + srv.URL + `/status","response_url":"` + srv.URL + `/result"}`))
		}
	}))
	defer srv.Close()

	gen := NewFalGenerator(FalConfig{BaseURL: srv.URL, PollInterval: time.Millisecond, Retry: retry.Config{MaxAttempts: 1}}, logger.Nop())
	_, err := gen.GenerateVideo(context.Background(), "x")
	assert.ErrorContains(t, err, `status "FAILED"`)
}
