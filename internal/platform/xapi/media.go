package xapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/platform"
)

// chunkSize is the append segment size for chunked uploads.
const chunkSize = 4 << 20

type processingInfo struct {
	State          string `json:"state"`
	CheckAfterSecs int    `json:"check_after_secs"`
	Error          *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type mediaData struct {
	Data struct {
		ID             string          `json:"id"`
		ProcessingInfo *processingInfo `json:"processing_info"`
	} `json:"data"`
}

func (m mediaData) handle() *platform.MediaHandle {
	h := &platform.MediaHandle{ID: m.Data.ID}
	if info := m.Data.ProcessingInfo; info != nil {
		h.State = platform.MediaState(info.State)
		h.CheckAfter = time.Duration(info.CheckAfterSecs) * time.Second
		if info.Error != nil {
			h.Error = info.Error.Message
		}
	}
	return h
}

// UploadMedia runs the initialize/append/finalize sequence. For video the
// returned handle usually carries a pending state; callers poll MediaStatus.
func (c *Client) UploadMedia(ctx context.Context, r io.Reader, mimeType string, category platform.MediaCategory) (*platform.MediaHandle, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("media is empty")
	}

	resp, err := c.do(ctx, http.MethodPost, "/2/media/upload/initialize", nil, map[string]any{
		"media_type":     mimeType,
		"total_bytes":    len(data),
		"media_category": string(category),
	})
	if err != nil {
		return nil, fmt.Errorf("media initialize: %w", err)
	}
	var init mediaData
	if err := decode(resp, &init); err != nil {
		return nil, err
	}
	mediaID := init.Data.ID
	if mediaID == "" {
		return nil, fmt.Errorf("media initialize returned no id")
	}

	for segment, offset := 0, 0; offset < len(data); segment, offset = segment+1, offset+chunkSize {
		end := min(offset+chunkSize, len(data))
		if err := c.appendChunk(ctx, mediaID, segment, data[offset:end]); err != nil {
			return nil, fmt.Errorf("media append segment %d: %w", segment, err)
		}
	}

	resp, err = c.do(ctx, http.MethodPost, "/2/media/upload/"+url.PathEscape(mediaID)+"/finalize", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("media finalize: %w", err)
	}
	var final mediaData
	if err := decode(resp, &final); err != nil {
		return nil, err
	}
	if final.Data.ID == "" {
		final.Data.ID = mediaID
	}

	h := final.handle()
	c.logger.Debug("media uploaded",
		logger.Field{Key: "media_id", Value: h.ID},
		logger.Field{Key: "category", Value: category},
		logger.Field{Key: "bytes", Value: len(data)},
		logger.Field{Key: "state", Value: h.State})
	return h, nil
}

func (c *Client) appendChunk(ctx context.Context, mediaID string, segment int, chunk []byte) error {
	_, err := c.send(ctx, c.executor, func() (*http.Request, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		if err := w.WriteField("segment_index", strconv.Itoa(segment)); err != nil {
			return nil, err
		}
		part, err := w.CreateFormFile("media", "chunk")
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(chunk); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.cfg.BaseURL+"/2/media/upload/"+url.PathEscape(mediaID)+"/append", &buf)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	})
	return err
}

// MediaStatus polls processing state for an uploaded video.
func (c *Client) MediaStatus(ctx context.Context, mediaID string) (*platform.MediaHandle, error) {
	q := url.Values{}
	q.Set("command", "STATUS")
	q.Set("media_id", mediaID)
	resp, err := c.do(ctx, http.MethodGet, "/2/media/upload", q, nil)
	if err != nil {
		return nil, err
	}
	var status mediaData
	if err := decode(resp, &status); err != nil {
		return nil, err
	}
	if status.Data.ID == "" {
		status.Data.ID = mediaID
	}
	return status.handle(), nil
}
