package handlers

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aatumaykin/cryptopilot/internal/agents"
	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/media"
	"github.com/aatumaykin/cryptopilot/internal/platform"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

// PostHandler publishes overdue scheduled posts.
type PostHandler struct {
	base
	posts    *schedule.ScheduleManager
	tracker  *tracker.TweetTracker
	platform platform.Client
	writer   agents.TextGenerator
	media    media.Producer
}

// NewPostHandler creates the handler. Without a media producer, media
// posts go out as text only.
func NewPostHandler(deps Deps, cfg Config) *PostHandler {
	h := &PostHandler{
		base:     newBase(constants.HandlerPost, deps, cfg),
		posts:    deps.Queues.Posts,
		tracker:  deps.Tracker,
		platform: deps.Platform,
		writer:   deps.Writer,
		media:    deps.Media,
	}
	h.requireDep(h.writer != nil, "text generator")
	h.requireDep(h.media != nil, "media producer")
	return h
}

// ProcessDue handles every overdue post, media posts first. After a
// platform attempt the entry leaves pending whatever the result; when text
// generation fails before any attempt it stays pending.
func (h *PostHandler) ProcessDue(ctx context.Context) BatchStats {
	var stats BatchStats
	due := h.posts.OverdueEvents()
	if len(due) == 0 {
		return stats
	}
	slices.SortStableFunc(due, func(a, b *schedule.Schedule) int {
		switch {
		case a.WantsMedia() == b.WantsMedia():
			return 0
		case a.WantsMedia():
			return -1
		}
		return 1
	})

	h.throttle.reset()
	for _, s := range due {
		if ctx.Err() != nil {
			break
		}
		if !h.quota.Allow(h.name) {
			h.record(ctx, &stats, skip(s.ID, "", "daily quota reached"))
			break
		}
		h.record(ctx, &stats, h.process(ctx, s))
	}
	return stats
}

func (h *PostHandler) process(ctx context.Context, s *schedule.Schedule) ItemResult {
	if h.writer == nil {
		return skip(s.ID, "", "no text generator")
	}
	text, err := h.writer.GeneratePost(ctx, agents.PostBrief{
		CurrentEvents: s.CurrentEvents,
		Content:       s.Content,
		WithMedia:     s.WantsMedia(),
	})
	if err != nil {
		return fail(s.ID, "", "text generation failed", err)
	}
	text = truncate(text)
	if text == "" {
		return fail(s.ID, "", "text generation failed", agents.ErrEmptyOutput)
	}

	req := platform.PostRequest{Text: text}
	if mediaID := h.produceMedia(ctx, s); mediaID != "" {
		req.MediaIDs = []string{mediaID}
	}

	if err := h.throttle.wait(ctx); err != nil {
		return fail(s.ID, "", "cancelled", err)
	}
	id, err := h.platform.Post(ctx, req)
	h.posts.RemoveScheduledPost(s)

	switch {
	case errors.Is(err, platform.ErrDuplicateContent):
		return ItemResult{ID: s.ID, Outcome: OutcomeDuplicate, Reason: "duplicate post", Err: err}
	case err != nil:
		return fail(s.ID, "", "post failed", err)
	case id == "":
		return fail(s.ID, "", "post failed", fmt.Errorf("platform returned no id"))
	}
	h.tracker.AddPost(id)
	h.quota.Use(h.name)
	return success(s.ID, "", id)
}

// produceMedia returns an empty ID when the post should go out as text.
func (h *PostHandler) produceMedia(ctx context.Context, s *schedule.Schedule) string {
	if !s.WantsMedia() {
		return ""
	}
	if h.media == nil {
		h.logger.WarnCtx(ctx, "media requested but no producer configured, posting text only",
			logger.Field{Key: "id", Value: s.ID})
		return ""
	}
	prompt := s.MediaPrompt
	if prompt == "" {
		prompt = s.CurrentEvents
	}
	mediaID, err := h.media.Produce(ctx, s.MediaType, prompt)
	if err != nil {
		h.logger.WarnCtx(ctx, "media generation failed, posting text only",
			logger.Field{Key: "id", Value: s.ID},
			logger.Field{Key: "media_type", Value: string(s.MediaType)},
			logger.Field{Key: "error", Value: err.Error()})
		return ""
	}
	return mediaID
}
