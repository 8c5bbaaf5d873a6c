package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/platform"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

// PollHandler publishes one poll per run.
type PollHandler struct {
	base
	polls    *schedule.PollScheduleManager
	tracker  *tracker.TweetTracker
	platform platform.Client
}

func NewPollHandler(deps Deps, cfg Config) *PollHandler {
	return &PollHandler{
		base:     newBase(constants.HandlerPoll, deps, cfg),
		polls:    deps.Queues.Polls,
		tracker:  deps.Tracker,
		platform: deps.Platform,
	}
}

// PostDuePoll posts the earliest pending poll if it is due. The poll is
// marked completed after the attempt even when the platform call failed,
// so failed polls are not retried.
func (h *PollHandler) PostDuePoll(ctx context.Context) BatchStats {
	var stats BatchStats
	p := h.polls.NextPoll()
	if p == nil || !p.Due(h.now()) {
		return stats
	}
	if !h.quota.Allow(h.name) {
		h.record(ctx, &stats, skip(p.ID, "", "daily quota reached"))
		return stats
	}
	h.record(ctx, &stats, h.process(ctx, p))
	return stats
}

func (h *PollHandler) process(ctx context.Context, p *schedule.PollSchedule) ItemResult {
	duration := p.DurationMinutes
	if duration <= 0 {
		duration = constants.DefaultPollDurationMinutes
	}
	id, err := h.platform.Post(ctx, platform.PostRequest{
		Text: truncate(p.Question),
		Poll: &platform.PollSpec{Options: p.Options, DurationMinutes: duration},
	})
	h.polls.MarkPollCompleted(p)

	switch {
	case errors.Is(err, platform.ErrDuplicateContent):
		return ItemResult{ID: p.ID, Outcome: OutcomeDuplicate, Reason: "duplicate poll", Err: err}
	case err != nil:
		return fail(p.ID, "", "poll failed", err)
	case id == "":
		return fail(p.ID, "", "poll failed", fmt.Errorf("platform returned no id"))
	}
	h.tracker.AddPoll(id)
	h.quota.Use(h.name)
	return success(p.ID, "", id)
}
