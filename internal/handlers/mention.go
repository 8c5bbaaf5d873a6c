package handlers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/wasilibs/go-re2"

	"github.com/aatumaykin/cryptopilot/internal/agents"
	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/media"
	"github.com/aatumaykin/cryptopilot/internal/platform"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

// MentionState is the last stage a mention reached in one pass. A mention
// dropped before the action reports the check that dropped it.
type MentionState string

const (
	MentionBasicCheck MentionState = "basic_check"
	MentionContent    MentionState = "content_check"
	MentionShape      MentionState = "shape_decision"
	MentionAttempted  MentionState = "action_attempted"
	MentionTracked    MentionState = "tracked"
)

// MentionStats extends BatchStats with the mention-specific counters.
type MentionStats struct {
	BatchStats
	Attempted    int                            `json:"attempted"`
	CommentStats map[string]tracker.CommentStat `json:"comment_stats"`
}

// MentionResponder answers mentions of the account.
type MentionResponder struct {
	base
	tracker  *tracker.TweetTracker
	platform platform.Client
	writer   agents.TextGenerator
	decider  agents.DecisionClassifier
	media    media.Producer
	history  *History
	lookback time.Duration
	maxRun   int
	self     *re2.Regexp

	lastCheck time.Time
}

func NewMentionResponder(deps Deps, cfg Config) *MentionResponder {
	cfg = cfg.withDefaults()
	h := &MentionResponder{
		base:     newBase(constants.HandlerMention, deps, cfg),
		tracker:  deps.Tracker,
		platform: deps.Platform,
		writer:   deps.Writer,
		decider:  deps.Decider,
		media:    deps.Media,
		history:  NewHistory(cfg.HistorySize),
		lookback: cfg.MentionLookback,
		maxRun:   cfg.MaxMentionsPerRun,
		self:     selfMention(cfg.Handle),
	}
	h.requireDep(h.decider != nil, "decision classifier")
	h.requireDep(h.writer != nil, "text generator")
	return h
}

func (h *MentionResponder) History() *History { return h.history }

// LastCheck returns the start of the next lookback window; zero before the first run.
func (h *MentionResponder) LastCheck() time.Time { return h.lastCheck }

// SetLastCheck restores the lookback cursor from persisted state.
func (h *MentionResponder) SetLastCheck(t time.Time) { h.lastCheck = t.UTC() }

// ProcessMentions fetches mentions since the last check and walks each one
// through the decision pipeline, oldest first. Mentions are not queued: a
// dropped mention is only seen again if it falls into a later window. At
// most MaxMentionsPerRun mentions get past the basic check in one pass; the
// rest are counted as skipped and the cursor stops at the first of them so
// the next pass picks them up.
func (h *MentionResponder) ProcessMentions(ctx context.Context) MentionStats {
	stats := MentionStats{}
	now := h.now()
	since := h.lastCheck
	if since.IsZero() {
		since = now.Add(-h.lookback)
	}

	mentions, err := h.platform.FetchMentions(ctx, since)
	if err != nil {
		h.logger.ErrorCtx(ctx, "failed to fetch mentions", err, logger.Field{Key: "since", Value: since})
		return stats
	}

	me, err := h.platform.Me(ctx)
	if err != nil {
		h.logger.ErrorCtx(ctx, "failed to resolve own account", err)
		return stats
	}

	slices.SortStableFunc(mentions, func(a, b platform.Tweet) int { return a.CreatedAt.Compare(b.CreatedAt) })

	cursor := now
	processed := 0
	h.throttle.reset()
	for i, m := range mentions {
		if ctx.Err() != nil || processed >= h.maxRun {
			rest := mentions[i:]
			cursor = resumeCursor(since, rest[0])
			stats.Total += len(rest)
			stats.Skipped += len(rest)
			h.logger.InfoCtx(ctx, "mention pass stopped, deferring the rest",
				logger.Field{Key: "processed", Value: processed},
				logger.Field{Key: "deferred", Value: len(rest)})
			break
		}
		r, state := h.process(ctx, m, me)
		if state != MentionBasicCheck {
			processed++
		}
		if state == MentionAttempted || state == MentionTracked {
			stats.Attempted++
		}
		h.logger.DebugCtx(ctx, "mention processed",
			logger.Field{Key: "mention_id", Value: m.ID},
			logger.Field{Key: "state", Value: string(state)},
			logger.Field{Key: "dropped", Value: state != MentionTracked && state != MentionAttempted})
		h.record(ctx, &stats.BatchStats, r)
	}
	h.lastCheck = cursor
	stats.CommentStats = h.tracker.CommentStats()
	return stats
}

// resumeCursor is where the next window starts when m was left unprocessed.
// The platform treats the start as inclusive.
func resumeCursor(since time.Time, m platform.Tweet) time.Time {
	if m.CreatedAt.Before(since) {
		return since
	}
	return m.CreatedAt.UTC()
}

func (h *MentionResponder) process(ctx context.Context, m platform.Tweet, me *platform.Identity) (ItemResult, MentionState) {
	conversation := m.ConversationID

	// BASIC_CHECK runs before any external call.
	switch {
	case h.tracker.IsOurTweet(m.ID):
		return skip(m.ID, conversation, "own tweet"), MentionBasicCheck
	case m.AuthorID == me.ID:
		return skip(m.ID, conversation, "authored by self"), MentionBasicCheck
	case conversation == "":
		return skip(m.ID, conversation, "no conversation id"), MentionBasicCheck
	case h.history.Contains(m.ID):
		return skip(m.ID, conversation, "already answered"), MentionBasicCheck
	case !h.tracker.CanComment(conversation):
		return skip(m.ID, conversation, "thread limit reached"), MentionBasicCheck
	case !h.quota.Allow(h.name):
		return skip(m.ID, conversation, "daily quota reached"), MentionBasicCheck
	}

	mc := agents.MentionContext{MentionText: m.Text, Author: m.AuthorUsername}
	ownThread := h.tracker.IsOurTweet(conversation)
	if root, err := h.platform.FetchThreadRoot(ctx, conversation); err == nil && root != nil {
		mc.ThreadText = root.Text
		ownThread = ownThread || root.AuthorID == me.ID
	} else if err != nil {
		h.logger.DebugCtx(ctx, "thread root unavailable",
			logger.Field{Key: "conversation_id", Value: conversation},
			logger.Field{Key: "error", Value: err.Error()})
	}

	// CONTENT_CHECK: errors and a missing classifier mean ignore.
	if h.decider == nil {
		return skip(m.ID, conversation, "no decision classifier"), MentionContent
	}
	decision, err := h.decider.DecideMention(ctx, mc)
	if err != nil {
		h.logger.WarnCtx(ctx, "mention decision failed, ignoring",
			logger.Field{Key: "mention_id", Value: m.ID},
			logger.Field{Key: "error", Value: err.Error()})
		return skip(m.ID, conversation, "decision failed"), MentionContent
	}
	if !decision.Reply {
		return skip(m.ID, conversation, "ignored: "+decision.Reason), MentionContent
	}

	// SHAPE_DECISION: errors fall back to a normal reply.
	shape, err := h.decider.ShapeResponse(ctx, mc)
	if err != nil {
		h.logger.WarnCtx(ctx, "shape decision failed, replying normally",
			logger.Field{Key: "mention_id", Value: m.ID},
			logger.Field{Key: "error", Value: err.Error()})
		shape = agents.Shape{Type: agents.ShapeNormal}
	}
	if shape.Type == agents.ShapeNoReply {
		return skip(m.ID, conversation, "no reply"), MentionShape
	}

	req := platform.PostRequest{InReplyTo: m.ID}
	text := ""
	if shape.Type == agents.ShapeImage || shape.Type == agents.ShapeVideo {
		if mediaID := h.produceMedia(ctx, m.ID, shape); mediaID != "" {
			req.MediaIDs = []string{mediaID}
			text = shape.Message
		}
	}
	if text == "" {
		if h.writer == nil {
			return fail(m.ID, conversation, "no text generator", nil), MentionShape
		}
		text, err = h.writer.GenerateReply(ctx, agents.ReplyBrief{
			MentionText: m.Text,
			ThreadText:  mc.ThreadText,
			Author:      m.AuthorUsername,
			OwnThread:   ownThread,
		})
		if err != nil {
			return fail(m.ID, conversation, "reply generation failed", err), MentionShape
		}
	}
	req.Text = truncate(stripSelfMention(h.self, text))
	if req.Text == "" && len(req.MediaIDs) == 0 {
		return fail(m.ID, conversation, "reply generation failed", agents.ErrEmptyOutput), MentionShape
	}

	// ACTION_ATTEMPTED
	if err := h.throttle.wait(ctx); err != nil {
		return fail(m.ID, conversation, "cancelled", err), MentionShape
	}
	replyID, err := h.platform.Post(ctx, req)
	switch {
	case errors.Is(err, platform.ErrDuplicateContent):
		h.history.Add(m.ID)
		return ItemResult{ID: m.ID, Target: conversation, Outcome: OutcomeDuplicate, Reason: "duplicate reply", Err: err}, MentionAttempted
	case err != nil:
		return fail(m.ID, conversation, "reply failed", err), MentionAttempted
	case replyID == "":
		return fail(m.ID, conversation, "reply failed", fmt.Errorf("platform returned no id")), MentionAttempted
	}

	// TRACKED: the limit is per conversation, not per mention.
	if err := h.tracker.AddComment(replyID, conversation); err != nil {
		h.logger.ErrorCtx(ctx, "comment recorded past its limit", err)
	}
	h.history.Add(m.ID)
	h.quota.Use(h.name)
	return success(m.ID, conversation, replyID), MentionTracked
}

func (h *MentionResponder) produceMedia(ctx context.Context, mentionID string, shape agents.Shape) string {
	if h.media == nil {
		return ""
	}
	kind := schedule.MediaImage
	if shape.Type == agents.ShapeVideo {
		kind = schedule.MediaVideo
	}
	mediaID, err := h.media.Produce(ctx, kind, shape.Prompt)
	if err != nil {
		h.logger.WarnCtx(ctx, "media reply failed, replying with text",
			logger.Field{Key: "mention_id", Value: mentionID},
			logger.Field{Key: "error", Value: err.Error()})
		return ""
	}
	return mediaID
}
