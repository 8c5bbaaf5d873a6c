package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
)

// SchedulePostTool adds a post to the ScheduleManager. With media enabled
// it registers as schedule_media_post and requires a media type and prompt.
type SchedulePostTool struct {
	posts     *schedule.ScheduleManager
	withMedia bool
	now       func() time.Time
	logger    *logger.Logger
}

// NewSchedulePostTool creates schedule_post.
func NewSchedulePostTool(posts *schedule.ScheduleManager, now func() time.Time, log *logger.Logger) *SchedulePostTool {
	return &SchedulePostTool{posts: posts, now: now, logger: log}
}

// NewScheduleMediaPostTool creates schedule_media_post.
func NewScheduleMediaPostTool(posts *schedule.ScheduleManager, now func() time.Time, log *logger.Logger) *SchedulePostTool {
	return &SchedulePostTool{posts: posts, withMedia: true, now: now, logger: log}
}

type schedulePostArgs struct {
	Time          string `json:"time"`
	CurrentEvents string `json:"current_events"`
	Content       string `json:"content"`
	MediaType     string `json:"media_type"`
	MediaPrompt   string `json:"media_prompt"`
}

func (t *SchedulePostTool) Name() string {
	if t.withMedia {
		return "schedule_media_post"
	}
	return "schedule_post"
}

func (t *SchedulePostTool) Description() string {
	if t.withMedia {
		return "Schedule a post with a generated image or video. The media is rendered from media_prompt when the post is published."
	}
	return "Schedule a text post. current_events is the topic or news hook, content the angle to take. Omit time to publish at the next cycle."
}

func (t *SchedulePostTool) Parameters() map[string]interface{} {
	props := map[string]interface{}{
		"time":           stringProp("Publication time, RFC3339 UTC. Optional, defaults to now."),
		"current_events": stringProp("Topic, news or event the post is about."),
		"content":        stringProp("What the post should say or argue."),
	}
	required := []string{"current_events"}
	if t.withMedia {
		props["media_type"] = map[string]interface{}{"type": "string", "enum": []string{"image", "video"}}
		props["media_prompt"] = stringProp("Visual description for the media generator.")
		required = append(required, "media_type", "media_prompt")
	}
	return objectSchema(props, required...)
}

func (t *SchedulePostTool) Execute(args string) (string, error) {
	var a schedulePostArgs
	if err := parseJSON(args, &a); err != nil {
		return "", err
	}
	if strings.TrimSpace(a.CurrentEvents) == "" && strings.TrimSpace(a.Content) == "" {
		return "", NewValidationError("missing_topic", "current_events or content is required", nil)
	}
	when, err := resolveTime(a.Time, t.now())
	if err != nil {
		return "", err
	}

	s := &schedule.Schedule{
		ActionMeta:    schedule.ActionMeta{ScheduledTime: when},
		CurrentEvents: a.CurrentEvents,
		Content:       a.Content,
	}
	if t.withMedia {
		mt := schedule.MediaType(strings.ToLower(a.MediaType))
		if mt == schedule.MediaNone || !mt.Valid() {
			return "", NewValidationError("invalid_media_type", "media_type must be image or video",
				map[string]any{"value": a.MediaType})
		}
		if strings.TrimSpace(a.MediaPrompt) == "" {
			return "", NewValidationError("missing_media_prompt", "media_prompt is required", nil)
		}
		s.IncludeMedia = true
		s.MediaType = mt
		s.MediaPrompt = a.MediaPrompt
	} else if a.MediaType != "" || a.MediaPrompt != "" {
		return "", NewValidationError("media_not_supported", "use schedule_media_post for media", nil)
	}

	s = t.posts.AddSchedule(s)
	t.logger.Info("post scheduled by planner",
		logger.Field{Key: "id", Value: s.ID},
		logger.Field{Key: "scheduled_time", Value: s.ScheduledTime},
		logger.Field{Key: "media", Value: string(s.MediaType)})
	return fmt.Sprintf("Post %s scheduled for %s.", s.ID, s.ScheduledTime.Format(time.RFC3339)), nil
}

// SchedulePollTool adds a poll to the PollScheduleManager after validating
// the option count and length. Invalid polls are rejected without mutation.
type SchedulePollTool struct {
	polls  *schedule.PollScheduleManager
	now    func() time.Time
	logger *logger.Logger
}

// NewSchedulePollTool creates schedule_poll.
func NewSchedulePollTool(polls *schedule.PollScheduleManager, now func() time.Time, log *logger.Logger) *SchedulePollTool {
	return &SchedulePollTool{polls: polls, now: now, logger: log}
}

type schedulePollArgs struct {
	Time            string   `json:"time"`
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	DurationMinutes int      `json:"duration_minutes"`
}

func (t *SchedulePollTool) Name() string { return "schedule_poll" }

func (t *SchedulePollTool) Description() string {
	return fmt.Sprintf("Schedule a poll with %d-%d options of at most %d characters each.",
		constants.PollMinOptions, constants.PollMaxOptions, constants.PollOptionMaxChars)
}

func (t *SchedulePollTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"time":     stringProp("Publication time, RFC3339 UTC. Optional, defaults to now."),
		"question": stringProp("Poll question."),
		"options": map[string]interface{}{
			"type":     "array",
			"items":    map[string]interface{}{"type": "string"},
			"minItems": constants.PollMinOptions,
			"maxItems": constants.PollMaxOptions,
		},
		"duration_minutes": map[string]interface{}{
			"type":        "integer",
			"description": fmt.Sprintf("How long the poll stays open. Default %d.", constants.DefaultPollDurationMinutes),
		},
	}, "question", "options")
}

func (t *SchedulePollTool) Execute(args string) (string, error) {
	var a schedulePollArgs
	if err := parseJSON(args, &a); err != nil {
		return "", err
	}
	if err := schedule.ValidatePoll(a.Question, a.Options); err != nil {
		return "", NewValidationError("invalid_poll", err.Error(), map[string]any{"options": len(a.Options)})
	}
	when, err := resolveTime(a.Time, t.now())
	if err != nil {
		return "", err
	}
	duration := a.DurationMinutes
	if duration <= 0 {
		duration = constants.DefaultPollDurationMinutes
	}

	options := make([]string, len(a.Options))
	for i, opt := range a.Options {
		options[i] = strings.TrimSpace(opt)
	}
	p := t.polls.AddPoll(&schedule.PollSchedule{
		ActionMeta:      schedule.ActionMeta{ScheduledTime: when},
		Question:        strings.TrimSpace(a.Question),
		Options:         options,
		DurationMinutes: duration,
	})
	t.logger.Info("poll scheduled by planner",
		logger.Field{Key: "id", Value: p.ID},
		logger.Field{Key: "scheduled_time", Value: p.ScheduledTime})
	return fmt.Sprintf("Poll %s scheduled for %s.", p.ID, p.ScheduledTime.Format(time.RFC3339)), nil
}

// ListScheduleTool shows pending work so the planner avoids duplicates.
type ListScheduleTool struct {
	queues *schedule.Queues
}

// NewListScheduleTool creates list_schedule.
func NewListScheduleTool(queues *schedule.Queues) *ListScheduleTool {
	return &ListScheduleTool{queues: queues}
}

func (t *ListScheduleTool) Name() string { return "list_schedule" }

func (t *ListScheduleTool) Description() string {
	return "List pending posts, polls, retweets and comments."
}

func (t *ListScheduleTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *ListScheduleTool) Execute(string) (string, error) {
	var b strings.Builder
	posts := t.queues.Posts.Pending()
	polls := t.queues.Polls.Pending()
	retweets := t.queues.Retweets.Pending()
	comments := t.queues.Comments.Pending()
	if len(posts)+len(polls)+len(retweets)+len(comments) == 0 {
		return "Nothing is scheduled.", nil
	}
	for _, p := range posts {
		fmt.Fprintf(&b, "post %s | %s | %s | %s", p.ID, p.ScheduledTime.Format(time.RFC3339), p.CurrentEvents, p.Content)
		if p.WantsMedia() {
			fmt.Fprintf(&b, " | %s: %s", p.MediaType, p.MediaPrompt)
		}
		b.WriteByte('\n')
	}
	for _, p := range polls {
		fmt.Fprintf(&b, "poll %s | %s | %s | %s\n", p.ID, p.ScheduledTime.Format(time.RFC3339), p.Question, strings.Join(p.Options, " / "))
	}
	for _, r := range retweets {
		fmt.Fprintf(&b, "retweet %s | %s | @%s tweet %s\n", r.ID, r.ScheduledTime.Format(time.RFC3339), r.SourceAcc, r.TweetID)
	}
	for _, c := range comments {
		fmt.Fprintf(&b, "comment %s | %s | tweet %s\n", c.ID, c.ScheduledTime.Format(time.RFC3339), c.TweetID)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
