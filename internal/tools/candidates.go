package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/constants"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
)

const defaultCandidateListLimit = 10

// ListCandidatesTool shows the retweet candidate pool and the competitor
// tweets collected for commenting.
type ListCandidatesTool struct {
	queues *schedule.Queues
}

// NewListCandidatesTool creates list_candidates.
func NewListCandidatesTool(queues *schedule.Queues) *ListCandidatesTool {
	return &ListCandidatesTool{queues: queues}
}

type listCandidatesArgs struct {
	Limit int `json:"limit"`
}

func (t *ListCandidatesTool) Name() string { return "list_candidates" }

func (t *ListCandidatesTool) Description() string {
	return "List retweet candidates (ranked by retweets, then likes) and competitor tweets worth commenting on (ranked by likes plus replies)."
}

func (t *ListCandidatesTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"limit": map[string]interface{}{
			"type":        "integer",
			"description": fmt.Sprintf("Maximum entries per list. Default %d.", defaultCandidateListLimit),
		},
	})
}

func (t *ListCandidatesTool) Execute(args string) (string, error) {
	var a listCandidatesArgs
	if err := parseJSON(args, &a); err != nil {
		return "", err
	}
	limit := a.Limit
	if limit <= 0 {
		limit = defaultCandidateListLimit
	}

	var b strings.Builder
	candidates := t.queues.Retweets.AllCandidates()
	b.WriteString("Retweet candidates:\n")
	if len(candidates) == 0 {
		b.WriteString("  none\n")
	}
	for i, c := range candidates {
		if i == limit {
			break
		}
		fmt.Fprintf(&b, "  %s @%s rt=%d likes=%d: %s\n", c.TweetID, c.SourceAcc, c.RetweetCount, c.LikeCount, oneLine(c.TweetText))
	}

	competitors := t.queues.Competitors.Top(limit)
	b.WriteString("Competitor tweets:\n")
	if len(competitors) == 0 {
		b.WriteString("  none\n")
	}
	for _, c := range competitors {
		fmt.Fprintf(&b, "  %s @%s engagement=%d: %s\n", c.TweetID, c.Username, c.Engagement(), oneLine(c.Text))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TransferRetweetTool promotes a retweet candidate to a scheduled retweet
// shortly after now.
type TransferRetweetTool struct {
	retweets *schedule.RetweetManager
	now      func() time.Time
	lag      time.Duration
	logger   *logger.Logger
}

// NewTransferRetweetTool creates transfer_retweet.
func NewTransferRetweetTool(retweets *schedule.RetweetManager, now func() time.Time, log *logger.Logger) *TransferRetweetTool {
	return &TransferRetweetTool{retweets: retweets, now: now, lag: constants.DefaultTransferRetweetLag, logger: log}
}

type transferArgs struct {
	TweetID string `json:"tweet_id"`
	Comment string `json:"comment"`
}

func (t *TransferRetweetTool) Name() string { return "transfer_retweet" }

func (t *TransferRetweetTool) Description() string {
	return "Schedule a retweet of a candidate from list_candidates."
}

func (t *TransferRetweetTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"tweet_id": stringProp("ID of the retweet candidate."),
	}, "tweet_id")
}

func (t *TransferRetweetTool) Execute(args string) (string, error) {
	var a transferArgs
	if err := parseJSON(args, &a); err != nil {
		return "", err
	}
	if a.TweetID == "" {
		return "", NewValidationError("missing_tweet_id", "tweet_id is required", nil)
	}
	r := t.retweets.ScheduleFromCandidate(a.TweetID, t.now().UTC().Add(t.lag))
	if r == nil {
		return "", NewNotFoundError("candidate_not_found",
			fmt.Sprintf("no unscheduled retweet candidate %s", a.TweetID),
			"call list_candidates for valid IDs")
	}
	t.logger.Info("retweet scheduled by planner",
		logger.Field{Key: "tweet_id", Value: r.TweetID},
		logger.Field{Key: "source", Value: r.SourceAcc})
	return fmt.Sprintf("Retweet of %s by @%s scheduled for %s.", r.TweetID, r.SourceAcc, r.ScheduledTime.Format(time.RFC3339)), nil
}

// TransferCommentTool turns a competitor tweet into a CommentSchedule due
// now and drops it from the competitor pool.
type TransferCommentTool struct {
	queues *schedule.Queues
	now    func() time.Time
	logger *logger.Logger
}

// NewTransferCommentTool creates transfer_comment.
func NewTransferCommentTool(queues *schedule.Queues, now func() time.Time, log *logger.Logger) *TransferCommentTool {
	return &TransferCommentTool{queues: queues, now: now, logger: log}
}

func (t *TransferCommentTool) Name() string { return "transfer_comment" }

func (t *TransferCommentTool) Description() string {
	return "Schedule a comment on a competitor tweet from list_candidates. comment is the ready-to-post text; leave it empty to have it written at posting time."
}

func (t *TransferCommentTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"tweet_id": stringProp("ID of the competitor tweet."),
		"comment":  stringProp("Optional ready-to-post comment text; generated at posting time when empty."),
	}, "tweet_id")
}

func (t *TransferCommentTool) Execute(args string) (string, error) {
	var a transferArgs
	if err := parseJSON(args, &a); err != nil {
		return "", err
	}
	if a.TweetID == "" {
		return "", NewValidationError("missing_tweet_id", "tweet_id is required", nil)
	}
	competitor := t.queues.Competitors.Find(a.TweetID)
	if competitor == nil {
		return "", NewNotFoundError("competitor_not_found",
			fmt.Sprintf("no competitor tweet %s", a.TweetID),
			"call list_candidates for valid IDs")
	}

	text := a.Comment
	if text == "" {
		text = competitor.CommentText
	}
	c := t.queues.Comments.AddComment(&schedule.CommentSchedule{
		ActionMeta:  schedule.ActionMeta{ScheduledTime: t.now()},
		TimePosted:  competitor.TimePosted,
		TweetID:     competitor.TweetID,
		CommentText: text,
		CompanyLink: competitor.CompanyLink,
	})
	t.queues.Competitors.Remove(competitor.TweetID)

	t.logger.Info("comment scheduled by planner",
		logger.Field{Key: "tweet_id", Value: c.TweetID},
		logger.Field{Key: "author", Value: competitor.Username})
	return fmt.Sprintf("Comment on %s by @%s scheduled as %s.", c.TweetID, competitor.Username, c.ID), nil
}
