// Package platform defines the social platform client the handlers act through.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrDuplicateContent means the platform refused a post as already published.
	ErrDuplicateContent = errors.New("duplicate content")
	// ErrNotFound means the tweet or user does not exist (or was deleted).
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx platform response.
type APIError struct {
	StatusCode int
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("platform API error: status=%d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("platform API error: status=%d, body=%s", e.StatusCode, e.Body)
}

// Tweet is the subset of tweet data the agent works with.
type Tweet struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	AuthorID       string    `json:"author_id"`
	AuthorUsername string    `json:"author_username"`
	ConversationID string    `json:"conversation_id"`
	InReplyToID    string    `json:"in_reply_to_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LikeCount      int       `json:"like_count"`
	RetweetCount   int       `json:"retweet_count"`
	ReplyCount     int       `json:"reply_count"`
}

// Identity is the authenticated account.
type Identity struct {
	ID       string
	Username string
}

// PollSpec attaches a poll to a post.
type PollSpec struct {
	Options         []string
	DurationMinutes int
}

// PostRequest describes a tweet to create. InReplyTo makes it a reply.
type PostRequest struct {
	Text      string
	MediaIDs  []string
	InReplyTo string
	Poll      *PollSpec
}

// MediaCategory selects the upload pipeline on the platform side.
type MediaCategory string

const (
	CategoryImage MediaCategory = "tweet_image"
	CategoryVideo MediaCategory = "tweet_video"
)

// MediaState is the server-side processing state of an upload.
type MediaState string

const (
	MediaPending    MediaState = "pending"
	MediaInProgress MediaState = "in_progress"
	MediaSucceeded  MediaState = "succeeded"
	MediaFailed     MediaState = "failed"
)

// MediaHandle identifies uploaded media. CheckAfter is the server's hint
// for when to poll again while processing.
type MediaHandle struct {
	ID         string
	State      MediaState
	CheckAfter time.Duration
	Error      string
}

// Ready reports whether the media can be attached to a post. Uploads
// without processing info (images) are ready immediately.
func (h *MediaHandle) Ready() bool {
	return h != nil && (h.State == "" || h.State == MediaSucceeded)
}

// Client is everything the handlers need from the platform.
type Client interface {
	Post(ctx context.Context, req PostRequest) (string, error)
	Retweet(ctx context.Context, tweetID string) error
	GetTweet(ctx context.Context, tweetID string) (*Tweet, error)
	FetchMentions(ctx context.Context, since time.Time) ([]Tweet, error)
	FetchThreadRoot(ctx context.Context, conversationID string) (*Tweet, error)
	FetchUserTweets(ctx context.Context, username string, since time.Time, limit int) ([]Tweet, error)
	FetchReplies(ctx context.Context, conversationID string, limit int) ([]Tweet, error)
	Me(ctx context.Context) (*Identity, error)
	UploadMedia(ctx context.Context, r io.Reader, mimeType string, category MediaCategory) (*MediaHandle, error)
	MediaStatus(ctx context.Context, mediaID string) (*MediaHandle, error)
}
