// Package agents holds the content and decision collaborators the handlers
// consume: text generation for posts, comments and replies, relevance
// classification, mention decisions and response shaping. LLMAgent backs
// them with an llm.Provider; KeywordClassifier is a cheap local prefilter.
package agents

import (
	"context"
	"errors"
)

// ErrEmptyOutput is returned when the model produced no usable text.
var ErrEmptyOutput = errors.New("empty model output")

// PostBrief is the input for a scheduled post.
type PostBrief struct {
	CurrentEvents string
	Content       string
	WithMedia     bool
}

// CommentBrief is the input for a comment under someone else's tweet.
type CommentBrief struct {
	TweetText string
	Author    string
}

// ReplyBrief is the input for a reply to a mention or a comment.
type ReplyBrief struct {
	MentionText string
	ThreadText  string
	Author      string
	// OwnThread is set when the conversation root is one of our tweets.
	OwnThread bool
}

// TextGenerator writes the text of posts, comments and replies.
type TextGenerator interface {
	GeneratePost(ctx context.Context, brief PostBrief) (string, error)
	GenerateComment(ctx context.Context, brief CommentBrief) (string, error)
	GenerateReply(ctx context.Context, brief ReplyBrief) (string, error)
}

// RelevanceClassifier decides whether a tweet is worth engaging with.
type RelevanceClassifier interface {
	IsRelevant(ctx context.Context, text string) (bool, error)
}

// MentionContext describes one incoming mention.
type MentionContext struct {
	MentionText string
	ThreadText  string
	Author      string
}

// Decision is the content-appropriateness verdict for a mention.
type Decision struct {
	Reply  bool
	Reason string
}

// ShapeType is the form a mention response takes.
type ShapeType string

const (
	ShapeNormal  ShapeType = "normal"
	ShapeImage   ShapeType = "image"
	ShapeVideo   ShapeType = "video"
	ShapeNoReply ShapeType = "no_reply"
)

// Valid reports whether s is a known shape.
func (s ShapeType) Valid() bool {
	switch s {
	case ShapeNormal, ShapeImage, ShapeVideo, ShapeNoReply:
		return true
	}
	return false
}

// Shape is the response-shape verdict. Prompt feeds media generation and
// Message is the text accompanying media.
type Shape struct {
	Type    ShapeType
	Prompt  string
	Message string
}

// DecisionClassifier combines relevance with the mention decisions.
type DecisionClassifier interface {
	RelevanceClassifier
	DecideMention(ctx context.Context, m MentionContext) (Decision, error)
	ShapeResponse(ctx context.Context, m MentionContext) (Shape, error)
}
