package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aatumaykin/cryptopilot/internal/llm"
	"github.com/aatumaykin/cryptopilot/internal/logger"
)

// Config tunes LLMAgent.
type Config struct {
	Handle      string // account handle without @
	Persona     string
	Model       string
	Temperature float64
	MaxTokens   int
}

const defaultPersona = "You run a crypto market commentary account. You are sharp, " +
	"data-driven and a little witty. You never give financial advice, never " +
	"promise returns and never use more than two hashtags."

// LLMAgent implements TextGenerator and DecisionClassifier on an llm.Provider.
type LLMAgent struct {
	provider  llm.Provider
	cfg       Config
	prefilter *KeywordClassifier
	logger    *logger.Logger
}

var (
	_ TextGenerator      = (*LLMAgent)(nil)
	_ DecisionClassifier = (*LLMAgent)(nil)
)

// NewLLMAgent creates an agent. prefilter may be nil; when set, texts it
// rejects are irrelevant without a model call.
func NewLLMAgent(provider llm.Provider, cfg Config, prefilter *KeywordClassifier, log *logger.Logger) *LLMAgent {
	if cfg.Persona == "" {
		cfg.Persona = defaultPersona
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LLMAgent{provider: provider, cfg: cfg, prefilter: prefilter, logger: log.Component("llm_agent")}
}

func (a *LLMAgent) complete(ctx context.Context, system, user string, temperature float64, jsonMode bool) (string, error) {
	resp, err := a.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Model:       a.cfg.Model,
		Temperature: temperature,
		MaxTokens:   a.cfg.MaxTokens,
		JSONMode:    jsonMode,
	})
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", ErrEmptyOutput
	}
	return out, nil
}

func (a *LLMAgent) writerPrompt(task string) string {
	return a.cfg.Persona + "\n\n" + task + "\nReply with the tweet text only, no quotes, at most 280 characters."
}

// GeneratePost implements TextGenerator.
func (a *LLMAgent) GeneratePost(ctx context.Context, brief PostBrief) (string, error) {
	var b strings.Builder
	if brief.CurrentEvents != "" {
		fmt.Fprintf(&b, "Current events:\n%s\n\n", brief.CurrentEvents)
	}
	if brief.Content != "" {
		fmt.Fprintf(&b, "Post idea:\n%s\n", brief.Content)
	}
	if brief.WithMedia {
		b.WriteString("\nThe post will carry an image or video; do not describe it.\n")
	}
	text, err := a.complete(ctx, a.writerPrompt("Write one original tweet."), b.String(), a.cfg.Temperature, false)
	return unquote(text), err
}

// GenerateComment implements TextGenerator.
func (a *LLMAgent) GenerateComment(ctx context.Context, brief CommentBrief) (string, error) {
	user := fmt.Sprintf("Tweet by @%s:\n%s", brief.Author, brief.TweetText)
	text, err := a.complete(ctx, a.writerPrompt("Write a short, insightful comment under this tweet that adds a fact or an angle."), user, a.cfg.Temperature, false)
	return unquote(text), err
}

// GenerateReply implements TextGenerator.
func (a *LLMAgent) GenerateReply(ctx context.Context, brief ReplyBrief) (string, error) {
	task := "Reply to the mention below. Answer questions directly."
	if brief.OwnThread {
		task += " The thread started with our own tweet, so speak as its author."
	}
	var b strings.Builder
	if brief.ThreadText != "" {
		fmt.Fprintf(&b, "Thread root:\n%s\n\n", brief.ThreadText)
	}
	fmt.Fprintf(&b, "Mention from @%s:\n%s", brief.Author, brief.MentionText)
	text, err := a.complete(ctx, a.writerPrompt(task), b.String(), a.cfg.Temperature, false)
	return unquote(text), err
}

// IsRelevant implements RelevanceClassifier.
func (a *LLMAgent) IsRelevant(ctx context.Context, text string) (bool, error) {
	if a.prefilter != nil && !a.prefilter.Match(text) {
		return false, nil
	}
	out, err := a.complete(ctx,
		`Decide whether a tweet is about crypto, markets, finance or the economy and worth a thoughtful public comment. Spam, giveaways, abuse and off-topic posts are not. Answer with JSON {"relevant": true|false}.`,
		text, 0, true)
	if err != nil {
		return false, err
	}
	var verdict struct {
		Relevant *bool `json:"relevant"`
	}
	if err := decodeObject(out, &verdict); err != nil {
		return false, err
	}
	if verdict.Relevant == nil {
		return false, fmt.Errorf("relevance verdict missing")
	}
	return *verdict.Relevant, nil
}

func mentionPrompt(m MentionContext) string {
	thread := m.ThreadText
	if thread == "" {
		thread = "N/A"
	}
	return fmt.Sprintf("Mention from @%s: %q\nConversation context: %q", m.Author, m.MentionText, thread)
}

// DecideMention implements DecisionClassifier.
func (a *LLMAgent) DecideMention(ctx context.Context, m MentionContext) (Decision, error) {
	out, err := a.complete(ctx,
		`You decide whether a crypto commentary bot should answer a mention. Reply to questions, requests for information and on-topic discussion, even when vague. Ignore spam, ads, gibberish, abuse and trolling. Answer with JSON {"decision": "reply"|"ignore", "reason": "..."}.`,
		mentionPrompt(m), 0.3, true)
	if err != nil {
		return Decision{}, err
	}
	var raw struct {
		Decision string `json:"decision"`
		Reason   string `json:"reason"`
	}
	if err := decodeObject(out, &raw); err != nil {
		return Decision{}, err
	}
	switch strings.ToLower(strings.TrimSpace(raw.Decision)) {
	case "reply":
		return Decision{Reply: true, Reason: raw.Reason}, nil
	case "ignore":
		return Decision{Reply: false, Reason: raw.Reason}, nil
	}
	return Decision{}, fmt.Errorf("unknown decision %q", raw.Decision)
}

// ShapeResponse implements DecisionClassifier.
func (a *LLMAgent) ShapeResponse(ctx context.Context, m MentionContext) (Shape, error) {
	out, err := a.complete(ctx,
		`Choose how to answer a mention. Use "image" or "video" only when the user explicitly asks for a crypto picture or clip, "no_reply" when nothing useful can be said, otherwise "normal". Answer with JSON {"type": "normal"|"image"|"video"|"no_reply", "prompt": "media prompt if any", "message": "short text to go with media"}.`,
		mentionPrompt(m), 0.3, true)
	if err != nil {
		return Shape{}, err
	}
	var raw struct {
		Type    string `json:"type"`
		Prompt  string `json:"prompt"`
		Message string `json:"message"`
	}
	if err := decodeObject(out, &raw); err != nil {
		return Shape{}, err
	}
	shape := Shape{Type: ShapeType(strings.ToLower(strings.TrimSpace(raw.Type))), Prompt: raw.Prompt, Message: raw.Message}
	if !shape.Type.Valid() {
		return Shape{}, fmt.Errorf("unknown response shape %q", raw.Type)
	}
	if (shape.Type == ShapeImage || shape.Type == ShapeVideo) && strings.TrimSpace(shape.Prompt) == "" {
		shape.Prompt = m.MentionText
	}
	return shape, nil
}

// decodeObject extracts the outermost JSON object from model output that
// may be wrapped in prose or code fences.
func decodeObject(out string, v any) error {
	start := strings.IndexByte(out, '{')
	end := strings.LastIndexByte(out, '}')
	if start < 0 || end < start {
		return fmt.Errorf("no JSON object in model output")
	}
	if err := json.Unmarshal([]byte(out[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to parse model output: %w", err)
	}
	return nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"') {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
