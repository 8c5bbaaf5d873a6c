package schedule

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aatumaykin/cryptopilot/internal/constants"
)

// Seed is a hand-written schedule file, YAML or JSON.
//
//	posts:
//	  - scheduled_time: "2025-03-01 14:00"
//	    current_events: "ETH ETF inflows"
//	    include_media: true
//	    media_type: image
//	polls:
//	  - scheduled_time: "2025-03-02T09:00:00Z"
//	    question: "Which L2 wins 2025?"
//	    options: [Base, Arbitrum, Optimism]
type Seed struct {
	Posts []SeedPost `yaml:"posts"`
	Polls []SeedPoll `yaml:"polls"`
}

type SeedPost struct {
	ScheduledTime string `yaml:"scheduled_time"`
	CurrentEvents string `yaml:"current_events"`
	Content       string `yaml:"content"`
	IncludeMedia  bool   `yaml:"include_media"`
	MediaType     string `yaml:"media_type"`
	MediaPrompt   string `yaml:"media_prompt"`
}

type SeedPoll struct {
	ScheduledTime   string   `yaml:"scheduled_time"`
	Question        string   `yaml:"question"`
	Options         []string `yaml:"options"`
	DurationMinutes int      `yaml:"duration_minutes"`
}

// LoadSeed reads and parses a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &seed, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTime accepts RFC 3339 or a naive "YYYY-MM-DD HH:MM[:SS]" timestamp.
// Naive values are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// Records converts the seed into schedule records. The whole seed is
// rejected on the first invalid entry.
func (s *Seed) Records() ([]*Schedule, []*PollSchedule, error) {
	posts := make([]*Schedule, 0, len(s.Posts))
	for i, p := range s.Posts {
		at, err := ParseTime(p.ScheduledTime)
		if err != nil {
			return nil, nil, fmt.Errorf("posts[%d]: %w", i, err)
		}
		mt := MediaType(strings.ToLower(p.MediaType))
		if !mt.Valid() {
			return nil, nil, fmt.Errorf("posts[%d]: unknown media type %q", i, p.MediaType)
		}
		if p.IncludeMedia && mt == MediaNone {
			mt = MediaImage
		}
		posts = append(posts, &Schedule{
			ActionMeta:    ActionMeta{ScheduledTime: at},
			CurrentEvents: p.CurrentEvents,
			Content:       p.Content,
			IncludeMedia:  p.IncludeMedia,
			MediaType:     mt,
			MediaPrompt:   p.MediaPrompt,
		})
	}

	polls := make([]*PollSchedule, 0, len(s.Polls))
	for i, p := range s.Polls {
		at, err := ParseTime(p.ScheduledTime)
		if err != nil {
			return nil, nil, fmt.Errorf("polls[%d]: %w", i, err)
		}
		if err := ValidatePoll(p.Question, p.Options); err != nil {
			return nil, nil, fmt.Errorf("polls[%d]: %w", i, err)
		}
		duration := p.DurationMinutes
		if duration <= 0 {
			duration = constants.DefaultPollDurationMinutes
		}
		polls = append(polls, &PollSchedule{
			ActionMeta:      ActionMeta{ScheduledTime: at},
			Question:        p.Question,
			Options:         p.Options,
			DurationMinutes: duration,
		})
	}
	return posts, polls, nil
}
