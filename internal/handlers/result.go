package handlers

import (
	"github.com/aatumaykin/cryptopilot/internal/logger"
)

// Outcome classifies a processed item.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeSkip      Outcome = "skip"
	OutcomeFail      Outcome = "fail"
	OutcomeDuplicate Outcome = "duplicate"
)

// ItemResult is the result of processing one queue item, mention or tweet.
type ItemResult struct {
	ID       string // queue item or mention ID
	Target   string // tweet acted on
	PostedID string // ID returned by the platform
	Outcome  Outcome
	Reason   string
	Err      error
}

func (r ItemResult) fields() []logger.Field {
	fields := []logger.Field{
		{Key: "id", Value: r.ID},
		{Key: "outcome", Value: string(r.Outcome)},
	}
	if r.Target != "" {
		fields = append(fields, logger.Field{Key: "target", Value: r.Target})
	}
	if r.PostedID != "" {
		fields = append(fields, logger.Field{Key: "posted_id", Value: r.PostedID})
	}
	if r.Reason != "" {
		fields = append(fields, logger.Field{Key: "reason", Value: r.Reason})
	}
	return fields
}

func success(id, target, posted string) ItemResult {
	return ItemResult{ID: id, Target: target, PostedID: posted, Outcome: OutcomeSuccess}
}

func skip(id, target, reason string) ItemResult {
	return ItemResult{ID: id, Target: target, Outcome: OutcomeSkip, Reason: reason}
}

func fail(id, target, reason string, err error) ItemResult {
	return ItemResult{ID: id, Target: target, Outcome: OutcomeFail, Reason: reason, Err: err}
}

// BatchStats aggregates the results of one handler run.
type BatchStats struct {
	Total      int `json:"total"`
	Succeeded  int `json:"succeeded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
}

// Add counts r.
func (s *BatchStats) Add(r ItemResult) {
	s.Total++
	switch r.Outcome {
	case OutcomeSuccess:
		s.Succeeded++
	case OutcomeSkip:
		s.Skipped++
	case OutcomeFail:
		s.Failed++
	case OutcomeDuplicate:
		s.Duplicates++
	}
}

// Merge adds o to s.
func (s *BatchStats) Merge(o BatchStats) {
	s.Total += o.Total
	s.Succeeded += o.Succeeded
	s.Skipped += o.Skipped
	s.Failed += o.Failed
	s.Duplicates += o.Duplicates
}
