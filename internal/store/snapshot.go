// Package store persists the agent state between restarts: the schedule
// queues, the candidate pools, the tweet tracker and the mention cursor.
// Two backends share the Snapshot format: FileStore (JSON lines) and
// SQLiteStore.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

// SnapshotVersion is bumped on incompatible format changes.
const SnapshotVersion = 1

// ErrNoState is returned by Load when nothing was saved yet.
var ErrNoState = errors.New("no saved state")

// Store is implemented by FileStore and SQLiteStore.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, s *Snapshot) error
	Close() error
}

// Record is one queue item tagged with its kind.
type Record struct {
	Kind schedule.Kind   `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Snapshot is the full persisted state.
type Snapshot struct {
	Version       int                           `json:"version"`
	SavedAt       time.Time                     `json:"saved_at"`
	MentionCursor time.Time                     `json:"mention_cursor"`
	Tracker       tracker.State                 `json:"tracker"`
	Records       []Record                      `json:"records"`
	Candidates    []*schedule.RetweetCandidate  `json:"candidates"`
	Competitors   []*schedule.CompetitorComment `json:"competitors"`
}

func appendRecords[T any](recs []Record, kind schedule.Kind, items []T) ([]Record, error) {
	for _, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s record: %w", kind, err)
		}
		recs = append(recs, Record{Kind: kind, Data: data})
	}
	return recs, nil
}

// Capture builds a snapshot of the live state. Callers hold the cycle lock.
func Capture(q *schedule.Queues, t *tracker.TweetTracker, mentionCursor, now time.Time) (*Snapshot, error) {
	s := &Snapshot{
		Version:       SnapshotVersion,
		SavedAt:       now.UTC(),
		MentionCursor: mentionCursor.UTC(),
		Tracker:       t.Snapshot(),
		Candidates:    q.Retweets.AllCandidates(),
		Competitors:   q.Competitors.All(),
	}
	var err error
	if s.Records, err = appendRecords(s.Records, schedule.KindPost, q.Posts.All()); err != nil {
		return nil, err
	}
	if s.Records, err = appendRecords(s.Records, schedule.KindPoll, q.Polls.All()); err != nil {
		return nil, err
	}
	if s.Records, err = appendRecords(s.Records, schedule.KindRetweet, q.Retweets.All()); err != nil {
		return nil, err
	}
	if s.Records, err = appendRecords(s.Records, schedule.KindComment, q.Comments.All()); err != nil {
		return nil, err
	}
	return s, nil
}

type split[T any] struct {
	pending, completed []T
}

func decodeInto[T any](dst *split[*T], data json.RawMessage, completed func(*T) bool) error {
	item := new(T)
	if err := json.Unmarshal(data, item); err != nil {
		return err
	}
	if completed(item) {
		dst.completed = append(dst.completed, item)
	} else {
		dst.pending = append(dst.pending, item)
	}
	return nil
}

// Apply replaces the live state with the snapshot. Undecodable records are
// skipped and reported in the returned error; everything else is restored.
func (s *Snapshot) Apply(q *schedule.Queues, t *tracker.TweetTracker) error {
	if s.Version > SnapshotVersion {
		return fmt.Errorf("snapshot version %d is newer than supported %d", s.Version, SnapshotVersion)
	}

	var (
		posts    split[*schedule.Schedule]
		polls    split[*schedule.PollSchedule]
		retweets split[*schedule.RetweetSchedule]
		comments split[*schedule.CommentSchedule]
		errs     []error
	)
	for i, rec := range s.Records {
		var err error
		switch rec.Kind {
		case schedule.KindPost:
			err = decodeInto(&posts, rec.Data, func(x *schedule.Schedule) bool { return x.Completed })
		case schedule.KindPoll:
			err = decodeInto(&polls, rec.Data, func(x *schedule.PollSchedule) bool { return x.Completed })
		case schedule.KindRetweet:
			err = decodeInto(&retweets, rec.Data, func(x *schedule.RetweetSchedule) bool { return x.Completed })
		case schedule.KindComment:
			err = decodeInto(&comments, rec.Data, func(x *schedule.CommentSchedule) bool { return x.Completed })
		default:
			err = fmt.Errorf("unknown kind %q", rec.Kind)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
		}
	}

	q.Posts.Restore(posts.pending, posts.completed)
	q.Polls.Restore(polls.pending, polls.completed)
	q.Retweets.Restore(retweets.pending, retweets.completed, s.Candidates)
	q.Comments.Restore(comments.pending, comments.completed)
	q.Competitors.Restore(s.Competitors)
	t.Restore(s.Tracker)
	return errors.Join(errs...)
}
