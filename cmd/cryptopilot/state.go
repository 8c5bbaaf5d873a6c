package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/app"
	"github.com/aatumaykin/cryptopilot/internal/app/builders"
	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/pidfile"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/store"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

// offlineState is the saved agent state opened without the agent itself.
type offlineState struct {
	store   store.Store
	queues  *schedule.Queues
	tracker *tracker.TweetTracker
	cursor  time.Time
}

// openState loads the saved state. Commands that write it back pass
// writable=true and fail while an agent owns the state directory.
func openState(ctx context.Context, writable bool) (*offlineState, error) {
	cfg, err := loadConfig(false)
	if err != nil {
		return nil, err
	}
	if writable {
		if err := pidfile.CheckFree(filepath.Dir(cfg.State.Path)); err != nil {
			return nil, err
		}
	}
	log := logger.Nop()
	st, err := builders.NewStoreBuilder(cfg, log).Build()
	if err != nil {
		return nil, err
	}
	s := &offlineState{
		store:   st,
		queues:  schedule.NewQueues(),
		tracker: tracker.New(cfg.Agent.DefaultCommentLimit, log),
	}
	snap, err := app.LoadState(ctx, st, s.queues, s.tracker, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if snap != nil {
		s.cursor = snap.MentionCursor
	}
	return s, nil
}

func (s *offlineState) save(ctx context.Context) error {
	snap, err := store.Capture(s.queues, s.tracker, s.cursor, time.Now())
	if err != nil {
		return err
	}
	return s.store.Save(ctx, snap)
}

func (s *offlineState) close() {
	_ = s.store.Close()
}
