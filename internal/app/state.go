package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/pidfile"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/store"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

// LoadState restores the saved snapshot of st into q and t and returns it,
// or nil when nothing was saved yet. Records that cannot be decoded are
// logged and dropped; a snapshot from a newer version is an error.
func LoadState(ctx context.Context, st store.Store, q *schedule.Queues, t *tracker.TweetTracker,
	log *logger.Logger) (*store.Snapshot, error) {
	snap, err := st.Load(ctx)
	if errors.Is(err, store.ErrNoState) {
		log.Info("no saved state, starting fresh")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if snap.Version > store.SnapshotVersion {
		return nil, fmt.Errorf("state saved by a newer version (%d > %d)", snap.Version, store.SnapshotVersion)
	}
	if err := snap.Apply(q, t); err != nil {
		log.Error("some saved records could not be restored", err)
	}
	log.Info("state restored",
		logger.Field{Key: "saved_at", Value: snap.SavedAt},
		logger.Field{Key: "records", Value: len(snap.Records)},
		logger.Field{Key: "tracked_tweets", Value: t.TweetCount()})
	return snap, nil
}

// ImportSeed adds the posts and polls of the seed file at path to q. An
// invalid entry rejects the whole file.
func ImportSeed(q *schedule.Queues, path string) (posts, polls int, err error) {
	seed, err := schedule.LoadSeed(path)
	if err != nil {
		return 0, 0, err
	}
	ps, pl, err := seed.Records()
	if err != nil {
		return 0, 0, err
	}
	for _, p := range ps {
		q.Posts.AddSchedule(p)
	}
	for _, p := range pl {
		q.Polls.AddPoll(p)
	}
	return len(ps), len(pl), nil
}

// saveState runs after every cycle under the cycle lock. The save outlives
// a cancelled run context so a shutdown still persists the last run.
func (a *App) saveState(ctx context.Context, name string) {
	ctx = context.WithoutCancel(ctx)
	snap, err := store.Capture(a.queues, a.tracker, a.handlers.Mentions.LastCheck(), a.now())
	if err != nil {
		a.logger.ErrorCtx(ctx, "failed to capture state", err, logger.Field{Key: "cycle", Value: name})
		return
	}
	if err := a.store.Save(ctx, snap); err != nil {
		a.logger.ErrorCtx(ctx, "failed to save state", err, logger.Field{Key: "cycle", Value: name})
		return
	}
	a.logger.DebugCtx(ctx, "state saved",
		logger.Field{Key: "cycle", Value: name},
		logger.Field{Key: "records", Value: len(snap.Records)})
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close state store", err)
	}
}

// stateDir holds the state file and the PID file of the running agent.
func (a *App) stateDir() string {
	return filepath.Dir(a.config.State.Path)
}

func (a *App) releasePID() {
	if err := pidfile.Release(a.stateDir()); err != nil {
		a.logger.Warn("failed to remove PID file", logger.Field{Key: "error", Value: err.Error()})
	}
}
