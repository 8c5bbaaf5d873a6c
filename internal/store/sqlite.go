package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	item_id TEXT NOT NULL,
	completed BOOLEAN NOT NULL DEFAULT 0,
	scheduled_time DATETIME,
	data TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind, completed);

CREATE TABLE IF NOT EXISTS candidates (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	tweet_id TEXT NOT NULL,
	data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS competitors (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	tweet_id TEXT NOT NULL,
	data TEXT NOT NULL
);
`

const metaSnapshot = "snapshot"

// SQLiteStore keeps the state in a SQLite database. Queue items are stored
// one row each so they can be inspected with plain SQL.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *logger.Logger
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (and creates if needed) the database at path.
func OpenSQLite(path string, log *logger.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logger.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open state db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path, logger: log.Component("state_sqlite")}, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.path }

// Load reads the last saved snapshot. Returns ErrNoState on an empty database.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaSnapshot).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot meta: %w", err)
	}
	var meta fileMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot meta: %w", err)
	}
	snap := &Snapshot{
		Version:       meta.Version,
		SavedAt:       meta.SavedAt,
		MentionCursor: meta.MentionCursor,
		Tracker:       meta.Tracker,
	}

	rows, err := s.db.QueryContext(ctx, `SELECT kind, data FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	for rows.Next() {
		var kind, data string
		if err := rows.Scan(&kind, &data); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		snap.Records = append(snap.Records, Record{Kind: schedule.Kind(kind), Data: json.RawMessage(data)})
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	snap.Candidates, err = loadItems[schedule.RetweetCandidate](ctx, s, "candidates")
	if err != nil {
		return nil, err
	}
	snap.Competitors, err = loadItems[schedule.CompetitorComment](ctx, s, "competitors")
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to iterate rows: %w", err)
	}
	return nil
}

func loadItems[T any](ctx context.Context, s *SQLiteStore, table string) ([]*T, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM `+table+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	var out []*T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan %s: %w", table, err)
		}
		item := new(T)
		if err := json.Unmarshal([]byte(data), item); err != nil {
			s.logger.Error("failed to decode row", err, logger.Field{Key: "table", Value: table})
			continue
		}
		out = append(out, item)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return out, nil
}

// Save replaces the stored state in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	meta, err := json.Marshal(fileMeta{
		Version:       snap.Version,
		SavedAt:       snap.SavedAt,
		MentionCursor: snap.MentionCursor,
		Tracker:       snap.Tracker,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot meta: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"records", "candidates", "competitors"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaSnapshot, string(meta)); err != nil {
		return fmt.Errorf("failed to write snapshot meta: %w", err)
	}

	recStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (kind, item_id, completed, scheduled_time, data) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer recStmt.Close()
	for _, rec := range snap.Records {
		var am schedule.ActionMeta
		if err := json.Unmarshal(rec.Data, &am); err != nil {
			return fmt.Errorf("failed to decode %s record: %w", rec.Kind, err)
		}
		if _, err := recStmt.ExecContext(ctx, string(rec.Kind), am.ID, am.Completed,
			am.ScheduledTime.UTC().Format(time.RFC3339), string(rec.Data)); err != nil {
			return fmt.Errorf("failed to insert %s record: %w", rec.Kind, err)
		}
	}

	for _, c := range snap.Candidates {
		if err := insertItem(ctx, tx, "candidates", c.TweetID, c); err != nil {
			return err
		}
	}
	for _, c := range snap.Competitors {
		if err := insertItem(ctx, tx, "competitors", c.TweetID, c); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	s.logger.Debug("state saved",
		logger.Field{Key: "db", Value: s.path},
		logger.Field{Key: "records", Value: len(snap.Records)})
	return nil
}

func insertItem(ctx context.Context, tx *sql.Tx, table, tweetID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s row: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+table+` (tweet_id, data) VALUES (?, ?)`, tweetID, string(data)); err != nil {
		return fmt.Errorf("failed to insert %s row: %w", table, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
