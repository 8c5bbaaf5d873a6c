package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aatumaykin/cryptopilot/internal/logger"
	"github.com/aatumaykin/cryptopilot/internal/schedule"
	"github.com/aatumaykin/cryptopilot/internal/tracker"
)

// Line types of the state file.
const (
	lineMeta       = "meta"
	lineRecord     = "record"
	lineCandidate  = "candidate"
	lineCompetitor = "competitor"
)

// fileLine is one JSON line. Meta lines carry the snapshot header
// (version, timestamps, tracker); every other line carries one item.
type fileLine struct {
	Type string          `json:"type"`
	Kind schedule.Kind   `json:"kind,omitempty"`
	Data json.RawMessage `json:"data"`
}

type fileMeta struct {
	Version       int           `json:"version"`
	SavedAt       time.Time     `json:"saved_at"`
	MentionCursor time.Time     `json:"mention_cursor"`
	Tracker       tracker.State `json:"tracker"`
}

// FileStore keeps the state in a JSONL file. Save replaces the file
// atomically; Load skips lines it cannot decode.
type FileStore struct {
	path   string
	logger *logger.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store for path. The directory is created on Save.
func NewFileStore(path string, log *logger.Logger) *FileStore {
	if log == nil {
		log = logger.Nop()
	}
	return &FileStore{path: path, logger: log.Component("state_file")}
}

// Path returns the state file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the state file. Returns ErrNoState when it does not exist.
func (s *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open state file: %w", err)
	}
	defer file.Close()

	snap := &Snapshot{}
	haveMeta := false
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	lineNum := 0

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lineNum++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var line fileLine
		if err := json.Unmarshal(raw, &line); err != nil {
			s.logger.Error("failed to unmarshal state line", err,
				logger.Field{Key: "file", Value: s.path},
				logger.Field{Key: "line", Value: lineNum})
			continue
		}
		if err := s.apply(snap, line); err != nil {
			s.logger.Error("failed to decode state line", err,
				logger.Field{Key: "file", Value: s.path},
				logger.Field{Key: "line", Value: lineNum},
				logger.Field{Key: "type", Value: line.Type})
			continue
		}
		if line.Type == lineMeta {
			haveMeta = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if !haveMeta {
		snap.Version = SnapshotVersion
	}
	return snap, nil
}

func (s *FileStore) apply(snap *Snapshot, line fileLine) error {
	switch line.Type {
	case lineMeta:
		var meta fileMeta
		if err := json.Unmarshal(line.Data, &meta); err != nil {
			return err
		}
		snap.Version = meta.Version
		snap.SavedAt = meta.SavedAt
		snap.MentionCursor = meta.MentionCursor
		snap.Tracker = meta.Tracker
	case lineRecord:
		if line.Kind == "" {
			return fmt.Errorf("record without kind")
		}
		snap.Records = append(snap.Records, Record{Kind: line.Kind, Data: line.Data})
	case lineCandidate:
		var c schedule.RetweetCandidate
		if err := json.Unmarshal(line.Data, &c); err != nil {
			return err
		}
		snap.Candidates = append(snap.Candidates, &c)
	case lineCompetitor:
		var c schedule.CompetitorComment
		if err := json.Unmarshal(line.Data, &c); err != nil {
			return err
		}
		snap.Competitors = append(snap.Competitors, &c)
	default:
		return fmt.Errorf("unknown line type %q", line.Type)
	}
	return nil
}

// Save writes the snapshot to a temp file and renames it over the old one.
func (s *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpPath)
	}()

	w := bufio.NewWriter(tmp)
	if err := writeLines(w, snap); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	s.logger.Debug("state saved",
		logger.Field{Key: "file", Value: s.path},
		logger.Field{Key: "records", Value: len(snap.Records)})
	return nil
}

func writeLines(w *bufio.Writer, snap *Snapshot) error {
	write := func(typ string, kind schedule.Kind, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", typ, err)
		}
		line, err := json.Marshal(fileLine{Type: typ, Kind: kind, Data: data})
		if err != nil {
			return fmt.Errorf("failed to marshal %s line: %w", typ, err)
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
		return w.WriteByte('\n')
	}

	meta := fileMeta{
		Version:       snap.Version,
		SavedAt:       snap.SavedAt,
		MentionCursor: snap.MentionCursor,
		Tracker:       snap.Tracker,
	}
	if err := write(lineMeta, "", meta); err != nil {
		return err
	}
	for _, rec := range snap.Records {
		if err := write(lineRecord, rec.Kind, rec.Data); err != nil {
			return err
		}
	}
	for _, c := range snap.Candidates {
		if err := write(lineCandidate, "", c); err != nil {
			return err
		}
	}
	for _, c := range snap.Competitors {
		if err := write(lineCompetitor, "", c); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op; files are opened per call.
func (s *FileStore) Close() error { return nil }
