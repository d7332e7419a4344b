package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Cycle statuses
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Entry is one recorded production cycle
type Entry struct {
	ID              string
	Prompt          string
	FrameDir        string
	VideoPath       string
	Status          string
	Error           string
	FramesRequested int
	FramesGenerated int
	FramesRemoved   int
	VideoSize       int64
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Duration returns how long the cycle ran
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Stats aggregates the ledger
type Stats struct {
	Total       int
	Succeeded   int
	Failed      int
	Cancelled   int
	Frames      int
	LastSuccess time.Time
}

// NewID returns a time-ordered cycle identifier
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Store is a SQLite ledger of production cycles.
type Store struct {
	db *sql.DB
}

// Open creates or opens the ledger at path, creating parent directories.
// Pragmas and schema are applied on every open.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Record stores an entry. An empty ID is filled in.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.Status == "" {
		e.Status = StatusFailed
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles (
			id, prompt, frame_dir, video_path, status, error,
			frames_requested, frames_generated, frames_removed, video_size,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Prompt, e.FrameDir, e.VideoPath, e.Status, e.Error,
		e.FramesRequested, e.FramesGenerated, e.FramesRemoved, e.VideoSize,
		e.StartedAt.UnixMilli(), e.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record cycle %s: %w", e.ID, err)
	}
	return nil
}

// List returns the most recent entries first. A limit of zero or less returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prompt, frame_dir, video_path, status, error,
			frames_requested, frames_generated, frames_removed, video_size,
			started_at, finished_at
		FROM cycles
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			started, finished int64
		)
		if err := rows.Scan(
			&e.ID, &e.Prompt, &e.FrameDir, &e.VideoPath, &e.Status, &e.Error,
			&e.FramesRequested, &e.FramesGenerated, &e.FramesRemoved, &e.VideoSize,
			&started, &finished,
		); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		e.StartedAt = time.UnixMilli(started)
		e.FinishedAt = time.UnixMilli(finished)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return entries, nil
}

// Stats summarises every recorded cycle
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st          Stats
		lastSuccess sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(status = 'success'), 0),
			COALESCE(SUM(status = 'failed'), 0),
			COALESCE(SUM(status = 'cancelled'), 0),
			COALESCE(SUM(frames_generated), 0),
			MAX(CASE WHEN status = 'success' THEN finished_at END)
		FROM cycles`).Scan(&st.Total, &st.Succeeded, &st.Failed, &st.Cancelled, &st.Frames, &lastSuccess)
	if err != nil {
		return Stats{}, fmt.Errorf("cycle stats: %w", err)
	}
	if lastSuccess.Valid {
		st.LastSuccess = time.UnixMilli(lastSuccess.Int64)
	}
	return st, nil
}
