// Package state persists the agent's cross-tick state (dedup cursor and
// submission ledger) in a small sqlite file.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cloneexec/internal/dedup"

	_ "modernc.org/sqlite"
)

// Store wraps a sqlite database for cursors and submissions.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

var (
	_ dedup.Store  = (*Store)(nil)
	_ dedup.Ledger = (*Store)(nil)
)

// Open opens or creates the sqlite database.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("state store path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying db.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("state store is closed")
	}
	return db, nil
}

func ensureSchema(db *sql.DB) error {
	stmt := `
	CREATE TABLE IF NOT EXISTS dedup_cursor (
		clone_id TEXT PRIMARY KEY,
		last_sequence INTEGER NOT NULL,
		last_stop_loss REAL,
		last_take_profit REAL,
		updated_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS signal_submission (
		signal_id TEXT PRIMARY KEY,
		position_id TEXT,
		rate REAL,
		size REAL,
		pushed INTEGER NOT NULL DEFAULT 0,
		submitted_at INTEGER NOT NULL
	);
	`
	_, err := db.Exec(stmt)
	return err
}

func (s *Store) LoadCursor(ctx context.Context, cloneID string) (dedup.Cursor, bool, error) {
	db, err := s.handle()
	if err != nil {
		return dedup.Cursor{}, false, err
	}
	row := db.QueryRowContext(ctx, `
		SELECT last_sequence, last_stop_loss, last_take_profit, updated_at
		FROM dedup_cursor WHERE clone_id = ?`, cloneID)
	var (
		c       dedup.Cursor
		stop    sql.NullFloat64
		tp      sql.NullFloat64
		updated int64
	)
	if err := row.Scan(&c.LastSequence, &stop, &tp, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dedup.Cursor{}, false, nil
		}
		return dedup.Cursor{}, false, err
	}
	c.LastStopLoss = stop.Float64
	c.LastTakeProfit = tp.Float64
	c.UpdatedAt = time.UnixMilli(updated).UTC()
	return c, true, nil
}

func (s *Store) SaveCursor(ctx context.Context, cloneID string, c dedup.Cursor) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cloneID) == "" {
		return fmt.Errorf("clone_id cannot be empty")
	}
	now := c.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO dedup_cursor(clone_id, last_sequence, last_stop_loss, last_take_profit, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(clone_id) DO UPDATE SET
			last_sequence=excluded.last_sequence,
			last_stop_loss=excluded.last_stop_loss,
			last_take_profit=excluded.last_take_profit,
			updated_at=excluded.updated_at;
	`, cloneID, c.LastSequence, nullIfZero(c.LastStopLoss), nullIfZero(c.LastTakeProfit), now.UnixMilli())
	return err
}

func (s *Store) FindSubmission(ctx context.Context, signalID string) (dedup.Submission, bool, error) {
	db, err := s.handle()
	if err != nil {
		return dedup.Submission{}, false, err
	}
	row := db.QueryRowContext(ctx, `
		SELECT signal_id, position_id, rate, size, pushed, submitted_at
		FROM signal_submission WHERE signal_id = ?`, signalID)
	var (
		sub       dedup.Submission
		position  sql.NullString
		rate      sql.NullFloat64
		size      sql.NullFloat64
		pushed    int
		submitted int64
	)
	if err := row.Scan(&sub.SignalID, &position, &rate, &size, &pushed, &submitted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dedup.Submission{}, false, nil
		}
		return dedup.Submission{}, false, err
	}
	sub.PositionID = position.String
	sub.Rate = rate.Float64
	sub.Size = size.Float64
	sub.Pushed = pushed != 0
	sub.SubmittedAt = time.UnixMilli(submitted).UTC()
	return sub, true, nil
}

func (s *Store) RecordSubmission(ctx context.Context, sub dedup.Submission) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if strings.TrimSpace(sub.SignalID) == "" {
		return fmt.Errorf("signal_id cannot be empty")
	}
	at := sub.SubmittedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO signal_submission(signal_id, position_id, rate, size, pushed, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(signal_id) DO UPDATE SET
			position_id=excluded.position_id,
			rate=excluded.rate,
			size=excluded.size,
			pushed=excluded.pushed,
			submitted_at=excluded.submitted_at;
	`, sub.SignalID, nullIfEmpty(sub.PositionID), sub.Rate, sub.Size, boolToInt(sub.Pushed), at.UnixMilli())
	return err
}

func (s *Store) MarkPushed(ctx context.Context, signalID string) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `UPDATE signal_submission SET pushed = 1 WHERE signal_id = ?`, signalID)
	return err
}

func nullIfZero(val float64) interface{} {
	if val == 0 {
		return nil
	}
	return val
}

func nullIfEmpty(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
