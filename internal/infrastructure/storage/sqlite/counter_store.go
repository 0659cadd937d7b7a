// Package sqlite provides an embedded, file-backed CounterStore.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"docnum/internal/core/numerator"
)

//go:embed schema.sql
var schemaSQL string

// Unqualified last_issued in DO UPDATE refers to the existing row.
// SQLite turns an overflowing integer sum into REAL, so the WHERE clause skips
// the update instead and the statement returns no row.
const incrementSQL = `
INSERT INTO sys_sequences (document_type, last_issued, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (document_type) DO UPDATE
SET last_issued = last_issued + excluded.last_issued,
    updated_at  = excluded.updated_at
WHERE last_issued <= 9223372036854775807 - excluded.last_issued
RETURNING last_issued`

const raiseSQL = `
INSERT INTO sys_sequences (document_type, last_issued, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (document_type) DO UPDATE
SET last_issued = MAX(last_issued, excluded.last_issued),
    updated_at  = excluded.updated_at
RETURNING last_issued`

// CounterStore keeps counters in a SQLite database file.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - 5-second busy timeout for lock contention between processes
//   - a single open connection, so writers in this process never contend
type CounterStore struct {
	db  *sql.DB
	now func() time.Time
}

// Ensure compile-time interface compliance.
var _ numerator.CounterStore = (*CounterStore)(nil)

// Open creates or opens a SQLite database at the given path and applies the schema.
func Open(path string) (*CounterStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &CounterStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// IncrementAndGet implements numerator.CounterStore.
func (s *CounterStore) IncrementAndGet(ctx context.Context, t numerator.DocumentType, delta int64) (int64, error) {
	var num int64
	err := s.db.QueryRowContext(ctx, incrementSQL, string(t), delta, s.now().UnixMilli()).Scan(&num)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("increment %s: %w: %w", t, numerator.ErrStoreUnavailable, numerator.ErrCounterOverflow)
	}
	if err != nil {
		return 0, classify("increment", t, err)
	}
	return num, nil
}

// Raise implements numerator.CounterStore.
func (s *CounterStore) Raise(ctx context.Context, t numerator.DocumentType, floor int64) (int64, error) {
	var num int64
	err := s.db.QueryRowContext(ctx, raiseSQL, string(t), floor, s.now().UnixMilli()).Scan(&num)
	if err != nil {
		return 0, classify("raise", t, err)
	}
	return num, nil
}

// Current implements numerator.CounterStore.
func (s *CounterStore) Current(ctx context.Context, t numerator.DocumentType) (int64, error) {
	var num int64
	err := s.db.QueryRowContext(ctx,
		"SELECT last_issued FROM sys_sequences WHERE document_type = ?", string(t)).Scan(&num)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classify("current", t, err)
	}
	return num, nil
}

// List implements numerator.CounterStore.
func (s *CounterStore) List(ctx context.Context) ([]numerator.SequenceCounter, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT document_type, last_issued, updated_at FROM sys_sequences ORDER BY document_type")
	if err != nil {
		return nil, classify("list", "", err)
	}
	defer rows.Close()

	var items []numerator.SequenceCounter
	for rows.Next() {
		var (
			c         numerator.SequenceCounter
			docType   string
			updatedMs int64
		)
		if err := rows.Scan(&docType, &c.LastIssued, &updatedMs); err != nil {
			return nil, classify("list", "", err)
		}
		c.DocumentType = numerator.DocumentType(docType)
		c.UpdatedAt = time.UnixMilli(updatedMs).UTC()
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list", "", err)
	}
	return items, nil
}

// Ping implements numerator.CounterStore.
func (s *CounterStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("ping", "", err)
	}
	return nil
}

// Close implements numerator.CounterStore.
func (s *CounterStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// classify maps a driver error onto the numerator error taxonomy.
func classify(op string, t numerator.DocumentType, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%s %s: %w: %w", op, t, numerator.ErrConflict, err)
		}
	}
	return fmt.Errorf("%s %s: %w: %w", op, t, numerator.ErrStoreUnavailable, err)
}
