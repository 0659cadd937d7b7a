package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"docnum/internal/core/numerator"
)

const sequencesTable = "sys_sequences"

// SQLSTATE codes treated as a lost race rather than an outage.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"

	codeNumericOutOfRange = "22003"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sys_sequences (
	document_type TEXT PRIMARY KEY,
	last_issued   BIGINT NOT NULL DEFAULT 0 CHECK (last_issued >= 0),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// The row lock taken by ON CONFLICT DO UPDATE serializes concurrent allocations
// for one type; RETURNING hands back the value this statement committed.
const incrementSQL = `
INSERT INTO sys_sequences (document_type, last_issued, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (document_type) DO UPDATE
SET last_issued = sys_sequences.last_issued + EXCLUDED.last_issued,
    updated_at  = now()
RETURNING last_issued`

const raiseSQL = `
INSERT INTO sys_sequences (document_type, last_issued, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (document_type) DO UPDATE
SET last_issued = GREATEST(sys_sequences.last_issued, EXCLUDED.last_issued),
    updated_at  = now()
RETURNING last_issued`

// Querier is the subset of pgx used by the store. *Pool and pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CounterStore keeps sequence counters in the sys_sequences table.
type CounterStore struct {
	querier Querier
	builder squirrel.StatementBuilderType
}

// Ensure compile-time interface compliance.
var _ numerator.CounterStore = (*CounterStore)(nil)

// NewCounterStore creates a store on top of querier.
func NewCounterStore(querier Querier) *CounterStore {
	return &CounterStore{
		querier: querier,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// EnsureSchema creates the counters table if it does not exist.
func (s *CounterStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.querier.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// IncrementAndGet implements numerator.CounterStore.
func (s *CounterStore) IncrementAndGet(ctx context.Context, t numerator.DocumentType, delta int64) (int64, error) {
	var num int64
	if err := s.querier.QueryRow(ctx, incrementSQL, string(t), delta).Scan(&num); err != nil {
		return 0, classify("increment", t, err)
	}
	return num, nil
}

// Raise implements numerator.CounterStore.
func (s *CounterStore) Raise(ctx context.Context, t numerator.DocumentType, floor int64) (int64, error) {
	var num int64
	if err := s.querier.QueryRow(ctx, raiseSQL, string(t), floor).Scan(&num); err != nil {
		return 0, classify("raise", t, err)
	}
	return num, nil
}

// Current implements numerator.CounterStore.
func (s *CounterStore) Current(ctx context.Context, t numerator.DocumentType) (int64, error) {
	query, args, err := s.builder.
		Select("last_issued").
		From(sequencesTable).
		Where(squirrel.Eq{"document_type": string(t)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build current query: %w", err)
	}

	var num int64
	err = s.querier.QueryRow(ctx, query, args...).Scan(&num)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, classify("current", t, err)
	}
	return num, nil
}

// List implements numerator.CounterStore.
func (s *CounterStore) List(ctx context.Context) ([]numerator.SequenceCounter, error) {
	query, args, err := s.builder.
		Select("document_type", "last_issued", "updated_at").
		From(sequencesTable).
		OrderBy("document_type").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	var items []numerator.SequenceCounter
	if err := pgxscan.Select(ctx, s.querier, &items, query, args...); err != nil {
		return nil, classify("list", "", err)
	}
	return items, nil
}

// Ping implements numerator.CounterStore.
func (s *CounterStore) Ping(ctx context.Context) error {
	var one int
	if err := s.querier.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return classify("ping", "", err)
	}
	return nil
}

// Close closes the underlying pool when the store owns one.
func (s *CounterStore) Close() error {
	if c, ok := s.querier.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}

// classify maps a pgx error onto the numerator error taxonomy.
func classify(op string, t numerator.DocumentType, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%s %s: %w: %w", op, t, numerator.ErrConflict, err)
		case codeNumericOutOfRange:
			return fmt.Errorf("%s %s: %w: %w: %w", op, t, numerator.ErrStoreUnavailable, numerator.ErrCounterOverflow, err)
		}
	}
	return fmt.Errorf("%s %s: %w: %w", op, t, numerator.ErrStoreUnavailable, err)
}
