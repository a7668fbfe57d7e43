package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"vcrelay/internal/correlation/models"
	"vcrelay/pkg/platform/sentinel"
)

// Clock abstracts time.Now for testability.
type Clock func() time.Time

// PostgresStore persists correlation records in PostgreSQL. Useful when the
// relay must survive restarts mid-flow, at the cost of a database roundtrip
// per poll.
type PostgresStore struct {
	db    *sql.DB
	ttl   time.Duration
	clock Clock
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresClock sets the clock function for testability.
func WithPostgresClock(clock Clock) PostgresOption {
	return func(s *PostgresStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewPostgres constructs a Postgres-backed correlation store.
func NewPostgres(db *sql.DB, ttl time.Duration, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		db:    db,
		ttl:   ttl,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Schema is the DDL the store expects. Applied at startup and by the
// integration tests; idempotent so repeated starts are harmless.
const Schema = `
CREATE TABLE IF NOT EXISTS correlation_records (
	token      TEXT PRIMARY KEY,
	record     JSONB NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`

func (s *PostgresStore) Get(ctx context.Context, token string) (*models.Record, error) {
	var (
		raw       []byte
		expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT record, expires_at FROM correlation_records WHERE token = $1`, token,
	).Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get correlation record: %w", err)
	}
	if s.clock().After(expiresAt) {
		return nil, sentinel.ErrNotFound
	}
	return decodeRecord(raw, token)
}

func (s *PostgresStore) Put(ctx context.Context, token string, record *models.Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode correlation record: %w", err)
	}
	query := `
		INSERT INTO correlation_records (token, record, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET
			record = EXCLUDED.record,
			expires_at = EXCLUDED.expires_at
	`
	if _, err := s.db.ExecContext(ctx, query, token, raw, s.clock().Add(s.ttl)); err != nil {
		return fmt.Errorf("put correlation record: %w", err)
	}
	return nil
}

// Update applies fn under a row lock so concurrent callback redelivery for
// the same token serializes instead of clobbering each other.
func (s *PostgresStore) Update(ctx context.Context, token string, fn func(*models.Record) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		raw       []byte
		expiresAt time.Time
	)
	err = tx.QueryRowContext(ctx,
		`SELECT record, expires_at FROM correlation_records WHERE token = $1 FOR UPDATE`, token,
	).Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock correlation record: %w", err)
	}
	if s.clock().After(expiresAt) {
		return sentinel.ErrNotFound
	}

	record, err := decodeRecord(raw, token)
	if err != nil {
		return err
	}
	if err := fn(record); err != nil {
		return err
	}
	updated, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode correlation record: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE correlation_records SET record = $2, expires_at = $3 WHERE token = $1`,
		token, updated, s.clock().Add(s.ttl),
	)
	if err != nil {
		return fmt.Errorf("update correlation record: %w", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) Delete(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM correlation_records WHERE token = $1`, token,
	); err != nil {
		return fmt.Errorf("delete correlation record: %w", err)
	}
	return nil
}
