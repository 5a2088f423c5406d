// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/serpflow/serpflow/internal/serp"
)

// fkViolationCode is the Postgres error code for foreign key violations.
const fkViolationCode = "23503"

// querier is the subset of pgxpool.Pool the store relies on, kept
// narrow so tests can substitute a mock pool.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store implements the serp store interfaces using Postgres. All
// claim/submit coordination is delegated to Postgres row locking; the
// store itself keeps no mutable state.
type Store struct {
	pool querier
}

// New creates a Store backed by a fresh pgx connection pool.
func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool querier) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Ping verifies connectivity with a trivial round trip.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1;").Scan(&one); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func isFKViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == fkViolationCode
}

// collectStatusCounts folds (status, count) rows into a StatusCounts.
// The caller owns closing the rows.
func collectStatusCounts(rows pgx.Rows) (serp.StatusCounts, error) {
	var counts serp.StatusCounts
	for rows.Next() {
		var status serp.QueryStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return serp.StatusCounts{}, fmt.Errorf("failed to scan status count: %w", err)
		}
		switch status {
		case serp.QueryStatusPending:
			counts.Pending = n
		case serp.QueryStatusProcessing:
			counts.Processing = n
		case serp.QueryStatusCompleted:
			counts.Completed = n
		}
		counts.Total += n
	}
	if err := rows.Err(); err != nil {
		return serp.StatusCounts{}, fmt.Errorf("failed to read status counts: %w", err)
	}
	return counts, nil
}
