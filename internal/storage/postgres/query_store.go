package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/serpflow/serpflow/internal/serp"
)

// EnqueueQueries inserts a batch of pending queries in one transaction.
func (s *Store) EnqueueQueries(ctx context.Context, queries []serp.Query) error {
	if len(queries) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin enqueue: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO queries (id, project_id, search_term, status, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	for _, q := range queries {
		if _, err := tx.Exec(ctx, query, q.ID, q.ProjectID, q.SearchTerm, q.Status, q.Priority, q.CreatedAt); err != nil {
			if isFKViolation(err) {
				return serp.ErrNotFound
			}
			return fmt.Errorf("failed to insert query: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit enqueue: %w", err)
	}
	return nil
}

// ClaimNext atomically claims the best pending query. The select and
// the status flip happen in one statement: the inner SELECT takes a
// row lock and SKIP LOCKED makes concurrent claimants observe
// disjoint candidates, so a row is never handed to two workers.
func (s *Store) ClaimNext(ctx context.Context) (serp.ClaimedQuery, error) {
	query := `
		UPDATE queries
		SET status = 'processing', processed_at = NOW()
		WHERE id = (
			SELECT id FROM queries
			WHERE status = 'pending'
			ORDER BY priority DESC, created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, search_term;
	`
	var claimed serp.ClaimedQuery
	err := s.pool.QueryRow(ctx, query).Scan(&claimed.ID, &claimed.SearchTerm)
	if err != nil {
		if err == pgx.ErrNoRows {
			return serp.ClaimedQuery{}, serp.ErrNoWork
		}
		return serp.ClaimedQuery{}, fmt.Errorf("failed to claim query: %w", err)
	}
	return claimed, nil
}

// GetQuery retrieves a single query by its ID.
func (s *Store) GetQuery(ctx context.Context, queryID uuid.UUID) (serp.Query, error) {
	query := `
		SELECT id, project_id, search_term, status, priority, created_at, processed_at
		FROM queries
		WHERE id = $1;
	`
	var q serp.Query
	err := s.pool.QueryRow(ctx, query, queryID).Scan(
		&q.ID,
		&q.ProjectID,
		&q.SearchTerm,
		&q.Status,
		&q.Priority,
		&q.CreatedAt,
		&q.ProcessedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return serp.Query{}, serp.ErrNotFound
		}
		return serp.Query{}, fmt.Errorf("failed to get query: %w", err)
	}
	return q, nil
}

// ListQueries retrieves queries joined with their project names, with
// optional status/project filters, newest first.
func (s *Store) ListQueries(ctx context.Context, filter serp.ListFilter) ([]serp.QueryListing, error) {
	builder := sq.Select(
		"q.id", "q.project_id", "q.search_term", "q.status",
		"q.priority", "q.created_at", "q.processed_at", "p.name",
	).
		From("queries q").
		Join("projects p ON p.id = q.project_id").
		OrderBy("q.created_at DESC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset)).
		PlaceholderFormat(sq.Dollar)
	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"q.status": string(*filter.Status)})
	}
	if filter.ProjectID != nil {
		builder = builder.Where(sq.Eq{"q.project_id": *filter.ProjectID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build listing query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list queries: %w", err)
	}
	defer rows.Close()

	var listings []serp.QueryListing
	for rows.Next() {
		var l serp.QueryListing
		err := rows.Scan(
			&l.ID,
			&l.ProjectID,
			&l.SearchTerm,
			&l.Status,
			&l.Priority,
			&l.CreatedAt,
			&l.ProcessedAt,
			&l.ProjectName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query row: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read query rows: %w", err)
	}
	return listings, nil
}

// DeleteQuery removes a query; its child rows cascade.
func (s *Store) DeleteQuery(ctx context.Context, queryID uuid.UUID) error {
	res, err := s.pool.Exec(ctx, `DELETE FROM queries WHERE id = $1;`, queryID)
	if err != nil {
		return fmt.Errorf("failed to delete query: %w", err)
	}
	if res.RowsAffected() == 0 {
		return serp.ErrNotFound
	}
	return nil
}

// CountByStatus tallies all queries by lifecycle status.
func (s *Store) CountByStatus(ctx context.Context) (serp.StatusCounts, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM queries GROUP BY status;`)
	if err != nil {
		return serp.StatusCounts{}, fmt.Errorf("failed to count queries: %w", err)
	}
	defer rows.Close()

	return collectStatusCounts(rows)
}
