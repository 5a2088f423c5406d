package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/serpflow/serpflow/internal/serp"
)

// StoreSubmission writes every scraped row for a query and flips the
// query to completed, all in one transaction. Child tables are written
// before the parent update in a fixed order so concurrent submissions
// cannot deadlock. Any failure rolls the whole submission back.
func (s *Store) StoreSubmission(ctx context.Context, submission serp.Submission) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin submission: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	resultQuery := `
		INSERT INTO results (query_id, page, position, title, url, domain, description, result_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	for _, res := range submission.Results {
		_, err := tx.Exec(ctx, resultQuery,
			submission.QueryID, res.Page, res.Position, res.Title,
			res.URL, res.Domain, res.Description, res.ResultType)
		if err != nil {
			if isFKViolation(err) {
				return serp.ErrNotFound
			}
			return fmt.Errorf("failed to insert result: %w", err)
		}
	}

	suggestionQuery := `INSERT INTO suggestions (query_id, suggestion) VALUES ($1, $2);`
	for _, sug := range submission.Suggestions {
		if _, err := tx.Exec(ctx, suggestionQuery, submission.QueryID, sug); err != nil {
			if isFKViolation(err) {
				return serp.ErrNotFound
			}
			return fmt.Errorf("failed to insert suggestion: %w", err)
		}
	}

	relatedQuery := `INSERT INTO related_searches (query_id, term) VALUES ($1, $2);`
	for _, term := range submission.RelatedSearches {
		if _, err := tx.Exec(ctx, relatedQuery, submission.QueryID, term); err != nil {
			if isFKViolation(err) {
				return serp.ErrNotFound
			}
			return fmt.Errorf("failed to insert related search: %w", err)
		}
	}

	snapshotQuery := `INSERT INTO serp_snapshots (query_id, page, blob_uri, content_hash) VALUES ($1, $2, $3, $4);`
	for _, snap := range submission.Snapshots {
		_, err := tx.Exec(ctx, snapshotQuery,
			submission.QueryID, snap.Page, snap.BlobURI, snap.ContentHash)
		if err != nil {
			if isFKViolation(err) {
				return serp.ErrNotFound
			}
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
	}

	res, err := tx.Exec(ctx, `UPDATE queries SET status = 'completed' WHERE id = $1;`, submission.QueryID)
	if err != nil {
		return fmt.Errorf("failed to complete query: %w", err)
	}
	if res.RowsAffected() == 0 {
		return serp.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit submission: %w", err)
	}
	return nil
}

// QueryResults retrieves everything stored for one query.
func (s *Store) QueryResults(ctx context.Context, queryID uuid.UUID) (serp.ResultBundle, error) {
	var bundle serp.ResultBundle

	resultQuery := `
		SELECT id, query_id, page, position, title, url, domain, description, result_type, created_at
		FROM results
		WHERE query_id = $1
		ORDER BY page ASC, position ASC, id ASC;
	`
	rows, err := s.pool.Query(ctx, resultQuery, queryID)
	if err != nil {
		return serp.ResultBundle{}, fmt.Errorf("failed to list results: %w", err)
	}
	for rows.Next() {
		var r serp.Result
		err := rows.Scan(&r.ID, &r.QueryID, &r.Page, &r.Position, &r.Title,
			&r.URL, &r.Domain, &r.Description, &r.ResultType, &r.CreatedAt)
		if err != nil {
			rows.Close()
			return serp.ResultBundle{}, fmt.Errorf("failed to scan result row: %w", err)
		}
		bundle.Results = append(bundle.Results, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return serp.ResultBundle{}, fmt.Errorf("failed to read result rows: %w", err)
	}
	rows.Close()

	suggestionQuery := `
		SELECT id, query_id, suggestion, created_at
		FROM suggestions
		WHERE query_id = $1
		ORDER BY id ASC;
	`
	rows, err = s.pool.Query(ctx, suggestionQuery, queryID)
	if err != nil {
		return serp.ResultBundle{}, fmt.Errorf("failed to list suggestions: %w", err)
	}
	for rows.Next() {
		var sug serp.Suggestion
		if err := rows.Scan(&sug.ID, &sug.QueryID, &sug.Suggestion, &sug.CreatedAt); err != nil {
			rows.Close()
			return serp.ResultBundle{}, fmt.Errorf("failed to scan suggestion row: %w", err)
		}
		bundle.Suggestions = append(bundle.Suggestions, sug)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return serp.ResultBundle{}, fmt.Errorf("failed to read suggestion rows: %w", err)
	}
	rows.Close()

	relatedQuery := `
		SELECT id, query_id, term, created_at
		FROM related_searches
		WHERE query_id = $1
		ORDER BY id ASC;
	`
	rows, err = s.pool.Query(ctx, relatedQuery, queryID)
	if err != nil {
		return serp.ResultBundle{}, fmt.Errorf("failed to list related searches: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rel serp.RelatedSearch
		if err := rows.Scan(&rel.ID, &rel.QueryID, &rel.Term, &rel.CreatedAt); err != nil {
			return serp.ResultBundle{}, fmt.Errorf("failed to scan related search row: %w", err)
		}
		bundle.RelatedSearches = append(bundle.RelatedSearches, rel)
	}
	if err := rows.Err(); err != nil {
		return serp.ResultBundle{}, fmt.Errorf("failed to read related search rows: %w", err)
	}
	return bundle, nil
}
