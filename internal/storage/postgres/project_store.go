package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/serpflow/serpflow/internal/serp"
)

// CreateProject inserts a new project row.
func (s *Store) CreateProject(ctx context.Context, project serp.Project) error {
	query := `
		INSERT INTO projects (id, name, description, active, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := s.pool.Exec(ctx, query,
		project.ID, project.Name, project.Description, project.Active, project.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// ListProjects retrieves active projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]serp.Project, error) {
	query := `
		SELECT id, name, description, active, created_at
		FROM projects
		WHERE active
		ORDER BY created_at DESC;
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []serp.Project
	for rows.Next() {
		var p serp.Project
		err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Active, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read project rows: %w", err)
	}
	return projects, nil
}

// GetProject retrieves a single project by its ID.
func (s *Store) GetProject(ctx context.Context, projectID uuid.UUID) (serp.Project, error) {
	query := `
		SELECT id, name, description, active, created_at
		FROM projects
		WHERE id = $1;
	`
	var p serp.Project
	err := s.pool.QueryRow(ctx, query, projectID).Scan(
		&p.ID, &p.Name, &p.Description, &p.Active, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return serp.Project{}, serp.ErrNotFound
		}
		return serp.Project{}, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// DeactivateProject soft-deletes a project by clearing its active flag.
// Its queries stay in the store until the project row is removed.
func (s *Store) DeactivateProject(ctx context.Context, projectID uuid.UUID) error {
	res, err := s.pool.Exec(ctx, `UPDATE projects SET active = FALSE WHERE id = $1;`, projectID)
	if err != nil {
		return fmt.Errorf("failed to deactivate project: %w", err)
	}
	if res.RowsAffected() == 0 {
		return serp.ErrNotFound
	}
	return nil
}

// ProjectStats aggregates query status counts and the ten most common
// result domains for one project.
func (s *Store) ProjectStats(ctx context.Context, projectID uuid.UUID) (serp.ProjectStats, error) {
	// A project with no queries yields empty stats, a missing project
	// yields ErrNotFound; the aggregates alone cannot tell those apart.
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return serp.ProjectStats{}, err
	}

	countQuery := `
		SELECT status, COUNT(*)
		FROM queries
		WHERE project_id = $1
		GROUP BY status;
	`
	rows, err := s.pool.Query(ctx, countQuery, projectID)
	if err != nil {
		return serp.ProjectStats{}, fmt.Errorf("failed to count project queries: %w", err)
	}
	counts, err := collectStatusCounts(rows)
	rows.Close()
	if err != nil {
		return serp.ProjectStats{}, err
	}

	domainQuery := `
		SELECT r.domain, COUNT(*) AS hits
		FROM results r
		JOIN queries q ON q.id = r.query_id
		WHERE q.project_id = $1 AND r.domain <> ''
		GROUP BY r.domain
		ORDER BY hits DESC, r.domain ASC
		LIMIT 10;
	`
	domainRows, err := s.pool.Query(ctx, domainQuery, projectID)
	if err != nil {
		return serp.ProjectStats{}, fmt.Errorf("failed to rank result domains: %w", err)
	}
	defer domainRows.Close()

	stats := serp.ProjectStats{Queries: counts}
	for domainRows.Next() {
		var dc serp.DomainCount
		if err := domainRows.Scan(&dc.Domain, &dc.Count); err != nil {
			return serp.ProjectStats{}, fmt.Errorf("failed to scan domain count: %w", err)
		}
		stats.TopDomains = append(stats.TopDomains, dc)
	}
	if err := domainRows.Err(); err != nil {
		return serp.ProjectStats{}, fmt.Errorf("failed to read domain counts: %w", err)
	}
	return stats, nil
}
