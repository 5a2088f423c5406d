package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/serpflow/serpflow/internal/serp"
)

func TestCreateProjectInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	project := serp.Project{
		ID:          uuid.New(),
		Name:        "price watch",
		Description: "daily price tracking",
		Active:      true,
		CreatedAt:   now,
	}

	mock.ExpectExec("INSERT INTO projects").
		WithArgs(project.ID, project.Name, project.Description, project.Active, project.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateProject(context.Background(), project))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListProjectsReturnsActiveRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	projectID := uuid.New()

	mock.ExpectQuery("SELECT id, name, description, active, created_at").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "active", "created_at"}).
			AddRow(projectID, "price watch", "", true, now))

	projects, err := store.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	require.Equal(t, projectID, projects[0].ID)
	require.True(t, projects[0].Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProjectNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	projectID := uuid.New()
	mock.ExpectQuery("SELECT id, name, description, active, created_at").
		WithArgs(projectID).
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetProject(context.Background(), projectID)
	require.ErrorIs(t, err, serp.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateProjectNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	projectID := uuid.New()
	mock.ExpectExec("UPDATE projects SET active = FALSE").
		WithArgs(projectID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.DeactivateProject(context.Background(), projectID)
	require.ErrorIs(t, err, serp.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectStatsAggregates(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	projectID := uuid.New()
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT id, name, description, active, created_at").
		WithArgs(projectID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "active", "created_at"}).
			AddRow(projectID, "price watch", "", true, now))
	mock.ExpectQuery(`SELECT status, COUNT`).
		WithArgs(projectID).
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 2).
			AddRow("completed", 5))
	mock.ExpectQuery(`SELECT r.domain, COUNT`).
		WithArgs(projectID).
		WillReturnRows(pgxmock.NewRows([]string{"domain", "hits"}).
			AddRow("go.dev", 7).
			AddRow("wikipedia.org", 3))

	stats, err := store.ProjectStats(context.Background(), projectID)
	require.NoError(t, err)
	require.Equal(t, serp.StatusCounts{Pending: 2, Completed: 5, Total: 7}, stats.Queries)
	require.Equal(t, []serp.DomainCount{
		{Domain: "go.dev", Count: 7},
		{Domain: "wikipedia.org", Count: 3},
	}, stats.TopDomains)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectStatsUnknownProject(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	projectID := uuid.New()
	mock.ExpectQuery("SELECT id, name, description, active, created_at").
		WithArgs(projectID).
		WillReturnError(pgx.ErrNoRows)

	_, err = store.ProjectStats(context.Background(), projectID)
	require.ErrorIs(t, err, serp.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
