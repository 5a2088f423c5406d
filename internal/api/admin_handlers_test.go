package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/serpflow/serpflow/internal/serp"
)

func TestServer_CreateProject_Succeeds(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/admin/projects", map[string]string{
		"name":        "price tracking",
		"description": "keyword rankings for the pricing team",
	}, false)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeJSON[map[string]any](t, rec)
	require.Equal(t, "price tracking", body["name"])
	require.Equal(t, true, body["active"])
	require.NotEmpty(t, body["id"])
}

func TestServer_CreateProject_MissingName(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/admin/projects", map[string]string{
		"description": "no name here",
	}, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "name is required")
}

func TestServer_CreateProject_InvalidJSON(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/projects", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ListProjects_OnlyActive(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	keep := env.createProject(t, "keep")
	drop := env.createProject(t, "drop")

	rec := env.do(t, http.MethodDelete, "/admin/projects/"+drop.String(), nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/admin/projects", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	projects := decodeJSON[[]serp.Project](t, rec)
	require.Len(t, projects, 1)
	require.Equal(t, keep, projects[0].ID)
}

func TestServer_DeactivateProject_NotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodDelete, "/admin/projects/"+uuid.NewString(), nil, false)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/admin/projects/not-a-uuid", nil, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_EnqueueQueries_InsertsPending(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	projectID := env.createProject(t, "bulk")
	env.enqueue(t, projectID, 3, "first term", "second term")

	listings, err := env.store.ListQueries(context.Background(), serp.ListFilter{})
	require.NoError(t, err)
	require.Len(t, listings, 2)
	for _, l := range listings {
		require.Equal(t, serp.QueryStatusPending, l.Status)
		require.Equal(t, 3, l.Priority)
		require.Equal(t, projectID, l.ProjectID)
		require.Equal(t, "bulk", l.ProjectName)
	}
}

func TestServer_EnqueueQueries_UnknownProject(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/admin/projects/"+uuid.NewString()+"/queries", map[string]any{
		"queries": []string{"orphan"},
	}, false)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_EnqueueQueries_RejectsEmptyBatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	projectID := env.createProject(t, "empty")

	rec := env.do(t, http.MethodPost, "/admin/projects/"+projectID.String()+"/queries", map[string]any{
		"queries": []string{},
	}, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/admin/projects/"+projectID.String()+"/queries", map[string]any{
		"queries": []string{""},
	}, false)
	require.Equal(t, http.StatusBadRequest, rec.Code, "blank terms are rejected")
}

func TestServer_ProjectStats_EmptyProject(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	projectID := env.createProject(t, "fresh")

	rec := env.do(t, http.MethodGet, "/admin/projects/"+projectID.String()+"/stats", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":0`)
	require.Contains(t, rec.Body.String(), `"top_domains":[]`)

	rec = env.do(t, http.MethodGet, "/admin/projects/"+uuid.NewString()+"/stats", nil, false)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ListQueries_FiltersByStatus(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	projectID := env.createProject(t, "filters")
	env.enqueue(t, projectID, 0, "one", "two", "three")

	// Claim one so statuses diverge.
	claim := decodeJSON[claimBody](t, env.do(t, http.MethodGet, "/queries/next", nil, true))
	require.NotEmpty(t, claim.QueryID)

	rec := env.do(t, http.MethodGet, "/admin/queries?status=pending", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	pending := decodeJSON[[]serp.QueryListing](t, rec)
	require.Len(t, pending, 2)

	rec = env.do(t, http.MethodGet, "/admin/queries?status=processing", nil, false)
	processing := decodeJSON[[]serp.QueryListing](t, rec)
	require.Len(t, processing, 1)
	require.Equal(t, claim.QueryID, processing[0].ID.String())

	rec = env.do(t, http.MethodGet, "/admin/queries?status=bogus", nil, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/admin/queries?limit=abc", nil, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/admin/queries?project_id=nope", nil, false)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ListQueries_LimitAndOffset(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	projectID := env.createProject(t, "paging")
	env.enqueue(t, projectID, 0, "a", "b", "c", "d")

	rec := env.do(t, http.MethodGet, "/admin/queries?limit=2", nil, false)
	require.Len(t, decodeJSON[[]serp.QueryListing](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/admin/queries?limit=2&offset=3", nil, false)
	require.Len(t, decodeJSON[[]serp.QueryListing](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/admin/queries?offset=50", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestServer_QueryResults_NotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/admin/queries/"+uuid.NewString()+"/results", nil, false)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_QueryResults_EmptyArraysForFreshQuery(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	projectID := env.createProject(t, "fresh-results")
	env.enqueue(t, projectID, 0, "unprocessed")

	listings, err := env.store.ListQueries(context.Background(), serp.ListFilter{})
	require.NoError(t, err)
	require.Len(t, listings, 1)

	rec := env.do(t, http.MethodGet, "/admin/queries/"+listings[0].ID.String()+"/results", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"results":[]`)
	require.Contains(t, rec.Body.String(), `"suggestions":[]`)
	require.Contains(t, rec.Body.String(), `"related_searches":[]`)
}

func TestServer_DeleteQuery_RemovesRowAndChildren(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	projectID := env.createProject(t, "deletions")
	env.enqueue(t, projectID, 0, "short lived")

	claim := decodeJSON[claimBody](t, env.do(t, http.MethodGet, "/queries/next", nil, true))
	rec := env.do(t, http.MethodPost, "/results", map[string]any{
		"query_id": claim.QueryID,
		"pages": []map[string]any{{
			"page": 1,
			"results": []map[string]any{
				{"position": 1, "title": "t", "url": "https://a.example", "domain": "a.example"},
			},
		}},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/admin/queries/"+claim.QueryID, nil, false)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/admin/queries/"+claim.QueryID+"/results", nil, false)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// The parent project survives the delete.
	rec = env.do(t, http.MethodGet, "/admin/projects", nil, false)
	require.Len(t, decodeJSON[[]serp.Project](t, rec), 1)

	rec = env.do(t, http.MethodDelete, "/admin/queries/"+claim.QueryID, nil, false)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
