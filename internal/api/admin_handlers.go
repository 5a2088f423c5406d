package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/serpflow/serpflow/internal/metrics"
	"github.com/serpflow/serpflow/internal/serp"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.projects.ListProjects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if projects == nil {
		projects = []serp.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

type createProjectRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	id, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	project := serp.Project{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Active:      true,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.projects.CreateProject(r.Context(), project); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// deactivateProject soft-deletes: the project keeps its queries but
// disappears from listings and accepts no new work via the UI.
func (s *Server) deactivateProject(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseUUIDParam(w, r, "project_id")
	if !ok {
		return
	}
	if err := s.projects.DeactivateProject(r.Context(), projectID); err != nil {
		if errors.Is(err, serp.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type enqueueQueriesRequest struct {
	Queries  []string `json:"queries" validate:"required,min=1,dive,required"`
	Priority int      `json:"priority" validate:"gte=0"`
}

func (s *Server) enqueueQueries(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseUUIDParam(w, r, "project_id")
	if !ok {
		return
	}
	var req enqueueQueriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	queries := make([]serp.Query, 0, len(req.Queries))
	for _, term := range req.Queries {
		id, err := s.idGen.NewID()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		queries = append(queries, serp.Query{
			ID:         id,
			ProjectID:  projectID,
			SearchTerm: term,
			Status:     serp.QueryStatusPending,
			Priority:   req.Priority,
			CreatedAt:  s.clock.Now(),
		})
	}
	if err := s.queries.EnqueueQueries(r.Context(), queries); err != nil {
		if errors.Is(err, serp.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.ObserveEnqueued(len(queries))
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":  true,
		"inserted": len(queries),
	})
}

func (s *Server) projectStats(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseUUIDParam(w, r, "project_id")
	if !ok {
		return
	}
	stats, err := s.projects.ProjectStats(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, serp.ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if stats.TopDomains == nil {
		stats.TopDomains = []serp.DomainCount{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) listQueries(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	listings, err := s.queries.ListQueries(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if listings == nil {
		listings = []serp.QueryListing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

// listFilterFromQuery parses the admin listing filters. The limit is
// normalized here because the stores treat it literally.
func listFilterFromQuery(r *http.Request) (serp.ListFilter, error) {
	filter := serp.ListFilter{Limit: defaultListLimit}
	params := r.URL.Query()

	if raw := params.Get("status"); raw != "" {
		status := serp.QueryStatus(raw)
		switch status {
		case serp.QueryStatusPending, serp.QueryStatusProcessing, serp.QueryStatusCompleted:
			filter.Status = &status
		default:
			return serp.ListFilter{}, fmt.Errorf("invalid status %q", raw)
		}
	}
	if raw := params.Get("project_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return serp.ListFilter{}, errors.New("invalid project_id")
		}
		filter.ProjectID = &id
	}
	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return serp.ListFilter{}, errors.New("invalid limit")
		}
		if n > 0 {
			filter.Limit = n
		}
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if raw := params.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return serp.ListFilter{}, errors.New("invalid offset")
		}
		filter.Offset = n
	}
	return filter, nil
}

func (s *Server) queryResults(w http.ResponseWriter, r *http.Request) {
	queryID, ok := parseUUIDParam(w, r, "query_id")
	if !ok {
		return
	}
	if _, err := s.queries.GetQuery(r.Context(), queryID); err != nil {
		if errors.Is(err, serp.ErrNotFound) {
			writeError(w, http.StatusNotFound, "query not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	bundle, err := s.results.QueryResults(r.Context(), queryID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bundle.Results == nil {
		bundle.Results = []serp.Result{}
	}
	if bundle.Suggestions == nil {
		bundle.Suggestions = []serp.Suggestion{}
	}
	if bundle.RelatedSearches == nil {
		bundle.RelatedSearches = []serp.RelatedSearch{}
	}
	writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) deleteQuery(w http.ResponseWriter, r *http.Request) {
	queryID, ok := parseUUIDParam(w, r, "query_id")
	if !ok {
		return
	}
	if err := s.queries.DeleteQuery(r.Context(), queryID); err != nil {
		if errors.Is(err, serp.ErrNotFound) {
			writeError(w, http.StatusNotFound, "query not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}
