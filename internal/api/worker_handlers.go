package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/serpflow/serpflow/internal/dispatcher"
	"github.com/serpflow/serpflow/internal/serp"
)

// workerKeyMiddleware guards worker routes with the shared secret.
// Rejection happens before any storage access.
func workerKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Worker-Key") != expected {
				writeError(w, http.StatusUnauthorized, "invalid worker key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type claimResponse struct {
	QueryID    uuid.UUID `json:"query_id"`
	SearchTerm string    `json:"search_term"`
	MaxPages   int       `json:"max_pages"`
}

// nextQuery hands the best pending query to the polling worker. An
// empty queue is not an error: the body is a literal null.
func (s *Server) nextQuery(w http.ResponseWriter, r *http.Request) {
	assignment, err := s.dispatcher.Next(r.Context())
	if err != nil {
		if errors.Is(err, serp.ErrNoWork) {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{
		QueryID:    assignment.QueryID,
		SearchTerm: assignment.SearchTerm,
		MaxPages:   assignment.MaxPages,
	})
}

type submitResultEntry struct {
	Position    int    `json:"position" validate:"required,min=1"`
	Title       string `json:"title" validate:"required"`
	URL         string `json:"url" validate:"required"`
	Domain      string `json:"domain" validate:"required"`
	Description string `json:"description"`
	ResultType  string `json:"result_type,omitempty"`
}

type submitPageEntry struct {
	Page    int                 `json:"page" validate:"required,min=1"`
	HTML    string              `json:"html,omitempty"`
	Results []submitResultEntry `json:"results" validate:"dive"`
}

type submitResultsRequest struct {
	QueryID         string            `json:"query_id" validate:"required,uuid"`
	Pages           []submitPageEntry `json:"pages" validate:"required,min=1,dive"`
	Suggestions     []string          `json:"suggestions,omitempty"`
	RelatedSearches []string          `json:"related_searches,omitempty"`
}

// submitResults stores everything a worker scraped for one query.
// The body is validated before any storage access.
func (s *Server) submitResults(w http.ResponseWriter, r *http.Request) {
	var req submitResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	queryID, err := uuid.Parse(req.QueryID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid query_id")
		return
	}

	sub := dispatcher.Submission{
		QueryID:         queryID,
		Suggestions:     req.Suggestions,
		RelatedSearches: req.RelatedSearches,
	}
	for _, p := range req.Pages {
		page := dispatcher.Page{Number: p.Page}
		if p.HTML != "" {
			page.HTML = []byte(p.HTML)
		}
		for _, res := range p.Results {
			page.Results = append(page.Results, serp.Result{
				Position:    res.Position,
				Title:       res.Title,
				URL:         res.URL,
				Domain:      res.Domain,
				Description: res.Description,
				ResultType:  res.ResultType,
			})
		}
		sub.Pages = append(sub.Pages, page)
	}

	if err := s.dispatcher.Submit(r.Context(), sub); err != nil {
		if errors.Is(err, serp.ErrNotFound) {
			writeError(w, http.StatusNotFound, "query not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
