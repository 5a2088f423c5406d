// Package serp defines core types shared across subsystems.
package serp

import (
	"time"

	"github.com/google/uuid"
)

// QueryStatus represents the lifecycle state of a search query.
type QueryStatus string

// Query status values persisted in the queries table. Transitions are
// monotonic: pending -> processing -> completed, never backward.
const (
	QueryStatusPending    QueryStatus = "pending"
	QueryStatusProcessing QueryStatus = "processing"
	QueryStatusCompleted  QueryStatus = "completed"
)

// Project groups queries under one administrative unit.
type Project struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Query is a single search term awaiting (or past) dispatch to a worker.
type Query struct {
	ID          uuid.UUID   `json:"id"`
	ProjectID   uuid.UUID   `json:"project_id"`
	SearchTerm  string      `json:"search_term"`
	Status      QueryStatus `json:"status"`
	Priority    int         `json:"priority"`
	CreatedAt   time.Time   `json:"created_at"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty"`
}

// QueryListing is a query joined with its project name for admin listings.
type QueryListing struct {
	Query
	ProjectName string `json:"project_name"`
}

// ClaimedQuery identifies the pending row won by a dispatch call.
type ClaimedQuery struct {
	ID         uuid.UUID `json:"query_id"`
	SearchTerm string    `json:"search_term"`
}

// Result is one SERP entry scraped by a worker.
type Result struct {
	ID          int64     `json:"id"`
	QueryID     uuid.UUID `json:"query_id"`
	Page        int       `json:"page"`
	Position    int       `json:"position"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Domain      string    `json:"domain"`
	Description string    `json:"description"`
	ResultType  string    `json:"result_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Suggestion is an autocomplete term scraped alongside the results.
type Suggestion struct {
	ID         int64     `json:"id"`
	QueryID    uuid.UUID `json:"query_id"`
	Suggestion string    `json:"suggestion"`
	CreatedAt  time.Time `json:"created_at"`
}

// RelatedSearch is a "searches related to" term from the page footer.
type RelatedSearch struct {
	ID        int64     `json:"id"`
	QueryID   uuid.UUID `json:"query_id"`
	Term      string    `json:"term"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot records one archived raw SERP page.
type Snapshot struct {
	ID          int64     `json:"id"`
	QueryID     uuid.UUID `json:"query_id"`
	Page        int       `json:"page"`
	BlobURI     string    `json:"blob_uri"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Submission carries everything a worker scraped for one claimed query.
// ID and CreatedAt fields on child rows are assigned by the store.
type Submission struct {
	QueryID         uuid.UUID
	Results         []Result
	Suggestions     []string
	RelatedSearches []string
	Snapshots       []Snapshot
}

// ResultBundle aggregates everything stored for one query.
type ResultBundle struct {
	Results         []Result        `json:"results"`
	Suggestions     []Suggestion    `json:"suggestions"`
	RelatedSearches []RelatedSearch `json:"related_searches"`
}

// StatusCounts breaks queries down by lifecycle state.
type StatusCounts struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Total      int `json:"total"`
}

// DomainCount ranks a result domain by how many rows point at it.
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// ProjectStats summarizes scraping progress for one project.
type ProjectStats struct {
	Queries    StatusCounts  `json:"queries"`
	TopDomains []DomainCount `json:"top_domains"`
}

// ListFilter narrows admin query listings.
type ListFilter struct {
	Status    *QueryStatus
	ProjectID *uuid.UUID
	Limit     int
	Offset    int
}
