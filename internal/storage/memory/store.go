// Package memory provides an in-memory store for development/testing.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serpflow/serpflow/internal/serp"
)

// Store implements the serp store interfaces without external
// dependencies. The row locking Postgres provides for the claim is
// provided here by a single mutex, so the same at-most-one guarantee
// holds for concurrent callers in one process.
type Store struct {
	mu          sync.Mutex
	projects    map[uuid.UUID]serp.Project
	queries     map[uuid.UUID]serp.Query
	results     map[uuid.UUID][]serp.Result
	suggestions map[uuid.UUID][]serp.Suggestion
	related     map[uuid.UUID][]serp.RelatedSearch
	snapshots   map[uuid.UUID][]serp.Snapshot
	nextRowID   int64
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		projects:    make(map[uuid.UUID]serp.Project),
		queries:     make(map[uuid.UUID]serp.Query),
		results:     make(map[uuid.UUID][]serp.Result),
		suggestions: make(map[uuid.UUID][]serp.Suggestion),
		related:     make(map[uuid.UUID][]serp.RelatedSearch),
		snapshots:   make(map[uuid.UUID][]serp.Snapshot),
	}
}

// CreateProject stores a new project.
func (s *Store) CreateProject(_ context.Context, project serp.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[project.ID] = project
	return nil
}

// ListProjects returns active projects, newest first.
func (s *Store) ListProjects(_ context.Context) ([]serp.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var projects []serp.Project
	for _, p := range s.projects {
		if p.Active {
			projects = append(projects, p)
		}
	}
	sort.Slice(projects, func(i, j int) bool {
		if !projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].CreatedAt.After(projects[j].CreatedAt)
		}
		return lessID(projects[j].ID, projects[i].ID)
	})
	return projects, nil
}

// GetProject fetches a project by ID.
func (s *Store) GetProject(_ context.Context, projectID uuid.UUID) (serp.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return serp.Project{}, serp.ErrNotFound
	}
	return p, nil
}

// DeactivateProject clears the active flag. Queries stay in place.
func (s *Store) DeactivateProject(_ context.Context, projectID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return serp.ErrNotFound
	}
	p.Active = false
	s.projects[projectID] = p
	return nil
}

// ProjectStats aggregates status counts and the ten most common result
// domains for one project.
func (s *Store) ProjectStats(_ context.Context, projectID uuid.UUID) (serp.ProjectStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return serp.ProjectStats{}, serp.ErrNotFound
	}

	var stats serp.ProjectStats
	domains := make(map[string]int)
	for _, q := range s.queries {
		if q.ProjectID != projectID {
			continue
		}
		switch q.Status {
		case serp.QueryStatusPending:
			stats.Queries.Pending++
		case serp.QueryStatusProcessing:
			stats.Queries.Processing++
		case serp.QueryStatusCompleted:
			stats.Queries.Completed++
		}
		stats.Queries.Total++
		for _, r := range s.results[q.ID] {
			if r.Domain != "" {
				domains[r.Domain]++
			}
		}
	}

	for domain, count := range domains {
		stats.TopDomains = append(stats.TopDomains, serp.DomainCount{Domain: domain, Count: count})
	}
	sort.Slice(stats.TopDomains, func(i, j int) bool {
		if stats.TopDomains[i].Count != stats.TopDomains[j].Count {
			return stats.TopDomains[i].Count > stats.TopDomains[j].Count
		}
		return stats.TopDomains[i].Domain < stats.TopDomains[j].Domain
	})
	if len(stats.TopDomains) > 10 {
		stats.TopDomains = stats.TopDomains[:10]
	}
	return stats, nil
}

// EnqueueQueries stores a batch of pending queries.
func (s *Store) EnqueueQueries(_ context.Context, queries []serp.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range queries {
		if _, ok := s.projects[q.ProjectID]; !ok {
			return serp.ErrNotFound
		}
	}
	for _, q := range queries {
		s.queries[q.ID] = q
	}
	return nil
}

// ClaimNext hands out the best pending query: highest priority first,
// oldest first within a priority, ID as the final tiebreak. The whole
// select-and-flip happens under the mutex, so concurrent callers
// observe disjoint rows.
func (s *Store) ClaimNext(_ context.Context) (serp.ClaimedQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *serp.Query
	for id := range s.queries {
		q := s.queries[id]
		if q.Status != serp.QueryStatusPending {
			continue
		}
		if best == nil || claimBefore(q, *best) {
			copied := q
			best = &copied
		}
	}
	if best == nil {
		return serp.ClaimedQuery{}, serp.ErrNoWork
	}

	now := time.Now().UTC()
	best.Status = serp.QueryStatusProcessing
	best.ProcessedAt = &now
	s.queries[best.ID] = *best
	return serp.ClaimedQuery{ID: best.ID, SearchTerm: best.SearchTerm}, nil
}

// GetQuery fetches a query by ID.
func (s *Store) GetQuery(_ context.Context, queryID uuid.UUID) (serp.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queries[queryID]
	if !ok {
		return serp.Query{}, serp.ErrNotFound
	}
	return q, nil
}

// ListQueries returns queries joined with project names, newest first.
func (s *Store) ListQueries(_ context.Context, filter serp.ListFilter) ([]serp.QueryListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var listings []serp.QueryListing
	for _, q := range s.queries {
		if filter.Status != nil && q.Status != *filter.Status {
			continue
		}
		if filter.ProjectID != nil && q.ProjectID != *filter.ProjectID {
			continue
		}
		listings = append(listings, serp.QueryListing{
			Query:       q,
			ProjectName: s.projects[q.ProjectID].Name,
		})
	}
	sort.Slice(listings, func(i, j int) bool {
		if !listings[i].CreatedAt.Equal(listings[j].CreatedAt) {
			return listings[i].CreatedAt.After(listings[j].CreatedAt)
		}
		return lessID(listings[j].ID, listings[i].ID)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(listings) {
			return nil, nil
		}
		listings = listings[filter.Offset:]
	}
	if filter.Limit > 0 && len(listings) > filter.Limit {
		listings = listings[:filter.Limit]
	}
	return listings, nil
}

// DeleteQuery removes a query and all of its child rows.
func (s *Store) DeleteQuery(_ context.Context, queryID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queries[queryID]; !ok {
		return serp.ErrNotFound
	}
	delete(s.queries, queryID)
	delete(s.results, queryID)
	delete(s.suggestions, queryID)
	delete(s.related, queryID)
	delete(s.snapshots, queryID)
	return nil
}

// CountByStatus tallies queries by lifecycle status.
func (s *Store) CountByStatus(_ context.Context) (serp.StatusCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var counts serp.StatusCounts
	for _, q := range s.queries {
		switch q.Status {
		case serp.QueryStatusPending:
			counts.Pending++
		case serp.QueryStatusProcessing:
			counts.Processing++
		case serp.QueryStatusCompleted:
			counts.Completed++
		}
		counts.Total++
	}
	return counts, nil
}

// StoreSubmission appends all child rows and completes the query in
// one critical section. An unknown query leaves nothing behind.
func (s *Store) StoreSubmission(_ context.Context, submission serp.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queries[submission.QueryID]
	if !ok {
		return serp.ErrNotFound
	}

	now := time.Now().UTC()
	for _, r := range submission.Results {
		s.nextRowID++
		r.ID = s.nextRowID
		r.QueryID = submission.QueryID
		r.CreatedAt = now
		if r.ResultType == "" {
			r.ResultType = "organic"
		}
		s.results[submission.QueryID] = append(s.results[submission.QueryID], r)
	}
	for _, text := range submission.Suggestions {
		s.nextRowID++
		s.suggestions[submission.QueryID] = append(s.suggestions[submission.QueryID], serp.Suggestion{
			ID:         s.nextRowID,
			QueryID:    submission.QueryID,
			Suggestion: text,
			CreatedAt:  now,
		})
	}
	for _, term := range submission.RelatedSearches {
		s.nextRowID++
		s.related[submission.QueryID] = append(s.related[submission.QueryID], serp.RelatedSearch{
			ID:        s.nextRowID,
			QueryID:   submission.QueryID,
			Term:      term,
			CreatedAt: now,
		})
	}
	for _, snap := range submission.Snapshots {
		s.nextRowID++
		snap.ID = s.nextRowID
		snap.QueryID = submission.QueryID
		snap.CreatedAt = now
		s.snapshots[submission.QueryID] = append(s.snapshots[submission.QueryID], snap)
	}

	q.Status = serp.QueryStatusCompleted
	s.queries[submission.QueryID] = q
	return nil
}

// QueryResults returns everything stored for one query.
func (s *Store) QueryResults(_ context.Context, queryID uuid.UUID) (serp.ResultBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bundle := serp.ResultBundle{
		Results:         append([]serp.Result(nil), s.results[queryID]...),
		Suggestions:     append([]serp.Suggestion(nil), s.suggestions[queryID]...),
		RelatedSearches: append([]serp.RelatedSearch(nil), s.related[queryID]...),
	}
	return bundle, nil
}

// Snapshots returns archived snapshot rows for one query.
func (s *Store) Snapshots(queryID uuid.UUID) []serp.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]serp.Snapshot(nil), s.snapshots[queryID]...)
}

// claimBefore reports whether a should be claimed ahead of b.
func claimBefore(a, b serp.Query) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return lessID(a.ID, b.ID)
}

func lessID(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
