package serp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrNoWork signals that no pending query is available to claim.
// It is not a failure: the HTTP layer renders it as an empty dispatch.
var ErrNoWork = errors.New("no pending queries")

// ProjectStore persists projects and their aggregate stats.
type ProjectStore interface {
	CreateProject(ctx context.Context, project Project) error
	ListProjects(ctx context.Context) ([]Project, error)
	GetProject(ctx context.Context, projectID uuid.UUID) (Project, error)
	DeactivateProject(ctx context.Context, projectID uuid.UUID) error
	ProjectStats(ctx context.Context, projectID uuid.UUID) (ProjectStats, error)
}

// QueryStore persists queries and hands them out to workers.
type QueryStore interface {
	EnqueueQueries(ctx context.Context, queries []Query) error
	// ClaimNext atomically moves the best pending query to processing
	// and returns it. Concurrent callers never receive the same row.
	// Returns ErrNoWork when nothing is pending.
	ClaimNext(ctx context.Context) (ClaimedQuery, error)
	GetQuery(ctx context.Context, queryID uuid.UUID) (Query, error)
	ListQueries(ctx context.Context, filter ListFilter) ([]QueryListing, error)
	DeleteQuery(ctx context.Context, queryID uuid.UUID) error
	CountByStatus(ctx context.Context) (StatusCounts, error)
}

// ResultStore persists scraped submissions and reads them back.
type ResultStore interface {
	// StoreSubmission writes all child rows and completes the query in
	// one transaction. On any failure nothing is visible afterwards.
	StoreSubmission(ctx context.Context, submission Submission) error
	QueryResults(ctx context.Context, queryID uuid.UUID) (ResultBundle, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Notifier pushes completion events to Pub/Sub (or similar).
type Notifier interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes digests for archived raw pages.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces project and query IDs (UUIDs).
type IDGenerator interface {
	NewID() (uuid.UUID, error)
}
