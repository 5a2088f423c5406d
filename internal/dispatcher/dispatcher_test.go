package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	archivemem "github.com/serpflow/serpflow/internal/archive/memory"
	hashsha "github.com/serpflow/serpflow/internal/hash/sha256"
	"github.com/serpflow/serpflow/internal/metrics"
	notifymem "github.com/serpflow/serpflow/internal/notify/memory"
	"github.com/serpflow/serpflow/internal/serp"
)

type stubQueryStore struct {
	claimed  serp.ClaimedQuery
	claimErr error
	query    serp.Query
	getErr   error
}

func (s *stubQueryStore) EnqueueQueries(context.Context, []serp.Query) error { return nil }

func (s *stubQueryStore) ClaimNext(context.Context) (serp.ClaimedQuery, error) {
	return s.claimed, s.claimErr
}

func (s *stubQueryStore) GetQuery(context.Context, uuid.UUID) (serp.Query, error) {
	return s.query, s.getErr
}

func (s *stubQueryStore) ListQueries(context.Context, serp.ListFilter) ([]serp.QueryListing, error) {
	return nil, nil
}

func (s *stubQueryStore) DeleteQuery(context.Context, uuid.UUID) error { return nil }

func (s *stubQueryStore) CountByStatus(context.Context) (serp.StatusCounts, error) {
	return serp.StatusCounts{}, nil
}

type recordingResultStore struct {
	submissions []serp.Submission
	err         error
}

func (s *recordingResultStore) StoreSubmission(_ context.Context, sub serp.Submission) error {
	if s.err != nil {
		return s.err
	}
	s.submissions = append(s.submissions, sub)
	return nil
}

func (s *recordingResultStore) QueryResults(context.Context, uuid.UUID) (serp.ResultBundle, error) {
	return serp.ResultBundle{}, nil
}

type failingBlobStore struct{}

func (failingBlobStore) PutObject(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("bucket unavailable")
}

type failingNotifier struct{}

func (failingNotifier) Publish(context.Context, string, any) (string, error) {
	return "", errors.New("pubsub unavailable")
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestNextReturnsAssignment(t *testing.T) {
	t.Parallel()
	metrics.Init()

	queryID := uuid.New()
	queries := &stubQueryStore{
		claimed: serp.ClaimedQuery{ID: queryID, SearchTerm: "coffee grinder"},
	}
	d := New(queries, &recordingResultStore{}, nil, nil, hashsha.New(), fixedClock{}, Config{MaxPages: 3}, zap.NewNop())

	got, err := d.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, queryID, got.QueryID)
	require.Equal(t, "coffee grinder", got.SearchTerm)
	require.Equal(t, 3, got.MaxPages)
}

func TestNextDefaultsMaxPages(t *testing.T) {
	t.Parallel()
	metrics.Init()

	queries := &stubQueryStore{
		claimed: serp.ClaimedQuery{ID: uuid.New(), SearchTerm: "coffee"},
	}
	d := New(queries, &recordingResultStore{}, nil, nil, hashsha.New(), fixedClock{}, Config{}, zap.NewNop())

	got, err := d.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, got.MaxPages)
}

func TestNextNoWorkPassesSentinel(t *testing.T) {
	t.Parallel()
	metrics.Init()

	queries := &stubQueryStore{claimErr: serp.ErrNoWork}
	d := New(queries, &recordingResultStore{}, nil, nil, hashsha.New(), fixedClock{}, Config{}, zap.NewNop())

	_, err := d.Next(context.Background())
	require.ErrorIs(t, err, serp.ErrNoWork)
}

func TestNextWrapsStoreError(t *testing.T) {
	t.Parallel()
	metrics.Init()

	queries := &stubQueryStore{claimErr: errors.New("connection reset")}
	d := New(queries, &recordingResultStore{}, nil, nil, hashsha.New(), fixedClock{}, Config{}, zap.NewNop())

	_, err := d.Next(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, serp.ErrNoWork)
	require.Contains(t, err.Error(), "claim next query")
}

func TestSubmitStoresArchivesAndNotifies(t *testing.T) {
	t.Parallel()
	metrics.Init()

	queryID := uuid.New()
	projectID := uuid.New()
	queries := &stubQueryStore{
		query: serp.Query{ID: queryID, ProjectID: projectID, SearchTerm: "best espresso"},
	}
	results := &recordingResultStore{}
	blobs := archivemem.NewBlobStore()
	notifier := notifymem.New()
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	cfg := Config{
		MaxPages:       5,
		ArchiveEnabled: true,
		BlobPrefix:     "raw",
		Topic:          "serp-completions",
	}
	d := New(queries, results, blobs, notifier, hashsha.New(), fixedClock{t: now}, cfg, zap.NewNop())

	html := []byte("<html><body>page one</body></html>")
	err := d.Submit(context.Background(), Submission{
		QueryID: queryID,
		Pages: []Page{
			{
				Number: 1,
				HTML:   html,
				Results: []serp.Result{
					{Position: 1, Title: "Espresso 101", URL: "https://coffee.example/espresso", Domain: "coffee.example", Description: "A primer."},
					{Position: 2, Title: "Grinders", URL: "https://gear.example/grinders", Domain: "gear.example", Description: "Gear guide.", ResultType: "video"},
				},
			},
			{
				Number: 2,
				Results: []serp.Result{
					{Position: 1, Title: "Beans", URL: "https://beans.example/", Domain: "beans.example", Description: "Beans."},
				},
			},
		},
		Suggestions:     []string{"best espresso machine"},
		RelatedSearches: []string{"espresso vs drip"},
	})
	require.NoError(t, err)

	require.Len(t, results.submissions, 1)
	stored := results.submissions[0]
	require.Equal(t, queryID, stored.QueryID)
	require.Len(t, stored.Results, 3)
	require.Equal(t, 1, stored.Results[0].Page)
	require.Equal(t, "organic", stored.Results[0].ResultType)
	require.Equal(t, "video", stored.Results[1].ResultType)
	require.Equal(t, 2, stored.Results[2].Page)
	require.Equal(t, []string{"best espresso machine"}, stored.Suggestions)
	require.Equal(t, []string{"espresso vs drip"}, stored.RelatedSearches)

	require.Len(t, stored.Snapshots, 1, "only pages carrying HTML are archived")
	hash, hashErr := hashsha.New().Hash(html)
	require.NoError(t, hashErr)
	path := fmt.Sprintf("raw/%s/1-%s.html", queryID, hash)
	require.Equal(t, "memory://"+path, stored.Snapshots[0].BlobURI)
	require.Equal(t, hash, stored.Snapshots[0].ContentHash)
	archived, ok := blobs.Object(path)
	require.True(t, ok)
	require.Equal(t, html, archived)

	msgs := notifier.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "serp-completions", msgs[0].Topic)
	payload, ok := msgs[0].Payload.(map[string]any)
	require.True(t, ok)
	require.Equal(t, queryID.String(), payload["query_id"])
	require.Equal(t, projectID.String(), payload["project_id"])
	require.Equal(t, "best espresso", payload["search_term"])
	require.Equal(t, 2, payload["pages"])
	require.Equal(t, 3, payload["results"])
	require.Equal(t, now.Format(time.RFC3339), payload["completed_at"])
}

func TestSubmitArchiveDisabledSkipsSnapshots(t *testing.T) {
	t.Parallel()
	metrics.Init()

	queryID := uuid.New()
	results := &recordingResultStore{}
	blobs := archivemem.NewBlobStore()
	d := New(&stubQueryStore{}, results, blobs, nil, hashsha.New(), fixedClock{}, Config{ArchiveEnabled: false}, zap.NewNop())

	err := d.Submit(context.Background(), Submission{
		QueryID: queryID,
		Pages: []Page{{
			Number:  1,
			HTML:    []byte("<html></html>"),
			Results: []serp.Result{{Position: 1, Title: "t", URL: "https://a.example", Domain: "a.example"}},
		}},
	})
	require.NoError(t, err)
	require.Len(t, results.submissions, 1)
	require.Empty(t, results.submissions[0].Snapshots)
}

func TestSubmitArchiveFailureFailsSubmission(t *testing.T) {
	t.Parallel()
	metrics.Init()

	results := &recordingResultStore{}
	notifier := notifymem.New()
	d := New(&stubQueryStore{}, results, failingBlobStore{}, notifier, hashsha.New(), fixedClock{},
		Config{ArchiveEnabled: true, Topic: "serp-completions"}, zap.NewNop())

	err := d.Submit(context.Background(), Submission{
		QueryID: uuid.New(),
		Pages:   []Page{{Number: 1, HTML: []byte("<html></html>")}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "archive page")
	require.Empty(t, results.submissions)
	require.Empty(t, notifier.Messages())
}

func TestSubmitStoreFailurePropagates(t *testing.T) {
	t.Parallel()
	metrics.Init()

	results := &recordingResultStore{err: serp.ErrNotFound}
	notifier := notifymem.New()
	d := New(&stubQueryStore{}, results, nil, notifier, hashsha.New(), fixedClock{},
		Config{Topic: "serp-completions"}, zap.NewNop())

	err := d.Submit(context.Background(), Submission{
		QueryID: uuid.New(),
		Pages: []Page{{
			Number:  1,
			Results: []serp.Result{{Position: 1, Title: "t", URL: "https://a.example", Domain: "a.example"}},
		}},
	})
	require.ErrorIs(t, err, serp.ErrNotFound)
	require.Empty(t, notifier.Messages(), "failed submissions must not notify")
}

func TestSubmitNotifyFailureDoesNotFailSubmission(t *testing.T) {
	t.Parallel()
	metrics.Init()

	results := &recordingResultStore{}
	d := New(&stubQueryStore{}, results, nil, failingNotifier{}, hashsha.New(), fixedClock{},
		Config{Topic: "serp-completions"}, zap.NewNop())

	err := d.Submit(context.Background(), Submission{
		QueryID: uuid.New(),
		Pages: []Page{{
			Number:  1,
			Results: []serp.Result{{Position: 1, Title: "t", URL: "https://a.example", Domain: "a.example"}},
		}},
	})
	require.NoError(t, err)
	require.Len(t, results.submissions, 1)
}
