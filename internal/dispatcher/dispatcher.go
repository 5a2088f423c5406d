// Package dispatcher hands out pending queries and accepts results.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/serpflow/serpflow/internal/metrics"
	"github.com/serpflow/serpflow/internal/serp"
)

// Config controls Dispatcher behavior.
type Config struct {
	// MaxPages is the fixed page budget handed out with every claim.
	MaxPages int
	// ArchiveEnabled persists raw page HTML when a worker attaches it.
	ArchiveEnabled bool
	BlobPrefix     string
	ContentType    string
	// Topic names the completion notification destination; empty
	// disables notifications.
	Topic string
}

// Assignment is what a successful claim hands to a worker.
type Assignment struct {
	QueryID    uuid.UUID
	SearchTerm string
	MaxPages   int
}

// Page carries one scraped SERP page from a worker. HTML is optional
// raw page content for the archive.
type Page struct {
	Number  int
	HTML    []byte
	Results []serp.Result
}

// Submission bundles everything a worker scraped for one query.
type Submission struct {
	QueryID         uuid.UUID
	Pages           []Page
	Suggestions     []string
	RelatedSearches []string
}

// Dispatcher mediates between polling workers and the stores. It keeps
// no state of its own: claim atomicity is the store's concern, so any
// number of Dispatchers over one store stay correct.
type Dispatcher struct {
	queries  serp.QueryStore
	results  serp.ResultStore
	blobs    serp.BlobStore
	notifier serp.Notifier
	hasher   serp.Hasher
	clock    serp.Clock
	cfg      Config
	logger   *zap.Logger
}

// New creates a Dispatcher.
func New(
	queries serp.QueryStore,
	results serp.ResultStore,
	blobs serp.BlobStore,
	notifier serp.Notifier,
	hasher serp.Hasher,
	clock serp.Clock,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 5
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	return &Dispatcher{
		queries:  queries,
		results:  results,
		blobs:    blobs,
		notifier: notifier,
		hasher:   hasher,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Next claims the best pending query for the calling worker. Returns
// serp.ErrNoWork when nothing is pending.
func (d *Dispatcher) Next(ctx context.Context) (Assignment, error) {
	claimed, err := d.queries.ClaimNext(ctx)
	if err != nil {
		if errors.Is(err, serp.ErrNoWork) {
			metrics.ObserveEmptyPoll()
			return Assignment{}, err
		}
		return Assignment{}, fmt.Errorf("claim next query: %w", err)
	}
	metrics.ObserveClaim()
	d.logger.Debug("query claimed",
		zap.String("query_id", claimed.ID.String()),
		zap.String("search_term", claimed.SearchTerm),
	)
	return Assignment{
		QueryID:    claimed.ID,
		SearchTerm: claimed.SearchTerm,
		MaxPages:   d.cfg.MaxPages,
	}, nil
}

// Submit persists a worker's scraped pages and completes the query.
// Raw pages are archived first so the snapshot rows land in the same
// store write as the results; an archive failure therefore fails the
// whole submission. Completion notifications happen after the write
// and never fail it.
func (d *Dispatcher) Submit(ctx context.Context, sub Submission) error {
	submission := serp.Submission{
		QueryID:         sub.QueryID,
		Suggestions:     sub.Suggestions,
		RelatedSearches: sub.RelatedSearches,
	}
	for _, page := range sub.Pages {
		for _, r := range page.Results {
			r.Page = page.Number
			if r.ResultType == "" {
				r.ResultType = "organic"
			}
			submission.Results = append(submission.Results, r)
		}
		if d.cfg.ArchiveEnabled && d.blobs != nil && len(page.HTML) > 0 {
			snapshot, err := d.archivePage(ctx, sub.QueryID, page)
			if err != nil {
				metrics.ObserveSubmission("error", 0)
				return err
			}
			submission.Snapshots = append(submission.Snapshots, snapshot)
		}
	}

	if err := d.results.StoreSubmission(ctx, submission); err != nil {
		metrics.ObserveSubmission("error", 0)
		return fmt.Errorf("store submission: %w", err)
	}
	metrics.ObserveSubmission("ok", len(submission.Results))
	d.logger.Info("submission stored",
		zap.String("query_id", sub.QueryID.String()),
		zap.Int("pages", len(sub.Pages)),
		zap.Int("results", len(submission.Results)),
	)

	d.notifyCompletion(ctx, sub, len(submission.Results))
	return nil
}

func (d *Dispatcher) archivePage(ctx context.Context, queryID uuid.UUID, page Page) (serp.Snapshot, error) {
	hash, err := d.hasher.Hash(page.HTML)
	if err != nil {
		return serp.Snapshot{}, fmt.Errorf("hash page: %w", err)
	}
	uri, err := d.blobs.PutObject(ctx, d.buildBlobPath(queryID, page.Number, hash), d.cfg.ContentType, page.HTML)
	if err != nil {
		return serp.Snapshot{}, fmt.Errorf("archive page: %w", err)
	}
	return serp.Snapshot{Page: page.Number, BlobURI: uri, ContentHash: hash}, nil
}

func (d *Dispatcher) buildBlobPath(queryID uuid.UUID, page int, hash string) string {
	prefix := strings.Trim(d.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%d-%s.html", queryID, page, hash)
	}
	return fmt.Sprintf("%s/%s/%d-%s.html", prefix, queryID, page, hash)
}

func (d *Dispatcher) notifyCompletion(ctx context.Context, sub Submission, resultRows int) {
	if d.notifier == nil || d.cfg.Topic == "" {
		return
	}
	query, err := d.queries.GetQuery(ctx, sub.QueryID)
	if err != nil {
		d.logger.Warn("completion lookup failed",
			zap.String("query_id", sub.QueryID.String()),
			zap.Error(err),
		)
		return
	}
	payload := map[string]any{
		"query_id":     sub.QueryID.String(),
		"project_id":   query.ProjectID.String(),
		"search_term":  query.SearchTerm,
		"pages":        len(sub.Pages),
		"results":      resultRows,
		"completed_at": d.clock.Now().Format(time.RFC3339),
	}
	if _, err := d.notifier.Publish(ctx, d.cfg.Topic, payload); err != nil {
		d.logger.Warn("completion publish failed",
			zap.String("query_id", sub.QueryID.String()),
			zap.Error(err),
		)
	}
}
