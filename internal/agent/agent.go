// Package agent implements the reference polling worker: it claims
// queries from the coordination server, scrapes a search engine, and
// submits parsed results back.
package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// FetchRequest identifies one SERP page to retrieve.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse carries a retrieved SERP page. Rendered is true when a
// headless browser produced the body.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// Fetcher retrieves a single page over HTTP.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// RenderDetector decides when a fetched page needs a browser rerender.
type RenderDetector interface {
	ShouldRender(resp FetchResponse) bool
}

// Config controls the Agent loop.
type Config struct {
	PollInterval time.Duration
	// SearchURL is a printf template with one %s verb for the escaped
	// search term.
	SearchURL string
}

// Agent polls the server for work and turns assignments into
// submissions. It scrapes the first SERP only: the page budget in an
// assignment is an upper bound, not a quota, and browser-extension
// workers are the ones expected to walk deeper pages.
type Agent struct {
	client   *Client
	fetcher  Fetcher
	headless Fetcher
	detector RenderDetector
	parser   *Parser
	cfg      Config
	logger   *zap.Logger
}

// New constructs an Agent. The headless fetcher and detector are
// optional; without them blocked pages are parsed as-is.
func New(
	client *Client,
	fetcher Fetcher,
	headless Fetcher,
	det RenderDetector,
	parser *Parser,
	cfg Config,
	logger *zap.Logger,
) *Agent {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = "https://html.duckduckgo.com/html/?q=%s"
	}
	return &Agent{
		client:   client,
		fetcher:  fetcher,
		headless: headless,
		detector: det,
		parser:   parser,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run polls until the context finishes.
func (a *Agent) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()
	a.logger.Info("agent started", zap.Duration("poll_interval", a.cfg.PollInterval))
	for {
		a.pollOnce(ctx)
		select {
		case <-ctx.Done():
			a.logger.Info("agent stopped")
			return
		case <-ticker.C:
		}
	}
}

// pollOnce claims and processes at most one query.
func (a *Agent) pollOnce(ctx context.Context) {
	assignment, ok, err := a.client.Next(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("claim failed", zap.Error(err))
		return
	}
	if !ok {
		a.logger.Debug("no pending queries")
		return
	}
	a.logger.Info("claimed query",
		zap.String("query_id", assignment.QueryID),
		zap.String("search_term", assignment.SearchTerm),
	)

	submission, err := a.scrape(ctx, assignment)
	if err != nil {
		// The claim stays processing on the server; there is no
		// reclaim pass, so log loudly.
		a.logger.Error("scrape failed",
			zap.String("query_id", assignment.QueryID),
			zap.Error(err),
		)
		return
	}
	if err := a.client.Submit(ctx, submission); err != nil {
		a.logger.Error("submit failed",
			zap.String("query_id", assignment.QueryID),
			zap.Error(err),
		)
		return
	}
	a.logger.Info("submitted results",
		zap.String("query_id", assignment.QueryID),
		zap.Int("results", len(submission.Pages[0].Results)),
	)
}

func (a *Agent) scrape(ctx context.Context, assignment Assignment) (Submission, error) {
	searchURL := fmt.Sprintf(a.cfg.SearchURL, url.QueryEscape(assignment.SearchTerm))
	resp, err := a.fetcher.Fetch(ctx, FetchRequest{URL: searchURL})
	if err != nil {
		return Submission{}, fmt.Errorf("fetch serp: %w", err)
	}
	resp = a.maybeRender(ctx, searchURL, resp)

	parsed, err := a.parser.Parse(resp.Body)
	if err != nil {
		return Submission{}, fmt.Errorf("parse serp: %w", err)
	}
	if len(parsed.Results) == 0 {
		// Submit the empty page anyway so the query completes instead
		// of sitting in processing forever.
		a.logger.Warn("no results parsed",
			zap.String("search_term", assignment.SearchTerm),
			zap.Int("status", resp.StatusCode),
		)
	}
	return Submission{
		QueryID: assignment.QueryID,
		Pages: []PageSubmission{{
			Page:    1,
			HTML:    string(resp.Body),
			Results: parsed.Results,
		}},
		RelatedSearches: parsed.Related,
	}, nil
}

func (a *Agent) maybeRender(ctx context.Context, searchURL string, resp FetchResponse) FetchResponse {
	if a.headless == nil || a.detector == nil || resp.Rendered {
		return resp
	}
	if !a.detector.ShouldRender(resp) {
		return resp
	}
	a.logger.Info("rendering with headless browser", zap.String("url", searchURL))
	rendered, err := a.headless.Fetch(ctx, FetchRequest{URL: searchURL})
	if err != nil {
		a.logger.Warn("headless render failed", zap.Error(err))
		return resp
	}
	return rendered
}
