package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// Assignment is a claim handed out by the server.
type Assignment struct {
	QueryID    string `json:"query_id"`
	SearchTerm string `json:"search_term"`
	MaxPages   int    `json:"max_pages"`
}

// ResultItem is one parsed SERP entry in the submission wire format.
type ResultItem struct {
	Position    int    `json:"position"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Domain      string `json:"domain"`
	Description string `json:"description"`
	ResultType  string `json:"result_type,omitempty"`
}

// PageSubmission is one scraped page with its raw HTML attached.
type PageSubmission struct {
	Page    int          `json:"page"`
	HTML    string       `json:"html,omitempty"`
	Results []ResultItem `json:"results"`
}

// Submission is the POST /results body.
type Submission struct {
	QueryID         string           `json:"query_id"`
	Pages           []PageSubmission `json:"pages"`
	Suggestions     []string         `json:"suggestions,omitempty"`
	RelatedSearches []string         `json:"related_searches,omitempty"`
}

// Client speaks the worker protocol against one server.
type Client struct {
	baseURL   string
	workerKey string
	http      *http.Client
}

// NewClient builds a Client for the given server.
func NewClient(baseURL, workerKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		workerKey: workerKey,
		http:      &http.Client{Timeout: timeout},
	}
}

// Next polls for work. ok is false when the queue is empty.
func (c *Client) Next(ctx context.Context) (Assignment, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/queries/next", nil)
	if err != nil {
		return Assignment{}, false, fmt.Errorf("build claim request: %w", err)
	}
	c.setHeaders(req, false)

	resp, err := c.http.Do(req)
	if err != nil {
		return Assignment{}, false, fmt.Errorf("claim request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Assignment{}, false, fmt.Errorf("read claim response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Assignment{}, false, fmt.Errorf("claim returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if isNull(body) {
		return Assignment{}, false, nil
	}
	var assignment Assignment
	if err := json.Unmarshal(body, &assignment); err != nil {
		return Assignment{}, false, fmt.Errorf("decode claim: %w", err)
	}
	return assignment, true, nil
}

// Submit posts scraped results back.
func (c *Client) Submit(ctx context.Context, sub Submission) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/results", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build submit request: %w", err)
	}
	c.setHeaders(req, true)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submit request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("submit returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	if c.workerKey != "" {
		req.Header.Set("X-Worker-Key", c.workerKey)
	}
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
}

func isNull(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || string(trimmed) == "null"
}
