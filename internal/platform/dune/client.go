// Package dune is a REST client for the Dune Analytics query API. Every call
// carries the static X-Dune-API-Key header.
package dune

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.dune.com/api/v1"

// DefaultPollInterval is how often an in-flight execution is polled.
const DefaultPollInterval = 5 * time.Second

// Client is the REST client for the Dune query API.
//
// MaxWait bounds how long WaitForCompletion polls before giving up. A zero
// MaxWait polls until the execution finishes; the wait is always cancellable
// through the context.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewClient creates a new Dune client. An empty baseURL selects the public
// endpoint; pollInterval <= 0 selects DefaultPollInterval; maxWait <= 0
// means poll until the context is cancelled.
func NewClient(baseURL, apiKey string, pollInterval, maxWait time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		pollInterval: pollInterval,
		maxWait:      maxWait,
	}
}

// SetHTTPClient replaces the underlying HTTP client. Used by tests to inject
// a fake transport.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// Results returns the latest stored result set for a query without
// triggering a fresh execution.
func (c *Client) Results(ctx context.Context, queryID int64) (*ResultSet, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/query/%d/results", queryID))
	if err != nil {
		return nil, fmt.Errorf("dune: results for query %d: %w", queryID, err)
	}
	return decodeResults(body)
}

// Execute starts a fresh execution of the query and returns its execution
// handle.
func (c *Client) Execute(ctx context.Context, queryID int64) (string, error) {
	body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/query/execute/%d", queryID))
	if err != nil {
		return "", fmt.Errorf("dune: execute query %d: %w", queryID, err)
	}

	var resp executeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("dune: decode execute response: %w", err)
	}
	if resp.ExecutionID == "" {
		return "", fmt.Errorf("dune: execute query %d: no execution id in response", queryID)
	}
	return resp.ExecutionID, nil
}

// Status returns the current state of an execution.
func (c *Client) Status(ctx context.Context, executionID string) (State, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/execution/%s/status", executionID))
	if err != nil {
		return "", fmt.Errorf("dune: status of execution %s: %w", executionID, err)
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("dune: decode status response: %w", err)
	}
	return resp.State, nil
}

// ExecutionResults fetches the result set of a completed execution.
func (c *Client) ExecutionResults(ctx context.Context, executionID string) (*ResultSet, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/execution/%s/results", executionID))
	if err != nil {
		return nil, fmt.Errorf("dune: results of execution %s: %w", executionID, err)
	}
	return decodeResults(body)
}

// WaitForCompletion polls the status endpoint at the configured interval
// until the execution reaches a terminal state. COMPLETED returns nil; any
// other terminal state returns an ExecutionError. The wait stops early when
// the context is cancelled or, if MaxWait is set, when it elapses.
func (c *Client) WaitForCompletion(ctx context.Context, executionID string) error {
	if c.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.maxWait)
		defer cancel()
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		state, err := c.Status(ctx, executionID)
		if err != nil {
			return err
		}

		switch {
		case state == StateCompleted:
			return nil
		case state.Running():
			select {
			case <-ctx.Done():
				return fmt.Errorf("dune: wait for execution %s: %w", executionID, ctx.Err())
			case <-ticker.C:
			}
		default:
			return &ExecutionError{ExecutionID: executionID, State: state}
		}
	}
}

// Run fetches a query's result set. With fresh=false it returns the latest
// cached results; with fresh=true it starts an execution, waits for it to
// complete, and fetches its results.
func (c *Client) Run(ctx context.Context, queryID int64, fresh bool) (*ResultSet, error) {
	if !fresh {
		return c.Results(ctx, queryID)
	}

	executionID, err := c.Execute(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if err := c.WaitForCompletion(ctx, executionID); err != nil {
		return nil, err
	}
	return c.ExecutionResults(ctx, executionID)
}

// do performs a request against the API, sets the API key header, and
// returns the response body. Any non-2xx status is an error.
func (c *Client) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Dune-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func decodeResults(body []byte) (*ResultSet, error) {
	var resp resultsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("dune: decode results: %w", err)
	}
	return &ResultSet{
		Columns: resp.Result.Metadata.ColumnNames,
		Rows:    resp.Result.Rows,
	}, nil
}
