// Package defillama is a read-only REST client for the DefiLlama yields API.
package defillama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/vaultlens/vaultlens/internal/domain"
)

// DefaultBaseURL is the public yields API root.
const DefaultBaseURL = "https://yields.llama.fi"

// Client is the REST client for the DefiLlama yields API. The API requires
// no authentication.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new DefiLlama client. An empty baseURL selects the
// public endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient replaces the underlying HTTP client. Used by tests to inject
// a fake transport.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// Pools returns every yield pool known to the API. Unlike Chart, a non-200
// response here is a hard error: discovery cannot proceed without the
// listing.
func (c *Client) Pools(ctx context.Context) ([]Pool, error) {
	body, status, err := c.get(ctx, "/pools")
	if err != nil {
		return nil, fmt.Errorf("defillama: fetch pools: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("defillama: fetch pools: status %d", status)
	}

	var resp poolsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("defillama: decode pools: %w", err)
	}
	return resp.Data, nil
}

// Chart returns the historical APY/TVL series for a pool. A non-200 status
// or an absent/empty data field is reported as domain.ErrNoData so callers
// can skip the pool without aborting their batch; only transport failures
// surface as other errors.
func (c *Client) Chart(ctx context.Context, poolID string) ([]ChartPoint, error) {
	body, status, err := c.get(ctx, "/chart/"+url.PathEscape(poolID))
	if err != nil {
		return nil, fmt.Errorf("defillama: fetch chart %s: %w", poolID, err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("defillama: chart %s: status %d: %w", poolID, status, domain.ErrNoData)
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("defillama: decode chart %s: %w", poolID, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("defillama: chart %s: %w", poolID, domain.ErrNoData)
	}
	return resp.Data, nil
}

// get performs a GET request and returns the body and status code. Non-200
// statuses are not errors at this level; each endpoint decides how to treat
// them.
func (c *Client) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
