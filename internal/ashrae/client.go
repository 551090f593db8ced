// Package ashrae looks up climate design records for weather stations from
// the backend record store, with a per-run cache keyed by station name.
package ashrae

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Record is one climate design-value row from the backend store.
type Record struct {
	UUID            string  `json:"uuid"`
	State           string  `json:"state"`
	Station         string  `json:"station"`
	HighTemp2PctAvg float64 `json:"high_temp_2_avg"`
	ExtremeMinTemp  float64 `json:"extreme_temp_min"`
}

// Client queries climate records by state and station search token.
type Client interface {
	Query(ctx context.Context, state, station string, limit int) ([]Record, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a record-store client for the given base URL.
func NewClient(baseURL, token string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// queryResponse is the store's list envelope.
type queryResponse struct {
	Success bool     `json:"success"`
	Data    []Record `json:"data"`
}

func (c *httpClient) Query(ctx context.Context, state, station string, limit int) ([]Record, error) {
	params := url.Values{
		"state":   {state},
		"station": {station},
		"limit":   {strconv.Itoa(limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/ashrae?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "ashrae: create request")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ashrae: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ashrae: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("ashrae: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result queryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "ashrae: unmarshal response")
	}

	return result.Data, nil
}
