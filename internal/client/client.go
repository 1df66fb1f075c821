// Package client provides an HTTP client for the capsule server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/memcapsule/internal/metrics"
	"github.com/raphaelgruber/memcapsule/internal/models"
	"github.com/raphaelgruber/memcapsule/internal/service"
)

// Client talks to a running capsule server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client.
// If baseURL is empty, uses CAPSULE_SERVER_URL or defaults to localhost:8000.
// Timeout can be configured via CAPSULE_CLIENT_TIMEOUT (default 2m, generation can be slow).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("CAPSULE_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("CAPSULE_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// errorResponse mirrors the server's error body.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// do sends a request and decodes a JSON response into result.
// Error responses are mapped back onto the models error sentinels.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: execute request: %w", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(data))
		var er errorResponse
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		sentinel := statusError(resp.StatusCode)
		if known := models.ErrorForCode(er.Code); known != nil {
			sentinel = known
		}
		return fmt.Errorf("%w: %s", sentinel, msg)
	}

	if result != nil {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// statusError is the sentinel matching an HTTP status, for bodies without
// an error code.
func statusError(code int) error {
	switch code {
	case http.StatusBadRequest:
		return models.ErrValidation
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusConflict:
		return models.ErrConflict
	case http.StatusServiceUnavailable:
		return models.ErrUpstreamUnavailable
	}
	return fmt.Errorf("server error: %d %s", code, http.StatusText(code))
}

// Create saves a new entry.
func (c *Client) Create(ctx context.Context, req service.EntryRequest) (service.CreateResult, error) {
	var res service.CreateResult
	err := c.do(ctx, http.MethodPost, "/entry", req, &res)
	return res, err
}

// Flashback returns up to k past entries similar to query.
func (c *Client) Flashback(ctx context.Context, userID, query string, k int) ([]models.Flashback, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("k", strconv.Itoa(k))

	var hits []models.Flashback
	err := c.do(ctx, http.MethodGet, "/flashback/"+url.PathEscape(userID)+"?"+q.Encode(), nil, &hits)
	return hits, err
}

// Stats returns the user's journaling summary.
func (c *Client) Stats(ctx context.Context, userID string) (models.Stats, error) {
	var stats models.Stats
	err := c.do(ctx, http.MethodGet, "/stats/"+url.PathEscape(userID), nil, &stats)
	return stats, err
}

// Rebuild re-derives the user's streak and index on the server.
func (c *Client) Rebuild(ctx context.Context, userID string) (int, error) {
	var res struct {
		Entries int `json:"entries"`
	}
	err := c.do(ctx, http.MethodPost, "/admin/rebuild/"+url.PathEscape(userID), nil, &res)
	return res.Entries, err
}

// Questions returns the guided journaling questions.
func (c *Client) Questions(ctx context.Context) ([]string, error) {
	var qs []string
	err := c.do(ctx, http.MethodGet, "/questions", nil, &qs)
	return qs, err
}

// Usage returns the server's runtime statistics.
func (c *Client) Usage(ctx context.Context) (metrics.Snapshot, error) {
	var snap metrics.Snapshot
	err := c.do(ctx, http.MethodGet, "/usage", nil, &snap)
	return snap, err
}

// Health checks that the server is up and returns its version.
func (c *Client) Health(ctx context.Context) (string, error) {
	var res struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &res); err != nil {
		return "", err
	}
	return res.Version, nil
}
