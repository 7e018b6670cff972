package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// imgsearch Go SDK
//
// A thin wrapper around the imgsearch HTTP API.
//
// All methods return *APIError when the server answers with a status >= 400.
//
// Example usage:
//  c := NewClient("http://localhost:8080")
//  res, err := c.Search(ctx, "/data/query.dsc", 5)

// Client is an HTTP client for an imgsearch server.
type Client struct {
	BaseURL string
	Client  *http.Client
}

// APIError is a non-successful reply from the server.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("imgsearch: %d %s", e.StatusCode, e.Message)
}

// Match is one ranked catalog record.
type Match struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Position int     `json:"position"`
}

// SearchResult is the reply to Search.
type SearchResult struct {
	RequestID string  `json:"request_id"`
	Matches   []Match `json:"matches"`
}

// Stats describes the served catalog.
type Stats struct {
	Path       string `json:"path"`
	Name       string `json:"name"`
	State      string `json:"state"`
	Records    int    `json:"records"`
	Histograms int    `json:"histograms"`
	Leaves     int    `json:"leaves"`
	Version    uint64 `json:"version"`
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends body as JSON and decodes the reply into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			RequestID:  resp.Header.Get("X-Request-ID"),
		}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// HealthCheck reports whether the server is up.
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	var result map[string]any
	if err := c.do(ctx, http.MethodGet, "/", nil, &result); err != nil {
		return false, err
	}
	return result["status"] == "ok", nil
}

// Catalog returns the served catalog's statistics.
func (c *Client) Catalog(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.do(ctx, http.MethodGet, "/v1/catalog", nil, &stats)
	return stats, err
}

// Save persists the served catalog.
func (c *Client) Save(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.do(ctx, http.MethodPost, "/v1/catalog/save", nil, &stats)
	return stats, err
}

// AddImage adds the descriptor file at path (on the server) as name.
func (c *Client) AddImage(ctx context.Context, path, name string) (Stats, error) {
	if path == "" || name == "" {
		return Stats{}, fmt.Errorf("path and name must not be empty")
	}
	var stats Stats
	payload := map[string]any{"path": path, "name": name}
	err := c.do(ctx, http.MethodPost, "/v1/images", payload, &stats)
	return stats, err
}

// Search ranks the catalog against the descriptor file at path (on the
// server). A limit of 0 returns every record.
func (c *Client) Search(ctx context.Context, path string, limit int) (SearchResult, error) {
	var result SearchResult
	payload := map[string]any{"path": path, "limit": limit}
	err := c.do(ctx, http.MethodPost, "/v1/search", payload, &result)
	return result, err
}
