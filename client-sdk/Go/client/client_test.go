package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /v1/catalog", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Stats{Name: "cat", State: "hashed", Records: 3, Histograms: 3, Leaves: 4})
	})
	mux.HandleFunc("POST /v1/catalog/save", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Stats{Name: "cat", State: "persisted", Records: 3})
	})
	mux.HandleFunc("POST /v1/images", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["name"] == "wide" {
			w.Header().Set("X-Request-ID", "req-1")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid descriptor dimension"})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Stats{Records: 4})
	})
	mux.HandleFunc("POST /v1/search", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Path  string `json:"path"`
			Limit int    `json:"limit"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		matches := []Match{{"i0000002", 1, 2}, {"i0000000", 0.25, 0}, {"i0000001", 0, 1}}
		if req.Limit > 0 && req.Limit < len(matches) {
			matches = matches[:req.Limit]
		}
		json.NewEncoder(w).Encode(SearchResult{RequestID: "req-2", Matches: matches})
	})
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "plain failure", http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthAndCatalog(t *testing.T) {
	c := NewClient(newTestServer(t).URL)
	ctx := context.Background()

	ok, err := c.HealthCheck(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	stats, err := c.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hashed", stats.State)
	assert.Equal(t, 4, stats.Leaves)

	stats, err = c.Save(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", stats.State)
}

func TestSearch(t *testing.T) {
	c := NewClient(newTestServer(t).URL)

	res, err := c.Search(context.Background(), "/q.dsc", 0)
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)
	assert.Equal(t, "i0000002", res.Matches[0].Name)
	assert.Equal(t, "req-2", res.RequestID)

	res, err = c.Search(context.Background(), "/q.dsc", 1)
	require.NoError(t, err)
	assert.Len(t, res.Matches, 1)
}

func TestAddImageErrors(t *testing.T) {
	c := NewClient(newTestServer(t).URL)
	ctx := context.Background()

	stats, err := c.AddImage(ctx, "/x.dsc", "x")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Records)

	_, err = c.AddImage(ctx, "", "x")
	assert.Error(t, err)

	_, err = c.AddImage(ctx, "/wide.dsc", "wide")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "invalid descriptor dimension", apiErr.Message)
	assert.Equal(t, "req-1", apiErr.RequestID)
}

func TestPlainErrorBody(t *testing.T) {
	c := NewClient(newTestServer(t).URL)

	err := c.do(context.Background(), http.MethodGet, "/broken", nil, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "plain failure")
}
