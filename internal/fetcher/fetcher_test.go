package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchReturnsNormalizedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URLs []string `json:"urls"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"https://example.com/a"}, req.URLs)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"results": []any{
				map[string]any{
					"cleaned_html": "hello world",
					"markdown":     map[string]any{"raw_markdown": "# hello"},
					"metadata":     map[string]any{"title": "Hello", "status_code": 200},
					"links": map[string]any{
						"internal": []any{map[string]string{"href": "https://example.com/b"}},
						"external": []any{map[string]string{"href": "https://other.com/"}},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second)
	page, err := c.Fetch(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "hello world", page.Content)
	assert.Equal(t, "Hello", page.Title)
	assert.Equal(t, 200, page.StatusCode)
	assert.Equal(t, []string{"https://example.com/b"}, page.InternalLinks)
	assert.Equal(t, []string{"https://other.com/"}, page.ExternalLinks)
}

func TestFetchErrorsOnUnsuccessfulResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "results": []any{}})
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second)
	_, err := c.Fetch(context.Background(), "https://example.com/missing")
	assert.Error(t, err)
}

func TestFetchErrorsOnHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 2*time.Second)
	_, err := c.Fetch(context.Background(), "https://example.com/a")
	assert.Error(t, err)
}
