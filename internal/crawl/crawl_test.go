package crawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmemcore/internal/embeddings"
	"webmemcore/internal/fetcher"
	"webmemcore/internal/ingest"
	"webmemcore/internal/store"
	"webmemcore/internal/webtypes"
)

func englishBody() string {
	return strings.Repeat("The quick brown fox jumps over the lazy dog in the sunny meadow today. ", 40)
}

func frenchBody() string {
	return strings.Repeat("Le rapide renard brun saute par-dessus le chien paresseux aujourd'hui. ", 40)
}

// fakePage is what the test server serves for one URL.
type fakePage struct {
	content  string
	title    string
	status   int
	internal []string
	external []string
}

// newFakeFetchServer serves /crawl the way the external fetcher service
// does, keyed by the requested URL so different test URLs can return
// different content/links/status.
func newFakeFetchServer(t *testing.T, pages map[string]fakePage) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/crawl", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URLs []string `json:"urls"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.URLs, 1)

		page, ok := pages[req.URLs[0]]
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "results": []any{}})
			return
		}

		internal := make([]map[string]string, 0, len(page.internal))
		for _, l := range page.internal {
			internal = append(internal, map[string]string{"href": l})
		}
		external := make([]map[string]string, 0, len(page.external))
		for _, l := range page.external {
			external = append(external, map[string]string{"href": l})
		}
		status := page.status
		if status == 0 {
			status = 200
		}

		resp := map[string]any{
			"success": true,
			"results": []any{
				map[string]any{
					"cleaned_html": page.content,
					"markdown":     map[string]any{"raw_markdown": page.content},
					"metadata":     map[string]any{"title": page.title, "status_code": status},
					"links":        map[string]any{"internal": internal, "external": external},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOrchestrator(t *testing.T, pages map[string]fakePage) (*Orchestrator, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := newFakeFetchServer(t, pages)
	fc := fetcher.New(srv.URL, 5*time.Second)
	pipeline := ingest.New(st, embeddings.NewMockEncoder(), nil)

	return New(st, fc, pipeline), st
}

func TestCrawlOne_StoresOnSuccess(t *testing.T) {
	o, st := newTestOrchestrator(t, map[string]fakePage{
		"https://example.com/a": {content: englishBody(), title: "A"},
	})

	res := o.CrawlOne(context.Background(), "https://example.com/a", webtypes.RetentionPermanent, nil, "")
	require.True(t, res.Success)

	doc, err := st.GetDocumentByID(context.Background(), res.ContentID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "https://example.com/a", doc.URL)
}

func TestCrawlOne_RejectsBlockedDomain(t *testing.T) {
	o, st := newTestOrchestrator(t, map[string]fakePage{
		"https://blocked.example.com/a": {content: englishBody()},
	})
	_, err := st.AddBlockedDomain(context.Background(), "blocked.example.com", "test block")
	require.NoError(t, err)

	res := o.CrawlOne(context.Background(), "https://blocked.example.com/a", webtypes.RetentionPermanent, nil, "")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "blocked")
}

func TestCrawlOne_FetchErrorIsReportedNotPanicked(t *testing.T) {
	o, _ := newTestOrchestrator(t, map[string]fakePage{})

	res := o.CrawlOne(context.Background(), "https://missing.example.com/a", webtypes.RetentionPermanent, nil, "")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestCrawlOne_InvalidURLFailsValidation(t *testing.T) {
	o, _ := newTestOrchestrator(t, map[string]fakePage{})

	res := o.CrawlOne(context.Background(), "not-a-url", webtypes.RetentionPermanent, nil, "")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestDeepCrawlAndStore_BFSStoresWithinDepthAndPageBounds(t *testing.T) {
	pages := map[string]fakePage{
		"https://example.com/root": {
			content:  englishBody(),
			title:    "root",
			internal: []string{"https://example.com/child1", "https://example.com/child2"},
		},
		"https://example.com/child1": {content: englishBody(), title: "child1"},
		"https://example.com/child2": {content: englishBody(), title: "child2"},
	}
	o, _ := newTestOrchestrator(t, pages)

	summary, err := o.DeepCrawlAndStore(context.Background(), "https://example.com/root", 2, 10, false,
		webtypes.RetentionPermanent, nil, "")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/root", summary.StartingURL)
	assert.Contains(t, summary.StoredPages, "https://example.com/root")
	assert.Contains(t, summary.StoredPages, "https://example.com/child1")
	assert.Contains(t, summary.StoredPages, "https://example.com/child2")
	assert.Equal(t, 3, summary.PagesStored)
}

func TestDeepCrawlAndStore_RespectsPagesMax(t *testing.T) {
	pages := map[string]fakePage{
		"https://example.com/root": {
			content:  englishBody(),
			internal: []string{"https://example.com/child1", "https://example.com/child2"},
		},
		"https://example.com/child1": {content: englishBody()},
		"https://example.com/child2": {content: englishBody()},
	}
	o, _ := newTestOrchestrator(t, pages)

	summary, err := o.DeepCrawlAndStore(context.Background(), "https://example.com/root", 2, 1, false,
		webtypes.RetentionPermanent, nil, "")
	require.NoError(t, err)
	assert.LessOrEqual(t, summary.PagesStored, 1)
}

func TestDeepCrawlAndStore_SkipsNonEnglishWithoutFailing(t *testing.T) {
	pages := map[string]fakePage{
		"https://example.com/root": {content: frenchBody()},
	}
	o, _ := newTestOrchestrator(t, pages)

	summary, err := o.DeepCrawlAndStore(context.Background(), "https://example.com/root", 1, 10, false,
		webtypes.RetentionPermanent, nil, "")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PagesSkippedLanguage)
	assert.Equal(t, 0, summary.PagesStored)
}

func TestDeepCrawlAndStore_ExternalLinksExcludedByDefault(t *testing.T) {
	pages := map[string]fakePage{
		"https://example.com/root": {
			content:  englishBody(),
			internal: []string{},
			external: []string{"https://other.example.com/page"},
		},
		"https://other.example.com/page": {content: englishBody()},
	}
	o, _ := newTestOrchestrator(t, pages)

	summary, err := o.DeepCrawlAndStore(context.Background(), "https://example.com/root", 2, 10, false,
		webtypes.RetentionPermanent, nil, "")
	require.NoError(t, err)
	assert.NotContains(t, summary.StoredPages, "https://other.example.com/page")
}

func TestDeepCrawlAndStore_ExternalLinksIncludedWhenRequested(t *testing.T) {
	pages := map[string]fakePage{
		"https://example.com/root": {
			content:  englishBody(),
			external: []string{"https://other.example.com/page"},
		},
		"https://other.example.com/page": {content: englishBody()},
	}
	o, _ := newTestOrchestrator(t, pages)

	summary, err := o.DeepCrawlAndStore(context.Background(), "https://example.com/root", 2, 10, true,
		webtypes.RetentionPermanent, nil, "")
	require.NoError(t, err)
	assert.Contains(t, summary.StoredPages, "https://other.example.com/page")
}

func TestDeepCrawlAndStore_RejectsOutOfRangeParams(t *testing.T) {
	o, _ := newTestOrchestrator(t, map[string]fakePage{
		"https://example.com/root": {content: englishBody()},
	})

	_, err := o.DeepCrawlAndStore(context.Background(), "https://example.com/root", 99, 10, false,
		webtypes.RetentionPermanent, nil, "")
	assert.Error(t, err)
}

func TestDeepCrawlAndStore_FetchFailureIsPartialNotFatal(t *testing.T) {
	pages := map[string]fakePage{
		"https://example.com/root": {
			content:  englishBody(),
			internal: []string{"https://example.com/missing"},
		},
	}
	o, _ := newTestOrchestrator(t, pages)

	summary, err := o.DeepCrawlAndStore(context.Background(), "https://example.com/root", 2, 10, false,
		webtypes.RetentionPermanent, nil, "")
	require.NoError(t, err)
	assert.Contains(t, summary.StoredPages, "https://example.com/root")
	assert.Contains(t, summary.FailedPages, "https://example.com/missing")
}
