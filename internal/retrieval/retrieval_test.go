package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmemcore/internal/embeddings"
	"webmemcore/internal/store"
	"webmemcore/internal/webtypes"
)

func seedDoc(t *testing.T, st *store.Store, enc embeddings.Encoder, url, text string, tags []string) int64 {
	t.Helper()
	ctx := context.Background()
	vec, err := enc.EmbedQuery(ctx, text)
	require.NoError(t, err)

	doc := &webtypes.Document{
		URL: url, Title: url, CleanedText: text, ContentHash: url,
		Timestamp: time.Now(), RetentionPolicy: webtypes.RetentionPermanent, Tags: tags,
	}
	res, err := st.IngestDocument(ctx, doc, [][]float32{vec})
	require.NoError(t, err)
	return res.ContentID
}

func newTestEngine(t *testing.T) (*Engine, *store.Store, embeddings.Encoder) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	enc := embeddings.NewMockEncoder()
	return New(st, enc), st, enc
}

func TestSearch_ReturnsBestMatchFirst(t *testing.T) {
	e, st, enc := newTestEngine(t)
	seedDoc(t, st, enc, "https://example.com/1", "golang concurrency patterns", []string{"go"})
	seedDoc(t, st, enc, "https://example.com/2", "completely unrelated text about gardening", []string{"garden"})

	results, err := e.Search(context.Background(), "golang concurrency patterns", 2, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "https://example.com/1", results[0].URL)
}

func TestSearch_TagFilterExcludesNonMatching(t *testing.T) {
	e, st, enc := newTestEngine(t)
	seedDoc(t, st, enc, "https://example.com/1", "golang concurrency patterns", []string{"go"})
	seedDoc(t, st, enc, "https://example.com/2", "golang concurrency patterns again", []string{"rust"})

	results, err := e.Search(context.Background(), "golang concurrency patterns", 5, []string{"go"})
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "https://example.com/1", r.URL)
	}
}

func TestSearch_DedupesByURLKeepingBest(t *testing.T) {
	e, st, enc := newTestEngine(t)
	ctx := context.Background()
	vec, err := enc.EmbedQuery(ctx, "golang")
	require.NoError(t, err)

	doc := &webtypes.Document{URL: "https://example.com/dup", CleanedText: "golang", ContentHash: "h", Timestamp: time.Now(), RetentionPolicy: webtypes.RetentionPermanent}
	_, err = st.IngestDocument(ctx, doc, [][]float32{vec, vec})
	require.NoError(t, err)

	results, err := e.Search(ctx, "golang", 5, nil)
	require.NoError(t, err)
	urls := map[string]bool{}
	for _, r := range results {
		urls[r.URL] = true
	}
	assert.Len(t, urls, 1)
}

func TestTargetSearch_ExpandsWhenTagsDiscovered(t *testing.T) {
	e, st, enc := newTestEngine(t)
	seedDoc(t, st, enc, "https://example.com/1", "golang concurrency patterns", []string{"go", "concurrency"})
	seedDoc(t, st, enc, "https://example.com/2", "more golang concurrency material", []string{"go"})

	result, err := e.TargetSearch(context.Background(), "golang concurrency patterns", 1, 10)
	require.NoError(t, err)
	assert.True(t, result.ExpansionUsed)
	assert.NotEmpty(t, result.DiscoveredTags)
}

func TestTargetSearch_NoExpansionWhenNoTagsDiscovered(t *testing.T) {
	e, st, enc := newTestEngine(t)
	seedDoc(t, st, enc, "https://example.com/1", "golang concurrency patterns", nil)

	result, err := e.TargetSearch(context.Background(), "golang concurrency patterns", 1, 10)
	require.NoError(t, err)
	assert.False(t, result.ExpansionUsed)
}

func TestSimilarityFromDistance(t *testing.T) {
	assert.InDelta(t, 0.9, similarityFromDistance(0.1), 0.0001)
	assert.InDelta(t, 1.0/3.0, similarityFromDistance(2.0), 0.0001)
}
