package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmemcore/internal/embeddings"
	"webmemcore/internal/store"
	"webmemcore/internal/webtypes"
)

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	p := New(st, embeddings.NewMockEncoder(), nil)
	return p, st
}

func englishParagraph() string {
	return strings.Repeat("The quick brown fox jumps over the lazy dog in the sunny meadow today. ", 40)
}

func TestIngest_StoresDocumentAndVectors(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	result := p.Ingest(ctx, "https://example.com/a", englishParagraph(), "", "Title A",
		webtypes.RetentionPermanent, []string{"go"}, "sess-1", webtypes.DocumentMetadata{})

	require.True(t, result.Success)
	require.NotZero(t, result.ContentID)

	doc, err := st.GetDocumentByID(ctx, result.ContentID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "https://example.com/a", doc.URL)
	assert.True(t, doc.Metadata.IsClean)
	assert.Equal(t, "en", doc.Metadata.Language)

	n, err := st.VectorCountFor(ctx, result.ContentID)
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	pending, err := st.PendingKG(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestIngest_ReingestReplacesVectors(t *testing.T) {
	p, st := newTestPipeline(t)
	ctx := context.Background()

	first := p.Ingest(ctx, "https://example.com/b", englishParagraph(), "", "B",
		webtypes.RetentionPermanent, nil, "", webtypes.DocumentMetadata{})
	require.True(t, first.Success)

	second := p.Ingest(ctx, "https://example.com/b", englishParagraph()+" extra content here to change the hash value.", "", "B",
		webtypes.RetentionPermanent, nil, "", webtypes.DocumentMetadata{})
	require.True(t, second.Success)
	assert.Equal(t, first.ContentID, second.ContentID)

	n, err := st.VectorCountFor(ctx, second.ContentID)
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}

func TestIngest_NonEnglishIsSkippedNotErrored(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx := context.Background()

	frenchText := strings.Repeat("Le rapide renard brun saute par-dessus le chien paresseux dans la prairie ensoleillée aujourd'hui. ", 40)
	result := p.Ingest(ctx, "https://example.com/fr", frenchText, "", "Titre",
		webtypes.RetentionPermanent, nil, "", webtypes.DocumentMetadata{})

	assert.False(t, result.Success)
	assert.True(t, result.Skipped)
	assert.Contains(t, result.Reason, "non-English")
}
