package sync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webmemcore/internal/store"
	"webmemcore/internal/webtypes"
)

func newTestManager(t *testing.T) (*store.Store, *Manager, string) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, ":memory:", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	diskPath := filepath.Join(t.TempDir(), "disk.db")
	mgr := New(st, diskPath, nil, prometheus.NewRegistry())
	return st, mgr, diskPath
}

func TestFlush_WritesDocumentToDiskAndClearsJournal(t *testing.T) {
	st, mgr, diskPath := newTestManager(t)
	ctx := context.Background()

	doc := &webtypes.Document{
		URL: "https://example.com/x", Title: "X", CleanedText: "hello",
		ContentHash: "h1", Timestamp: time.Now(), RetentionPolicy: webtypes.RetentionPermanent,
	}
	_, err := st.InsertOrReplaceDocument(ctx, doc)
	require.NoError(t, err)
	require.Greater(t, st.JournalLen(), 0)

	require.NoError(t, mgr.Flush(ctx))
	assert.Equal(t, 0, st.JournalLen())

	_, err = os.Stat(diskPath)
	require.NoError(t, err)

	disk, err := store.PrepareDiskConnection(ctx, diskPath)
	require.NoError(t, err)
	defer disk.Close()

	var url string
	err = disk.QueryRowContext(ctx, `SELECT url FROM documents WHERE url = ?`, doc.URL).Scan(&url)
	require.NoError(t, err)
	assert.Equal(t, doc.URL, url)
}

func TestFlush_NoOpWhenJournalEmpty(t *testing.T) {
	_, mgr, _ := newTestManager(t)
	ctx := context.Background()
	assert.NoError(t, mgr.Flush(ctx))
}

func TestFlush_VectorDeleteRemovesDiskRows(t *testing.T) {
	st, mgr, diskPath := newTestManager(t)
	ctx := context.Background()

	doc := &webtypes.Document{URL: "https://example.com/v", ContentHash: "h", Timestamp: time.Now(), RetentionPolicy: webtypes.RetentionPermanent}
	res, err := st.InsertOrReplaceDocument(ctx, doc)
	require.NoError(t, err)

	vec := make([]float32, webtypes.EmbeddingDim)
	require.NoError(t, st.InsertVectors(ctx, res.ID, [][]float32{vec}))
	require.NoError(t, mgr.Flush(ctx))

	require.NoError(t, st.DeleteVectorsFor(ctx, res.ID))
	require.NoError(t, mgr.Flush(ctx))

	disk, err := store.PrepareDiskConnection(ctx, diskPath)
	require.NoError(t, err)
	defer disk.Close()

	var n int
	require.NoError(t, disk.QueryRowContext(ctx, `SELECT count(*) FROM content_vectors WHERE content_id = ?`, res.ID).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestStopPerformsFinalFlush(t *testing.T) {
	st, mgr, _ := newTestManager(t)
	ctx := context.Background()

	doc := &webtypes.Document{URL: "https://example.com/final", ContentHash: "h", Timestamp: time.Now(), RetentionPolicy: webtypes.RetentionPermanent}
	_, err := st.InsertOrReplaceDocument(ctx, doc)
	require.NoError(t, err)

	mgr.Start(ctx)
	require.NoError(t, mgr.Stop(ctx))
	assert.Equal(t, 0, st.JournalLen())
}
