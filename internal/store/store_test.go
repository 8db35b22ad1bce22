package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werr "webmemcore/internal/errors"
	"webmemcore/internal/webtypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, ":memory:", true, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertOrReplaceDocument_InsertThenUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &webtypes.Document{
		URL: "https://example.com/a", Title: "A", CleanedText: "hello world",
		ContentHash: "hash1", Timestamp: time.Now(), RetentionPolicy: webtypes.RetentionPermanent,
		Tags: []string{"go", "test"},
	}
	res, err := s.InsertOrReplaceDocument(ctx, doc)
	require.NoError(t, err)
	assert.False(t, res.Existed)
	assert.NotZero(t, res.ID)

	doc.ContentHash = "hash1"
	res2, err := s.InsertOrReplaceDocument(ctx, doc)
	require.NoError(t, err)
	assert.True(t, res2.Existed)
	assert.True(t, res2.HashUnchanged)
	assert.Equal(t, res.ID, res2.ID)

	doc.ContentHash = "hash2"
	res3, err := s.InsertOrReplaceDocument(ctx, doc)
	require.NoError(t, err)
	assert.True(t, res3.Existed)
	assert.False(t, res3.HashUnchanged)
}

func TestVectors_InsertKNNDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := &webtypes.Document{URL: "https://example.com/vec", ContentHash: "h", Timestamp: time.Now(), RetentionPolicy: webtypes.RetentionPermanent}
	res, err := s.InsertOrReplaceDocument(ctx, doc)
	require.NoError(t, err)

	vec := make([]float32, webtypes.EmbeddingDim)
	vec[0] = 1.0
	require.NoError(t, s.InsertVectors(ctx, res.ID, [][]float32{vec}))

	n, err := s.VectorCountFor(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, s.JournalLen())

	hits, err := s.KNN(ctx, vec, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, res.ID, hits[0].ContentID)

	require.NoError(t, s.DeleteVectorsFor(ctx, res.ID))
	n, err = s.VectorCountFor(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBlocklist_WildcardAndSubstringGrammar(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddBlockedDomain(ctx, "*.ru", "russian TLD")
	require.NoError(t, err)

	blocked := s.IsBlocked(ctx, "https://news.ru/a")
	assert.True(t, blocked.Blocked)

	notBlocked := s.IsBlocked(ctx, "https://ru.example.com")
	assert.False(t, notBlocked.Blocked)
}

func TestBlocklist_DuplicatePatternIsAlreadyExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddBlockedDomain(ctx, "*.spam.com", "")
	require.NoError(t, err)

	_, err = s.AddBlockedDomain(ctx, "*.spam.com", "")
	require.Error(t, err)
	se, ok := err.(*werr.StandardError)
	require.True(t, ok)
	assert.True(t, werr.IsValidationError(se) == false) // already-exists, not validation
	assert.Equal(t, werr.ErrorCodeAlreadyExists, se.ErrorInfo.Code)
}

func TestBlocklist_RemoveRequiresKeyword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddBlockedDomain(ctx, "*.ru", "")
	require.NoError(t, err)

	err = s.RemoveBlockedDomain(ctx, "*.ru", "WRONG", "secret")
	require.Error(t, err)
	se := err.(*werr.StandardError)
	assert.Equal(t, werr.ErrorCodeUnauthorized, se.ErrorInfo.Code)

	err = s.RemoveBlockedDomain(ctx, "*.ru", "secret", "secret")
	require.NoError(t, err)

	blocked := s.IsBlocked(ctx, "https://news.ru/a")
	assert.False(t, blocked.Blocked)
}

func TestKGQueue_EnqueueAndStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnqueueKG(ctx, 1, 5))
	pending, err := s.PendingKG(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, webtypes.KGStatusPending, pending[0].Status)

	require.NoError(t, s.UpdateKGStatus(ctx, pending[0].ID, webtypes.KGStatusDone, ""))
	pending, err = s.PendingKG(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 0)
}

func TestJournal_SnapshotAndClear(t *testing.T) {
	s := newTestStore(t)
	s.NoteVectorChange(1, webtypes.JournalInsert)
	s.NoteVectorChange(1, webtypes.JournalUpdate) // same key collapses to last-write-wins

	entries := s.SnapshotJournal()
	require.Len(t, entries, 1)
	assert.Equal(t, webtypes.JournalUpdate, entries[0].Op)

	s.ClearJournal()
	assert.Equal(t, 0, s.JournalLen())
}
