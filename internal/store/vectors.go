package store

import (
	"context"
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"webmemcore/internal/webtypes"
)

// VectorHit is one nearest-neighbor match from the vector index, joined
// back to its owning document.
type VectorHit struct {
	ContentID int64
	Distance  float64
}

// InsertVectors writes one embedding per chunk against contentID and
// journals the change, since the virtual table carries no triggers.
func (s *Store) InsertVectors(ctx context.Context, contentID int64, vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	return s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		tx, err := s.mem.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO content_vectors(embedding, content_id) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare vector insert: %w", err)
		}
		defer stmt.Close()

		for _, vec := range vectors {
			blob, err := sqlite_vec.SerializeFloat32(vec)
			if err != nil {
				return fmt.Errorf("serialize embedding: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, blob, contentID); err != nil {
				return fmt.Errorf("insert vector: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		s.NoteVectorChange(contentID, webtypes.JournalInsert)
		return nil
	})
}

// DeleteVectorsFor removes every embedding owned by contentID. The
// document-deletion paths use it; IngestDocument removes a re-ingested
// document's old vectors inside its own transaction instead.
func (s *Store) DeleteVectorsFor(ctx context.Context, contentID int64) error {
	return s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		if _, err := s.mem.ExecContext(ctx, `DELETE FROM content_vectors WHERE content_id = ?`, contentID); err != nil {
			return fmt.Errorf("delete vectors for content %d: %w", contentID, err)
		}
		s.NoteVectorChange(contentID, webtypes.JournalDelete)
		return nil
	})
}

// KNN returns the k nearest content_ids to queryVector by raw vector
// distance. The Retrieval Engine converts distance to the similarity score
// and applies tag filtering on the joined document row.
func (s *Store) KNN(ctx context.Context, queryVector []float32, k int) ([]VectorHit, error) {
	blob, err := sqlite_vec.SerializeFloat32(queryVector)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}

	rows, err := s.mem.QueryContext(ctx, `
		SELECT content_id, distance
		FROM content_vectors
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, blob, k)
	if err != nil {
		return nil, fmt.Errorf("vector knn query: %w", err)
	}
	defer rows.Close()

	var hits []VectorHit
	for rows.Next() {
		var h VectorHit
		if err := rows.Scan(&h.ContentID, &h.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// VectorCountFor reports how many vector rows a document currently owns;
// used by tests.
func (s *Store) VectorCountFor(ctx context.Context, contentID int64) (int, error) {
	var n int
	err := s.mem.QueryRowContext(ctx, `SELECT count(*) FROM content_vectors WHERE content_id = ?`, contentID).Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}
