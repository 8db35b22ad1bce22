package store

import (
	"context"
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"webmemcore/internal/webtypes"
)

// IngestResult reports what IngestDocument did, for the Ingestion
// Pipeline's success/skip/error response shape.
type IngestResult struct {
	ContentID     int64
	Existed       bool
	HashUnchanged bool
}

// IngestDocument performs spec §4.4 step 5 as one transaction: upsert the
// Document row by URL, delete any prior embeddings, batch-insert the new
// ones, and journal the vector-table change — all committed together so a
// reader never observes a document with stale or missing vectors.
func (s *Store) IngestDocument(ctx context.Context, doc *webtypes.Document, vectors [][]float32) (*IngestResult, error) {
	var result IngestResult

	err := s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		tx, err := s.mem.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var existingID int64
		var existingHash string
		switch err := tx.QueryRowContext(ctx, `SELECT id, content_hash FROM documents WHERE url = ?`, doc.URL).
			Scan(&existingID, &existingHash); err {
		case nil:
			result.Existed = true
			result.HashUnchanged = existingHash == doc.ContentHash
		case sql.ErrNoRows:
			result.Existed = false
		default:
			return fmt.Errorf("lookup existing document: %w", err)
		}

		metaJSON, err := doc.MetadataJSON()
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO documents (url, title, content, markdown, content_hash, timestamp, added_by_session, retention_policy, tags, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(url) DO UPDATE SET
				title = excluded.title, content = excluded.content, markdown = excluded.markdown,
				content_hash = excluded.content_hash, timestamp = excluded.timestamp,
				added_by_session = excluded.added_by_session, retention_policy = excluded.retention_policy,
				tags = excluded.tags, metadata = excluded.metadata
		`, doc.URL, doc.Title, doc.CleanedText, doc.Markdown, doc.ContentHash,
			doc.Timestamp.Unix(), doc.IngestingSessionID, string(doc.RetentionPolicy), doc.TagsCSV(), metaJSON)
		if err != nil {
			return fmt.Errorf("upsert document: %w", err)
		}

		if result.Existed {
			result.ContentID = existingID
		} else {
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("read inserted id: %w", err)
			}
			result.ContentID = id
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM content_vectors WHERE content_id = ?`, result.ContentID); err != nil {
			return fmt.Errorf("delete prior vectors: %w", err)
		}

		if len(vectors) > 0 {
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
				if _, err := stmt.ExecContext(ctx, blob, result.ContentID); err != nil {
					return fmt.Errorf("insert vector: %w", err)
				}
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}

	s.NoteVectorChange(result.ContentID, webtypes.JournalInsert)
	return &result, nil
}
