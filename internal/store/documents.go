package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"webmemcore/internal/webtypes"
)

// UpsertResult reports what InsertOrReplaceDocument actually did: the row
// id, whether the URL already had a row, and whether the stored content
// hash equals the new one.
type UpsertResult struct {
	ID           int64
	Existed      bool
	HashUnchanged bool
}

// InsertOrReplaceDocument performs spec §4.5's single-transaction upsert:
// insert a new URL or overwrite a stored one, returning enough information
// for the caller to decide whether to replace the vectors too.
func (s *Store) InsertOrReplaceDocument(ctx context.Context, doc *webtypes.Document) (*UpsertResult, error) {
	var result UpsertResult

	err := s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		tx, err := s.mem.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var existingID int64
		var existingHash string
		row := tx.QueryRowContext(ctx, `SELECT id, content_hash FROM documents WHERE url = ?`, doc.URL)
		switch err := row.Scan(&existingID, &existingHash); err {
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
				title = excluded.title,
				content = excluded.content,
				markdown = excluded.markdown,
				content_hash = excluded.content_hash,
				timestamp = excluded.timestamp,
				added_by_session = excluded.added_by_session,
				retention_policy = excluded.retention_policy,
				tags = excluded.tags,
				metadata = excluded.metadata
		`, doc.URL, doc.Title, doc.CleanedText, doc.Markdown, doc.ContentHash,
			doc.Timestamp.Unix(), doc.IngestingSessionID, string(doc.RetentionPolicy), doc.TagsCSV(), metaJSON)
		if err != nil {
			return fmt.Errorf("upsert document: %w", err)
		}

		if result.Existed {
			result.ID = existingID
		} else {
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("read inserted id: %w", err)
			}
			result.ID = id
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetDocumentByURL loads a document, or nil with no error if it is absent.
func (s *Store) GetDocumentByURL(ctx context.Context, url string) (*webtypes.Document, error) {
	row := s.mem.QueryRowContext(ctx, `
		SELECT id, url, title, content, markdown, content_hash, timestamp, added_by_session, retention_policy, tags, metadata
		FROM documents WHERE url = ?`, url)
	return scanDocument(row)
}

// GetDocumentByID loads a document by its primary key.
func (s *Store) GetDocumentByID(ctx context.Context, id int64) (*webtypes.Document, error) {
	row := s.mem.QueryRowContext(ctx, `
		SELECT id, url, title, content, markdown, content_hash, timestamp, added_by_session, retention_policy, tags, metadata
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

func scanDocument(row *sql.Row) (*webtypes.Document, error) {
	var d webtypes.Document
	var ts int64
	var tags, metaJSON string
	var retention string

	err := row.Scan(&d.ID, &d.URL, &d.Title, &d.CleanedText, &d.Markdown, &d.ContentHash,
		&ts, &d.IngestingSessionID, &retention, &tags, &metaJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}

	d.Timestamp = time.Unix(ts, 0).UTC()
	d.RetentionPolicy = webtypes.RetentionPolicy(retention)
	if tags != "" {
		d.Tags = strings.Split(tags, ",")
	}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &d.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal document metadata: %w", err)
		}
	}
	return &d, nil
}

// DeleteDocumentByURL removes a document and its vectors, used by
// forget_url. Returns false if no row matched.
func (s *Store) DeleteDocumentByURL(ctx context.Context, url string) (bool, error) {
	doc, err := s.GetDocumentByURL(ctx, url)
	if err != nil || doc == nil {
		return false, err
	}
	err = s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		if _, err := s.mem.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, doc.ID); err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if err := s.DeleteVectorsFor(ctx, doc.ID); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteDocumentsBySession removes every document added by sessionID, used
// by clear_temp_memory to scope deletion to session_only retention rows.
func (s *Store) DeleteDocumentsBySession(ctx context.Context, sessionID string) (int, error) {
	rows, err := s.mem.QueryContext(ctx, `
		SELECT id FROM documents WHERE added_by_session = ? AND retention_policy = ?`,
		sessionID, string(webtypes.RetentionSessionOnly))
	if err != nil {
		return 0, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()

	count := 0
	for _, id := range ids {
		err := s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
			_, err := s.mem.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
			return err
		})
		if err != nil {
			return count, err
		}
		if err := s.DeleteVectorsFor(ctx, id); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// ListDocuments returns documents ordered by most recent first, for
// list_memory. limit <= 0 means no limit.
func (s *Store) ListDocuments(ctx context.Context, limit int) ([]webtypes.Document, error) {
	query := `
		SELECT id, url, title, content, markdown, content_hash, timestamp, added_by_session, retention_policy, tags, metadata
		FROM documents ORDER BY timestamp DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.mem.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []webtypes.Document
	for rows.Next() {
		var d webtypes.Document
		var ts int64
		var tags, metaJSON, retention string
		if err := rows.Scan(&d.ID, &d.URL, &d.Title, &d.CleanedText, &d.Markdown, &d.ContentHash,
			&ts, &d.IngestingSessionID, &retention, &tags, &metaJSON); err != nil {
			return nil, err
		}
		d.Timestamp = time.Unix(ts, 0).UTC()
		d.RetentionPolicy = webtypes.RetentionPolicy(retention)
		if tags != "" {
			d.Tags = strings.Split(tags, ",")
		}
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &d.Metadata)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats is the summary returned by db_stats.
type Stats struct {
	DocumentCount int
	VectorCount   int
	SessionCount  int
	BlockedCount  int
	PendingKG     int
}

// CollectStats gathers row counts across every table for db_stats.
func (s *Store) CollectStats(ctx context.Context) (*Stats, error) {
	var st Stats
	queries := []struct {
		dst   *int
		query string
	}{
		{&st.DocumentCount, `SELECT count(*) FROM documents`},
		{&st.VectorCount, `SELECT count(*) FROM content_vectors`},
		{&st.SessionCount, `SELECT count(*) FROM sessions`},
		{&st.BlockedCount, `SELECT count(*) FROM blocked_domains`},
		{&st.PendingKG, `SELECT count(*) FROM kg_queue WHERE status = 'pending'`},
	}
	for _, q := range queries {
		if err := s.mem.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return nil, fmt.Errorf("collect stats: %w", err)
		}
	}
	return &st, nil
}
