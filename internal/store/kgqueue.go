package store

import (
	"context"
	"fmt"
	"time"

	"webmemcore/internal/webtypes"
)

// EnqueueKG inserts a pending knowledge-graph row for a freshly ingested
// document. This is a best-effort side channel: the Ingestion Pipeline
// must not fail a caller's request when this insert fails, only journal
// it (spec §4.5's "best-effort, non-blocking KG-queue enqueue").
func (s *Store) EnqueueKG(ctx context.Context, contentID int64, priority int) error {
	return s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		_, err := s.mem.ExecContext(ctx, `
			INSERT INTO kg_queue (content_id, status, priority, queued_at, retries, error)
			VALUES (?, ?, ?, ?, 0, '')
		`, contentID, string(webtypes.KGStatusPending), priority, time.Now().UTC().Unix())
		if err != nil {
			return fmt.Errorf("enqueue kg row: %w", err)
		}
		return nil
	})
}

// UpdateKGStatus advances a row's lifecycle status, recording an error
// message and bumping the retry counter on failure.
func (s *Store) UpdateKGStatus(ctx context.Context, id int64, status webtypes.KGQueueStatus, errMsg string) error {
	return s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		var err error
		if status == webtypes.KGStatusFailed {
			_, err = s.mem.ExecContext(ctx, `
				UPDATE kg_queue SET status = ?, error = ?, retries = retries + 1 WHERE id = ?
			`, string(status), errMsg, id)
		} else {
			_, err = s.mem.ExecContext(ctx, `UPDATE kg_queue SET status = ?, error = ? WHERE id = ?`, string(status), errMsg, id)
		}
		if err != nil {
			return fmt.Errorf("update kg status: %w", err)
		}
		return nil
	})
}

// PendingKG returns up to limit pending rows ordered by priority
// descending then queued_at ascending, for a downstream consumer probe.
func (s *Store) PendingKG(ctx context.Context, limit int) ([]webtypes.KGQueueEntry, error) {
	rows, err := s.mem.QueryContext(ctx, `
		SELECT id, content_id, status, priority, queued_at, retries, error
		FROM kg_queue WHERE status = ?
		ORDER BY priority DESC, queued_at ASC
		LIMIT ?
	`, string(webtypes.KGStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending kg rows: %w", err)
	}
	defer rows.Close()

	var out []webtypes.KGQueueEntry
	for rows.Next() {
		var e webtypes.KGQueueEntry
		var status string
		var queuedAt int64
		if err := rows.Scan(&e.ID, &e.ContentID, &status, &e.Priority, &queuedAt, &e.Retries, &e.Error); err != nil {
			return nil, err
		}
		e.Status = webtypes.KGQueueStatus(status)
		e.QueuedAt = time.Unix(queuedAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
