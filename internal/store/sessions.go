package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"webmemcore/internal/webtypes"
)

// TouchSession upserts a session row, bumping last_active. Sessions are
// opaque identities scoped to the process lifetime of their owner (spec
// §3); nothing here expires them, matching "swept by the auth layer
// (external)".
func (s *Store) TouchSession(ctx context.Context, sessionID string) error {
	now := time.Now().UTC().Unix()
	return s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		_, err := s.mem.ExecContext(ctx, `
			INSERT INTO sessions (session_id, created_at, last_active) VALUES (?, ?, ?)
			ON CONFLICT(session_id) DO UPDATE SET last_active = excluded.last_active
		`, sessionID, now, now)
		if err != nil {
			return fmt.Errorf("touch session: %w", err)
		}
		return nil
	})
}

// GetSession loads a session by id, or nil if absent.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*webtypes.Session, error) {
	var sess webtypes.Session
	var created, lastActive int64
	err := s.mem.QueryRowContext(ctx, `SELECT session_id, created_at, last_active FROM sessions WHERE session_id = ?`, sessionID).
		Scan(&sess.SessionID, &created, &lastActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.CreatedAt = time.Unix(created, 0).UTC()
	sess.LastActive = time.Unix(lastActive, 0).UTC()
	return &sess, nil
}
