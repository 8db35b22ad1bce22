// Package session tracks the opaque ingesting-session identities used to
// scope session_only retention (spec §3): a session is just an id, a
// creation time, and a last-active time, live for the process lifetime of
// its owner. Stale-session sweeping is an external auth-layer concern.
package session

import (
	"context"
	"errors"
	"time"

	"webmemcore/internal/store"
	"webmemcore/internal/webtypes"
)

var ErrSessionIDRequired = errors.New("session: session_id is required")

// Manager records and recalls session activity against the store's
// sessions table, so a restart-free process shares one view of "which
// sessions exist" with the Vector/Relational Store.
type Manager struct {
	st *store.Store
}

func NewManager(st *store.Store) *Manager {
	return &Manager{st: st}
}

// Touch records activity for sessionID, creating the row on first use.
func (m *Manager) Touch(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrSessionIDRequired
	}
	return m.st.TouchSession(ctx, sessionID)
}

// Get returns the session, or nil if it has never been touched.
func (m *Manager) Get(ctx context.Context, sessionID string) (*webtypes.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}
	return m.st.GetSession(ctx, sessionID)
}

// Clear removes every session_only document owned by sessionID, used by
// the clear_temp_memory tool. It returns the number of documents removed.
func (m *Manager) Clear(ctx context.Context, sessionID string) (int, error) {
	if sessionID == "" {
		return 0, ErrSessionIDRequired
	}
	return m.st.DeleteDocumentsBySession(ctx, sessionID)
}

// Age reports how long sessionID has been inactive; callers use this only
// for diagnostics since the core never sweeps sessions itself.
func Age(sess *webtypes.Session) time.Duration {
	if sess == nil {
		return 0
	}
	return time.Since(sess.LastActive)
}
