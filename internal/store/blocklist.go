package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	werr "webmemcore/internal/errors"
	"webmemcore/internal/webtypes"
)

// BlockResult is the outcome of is_blocked (spec §4.7): a parse failure
// fails open (not blocked) and IsBlocked records it in the error journal.
type BlockResult struct {
	Blocked bool
	Pattern string
	Reason  string
}

// IsBlocked iterates every stored pattern against rawURL under the
// grammar: "*.suffix" matches a host suffix, "*word*" matches a substring
// of the lowercased full URL or host, anything else matches the host
// exactly. The first matching pattern wins.
func (s *Store) IsBlocked(ctx context.Context, rawURL string) BlockResult {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		if s.errJ != nil {
			s.errJ.Record("store.IsBlocked", rawURL, "unparseable URL, failing open", "BLOCKLIST_FAIL_OPEN", err)
		}
		return BlockResult{Blocked: false, Reason: "unparseable URL, failing open"}
	}

	host := strings.ToLower(u.Host)
	full := strings.ToLower(rawURL)

	patterns, err := s.ListBlockedPatterns(ctx)
	if err != nil {
		if s.errJ != nil {
			s.errJ.Record("store.IsBlocked", rawURL, "pattern lookup failed, failing open", "BLOCKLIST_FAIL_OPEN", err)
		}
		return BlockResult{Blocked: false, Reason: "pattern lookup failed, failing open"}
	}

	for _, p := range patterns {
		if matchesPattern(p.Pattern, host, full) {
			return BlockResult{Blocked: true, Pattern: p.Pattern}
		}
	}
	return BlockResult{Blocked: false}
}

func matchesPattern(pattern, host, fullLowerURL string) bool {
	switch {
	case strings.HasPrefix(pattern, "*.") && !strings.HasSuffix(pattern, "*"):
		suffix := strings.ToLower(strings.TrimPrefix(pattern, "*"))
		return strings.HasSuffix(host, suffix)
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 1:
		word := strings.ToLower(strings.Trim(pattern, "*"))
		return word != "" && (strings.Contains(fullLowerURL, word) || strings.Contains(host, word))
	default:
		return host == strings.ToLower(pattern)
	}
}

// AddBlockedDomain inserts a new pattern; a duplicate is reported as a
// StandardError with ErrorCodeAlreadyExists rather than the raw UNIQUE
// constraint failure.
func (s *Store) AddBlockedDomain(ctx context.Context, pattern, description string) (*webtypes.BlocklistPattern, error) {
	entry := &webtypes.BlocklistPattern{Pattern: pattern, Description: description, CreatedAt: time.Now().UTC()}

	err := s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		res, err := s.mem.ExecContext(ctx,
			`INSERT INTO blocked_domains (pattern, description, created_at) VALUES (?, ?, ?)`,
			pattern, description, entry.CreatedAt.Unix())
		if err != nil {
			if isUniqueViolation(err) {
				return werr.NewAlreadyExistsError(fmt.Sprintf("blocklist pattern %q", pattern))
			}
			return fmt.Errorf("insert blocked domain: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		entry.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && containsFold(err.Error(), "unique")
}

// RemoveBlockedDomain requires keyword to equal the configured
// authorisation secret; a mismatch is unauthorized, an unknown pattern is
// not found, and a correct match deletes the row.
func (s *Store) RemoveBlockedDomain(ctx context.Context, pattern, keyword, configuredKeyword string) error {
	if keyword != configuredKeyword {
		return werr.NewUnauthorizedError("remove_blocked_domain keyword mismatch")
	}

	var id int64
	err := s.mem.QueryRowContext(ctx, `SELECT id FROM blocked_domains WHERE pattern = ?`, pattern).Scan(&id)
	if err == sql.ErrNoRows {
		return werr.NewNotFoundError(fmt.Sprintf("blocklist pattern %q", pattern))
	}
	if err != nil {
		return fmt.Errorf("lookup blocked domain: %w", err)
	}

	return s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		_, err := s.mem.ExecContext(ctx, `DELETE FROM blocked_domains WHERE id = ?`, id)
		return err
	})
}

// ListBlockedPatterns enumerates patterns newest first.
func (s *Store) ListBlockedPatterns(ctx context.Context) ([]webtypes.BlocklistPattern, error) {
	rows, err := s.mem.QueryContext(ctx, `SELECT id, pattern, description, created_at FROM blocked_domains ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list blocked domains: %w", err)
	}
	defer rows.Close()

	var out []webtypes.BlocklistPattern
	for rows.Next() {
		var p webtypes.BlocklistPattern
		var ts int64
		if err := rows.Scan(&p.ID, &p.Pattern, &p.Description, &ts); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(ts, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// SeedBlocklist inserts the given patterns if the table is empty, matching
// the spec's "initial seeds populated on first startup" lifecycle note.
func (s *Store) SeedBlocklist(ctx context.Context, seeds []webtypes.BlocklistPattern) error {
	var count int
	if err := s.mem.QueryRowContext(ctx, `SELECT count(*) FROM blocked_domains`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, seed := range seeds {
		if _, err := s.AddBlockedDomain(ctx, seed.Pattern, seed.Description); err != nil {
			continue // duplicate seed or transient failure; best-effort
		}
	}
	return nil
}
