// Package store implements the Vector/Relational Store of spec §4.1: one
// in-memory SQLite image (authoritative, low-latency) and one on-disk
// SQLite image (durable mirror, owned by the Sync Manager), each carrying a
// sqlite-vec virtual index of 384-float32 embeddings.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	werr "webmemcore/internal/errors"
	"webmemcore/internal/errorjournal"
	"webmemcore/internal/logging"
	"webmemcore/internal/retry"
	"webmemcore/internal/webtypes"
)

func init() {
	sqlite_vec.Auto()
}

// Store owns the live memory image. Every write happens here; the Sync
// Manager reads from it to flush a differential copy to disk.
type Store struct {
	mem    *sql.DB
	diskPath string

	mu sync.Mutex // reentrant in spec prose; calls here never nest, so a plain mutex suffices

	journal   map[journalKey]webtypes.JournalEntry
	journalMu sync.Mutex

	retrier *retry.Retrier
	log     logging.Logger
	errJ    *errorjournal.Journal
}

type journalKey struct {
	table string
	key   string
}

// Open creates (or loads) the memory image. If useMemoryDB is true and a
// disk image already exists at diskPath, its contents are copied into the
// fresh memory image via the engine's backup facility; otherwise the schema
// is created directly in memory and will be backed by the first flush.
func Open(ctx context.Context, diskPath string, useMemoryDB bool, errJ *errorjournal.Journal) (*Store, error) {
	log := logging.NewLogger("store")

	memDSN := ":memory:"
	if !useMemoryDB {
		memDSN = diskPath
	}
	mem, err := sql.Open("sqlite3", memDSN)
	if err != nil {
		return nil, werr.NewFatalError("opening memory image", err)
	}
	mem.SetMaxOpenConns(1) // single writer; avoids cross-connection :memory: isolation surprises

	s := &Store{
		mem:      mem,
		diskPath: diskPath,
		journal:  make(map[journalKey]webtypes.JournalEntry),
		retrier:  retry.New(storeRetryConfig()),
		log:      log,
		errJ:     errJ,
	}

	if useMemoryDB {
		if err := s.loadFromDisk(ctx, diskPath); err != nil {
			return nil, err
		}
	}

	if err := s.ensureSchema(ctx, mem); err != nil {
		return nil, werr.NewFatalError("creating schema", err)
	}

	return s, nil
}

func storeRetryConfig() *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.InitialDelay = 100 * time.Millisecond
	cfg.RetryIf = isBusyError
	return cfg
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return containsBusy(msg)
}

func containsBusy(s string) bool {
	for _, needle := range []string{"database is locked", "SQLITE_BUSY", "busy"} {
		if containsFold(s, needle) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	hl := []rune(haystack)
	nl := []rune(needle)
	toLower := func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}
	h := make([]rune, len(hl))
	for i, r := range hl {
		h[i] = toLower(r)
	}
	n := make([]rune, len(nl))
	for i, r := range nl {
		n[i] = toLower(r)
	}
	hs, ns := string(h), string(n)
	return len(ns) == 0 || (len(hs) >= len(ns) && stringContains(hs, ns))
}

func stringContains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func (s *Store) ensureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("base schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, vectorTableSQL); err != nil {
		return fmt.Errorf("vector table: %w", err)
	}
	if _, err := db.ExecContext(ctx, triggerSQL); err != nil {
		return fmt.Errorf("triggers: %w", err)
	}
	return nil
}

// loadFromDisk copies an existing disk image's contents into the freshly
// opened memory image via SQLite's backup API, emulated here as an
// ATTACH + table-by-table copy since database/sql exposes no native
// backup hook. If the disk image does not exist, this is a no-op and the
// schema is created fresh.
func (s *Store) loadFromDisk(ctx context.Context, diskPath string) error {
	if _, err := s.mem.ExecContext(ctx, fmt.Sprintf("ATTACH DATABASE '%s' AS disk", diskPath)); err != nil {
		// Disk image not present yet; memory image starts empty.
		return nil
	}
	defer func() { _, _ = s.mem.ExecContext(ctx, "DETACH DATABASE disk") }()

	var diskHasSchema int
	row := s.mem.QueryRowContext(ctx, "SELECT count(*) FROM disk.sqlite_master WHERE type='table' AND name='documents'")
	if err := row.Scan(&diskHasSchema); err != nil || diskHasSchema == 0 {
		return nil
	}

	if err := s.ensureSchema(ctx, s.mem); err != nil {
		return err
	}

	for _, table := range []string{"documents", "sessions", "blocked_domains", "kg_queue"} {
		stmt := fmt.Sprintf("INSERT OR REPLACE INTO %s SELECT * FROM disk.%s", table, table)
		if _, err := s.mem.ExecContext(ctx, stmt); err != nil {
			return werr.NewFatalError(fmt.Sprintf("bulk-loading %s from disk image", table), err)
		}
	}
	if _, err := s.mem.ExecContext(ctx, "INSERT INTO content_vectors(embedding, content_id) SELECT embedding, content_id FROM disk.content_vectors"); err != nil {
		return werr.NewFatalError("bulk-loading content_vectors from disk image", err)
	}
	return nil
}

// PrepareDiskConnection opens a fresh connection to the disk image, enables
// WAL journaling with NORMAL synchronous durability, and ensures the base
// schema and vector table exist. The Sync Manager uses this for every
// flush so the disk image is self-sufficient even if the memory image was
// freshly created (spec §4.5 step 2 and the startup "create it with the
// schema first" note).
func PrepareDiskConnection(ctx context.Context, diskPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", diskPath)
	if err != nil {
		return nil, werr.NewFatalError("opening disk image", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		return nil, werr.NewFatalError("enabling WAL on disk image", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
		return nil, werr.NewFatalError("setting synchronous=NORMAL on disk image", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return nil, werr.NewFatalError("creating disk schema", err)
	}
	if _, err := db.ExecContext(ctx, vectorTableSQL); err != nil {
		return nil, werr.NewFatalError("creating disk vector table", err)
	}
	return db, nil
}

// Close releases the memory image handle.
func (s *Store) Close() error {
	return s.mem.Close()
}

// DB exposes the underlying memory-image connection for components (Sync
// Manager, admin HTTP surface) that need direct read access.
func (s *Store) DB() *sql.DB { return s.mem }

func (s *Store) recordJournal(table, key string, op webtypes.JournalOp) {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	s.journal[journalKey{table, key}] = webtypes.JournalEntry{
		Table: table, RecordKey: key, Op: op, Timestamp: time.Now(),
	}
}

// NoteVectorChange journals a change to the virtual vector index, which
// cannot carry triggers (spec §9). Writers that mutate content_vectors
// must call this explicitly.
func (s *Store) NoteVectorChange(contentID int64, op webtypes.JournalOp) {
	s.recordJournal("content_vectors", fmt.Sprintf("%d", contentID), op)
}

// SnapshotJournal returns a copy of the current journal contents, ordered
// by timestamp ascending, and leaves the journal itself untouched. The Sync
// Manager calls ClearJournal after a successful flush and RestoreJournal
// after a failed one.
func (s *Store) SnapshotJournal() []webtypes.JournalEntry {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()

	out := make([]webtypes.JournalEntry, 0, len(s.journal))
	for _, e := range s.journal {
		out = append(out, e)
	}
	sortByTimestamp(out)
	return out
}

// ClearJournal empties the journal after a successful flush.
func (s *Store) ClearJournal() {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	s.journal = make(map[journalKey]webtypes.JournalEntry)
}

// RestoreJournal re-inserts entries that a failed flush must not lose.
func (s *Store) RestoreJournal(entries []webtypes.JournalEntry) {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	for _, e := range entries {
		k := journalKey{e.Table, e.RecordKey}
		if existing, ok := s.journal[k]; !ok || e.Timestamp.After(existing.Timestamp) {
			s.journal[k] = e
		}
	}
}

// LastJournalTime returns the most recent timestamp among pending journal
// entries, or the zero time if the journal is empty.
func (s *Store) LastJournalTime() time.Time {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	var last time.Time
	for _, e := range s.journal {
		if e.Timestamp.After(last) {
			last = e.Timestamp
		}
	}
	return last
}

// JournalLen reports the number of pending change-journal entries.
func (s *Store) JournalLen() int {
	s.journalMu.Lock()
	defer s.journalMu.Unlock()
	return len(s.journal)
}

func sortByTimestamp(entries []webtypes.JournalEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Timestamp.Before(entries[j-1].Timestamp); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

// ExecuteWithRetry runs op, retrying transient "database busy" failures
// with exponential backoff (100ms initial, doubling, up to 3 attempts).
// Non-transient failures surface immediately.
func (s *Store) ExecuteWithRetry(ctx context.Context, op func(ctx context.Context) error) error {
	result := s.retrier.Do(ctx, op)
	if result.Err != nil && isBusyError(result.Err) {
		return werr.NewTransientError("execute_with_retry", result.Err)
	}
	return result.Err
}
