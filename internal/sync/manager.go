// Package sync implements the Sync Manager of spec §4.5: it keeps the
// durable disk SQLite image eventually consistent with the authoritative
// in-memory image via a change journal and two background flush
// policies, without blocking writers except during the short journal
// snapshot-and-clear critical section.
package sync

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"webmemcore/internal/errorjournal"
	"webmemcore/internal/logging"
	"webmemcore/internal/store"
	"webmemcore/internal/webtypes"
)

const (
	idleTick        = 1 * time.Second
	idleThreshold   = 5 * time.Second
	periodicTick    = 300 * time.Second
)

// Metrics are the Sync Manager's Prometheus counters/gauges, registered
// once per Manager so multiple test instances don't collide on the
// default registry.
type Metrics struct {
	FlushesTotal      prometheus.Counter
	FlushesFailed     prometheus.Counter
	LastFlushDuration prometheus.Gauge
	JournalSize       prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FlushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webmemcore_sync_flushes_total", Help: "Completed differential flushes to the disk image.",
		}),
		FlushesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webmemcore_sync_flushes_failed_total", Help: "Flushes that rolled back and left the journal intact.",
		}),
		LastFlushDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webmemcore_sync_last_flush_duration_seconds", Help: "Wall-clock duration of the most recent flush.",
		}),
		JournalSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webmemcore_sync_journal_size", Help: "Pending change-journal entries awaiting flush.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.FlushesTotal, m.FlushesFailed, m.LastFlushDuration, m.JournalSize)
	}
	return m
}

// Manager owns the disk image and the two background flush loops.
type Manager struct {
	st       *store.Store
	diskPath string
	log      logging.Logger
	errJ     *errorjournal.Journal

	syncLock          sync.Mutex
	isSyncing         bool
	lastWriteTime     time.Time
	idleSyncCompleted bool

	Metrics *Metrics

	// OnFlush, if set, is invoked after every successful flush with the
	// number of entries applied; the realtime hub uses it to notify
	// connected clients without the Sync Manager importing that package.
	OnFlush func(entriesApplied int)

	stop chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Manager. Registerer may be nil in tests to avoid
// colliding with the process-wide default Prometheus registry.
func New(st *store.Store, diskPath string, errJ *errorjournal.Journal, reg prometheus.Registerer) *Manager {
	return &Manager{
		st:       st,
		diskPath: diskPath,
		log:      logging.NewLogger("sync_manager"),
		errJ:     errJ,
		Metrics:  newMetrics(reg),
		stop:     make(chan struct{}),
	}
}

// Start launches the idle and periodic flush loops. Call Stop to perform
// the explicit shutdown flush and terminate them cleanly.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(2)
	go m.idleLoop(ctx)
	go m.periodicLoop(ctx)
}

// Stop cancels the background loops and performs one final flush,
// matching the optional "explicit shutdown flush" trigger.
func (m *Manager) Stop(ctx context.Context) error {
	close(m.stop)
	m.wg.Wait()
	if m.st.JournalLen() == 0 {
		return nil
	}
	return m.Flush(ctx)
}

func (m *Manager) idleLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(idleTick)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tickIdle(ctx)
		}
	}
}

func (m *Manager) tickIdle(ctx context.Context) {
	if m.st.JournalLen() == 0 {
		return
	}
	latest := m.st.LastJournalTime()
	if latest.After(m.lastWriteTime) {
		m.lastWriteTime = latest
		m.idleSyncCompleted = false
	}
	if m.isSyncingNow() || m.idleSyncCompleted {
		return
	}
	if time.Since(m.lastWriteTime) < idleThreshold {
		return
	}
	if err := m.Flush(ctx); err != nil {
		m.log.Warn("idle flush failed", "error", err.Error())
		return
	}
	m.idleSyncCompleted = true
}

func (m *Manager) periodicLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(periodicTick)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.st.JournalLen() == 0 || m.isSyncingNow() {
				continue
			}
			if err := m.Flush(ctx); err != nil {
				m.log.Warn("periodic flush failed", "error", err.Error())
			}
		}
	}
}

func (m *Manager) isSyncingNow() bool {
	m.syncLock.Lock()
	defer m.syncLock.Unlock()
	return m.isSyncing
}

// Flush runs one differential-flush pass: it is non-cancellable once it
// holds sync_lock, per spec §4.5.
func (m *Manager) Flush(ctx context.Context) error {
	m.syncLock.Lock()
	m.isSyncing = true
	defer func() {
		m.isSyncing = false
		m.syncLock.Unlock()
	}()
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	entries := m.st.SnapshotJournal()
	if len(entries) == 0 {
		return nil
	}

	if err := m.flushEntries(ctx, entries); err != nil {
		m.Metrics.FlushesFailed.Inc()
		m.st.RestoreJournal(entries)
		if m.errJ != nil {
			m.errJ.Record("sync.Flush", "", "differential flush failed, journal retained", "TRANSIENT_BUSY", err)
		}
		return fmt.Errorf("differential flush: %w", err)
	}

	m.st.ClearJournal()
	m.Metrics.FlushesTotal.Inc()
	m.Metrics.LastFlushDuration.Set(time.Since(start).Seconds())
	m.Metrics.JournalSize.Set(0)
	if m.OnFlush != nil {
		m.OnFlush(len(entries))
	}
	return nil
}

// flushEntries opens a fresh disk connection and applies every journal
// entry, grouped by table, inside one transaction so readers never
// observe a partially-flushed disk image.
func (m *Manager) flushEntries(ctx context.Context, entries []webtypes.JournalEntry) error {
	disk, err := store.PrepareDiskConnection(ctx, m.diskPath)
	if err != nil {
		return err
	}
	defer disk.Close()

	byTable := make(map[string][]webtypes.JournalEntry)
	for _, e := range entries {
		byTable[e.Table] = append(byTable[e.Table], e)
	}

	tx, err := disk.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin disk transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for table, rows := range byTable {
		if table == "content_vectors" {
			if err := m.flushVectorTable(ctx, tx, rows); err != nil {
				return err
			}
			continue
		}
		if err := m.flushRelationalTable(ctx, tx, table, rows); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// flushRelationalTable mirrors one ordinary table's changed rows: deletes
// for DELETE ops, full-row INSERT OR REPLACE for INSERT/UPDATE ops, read
// generically off the memory image so the flush needs no per-table
// column list beyond the primary key.
func (m *Manager) flushRelationalTable(ctx context.Context, tx *sql.Tx, table string, rows []webtypes.JournalEntry) error {
	pk := store.PrimaryKeyFor(table)

	for _, row := range rows {
		if row.Op == webtypes.JournalDelete {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, pk), row.RecordKey); err != nil {
				return fmt.Errorf("delete %s/%s: %w", table, row.RecordKey, err)
			}
			continue
		}

		cols, vals, err := readRowGeneric(ctx, m.st.DB(), table, pk, row.RecordKey)
		if err == sql.ErrNoRows {
			continue // row was deleted again after this journal entry was written
		}
		if err != nil {
			return fmt.Errorf("read %s/%s from memory image: %w", table, row.RecordKey, err)
		}

		placeholders := make([]string, len(cols))
		for i := range cols {
			placeholders[i] = "?"
		}
		stmt := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
			table, joinColumns(cols), joinColumns(placeholders))
		if _, err := tx.ExecContext(ctx, stmt, vals...); err != nil {
			return fmt.Errorf("replace %s/%s on disk: %w", table, row.RecordKey, err)
		}
	}
	return nil
}

// flushVectorTable replaces, per content_id, the full set of embedding
// rows: the virtual index has no stable per-row primary key the journal
// can address individually, so a changed content_id's vectors are
// deleted and re-copied wholesale, which matches the Ingestion
// Pipeline's own delete-then-replace semantics.
func (m *Manager) flushVectorTable(ctx context.Context, tx *sql.Tx, rows []webtypes.JournalEntry) error {
	seen := make(map[string]bool)
	for _, row := range rows {
		if seen[row.RecordKey] {
			continue
		}
		seen[row.RecordKey] = true

		if _, err := tx.ExecContext(ctx, `DELETE FROM content_vectors WHERE content_id = ?`, row.RecordKey); err != nil {
			return fmt.Errorf("delete vectors for content %s on disk: %w", row.RecordKey, err)
		}
		if row.Op == webtypes.JournalDelete {
			continue
		}

		memRows, err := m.st.DB().QueryContext(ctx, `SELECT embedding, content_id FROM content_vectors WHERE content_id = ?`, row.RecordKey)
		if err != nil {
			return fmt.Errorf("read vectors for content %s from memory: %w", row.RecordKey, err)
		}
		for memRows.Next() {
			var blob []byte
			var contentID int64
			if err := memRows.Scan(&blob, &contentID); err != nil {
				memRows.Close()
				return err
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO content_vectors (embedding, content_id) VALUES (?, ?)`, blob, contentID); err != nil {
				memRows.Close()
				return fmt.Errorf("copy vector for content %d to disk: %w", contentID, err)
			}
		}
		if err := memRows.Err(); err != nil {
			memRows.Close()
			return err
		}
		memRows.Close()
	}
	return nil
}

// readRowGeneric selects every column of the row matching pk = key and
// returns the column names alongside the scanned values, so callers can
// replay an INSERT OR REPLACE without a hard-coded column list.
func readRowGeneric(ctx context.Context, db *sql.DB, table, pk, key string) ([]string, []interface{}, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", table, pk), key)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, nil, err
		}
		return nil, nil, sql.ErrNoRows
	}

	vals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, nil, err
	}
	return cols, vals, nil
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
