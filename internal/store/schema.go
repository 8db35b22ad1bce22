package store

// schemaSQL creates every table named in spec §6 except the virtual vector
// index, which sqlite-vec creates via its own CREATE VIRTUAL TABLE syntax.
// Triggers populate _sync_tracker for every non-virtual table; the vector
// index cannot carry triggers (spec §9), so writers must call
// NoteVectorChange explicitly.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url TEXT UNIQUE NOT NULL,
	title TEXT,
	content TEXT,
	markdown TEXT,
	content_hash TEXT,
	timestamp INTEGER,
	added_by_session TEXT,
	retention_policy TEXT,
	tags TEXT,
	metadata TEXT
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	created_at INTEGER,
	last_active INTEGER
);

CREATE TABLE IF NOT EXISTS blocked_domains (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pattern TEXT UNIQUE NOT NULL,
	description TEXT,
	created_at INTEGER
);

CREATE TABLE IF NOT EXISTS kg_queue (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content_id INTEGER NOT NULL,
	status TEXT NOT NULL,
	priority INTEGER DEFAULT 0,
	queued_at INTEGER,
	retries INTEGER DEFAULT 0,
	error TEXT
);

CREATE TABLE IF NOT EXISTS _sync_tracker (
	table_name TEXT NOT NULL,
	record_id TEXT NOT NULL,
	operation TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	PRIMARY KEY (table_name, record_id)
);
`

// triggerSQL captures INSERT/UPDATE/DELETE on every non-virtual table into
// _sync_tracker with last-write-wins semantics (INSERT OR REPLACE on the
// tracker's own primary key collapses successive ops on the same row).
const triggerSQL = `
CREATE TRIGGER IF NOT EXISTS trg_documents_ai AFTER INSERT ON documents BEGIN
	INSERT OR REPLACE INTO _sync_tracker VALUES ('documents', NEW.id, 'INSERT', strftime('%s','now'));
END;
CREATE TRIGGER IF NOT EXISTS trg_documents_au AFTER UPDATE ON documents BEGIN
	INSERT OR REPLACE INTO _sync_tracker VALUES ('documents', NEW.id, 'UPDATE', strftime('%s','now'));
END;
CREATE TRIGGER IF NOT EXISTS trg_documents_ad AFTER DELETE ON documents BEGIN
	INSERT OR REPLACE INTO _sync_tracker VALUES ('documents', OLD.id, 'DELETE', strftime('%s','now'));
END;

CREATE TRIGGER IF NOT EXISTS trg_sessions_ai AFTER INSERT ON sessions BEGIN
	INSERT OR REPLACE INTO _sync_tracker VALUES ('sessions', NEW.session_id, 'INSERT', strftime('%s','now'));
END;
CREATE TRIGGER IF NOT EXISTS trg_sessions_au AFTER UPDATE ON sessions BEGIN
	INSERT OR REPLACE INTO _sync_tracker VALUES ('sessions', NEW.session_id, 'UPDATE', strftime('%s','now'));
END;
CREATE TRIGGER IF NOT EXISTS trg_sessions_ad AFTER DELETE ON sessions BEGIN
	INSERT OR REPLACE INTO _sync_tracker VALUES ('sessions', OLD.session_id, 'DELETE', strftime('%s','now'));
END;

CREATE TRIGGER IF NOT EXISTS trg_blocked_domains_ai AFTER INSERT ON blocked_domains BEGIN
	INSERT OR REPLACE INTO _sync_tracker VALUES ('blocked_domains', NEW.id, 'INSERT', strftime('%s','now'));
END;
CREATE TRIGGER IF NOT EXISTS trg_blocked_domains_au AFTER UPDATE ON blocked_domains BEGIN
	INSERT OR REPLACE INTO _sync_tracker VALUES ('blocked_domains', NEW.id, 'UPDATE', strftime('%s','now'));
END;
CREATE TRIGGER IF NOT EXISTS trg_blocked_domains_ad AFTER DELETE ON blocked_domains BEGIN
	INSERT OR REPLACE INTO _sync_tracker VALUES ('blocked_domains', OLD.id, 'DELETE', strftime('%s','now'));
END;

CREATE TRIGGER IF NOT EXISTS trg_kg_queue_ai AFTER INSERT ON kg_queue BEGIN
	INSERT OR REPLACE INTO _sync_tracker VALUES ('kg_queue', NEW.id, 'INSERT', strftime('%s','now'));
END;
CREATE TRIGGER IF NOT EXISTS trg_kg_queue_au AFTER UPDATE ON kg_queue BEGIN
	INSERT OR REPLACE INTO _sync_tracker VALUES ('kg_queue', NEW.id, 'UPDATE', strftime('%s','now'));
END;
CREATE TRIGGER IF NOT EXISTS trg_kg_queue_ad AFTER DELETE ON kg_queue BEGIN
	INSERT OR REPLACE INTO _sync_tracker VALUES ('kg_queue', OLD.id, 'DELETE', strftime('%s','now'));
END;
`

// vectorTableSQL creates the sqlite-vec virtual table mapping a fixed
// 384-float32 vector to an external content_id column. Virtual-table
// schemas are declared here because introspection returns no columns for
// them (spec §9).
const vectorTableSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS content_vectors USING vec0(
	embedding FLOAT[384],
	content_id INTEGER
);
`

// virtualTableSchemas hard-codes the column order and primary key for
// virtual tables, since PRAGMA table_info returns nothing for them.
var virtualTableSchemas = map[string]struct {
	Columns    []string
	PrimaryKey string
}{
	"content_vectors": {Columns: []string{"rowid", "embedding", "content_id"}, PrimaryKey: "content_id"},
}

// customPrimaryKeys overrides the default "id" primary key column assumed
// by the differential flush for tables that use a different key.
var customPrimaryKeys = map[string]string{
	"sessions": "session_id",
}

// PrimaryKeyFor returns the primary-key column the Sync Manager's
// differential flush should key on for table, defaulting to "id".
func PrimaryKeyFor(table string) string {
	if pk, ok := customPrimaryKeys[table]; ok {
		return pk
	}
	if v, ok := virtualTableSchemas[table]; ok {
		return v.PrimaryKey
	}
	return "id"
}

// IsVirtualTable reports whether table is a sqlite-vec virtual index,
// whose schema cannot be introspected via PRAGMA table_info.
func IsVirtualTable(table string) bool {
	_, ok := virtualTableSchemas[table]
	return ok
}

// SyncedTables lists every table the Sync Manager's differential flush
// must be able to mirror.
var SyncedTables = []string{"documents", "sessions", "blocked_domains", "kg_queue", "content_vectors"}
