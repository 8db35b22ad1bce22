// Package errorjournal implements the process-wide append-only error log
// described in spec §4.9: the sink for non-fatal anomalies (failed Sync
// Manager flushes, failed ingest transactions, KG-queue enqueue and
// publish failures, blocklist lookups that fail open).
package errorjournal

import (
	"fmt"
	"os"
	"sync"
	"time"

	"webmemcore/internal/logging"
)

// Record is one line of the journal:
// ISO8601 timestamp | calling_function | url_or_empty | message | code_or_empty | stack_trace
type Record struct {
	Timestamp time.Time
	Function  string
	URL       string
	Message   string
	Code      string
	Stack     string
}

func (r Record) line() string {
	return fmt.Sprintf("%s | %s | %s | %s | %s | %s\n",
		r.Timestamp.UTC().Format(time.RFC3339Nano), r.Function, r.URL, r.Message, r.Code, r.Stack)
}

// Journal is an append-only file-backed log, mirrored to stderr in short
// form. It is safe for concurrent use by any component.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	log  logging.Logger
}

// Open creates or appends to the journal file at path.
func Open(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error journal %s: %w", path, err)
	}
	return &Journal{file: f, log: logging.NewLogger("error_journal")}, nil
}

// Record appends an entry and mirrors a short form to stderr via zerolog.
func (j *Journal) Record(function, url, message, code string, cause error) {
	stack := ""
	if cause != nil {
		stack = cause.Error()
	}
	rec := Record{
		Timestamp: time.Now(),
		Function:  function,
		URL:       url,
		Message:   message,
		Code:      code,
		Stack:     stack,
	}

	j.mu.Lock()
	_, writeErr := j.file.WriteString(rec.line())
	j.mu.Unlock()

	j.log.Warn(message, "function", function, "url", url, "code", code, "cause", stack)
	if writeErr != nil {
		j.log.Error("failed to append to error journal file", "error", writeErr.Error())
	}
}

// Close flushes and closes the underlying file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
