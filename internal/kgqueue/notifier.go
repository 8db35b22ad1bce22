// Package kgqueue wires the Ingestion Pipeline's KG-queue enqueue to a
// best-effort NATS publish, so an optional downstream knowledge-graph
// extractor can wake on new rows instead of polling the queue table. The
// queue row inserted by the Ingestion Pipeline remains the source of
// truth: a missing or unreachable NATS server degrades silently to
// row-only behaviour, matching spec §4.4 step 6 and §7's "entirely
// best-effort" rule for this path.
package kgqueue

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"webmemcore/internal/errorjournal"
	"webmemcore/internal/logging"
)

// Notifier publishes a short message naming a newly-queued content id.
type Notifier struct {
	conn    *nats.Conn
	subject string
	log     logging.Logger
	errJ    *errorjournal.Journal
}

// Connect dials natsURL and returns a Notifier publishing to subject. A
// connection failure is not fatal to the caller: it returns a Notifier
// with a nil connection whose Publish calls are no-ops, so startup never
// depends on the optional extractor being reachable.
func Connect(natsURL, subject string, errJ *errorjournal.Journal) *Notifier {
	log := logging.NewLogger("kgqueue")
	n := &Notifier{subject: subject, log: log, errJ: errJ}
	if natsURL == "" {
		return n
	}

	conn, err := nats.Connect(natsURL, nats.Name("webmemcore"), nats.MaxReconnects(5))
	if err != nil {
		log.Warn("nats connect failed, KG-queue notifications disabled", "error", err.Error())
		return n
	}
	n.conn = conn
	return n
}

// Publish best-effort-notifies subscribers that contentID was enqueued.
// It never returns an error to the caller; failures go to the error
// journal only.
func (n *Notifier) Publish(contentID int64) {
	if n.conn == nil {
		return
	}
	payload := []byte(fmt.Sprintf(`{"content_id":%d}`, contentID))
	if err := n.conn.Publish(n.subject, payload); err != nil && n.errJ != nil {
		n.errJ.Record("kgqueue.Publish", "", fmt.Sprintf("publish failed for content %d", contentID), "KG_NOTIFY_FAILED", err)
	}
}

// Close closes the underlying connection, if any.
func (n *Notifier) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}
