// Package webtypes defines the shared domain types for the web-content
// knowledge store: documents, embeddings, sessions, blocklist patterns,
// change-journal entries and KG-queue rows.
package webtypes

import (
	"encoding/json"
	"time"
)

// RetentionPolicy governs when a Document is eligible for deletion.
type RetentionPolicy string

const (
	RetentionPermanent   RetentionPolicy = "permanent"
	RetentionSessionOnly RetentionPolicy = "session_only"
	Retention30Days      RetentionPolicy = "30_days"
)

// Valid reports whether r is one of the three enumerated policies.
func (r RetentionPolicy) Valid() bool {
	switch r {
	case RetentionPermanent, RetentionSessionOnly, Retention30Days:
		return true
	default:
		return false
	}
}

// DocumentMetadata carries the cleaning/ingestion statistics attached to a
// Document at ingest time.
type DocumentMetadata struct {
	OriginalLines        int       `json:"original_lines,omitempty"`
	CleanedLines          int       `json:"cleaned_lines,omitempty"`
	ReductionRatio        float64   `json:"reduction_ratio,omitempty"`
	NavigationIndicators  int       `json:"navigation_indicators,omitempty"`
	IsClean               bool      `json:"is_clean"`
	Language              string    `json:"language,omitempty"`
	CleanedAt             time.Time `json:"cleaned_at,omitempty"`
	Depth                 int       `json:"depth,omitempty"`
	StartingURL           string    `json:"starting_url,omitempty"`
	DeepCrawl             bool      `json:"deep_crawl,omitempty"`
	QualityWarning        string    `json:"quality_warning,omitempty"`
	LinkDensity           float64   `json:"link_density,omitempty"`
}

// Document is the identity-bearing row of web content: one per URL.
type Document struct {
	ID                 int64
	URL                string
	Title              string
	CleanedText         string
	Markdown            string
	ContentHash         string
	Timestamp           time.Time
	IngestingSessionID  string
	RetentionPolicy     RetentionPolicy
	Tags                []string
	Metadata            DocumentMetadata
}

// TagsCSV returns the comma-separated tag list as persisted on disk.
func (d *Document) TagsCSV() string {
	out := ""
	for i, t := range d.Tags {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}

// MetadataJSON marshals Metadata for storage; never fails on the zero value.
func (d *Document) MetadataJSON() (string, error) {
	b, err := json.Marshal(d.Metadata)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EmbeddingDim is the fixed dimensionality of every stored vector. All
// vectors in a deployment must come from the same encoder model.
const EmbeddingDim = 384

// ChunkEmbedding ties one fixed-dimension vector to a Document.
type ChunkEmbedding struct {
	RowID     int64
	ContentID int64
	Vector    [EmbeddingDim]float32
}

// Session is an opaque ingesting-session identity.
type Session struct {
	SessionID  string
	CreatedAt  time.Time
	LastActive time.Time
}

// BlocklistPattern is one row of the domain blocklist table.
type BlocklistPattern struct {
	ID          int64
	Pattern     string
	Description string
	CreatedAt   time.Time
}

// JournalOp is one of the three change-journal operations.
type JournalOp string

const (
	JournalInsert JournalOp = "INSERT"
	JournalUpdate JournalOp = "UPDATE"
	JournalDelete JournalOp = "DELETE"
)

// JournalEntry is one row of the in-memory change journal, keyed by
// (Table, RecordKey) with last-write-wins semantics.
type JournalEntry struct {
	Table     string
	RecordKey string
	Op        JournalOp
	Timestamp time.Time
}

// KGQueueStatus enumerates the lifecycle of a knowledge-graph queue row.
type KGQueueStatus string

const (
	KGStatusPending    KGQueueStatus = "pending"
	KGStatusProcessing KGQueueStatus = "processing"
	KGStatusDone       KGQueueStatus = "done"
	KGStatusSkipped    KGQueueStatus = "skipped"
	KGStatusFailed     KGQueueStatus = "failed"
)

// KGQueueEntry is a row the core inserts for an out-of-scope downstream
// graph processor to later consume.
type KGQueueEntry struct {
	ID        int64
	ContentID int64
	Status    KGQueueStatus
	Priority  int
	QueuedAt  time.Time
	Retries   int
	Error     string
}

// SearchResult is one hit returned by the Retrieval Engine.
type SearchResult struct {
	URL        string
	Title      string
	Text       string
	Timestamp  time.Time
	Tags       []string
	Similarity float64
}

// ExpandedResult is the result of a two-pass target_search.
type ExpandedResult struct {
	Results         []SearchResult
	DiscoveredTags  []string
	ExpansionUsed   bool
	InitialCount    int
	ExpandedCount   int
}
