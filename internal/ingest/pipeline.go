// Package ingest implements the Ingestion Pipeline of spec §4.4: clean,
// language-gate, hash, and atomically replace a URL's stored content and
// embeddings, with a best-effort knowledge-graph queue side-enqueue.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pemistahl/lingua-go"

	"webmemcore/internal/chunking"
	"webmemcore/internal/cleaner"
	"webmemcore/internal/embeddings"
	"webmemcore/internal/errorjournal"
	"webmemcore/internal/logging"
	"webmemcore/internal/store"
	"webmemcore/internal/webtypes"
)

// languageSampleLen is how much of the cleaned text the detector sees,
// per spec §4.4 step 2.
const languageSampleLen = 1000

// fallbackChunkCount is how many of the raw (unfiltered) chunks are kept
// when chunk filtering would otherwise empty the set entirely.
const fallbackChunkCount = 3

// Result is the outcome contract: { success, content_id?, skipped?, error? }.
type Result struct {
	Success   bool
	ContentID int64
	Skipped   bool
	Reason    string
	Error     string
}

// Pipeline wires the Content Cleaner, Chunker, Encoder, and Store behind
// the single ingest() entry point.
type Pipeline struct {
	st       *store.Store
	enc      embeddings.Encoder
	detector lingua.LanguageDetector
	errJ     *errorjournal.Journal
	log      logging.Logger

	// KGPriority is the priority assigned to every enqueued KG-queue row;
	// deep-crawl callers may lower it relative to direct single-URL ingests.
	KGPriority int

	// OnKGEnqueue, if set, is invoked after a successful KG-queue insert;
	// internal/kgqueue uses it to publish a best-effort NATS notification
	// without this package importing a messaging client directly.
	OnKGEnqueue func(contentID int64)
}

// New builds a Pipeline with a lingua language detector restricted to
// commonLanguages, with its models preloaded; every Pipeline it returns
// runs language detection.
func New(st *store.Store, enc embeddings.Encoder, errJ *errorjournal.Journal) *Pipeline {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(commonLanguages...).
		WithPreloadedLanguageModels().
		Build()

	return &Pipeline{
		st:       st,
		enc:      enc,
		detector: detector,
		errJ:     errJ,
		log:      logging.NewLogger("ingest"),
	}
}

// commonLanguages bounds the detector to a realistic crawl corpus instead
// of lingua's full 75-language set, which trades a sliver of recall on
// rare languages for much faster model loads.
var commonLanguages = []lingua.Language{
	lingua.English, lingua.Spanish, lingua.French, lingua.German,
	lingua.Portuguese, lingua.Italian, lingua.Dutch, lingua.Russian,
	lingua.Chinese, lingua.Japanese, lingua.Korean, lingua.Arabic,
	lingua.Polish, lingua.Turkish, lingua.Vietnamese, lingua.Indonesian,
}

// Ingest runs the full pipeline for one URL's fetched content.
func (p *Pipeline) Ingest(ctx context.Context, url, rawText, rawMarkdown, title string,
	retention webtypes.RetentionPolicy, tags []string, sessionID string, extra webtypes.DocumentMetadata) Result {

	clean := cleaner.CleanAndValidate(rawText, rawMarkdown, url)
	meta := clean.Metadata

	if langCode, skip := p.detectNonEnglish(clean.CleanedContent); skip {
		return Result{Success: false, Skipped: true, Reason: "non-English: " + langCode}
	}
	meta.Language = "en"
	meta.CleanedAt = time.Now().UTC()
	meta.Depth = extra.Depth
	meta.StartingURL = extra.StartingURL
	meta.DeepCrawl = extra.DeepCrawl

	contentHash := hashContent(clean.CleanedContent)

	chunks := chunking.Chunk(clean.CleanedContent)
	filtered := cleaner.FilterChunks(chunks)
	if len(filtered) == 0 && len(chunks) > 0 {
		n := fallbackChunkCount
		if n > len(chunks) {
			n = len(chunks)
		}
		filtered = chunks[:n]
	}

	var vectors [][]float32
	if len(filtered) > 0 {
		var err error
		vectors, err = p.enc.EmbedBatch(ctx, filtered)
		if err != nil {
			return Result{Success: false, Error: fmt.Sprintf("embedding failed: %v", err)}
		}
	}

	doc := &webtypes.Document{
		URL: url, Title: title, CleanedText: clean.CleanedContent, Markdown: rawMarkdown,
		ContentHash: contentHash, Timestamp: time.Now().UTC(), IngestingSessionID: sessionID,
		RetentionPolicy: retention, Tags: tags, Metadata: meta,
	}

	res, err := p.st.IngestDocument(ctx, doc, vectors)
	if err != nil {
		if p.errJ != nil {
			p.errJ.Record("ingest.Ingest", url, "ingest transaction failed", "INGEST_FAILED", err)
		}
		return Result{Success: false, Error: err.Error()}
	}

	p.enqueueKG(ctx, res.ContentID)

	return Result{Success: true, ContentID: res.ContentID}
}

// detectNonEnglish returns (isoCode, true) when the detector confidently
// identifies a non-English language; it never skips on an inconclusive or
// failed detection, matching "if detection fails, continue as English".
func (p *Pipeline) detectNonEnglish(cleaned string) (string, bool) {
	if p.detector == nil || cleaned == "" {
		return "", false
	}
	sample := cleaned
	if len(sample) > languageSampleLen {
		sample = sample[:languageSampleLen]
	}

	lang, exists := p.detector.DetectLanguageOf(sample)
	if !exists {
		p.log.Warn("language detection inconclusive, continuing as English", "sample_len", len(sample))
		return "", false
	}
	if lang == lingua.English {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}

// enqueueKG is best-effort and never fails the caller's ingest, per spec
// §4.4 step 6; any failure goes to the error journal only.
func (p *Pipeline) enqueueKG(ctx context.Context, contentID int64) {
	if err := p.st.EnqueueKG(ctx, contentID, p.KGPriority); err != nil {
		if p.errJ != nil {
			p.errJ.Record("ingest.enqueueKG", "", fmt.Sprintf("kg enqueue failed for content %d", contentID), "KG_ENQUEUE_FAILED", err)
		}
		return
	}
	if p.OnKGEnqueue != nil {
		p.OnKGEnqueue(contentID)
	}
}

func hashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
