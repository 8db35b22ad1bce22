// Package retrieval implements the Retrieval Engine of spec §4.6: a basic
// similarity search with optional tag filtering and URL deduplication,
// plus the target_search two-pass tag-expansion algorithm.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"webmemcore/internal/embeddings"
	"webmemcore/internal/store"
	"webmemcore/internal/webtypes"
)

const maxResultTextLen = 10000

// Engine answers search and target_search against the Store's vector
// index, using enc to embed queries (never persisted).
type Engine struct {
	st  *store.Store
	enc embeddings.Encoder
}

func New(st *store.Store, enc embeddings.Encoder) *Engine {
	return &Engine{st: st, enc: enc}
}

// Search runs the basic similarity search: embed once, fetch up to 5k
// candidates, apply the optional tag OR-predicate, dedupe by URL keeping
// the best distance, map to similarity, and return the top k.
func (e *Engine) Search(ctx context.Context, query string, k int, tags []string) ([]webtypes.SearchResult, error) {
	if k <= 0 {
		k = 1
	}

	queryVec, err := e.enc.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := e.st.KNN(ctx, queryVec, 5*k)
	if err != nil {
		return nil, fmt.Errorf("knn query: %w", err)
	}

	best := make(map[string]webtypes.SearchResult)
	for _, hit := range hits {
		doc, err := e.st.GetDocumentByID(ctx, hit.ContentID)
		if err != nil {
			return nil, fmt.Errorf("load candidate document: %w", err)
		}
		if doc == nil {
			continue
		}
		if len(tags) > 0 && !matchesAnyTag(doc.Tags, tags) {
			continue
		}

		existing, ok := best[doc.URL]
		similarity := similarityFromDistance(hit.Distance)
		if !ok || similarity > existing.Similarity {
			best[doc.URL] = webtypes.SearchResult{
				URL: doc.URL, Title: doc.Title, Text: truncateText(doc.CleanedText),
				Timestamp: doc.Timestamp, Tags: doc.Tags, Similarity: similarity,
			}
		}
	}

	results := make([]webtypes.SearchResult, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// TargetSearch implements the two-pass tag-expansion algorithm.
func (e *Engine) TargetSearch(ctx context.Context, query string, initialK, expandedK int) (*webtypes.ExpandedResult, error) {
	if initialK <= 0 {
		initialK = 5
	}
	if expandedK <= 0 {
		expandedK = 20
	}

	initial, err := e.Search(ctx, query, initialK, nil)
	if err != nil {
		return nil, err
	}

	discovered := collectTags(initial)
	if len(discovered) == 0 {
		return &webtypes.ExpandedResult{
			Results: initial, ExpansionUsed: false,
			InitialCount: len(initial), ExpandedCount: len(initial),
		}, nil
	}

	expanded, err := e.Search(ctx, query, expandedK, discovered)
	if err != nil {
		return nil, err
	}

	merged := dedupeKeepHighest(append(append([]webtypes.SearchResult{}, initial...), expanded...))
	return &webtypes.ExpandedResult{
		Results: merged, DiscoveredTags: discovered, ExpansionUsed: true,
		InitialCount: len(initial), ExpandedCount: len(expanded),
	}, nil
}

func similarityFromDistance(d float64) float64 {
	if d <= 1.0 {
		return 1 - d
	}
	return 1 / (1 + d)
}

func truncateText(text string) string {
	if len(text) <= maxResultTextLen {
		return text
	}
	return text[:maxResultTextLen] + "..."
}

func matchesAnyTag(docTags, wanted []string) bool {
	for _, dt := range docTags {
		dtLower := strings.ToLower(dt)
		for _, w := range wanted {
			if strings.Contains(dtLower, strings.ToLower(w)) {
				return true
			}
		}
	}
	return false
}

func collectTags(results []webtypes.SearchResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range results {
		for _, t := range r.Tags {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func dedupeKeepHighest(results []webtypes.SearchResult) []webtypes.SearchResult {
	best := make(map[string]webtypes.SearchResult)
	for _, r := range results {
		existing, ok := best[r.URL]
		if !ok || r.Similarity > existing.Similarity {
			best[r.URL] = r
		}
	}
	out := make([]webtypes.SearchResult, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out
}
