// Package crawl implements the Crawl Orchestrator of spec §4.8: a bounded
// breadth-first crawl that feeds fetched pages through the simple-English
// gate and the Ingestion Pipeline, under partial-failure semantics where
// one bad page never aborts the crawl.
package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"webmemcore/internal/fetcher"
	"webmemcore/internal/ingest"
	"webmemcore/internal/logging"
	"webmemcore/internal/store"
	"webmemcore/internal/validation"
	"webmemcore/internal/webtypes"
)

// englishIndicators is the fixed token list the simple-English gate
// checks for in the first 2000 characters of cleaned content; the
// presence of even one common English word or technical term passes a
// page, which is deliberately permissive for technical documentation.
var englishIndicators = []string{
	"the ", "and ", "for ", "are ", "not ", "you ", "with ",
	"from ", "this ", "that ", "have ", "was ", "can ", "will ",
	"about ", "when ", "where ", "what ", "which ", "who ",
	"use ", "example", "code", "function", "class", "method",
	"install", "configure", "documentation", "guide", "tutorial",
	"how to", "getting started", "introduction", "overview",
}

const englishGateSampleLen = 2000

type queueItem struct {
	url   string
	depth int
}

// Summary is the deep_crawl_and_store result shape.
type Summary struct {
	StartingURL          string
	PagesCrawled         int
	PagesStored          int
	PagesSkippedLanguage int
	PagesFailed          int
	StoredPages          []string
	SkippedPages         []string
	FailedPages          []string
	RetentionPolicy      webtypes.RetentionPolicy
	LanguageFilter       string
}

// Orchestrator drives crawl_one and deep_crawl_and_store.
type Orchestrator struct {
	st       *store.Store
	fetch    *fetcher.Client
	pipeline *ingest.Pipeline
	log      logging.Logger
}

func New(st *store.Store, fetch *fetcher.Client, pipeline *ingest.Pipeline) *Orchestrator {
	return &Orchestrator{st: st, fetch: fetch, pipeline: pipeline, log: logging.NewLogger("crawl")}
}

// CrawlOne fetches a single URL and, on success, ingests it directly;
// this backs the crawl_url/crawl_and_remember/crawl_temp tool surface.
func (o *Orchestrator) CrawlOne(ctx context.Context, rawURL string, retention webtypes.RetentionPolicy, tags []string, sessionID string) ingest.Result {
	if verr := validation.ValidateURL(rawURL); verr != nil {
		return ingest.Result{Success: false, Error: verr.Error()}
	}
	if blocked := o.st.IsBlocked(ctx, rawURL); blocked.Blocked {
		return ingest.Result{Success: false, Error: fmt.Sprintf("domain blocked by pattern %q", blocked.Pattern)}
	}

	page, err := o.fetch.Fetch(ctx, rawURL)
	if err != nil {
		return ingest.Result{Success: false, Error: err.Error()}
	}
	if page.StatusCode >= 400 {
		return ingest.Result{Success: false, Error: fmt.Sprintf("fetch %s: http %d", rawURL, page.StatusCode)}
	}

	return o.pipeline.Ingest(ctx, rawURL, page.Content, page.Markdown, page.Title, retention, tags, sessionID, webtypes.DocumentMetadata{})
}

// DeepCrawlAndStore runs the bounded BFS crawl of spec §4.8.
func (o *Orchestrator) DeepCrawlAndStore(ctx context.Context, startURL string, depthMax, pagesMax int,
	includeExternal bool, retention webtypes.RetentionPolicy, tags []string, sessionID string) (*Summary, error) {

	if verr := validation.ValidateDeepCrawlParams(depthMax, pagesMax); verr != nil {
		return nil, verr
	}

	startHost, err := hostOf(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid starting URL: %w", err)
	}

	summary := &Summary{StartingURL: startURL, RetentionPolicy: retention, LanguageFilter: "en"}
	visited := make(map[string]bool)
	queue := []queueItem{{url: startURL, depth: 0}}

	for len(queue) > 0 && len(summary.StoredPages) < pagesMax {
		item := queue[0]
		queue = queue[1:]

		if visited[item.url] || item.depth > depthMax {
			continue
		}
		visited[item.url] = true

		if blocked := o.st.IsBlocked(ctx, item.url); blocked.Blocked {
			summary.FailedPages = append(summary.FailedPages, item.url)
			continue
		}

		page, err := o.fetch.Fetch(ctx, item.url)
		if err != nil {
			summary.FailedPages = append(summary.FailedPages, item.url)
			continue
		}
		if page.StatusCode >= 400 || page.Content == "" {
			summary.FailedPages = append(summary.FailedPages, item.url)
			continue
		}

		if !passesEnglishGate(page.Content) {
			summary.SkippedPages = append(summary.SkippedPages, item.url)
			if item.depth < depthMax {
				queue = append(queue, o.expandLinks(page, visited, item.depth, startHost, includeExternal)...)
			}
			continue
		}

		result := o.pipeline.Ingest(ctx, item.url, page.Content, page.Markdown, page.Title, retention, tags, sessionID,
			webtypes.DocumentMetadata{Depth: item.depth, StartingURL: startURL, DeepCrawl: true})

		if result.Success {
			summary.StoredPages = append(summary.StoredPages, item.url)
		} else {
			summary.FailedPages = append(summary.FailedPages, item.url)
		}

		if item.depth < depthMax {
			queue = append(queue, o.expandLinks(page, visited, item.depth, startHost, includeExternal)...)
		}
	}

	summary.PagesStored = len(summary.StoredPages)
	summary.PagesSkippedLanguage = len(summary.SkippedPages)
	summary.PagesFailed = len(summary.FailedPages)
	summary.PagesCrawled = summary.PagesStored + summary.PagesSkippedLanguage + summary.PagesFailed
	return summary, nil
}

func (o *Orchestrator) expandLinks(page *fetcher.Page, visited map[string]bool, depth int, startHost string, includeExternal bool) []queueItem {
	links := page.InternalLinks
	if includeExternal {
		links = append(append([]string{}, page.InternalLinks...), page.ExternalLinks...)
	}

	var out []queueItem
	for _, link := range links {
		if visited[link] {
			continue
		}
		if !includeExternal {
			host, err := hostOf(link)
			if err != nil || host != startHost {
				continue
			}
		}
		out = append(out, queueItem{url: link, depth: depth + 1})
	}
	return out
}

func passesEnglishGate(content string) bool {
	if len(content) < 50 {
		return false
	}
	sample := strings.ToLower(content)
	if len(sample) > englishGateSampleLen {
		sample = sample[:englishGateSampleLen]
	}
	for _, indicator := range englishIndicators {
		if strings.Contains(sample, indicator) {
			return true
		}
	}
	return false
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("cannot parse host of %q", rawURL)
	}
	return u.Host, nil
}
