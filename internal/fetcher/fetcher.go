// Package fetcher wraps the external page-rendering service (spec's
// CRAWL4AI_URL) behind a small client: one page fetch returns cleaned
// HTML, markdown, title, status code, and the page's internal/external
// links for the Crawl Orchestrator's BFS expansion.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Link is one anchor discovered on a fetched page.
type Link struct {
	Href string `json:"href"`
}

type linkSet struct {
	Internal []Link `json:"internal"`
	External []Link `json:"external"`
}

type markdownBlock struct {
	RawMarkdown string `json:"raw_markdown"`
}

type pageMetadata struct {
	Title      string `json:"title"`
	StatusCode int    `json:"status_code"`
}

type crawlResultPayload struct {
	CleanedHTML string        `json:"cleaned_html"`
	Markdown    markdownBlock `json:"markdown"`
	Metadata    pageMetadata  `json:"metadata"`
	Links       linkSet       `json:"links"`
}

type crawlResponse struct {
	Success bool                  `json:"success"`
	Results []crawlResultPayload  `json:"results"`
}

// Page is one fetched page, normalized for the Ingestion Pipeline and the
// Crawl Orchestrator's link-expansion step.
type Page struct {
	URL            string
	Content        string
	Markdown       string
	Title          string
	StatusCode     int
	InternalLinks  []string
	ExternalLinks  []string
}

// Client talks to the external fetcher service over HTTP.
type Client struct {
	http *resty.Client
}

// New builds a Client pointed at baseURL (CRAWL4AI_URL), with retries for
// transient network failures matching the store's own retry posture.
func New(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	return &Client{http: c}
}

// Fetch retrieves one URL. A non-2xx status or an empty body surfaces as
// an error; the Crawl Orchestrator treats that as a per-page failure that
// never aborts the crawl.
func (c *Client) Fetch(ctx context.Context, url string) (*Page, error) {
	var body crawlResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"urls": []string{url}}).
		SetResult(&body).
		Post("/crawl")
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: http %d", url, resp.StatusCode())
	}
	if !body.Success || len(body.Results) == 0 {
		return nil, fmt.Errorf("fetch %s: fetcher returned no result", url)
	}

	r := body.Results[0]
	if r.CleanedHTML == "" {
		return nil, fmt.Errorf("fetch %s: empty body", url)
	}

	page := &Page{
		URL: url, Content: r.CleanedHTML, Markdown: r.Markdown.RawMarkdown,
		Title: r.Metadata.Title, StatusCode: r.Metadata.StatusCode,
	}
	for _, l := range r.Links.Internal {
		if l.Href != "" {
			page.InternalLinks = append(page.InternalLinks, l.Href)
		}
	}
	for _, l := range r.Links.External {
		if l.Href != "" {
			page.ExternalLinks = append(page.ExternalLinks, l.Href)
		}
	}
	return page, nil
}
