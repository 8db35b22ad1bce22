// Package cleaner implements the Content Cleaner of spec §4.2: stripping
// navigation/boilerplate lines from crawled markdown, filtering low-quality
// chunks before embedding, and detecting error/rate-limited pages.
package cleaner

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"

	"webmemcore/internal/webtypes"
)

// navKeywords is the fixed set of navigation/boilerplate tokens. A line
// containing any of these (case-insensitive) is dropped.
var navKeywords = []string{
	"navigation", "menu", "sidebar", "breadcrumb", "skip to",
	"table of contents", "on this page", "quick links",
	"sign in", "log in", "subscribe", "newsletter",
	"follow us", "social media", "share on", "tweet",
	"copyright ©", "all rights reserved", "© 20",
	"privacy policy", "terms of service", "cookie policy",
	"back to top", "scroll to top", "go to top",
}

// socialDomains marks lines naming a social-media host as boilerplate.
var socialDomains = []string{
	"facebook.com", "twitter.com", "linkedin.com", "instagram.com",
	"youtube.com", "github.com", "discord.", "reddit.com",
	"x.com", "bsky.app", "bluesky",
}

var (
	pureLinkLine    = regexp.MustCompile(`^[\s*-]+\[.*?\]\s*\(.*?\)\s*$`)
	labeledLinkLine = regexp.MustCompile(`(?i)^\s*[*-]\s+(learn|reference|api|community|blog|docs?)\s*\[`)
	blankRun        = regexp.MustCompile(`\n{3,}`)
	linkMarker      = regexp.MustCompile(`\[`)
)

// CleanContent strips navigation/boilerplate lines from raw markdown and
// collapses blank-line runs. url is accepted for parity with the original
// signature but is not otherwise consulted.
func CleanContent(markdown, url string) string {
	_ = url
	if markdown == "" {
		return ""
	}

	lines := strings.Split(markdown, "\n")
	cleaned := make([]string, 0, len(lines))

	for _, line := range lines {
		lower := strings.ToLower(strings.TrimSpace(line))
		if lower == "" {
			continue
		}
		if containsAny(lower, navKeywords) {
			continue
		}
		if containsAny(lower, socialDomains) {
			continue
		}
		if pureLinkLine.MatchString(line) {
			continue
		}
		if labeledLinkLine.MatchString(line) {
			continue
		}
		cleaned = append(cleaned, line)
	}

	out := strings.Join(cleaned, "\n")
	out = blankRun.ReplaceAllString(out, "\n\n")
	out = strings.TrimSpace(out)
	return norm.NFC.String(out)
}

// markdownLinkDensity parses markdown to a proper AST and returns the
// fraction of text nodes, at any depth, whose parent is a link or
// autolink, as a structural companion to the line-oriented navKeywords
// heuristic above (which only looks at raw substrings).
func markdownLinkDensity(markdown string) float64 {
	if markdown == "" {
		return 0
	}
	root := goldmark.New().Parser().Parse(text.NewReader([]byte(markdown)))

	var linkTextNodes, totalTextNodes int
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindText:
			totalTextNodes++
			if _, inLink := n.Parent().(*ast.Link); inLink {
				linkTextNodes++
			}
			if _, inAutoLink := n.Parent().(*ast.AutoLink); inAutoLink {
				linkTextNodes++
			}
		}
		return ast.WalkContinue, nil
	})

	if totalTextNodes == 0 {
		return 0
	}
	return float64(linkTextNodes) / float64(totalTextNodes)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// FilterChunks drops chunks with ≥3 navigation-keyword hits, a link-marker
// density over 30% of word count, or fewer than 10 words.
func FilterChunks(chunks []string) []string {
	filtered := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		lower := strings.ToLower(chunk)

		navCount := 0
		for _, kw := range navKeywords {
			if strings.Contains(lower, kw) {
				navCount++
			}
		}
		if navCount >= 3 {
			continue
		}

		wordCount := len(strings.Fields(chunk))
		linkCount := len(linkMarker.FindAllString(chunk, -1))
		if wordCount > 0 && float64(linkCount)/float64(wordCount) > 0.3 {
			continue
		}
		if wordCount < 10 {
			continue
		}

		filtered = append(filtered, chunk)
	}
	return filtered
}

// CleanResult is the output of CleanAndValidate: the cleaned text plus the
// per-field counters the Ingestion Pipeline records in Document metadata.
type CleanResult struct {
	CleanedContent string
	Metadata       webtypes.DocumentMetadata
}

// CleanAndValidate prefers markdown over HTML-derived content, cleans it,
// and computes the reduction-ratio/navigation-indicator quality signal.
// is_clean is false when reduction_ratio > 0.7 or indicator count > 10.
func CleanAndValidate(content, markdown, url string) CleanResult {
	textToClean := markdown
	if textToClean == "" {
		textToClean = content
	}

	cleaned := CleanContent(textToClean, url)

	originalLines := len(strings.Split(textToClean, "\n"))
	cleanedLines := len(strings.Split(cleaned, "\n"))
	reductionRatio := 0.0
	if originalLines > 0 {
		reductionRatio = float64(originalLines-cleanedLines) / float64(originalLines)
	}

	navCount := 0
	lowerAll := strings.ToLower(textToClean)
	for _, kw := range navKeywords {
		if strings.Contains(lowerAll, kw) {
			navCount++
		}
	}

	isMostlyNav := reductionRatio > 0.7 || navCount > 10

	meta := webtypes.DocumentMetadata{
		OriginalLines:        originalLines,
		CleanedLines:         cleanedLines,
		ReductionRatio:       reductionRatio,
		NavigationIndicators: navCount,
		IsClean:              !isMostlyNav,
		LinkDensity:          markdownLinkDensity(textToClean),
	}
	if isMostlyNav {
		meta.QualityWarning = "content appears to be mostly navigation/boilerplate"
	}

	return CleanResult{CleanedContent: cleaned, Metadata: meta}
}

// ErrorPageResult is the outcome of IsErrorPage.
type ErrorPageResult struct {
	IsError bool
	Reason  string
}

var titleErrorPatterns = []string{
	"404", "not found", "page not found", "error",
	"access denied", "forbidden", "403", "401",
	"unauthorized", "unavailable", "does not exist",
}

var rateLimitPatterns = []string{
	"rate limit", "too many requests", "please slow down",
	"bot detection", "captcha", "human verification",
	"access denied", "blocked", "suspicious activity",
	"verify you are human", "security check",
}

var shortErrorPatterns = []string{
	"page not found", "404", "not found", "error occurred",
	"something went wrong", "page does not exist",
	"reach this site in error", "reached this page in error",
}

var longErrorKeywords = []string{
	"page not found", "404 error", "page does not exist",
	"something went wrong", "error occurred", "cannot find",
	"reach this site in error", "reached this page in error",
	"page you are looking for", "page has been removed",
}

var redirectPatterns = []string{
	"permanently moved", "page has moved", "redirecting",
	"this page has been moved to",
}

// IsErrorPage detects error/rate-limit/redirect pages per spec §4.2,
// short-circuiting in the documented order.
func IsErrorPage(content, title string, statusCode int) ErrorPageResult {
	if strings.TrimSpace(content) == "" || len(strings.TrimSpace(content)) < 50 {
		return ErrorPageResult{true, "empty or too short content"}
	}

	lower := strings.ToLower(content)
	titleLower := strings.ToLower(title)

	if statusCode >= 400 {
		return ErrorPageResult{true, "HTTP error"}
	}

	if containsAny(titleLower, titleErrorPatterns) {
		return ErrorPageResult{true, "error in title: " + title}
	}

	sample := lower
	if len(sample) > 500 {
		sample = sample[:500]
	}
	for _, p := range rateLimitPatterns {
		if strings.Contains(sample, p) {
			return ErrorPageResult{true, "rate limiting/bot detection: " + p}
		}
	}

	wordCount := len(strings.Fields(content))

	if wordCount < 100 {
		if containsAny(lower, shortErrorPatterns) {
			return ErrorPageResult{true, "error page (short content)"}
		}
	}

	errorCount := 0
	for _, kw := range longErrorKeywords {
		if strings.Contains(lower, kw) {
			errorCount++
		}
	}
	if errorCount >= 2 && wordCount < 300 {
		return ErrorPageResult{true, "multiple error indicators"}
	}

	if containsAny(lower, redirectPatterns) && wordCount < 200 {
		return ErrorPageResult{true, "redirect/moved page"}
	}

	return ErrorPageResult{false, ""}
}
