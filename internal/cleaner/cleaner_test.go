package cleaner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanContent_StripsNavigationAndSocial(t *testing.T) {
	md := strings.Join([]string{
		"# Title",
		"Skip to main content",
		"This is the real article body with useful information.",
		"Follow us on twitter.com/example",
		"© 2024 Example Corp. All rights reserved.",
	}, "\n")

	out := CleanContent(md, "https://a.test")
	assert.Contains(t, out, "real article body")
	assert.NotContains(t, out, "Skip to main content")
	assert.NotContains(t, out, "twitter.com")
	assert.NotContains(t, out, "All rights reserved")
}

func TestCleanContent_CollapsesBlankRuns(t *testing.T) {
	md := "line one\n\n\n\n\nline two"
	out := CleanContent(md, "")
	assert.Equal(t, "line one\n\nline two", out)
}

func TestFilterChunks(t *testing.T) {
	chunks := []string{
		"a short chunk",
		strings.Repeat("word ", 20) + "with real content and substance here please",
		"[link](a) [link](b) [link](c) short text only four words",
	}
	out := FilterChunks(chunks)
	assert.Len(t, out, 1)
	assert.Contains(t, out[0], "real content")
}

func TestCleanAndValidate_FlagsMostlyNavigation(t *testing.T) {
	md := strings.Join([]string{
		"Skip to main content", "Sign in", "Subscribe", "Follow us on facebook.com",
		"Privacy Policy", "Terms of Service", "Cookie Policy", "Back to top",
		"Table of contents", "Quick links", "Breadcrumb", "Sidebar",
	}, "\n")

	res := CleanAndValidate("", md, "https://a.test")
	assert.False(t, res.Metadata.IsClean)
	assert.NotEmpty(t, res.Metadata.QualityWarning)
}

func TestCleanAndValidate_ComputesLinkDensity(t *testing.T) {
	md := "This is mostly prose with [one link](https://a.test) in the middle of several sentences of real content."
	res := CleanAndValidate("", md, "https://a.test")
	assert.GreaterOrEqual(t, res.Metadata.LinkDensity, 0.0)
	assert.LessOrEqual(t, res.Metadata.LinkDensity, 1.0)
}

func TestIsErrorPage(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		title      string
		statusCode int
		wantError  bool
	}{
		{"too short", "hi", "", 200, true},
		{"http error", strings.Repeat("word ", 60), "Page", 404, true},
		{"title error", strings.Repeat("word ", 60), "404 Not Found", 200, true},
		{"clean page", strings.Repeat("the quick brown fox jumps over the lazy dog ", 30), "About Us", 200, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := IsErrorPage(tt.content, tt.title, tt.statusCode)
			assert.Equal(t, tt.wantError, res.IsError)
		})
	}
}
