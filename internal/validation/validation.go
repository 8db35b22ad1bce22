// Package validation implements the input-validation surface of spec §4.10:
// URL safety checks, string/integer/float range clamps, and the retention
// policy enum. The rejecting validators return a *errors.StandardError
// suitable for direct inclusion in a {success:false, error:...} envelope;
// ValidateStringLength truncates and returns a string instead.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	werr "webmemcore/internal/errors"
	"webmemcore/internal/webtypes"
)

const (
	MaxURLLength = 2048
	MaxTagsLength = 500
	MaxTagLength  = 100
)

var tagTokenPattern = regexp.MustCompile(`^[A-Za-z0-9 _-]+$`)

var blockedHostSuffixes = []string{".local", ".internal", ".corp"}

var metadataIPs = map[string]bool{
	"169.254.169.254": true,
	"100.100.100.200": true,
	"192.0.0.192":     true,
}

// adultContentKeywords is a fixed, deliberately small denylist of explicit
// adult-content tokens rejected anywhere in a submitted URL.
var adultContentKeywords = []string{
	"porn", "xxx", "sex-", "-sex", "adult-content", "nsfw-content",
}

// suspiciousPatterns rejects exact shapes resembling SQL injection, the
// javascript: scheme, and a few keyword-in-query probes.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)data:text/html`),
	regexp.MustCompile(`(?i)('|%27)(\s|%20)*(or|union|select|drop|insert)(\s|%20)`),
	regexp.MustCompile(`(?i)[?&](cmd|exec|eval)=`),
}

// ValidateURL enforces scheme, hostname-presence, private/loopback/
// link-local/cloud-metadata-IP rejection, blocked suffixes, and the
// adult-content/injection denylists.
func ValidateURL(raw string) *werr.StandardError {
	if len(raw) == 0 {
		return werr.NewRequiredFieldError("url")
	}
	if len(raw) > MaxURLLength {
		return werr.NewValidationError("url", fmt.Sprintf("exceeds maximum length of %d", MaxURLLength), nil)
	}

	lower := strings.ToLower(raw)
	for _, kw := range adultContentKeywords {
		if strings.Contains(lower, kw) {
			return werr.NewValidationError("url", "disallowed content keyword", nil)
		}
	}
	for _, p := range suspiciousPatterns {
		if p.MatchString(raw) {
			return werr.NewValidationError("url", "disallowed pattern", nil)
		}
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return werr.NewValidationError("url", "malformed URL", raw)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return werr.NewValidationError("url", "must use http or https scheme", scheme)
	}

	hostname := strings.ToLower(parsed.Hostname())
	if hostname == "" {
		return werr.NewValidationError("url", "missing host", nil)
	}
	if hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1" {
		return werr.NewValidationError("url", "loopback host is not allowed", hostname)
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
			return werr.NewValidationError("url", "private/loopback/link-local IP is not allowed", hostname)
		}
	} else {
		for _, suffix := range blockedHostSuffixes {
			if strings.HasSuffix(hostname, suffix) {
				return werr.NewValidationError("url", "blocked host suffix", hostname)
			}
		}
	}

	if metadataIPs[hostname] {
		return werr.NewValidationError("url", "cloud metadata address is not allowed", hostname)
	}

	return nil
}

// ValidateStringLength truncates value to maxLength, matching the
// original's "warn and truncate" behaviour rather than rejecting.
func ValidateStringLength(value string, maxLength int) string {
	if len(value) > maxLength {
		return value[:maxLength]
	}
	return value
}

// ValidateIntegerRange clamps-by-rejection: returns an error when value
// falls outside [min,max].
func ValidateIntegerRange(value, min, max int, fieldName string) *werr.StandardError {
	if value < min || value > max {
		return werr.NewValidationError(fieldName, fmt.Sprintf("must be between %d and %d", min, max), value)
	}
	return nil
}

// ValidateFloatRange mirrors ValidateIntegerRange for float inputs such as
// similarity thresholds.
func ValidateFloatRange(value, min, max float64, fieldName string) *werr.StandardError {
	if value < min || value > max {
		return werr.NewValidationError(fieldName, fmt.Sprintf("must be between %g and %g", min, max), value)
	}
	return nil
}

// ValidateDeepCrawlParams enforces depth∈[1,5] and pages∈[1,250].
func ValidateDeepCrawlParams(maxDepth, maxPages int) *werr.StandardError {
	if err := ValidateIntegerRange(maxDepth, 1, 5, "max_depth"); err != nil {
		return err
	}
	return ValidateIntegerRange(maxPages, 1, 250, "max_pages")
}

// ValidateRetentionPolicy enum-validates against the three known policies.
func ValidateRetentionPolicy(policy string) (webtypes.RetentionPolicy, *werr.StandardError) {
	p := webtypes.RetentionPolicy(policy)
	if !p.Valid() {
		return "", werr.NewValidationError("retention_policy", "must be one of permanent, session_only, 30_days", policy)
	}
	return p, nil
}

// ValidateTags splits, trims, and validates a comma-separated tag string
// against the overall and per-tag length limits and character class.
func ValidateTags(tagsCSV string) ([]string, *werr.StandardError) {
	if len(tagsCSV) > MaxTagsLength {
		return nil, werr.NewValidationError("tags", fmt.Sprintf("exceeds maximum length of %d", MaxTagsLength), nil)
	}
	if strings.TrimSpace(tagsCSV) == "" {
		return nil, nil
	}

	var out []string
	for _, raw := range strings.Split(tagsCSV, ",") {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		if len(t) > MaxTagLength {
			return nil, werr.NewValidationError("tags", fmt.Sprintf("tag %q exceeds maximum length of %d", t, MaxTagLength), nil)
		}
		if !tagTokenPattern.MatchString(t) {
			return nil, werr.NewValidationError("tags", fmt.Sprintf("tag %q contains disallowed characters", t), nil)
		}
		out = append(out, t)
	}
	return out, nil
}
