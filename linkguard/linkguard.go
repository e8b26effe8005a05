// Package linkguard extracts URLs from message text and checks them against a
// per-group domain allow-list. The caller recalls the message when any
// extracted URL is outside the allow-list.
package linkguard

import (
	"regexp"
	"strings"
)

// Permissive URL pattern: matches both scheme://host... and bare host...
// forms, requiring a 2+ letter top-level label.
var urlPattern = regexp.MustCompile(
	`(?i)https?://([a-zA-Z0-9][-a-zA-Z0-9]*\.)+[a-zA-Z]{2,}[-a-zA-Z0-9@:%._+~#=/?&]*` +
		`|([a-zA-Z0-9][-a-zA-Z0-9]*\.)+[a-zA-Z]{2,}[-a-zA-Z0-9@:%._+~#=/?&]*`)

type Match struct {
	URL         string
	Whitelisted bool
}

// ExtractURLs returns all URL-looking substrings of text, in order.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// Whitelisted reports whether the URL's domain equals a whitelist entry or is
// a subdomain of one. Matching is case-insensitive; the scheme and any path
// are ignored.
func Whitelisted(url string, whitelist []string) bool {
	domain := strings.ToLower(url)
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")
	if i := strings.Index(domain, "/"); i >= 0 {
		domain = domain[:i]
	}
	for _, entry := range whitelist {
		entry = strings.ToLower(entry)
		if domain == entry || strings.HasSuffix(domain, "."+entry) {
			return true
		}
	}
	return false
}

// ScanAndMatch extracts every URL in text and pairs it with its whitelist
// verdict.
func ScanAndMatch(text string, whitelist []string) []Match {
	urls := ExtractURLs(text)
	if len(urls) == 0 {
		return nil
	}
	out := make([]Match, 0, len(urls))
	for _, u := range urls {
		out = append(out, Match{URL: u, Whitelisted: Whitelisted(u, whitelist)})
	}
	return out
}

// FirstViolation returns the first extracted URL not covered by the
// whitelist. Later URLs are not evaluated.
func FirstViolation(text string, whitelist []string) (string, bool) {
	for _, u := range ExtractURLs(text) {
		if !Whitelisted(u, whitelist) {
			return u, true
		}
	}
	return "", false
}
