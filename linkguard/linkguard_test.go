package linkguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURLs(t *testing.T) {
	assert := assert.New(t)

	assert.Empty(ExtractURLs("no links here"))
	assert.Equal([]string{"https://example.com/path"}, ExtractURLs("see https://example.com/path ok"))
	assert.Equal([]string{"example.com"}, ExtractURLs("bare example.com link"))
	assert.Equal(
		[]string{"https://a.example.com", "http://b.example.org/x?y=1"},
		ExtractURLs("two: https://a.example.com and http://b.example.org/x?y=1"),
	)
}

func TestWhitelisted(t *testing.T) {
	assert := assert.New(t)
	wl := []string{"example.com", "Trusted.ORG"}

	assert.True(Whitelisted("https://example.com", wl))
	assert.True(Whitelisted("http://example.com/some/path", wl))
	// subdomain match
	assert.True(Whitelisted("https://sub.example.com/path", wl))
	// case-insensitive on both sides
	assert.True(Whitelisted("HTTPS://SUB.EXAMPLE.COM", wl))
	assert.True(Whitelisted("trusted.org/page", wl))

	// suffix of the name is not a subdomain
	assert.False(Whitelisted("https://evilexample.com", wl))
	assert.False(Whitelisted("https://example.com.evil.net", wl))
	assert.False(Whitelisted("https://other.net", wl))
	assert.False(Whitelisted("https://other.net", nil))
}

func TestScanAndMatch(t *testing.T) {
	assert := assert.New(t)
	wl := []string{"example.com"}

	matches := ScanAndMatch("ok https://example.com but also evil.net", wl)
	assert.Len(matches, 2)
	assert.Equal(Match{URL: "https://example.com", Whitelisted: true}, matches[0])
	assert.Equal(Match{URL: "evil.net", Whitelisted: false}, matches[1])

	assert.Nil(ScanAndMatch("plain text", wl))
}

func TestFirstViolation(t *testing.T) {
	assert := assert.New(t)
	wl := []string{"example.com"}

	u, found := FirstViolation("https://example.com then bad.net then worse.net", wl)
	assert.True(found)
	assert.Equal("bad.net", u)

	_, found = FirstViolation("only https://sub.example.com/here", wl)
	assert.False(found)
}
