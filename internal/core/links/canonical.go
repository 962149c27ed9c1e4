package links

import (
	"crypto/sha1" //nolint:gosec // content addressing, not a security boundary
	"encoding/hex"
	"net/url"
	"strings"
)

const wwwPrefix = "www."

// CanonicalizeURL drops the query string, trims whitespace and lower-cases the URL.
// Fragments survive when they precede the query. Two URLs that canonicalize to
// the same string identify the same item.
func CanonicalizeURL(raw string) string {
	if idx := strings.Index(raw, "?"); idx >= 0 {
		raw = raw[:idx]
	}

	return strings.ToLower(strings.TrimSpace(raw))
}

// HashURL returns the SHA-1 hex digest of an already canonical URL.
func HashURL(canonical string) string {
	sum := sha1.Sum([]byte(canonical)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

// DomainOf returns the URL host without a leading "www.". Unparsable URLs yield "".
func DomainOf(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}

	return normalizeDomain(parsed.Host)
}

var siteLabels = []struct {
	needle string
	label  string
}{
	{"arxiv.org", "arXiv"},
	{"github.com", "GitHub"},
	{"openai.com", "OpenAI"},
	{"deepmind.google", "DeepMind"},
	{"anthropic.com", "Anthropic"},
	{"huggingface.co", "HF"},
}

// SiteLabel returns a short publisher label for the link text of a digest entry.
// Unknown domains fall back to the feed name, then the domain, then "source".
func SiteLabel(rawURL, source string) string {
	d := DomainOf(rawURL)

	for _, sl := range siteLabels {
		if strings.Contains(d, sl.needle) {
			return sl.label
		}
	}

	if source != "" {
		return source
	}

	if d != "" {
		return d
	}

	return "source"
}

func normalizeDomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, wwwPrefix)

	return host
}
