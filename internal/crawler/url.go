package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var documentRe = regexp.MustCompile(`(?i)\.pdf(\?.*)?$`)

// IsDocument reports whether rawURL names a PDF: a case-insensitive ".pdf"
// suffix, optionally followed by a query string.
func IsDocument(rawURL string) bool {
	return documentRe.MatchString(rawURL)
}

// NormalizeURL standardizes a URL to avoid duplicates.
// It lowercases the scheme and host, removes default ports, sorts query
// parameters and drops the fragment. An empty path becomes "/".
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}

	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}

	return u.String(), nil
}

func parseRoot(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoot, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q must be an absolute http(s) url", ErrInvalidRoot, rawURL)
	}
	return u, nil
}

func sameHost(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname())
}

func sameHostString(rawURL string, root *url.URL) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return sameHost(u, root)
}
