package helpers

import (
	"net/url"
	"strings"
)

// StripQuery drops the query string and fragment from a link
func StripQuery(link string) string {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		return link[:i]
	}
	return link
}

// ResolveURL resolves href against base. Unparseable input is returned unchanged.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
