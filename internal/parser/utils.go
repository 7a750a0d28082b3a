package parser

import (
	"net/url"
	"strings"
)

// basenameFromURL extracts a basename from URL for a default title, falling
// back to the hostname.
func basenameFromURL(sourceURL string) string {
	u := sourceURL
	if i := strings.Index(u, "?"); i > 0 {
		u = u[:i]
	}
	if i := strings.Index(u, "#"); i > 0 {
		u = u[:i]
	}

	if i := strings.LastIndex(u, "/"); i >= 0 && !strings.HasSuffix(u[:i+1], "//") {
		if base := u[i+1:]; base != "" {
			return base
		}
	}

	if parsedURL, err := url.Parse(sourceURL); err == nil && parsedURL.Hostname() != "" {
		return parsedURL.Hostname()
	}
	return "Untitled"
}

// resolve returns ref resolved against base, or "" when ref is unusable.
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") || strings.HasPrefix(ref, "javascript:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

func defaultFavicon(base *url.URL) string {
	return resolve(base, "/favicon.ico")
}

// truncate shortens s to maxLen runes, preferring a word boundary.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	cut := string(r[:maxLen])
	if i := strings.LastIndex(cut, " "); i > 0 {
		return cut[:i] + "..."
	}
	return cut + "..."
}
