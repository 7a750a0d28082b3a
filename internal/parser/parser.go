// Package parser provides link previews: it fetches a page and extracts its
// title, description, preview image and favicon.
package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds one preview fetch.
	DefaultTimeout = 10 * time.Second

	// DefaultMaxBytes caps how much of a page is read.
	DefaultMaxBytes = 2 << 20

	userAgent = "Stash/1.0 (+link preview)"
)

// Preview is the metadata extracted from a linked page.
type Preview struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Favicon     string `json:"favicon"`
}

// LinkPreviewer fetches pages and extracts previews.
type LinkPreviewer struct {
	httpClient *http.Client
	maxBytes   int64
}

// NewLinkPreviewer creates a LinkPreviewer. A non-positive timeout uses
// DefaultTimeout.
func NewLinkPreviewer(timeout time.Duration) *LinkPreviewer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &LinkPreviewer{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
		maxBytes: DefaultMaxBytes,
	}
}

// Preview fetches rawURL and extracts its preview. Non-HTML responses yield
// a preview holding only the URL basename and the default favicon.
func (p *LinkPreviewer) Preview(ctx context.Context, rawURL string) (*Preview, error) {
	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if pageURL.Scheme != "http" && pageURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s", pageURL.Scheme)
	}
	if pageURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: missing host")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// Redirects change the base for relative links.
	base := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}

	if !isHTML(resp.Header.Get("Content-Type")) {
		return &Preview{
			URL:     pageURL.String(),
			Title:   basenameFromURL(pageURL.String()),
			Favicon: defaultFavicon(base),
		}, nil
	}

	preview, err := extractPreview(io.LimitReader(resp.Body, p.maxBytes), base)
	if err != nil {
		return nil, err
	}
	preview.URL = pageURL.String()
	if preview.Title == "" {
		preview.Title = basenameFromURL(pageURL.String())
	}
	return preview, nil
}

// isHTML reports whether a Content-Type is HTML. A missing header is
// treated as HTML.
func isHTML(ct string) bool {
	ct = strings.ToLower(ct)
	if i := strings.Index(ct, ";"); i > 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	return ct == "" || ct == "text/html" || ct == "application/xhtml+xml"
}
