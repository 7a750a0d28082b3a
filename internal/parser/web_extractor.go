package parser

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Pre-compiled regex patterns for performance
var whitespaceRegex = regexp.MustCompile(`\s+`)

const (
	maxTitleLength       = 300
	maxDescriptionLength = 500
)

// extractPreview parses an HTML page. Relative image and icon references
// are resolved against base.
func extractPreview(r io.Reader, base *url.URL) (*Preview, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := &Preview{
		Title:       truncate(extractTitle(doc), maxTitleLength),
		Description: truncate(extractDescription(doc), maxDescriptionLength),
		Image:       resolve(base, extractMetaProperty(doc, "og:image")),
		Favicon:     resolve(base, extractIcon(doc)),
	}
	if p.Favicon == "" {
		p.Favicon = defaultFavicon(base)
	}
	return p, nil
}

// extractTitle prefers og:title, then <title>, then the first <h1>.
func extractTitle(doc *html.Node) string {
	title := extractMetaProperty(doc, "og:title")
	if title == "" {
		title = extractTextByTag(doc, "title")
	}
	if title == "" {
		title = extractTextByTag(doc, "h1")
	}
	return cleanText(title)
}

// extractDescription prefers og:description over meta description.
func extractDescription(doc *html.Node) string {
	desc := extractMetaProperty(doc, "og:description")
	if desc == "" {
		desc = extractMetaName(doc, "description")
	}
	return cleanText(desc)
}

// extractIcon returns the href of the first <link rel="icon"> style element.
func extractIcon(doc *html.Node) string {
	return findFirst(doc, func(n *html.Node) string {
		if n.Data != "link" {
			return ""
		}
		var rel, href string
		for _, attr := range n.Attr {
			switch strings.ToLower(attr.Key) {
			case "rel":
				rel = strings.ToLower(attr.Val)
			case "href":
				href = attr.Val
			}
		}
		for _, token := range strings.Fields(rel) {
			if token == "icon" || token == "apple-touch-icon" {
				return href
			}
		}
		return ""
	})
}

// extractMetaName extracts content from meta tag by name attribute.
func extractMetaName(doc *html.Node, name string) string {
	return extractMeta(doc, "name", name)
}

// extractMetaProperty extracts content from meta tag by property attribute.
func extractMetaProperty(doc *html.Node, property string) string {
	return extractMeta(doc, "property", property)
}

func extractMeta(doc *html.Node, key, value string) string {
	return findFirst(doc, func(n *html.Node) string {
		if n.Data != "meta" {
			return ""
		}
		var matched bool
		var content string
		for _, attr := range n.Attr {
			if attr.Key == key && strings.EqualFold(attr.Val, value) {
				matched = true
			}
			if attr.Key == "content" {
				content = strings.TrimSpace(attr.Val)
			}
		}
		if matched {
			return content
		}
		return ""
	})
}

// extractTextByTag extracts the text of the first occurrence of a tag.
func extractTextByTag(doc *html.Node, tag string) string {
	return findFirst(doc, func(n *html.Node) string {
		if n.Data != tag {
			return ""
		}
		var sb strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
			}
		}
		return strings.TrimSpace(sb.String())
	})
}

// findFirst walks element nodes depth-first and returns the first non-empty
// value produced by match.
func findFirst(doc *html.Node, match func(*html.Node) string) string {
	var found string
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if v := match(n); v != "" {
				found = v
				return
			}
		}
		for c := n.FirstChild; c != nil && found == ""; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)
	return found
}

// cleanText normalizes whitespace in text.
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}
