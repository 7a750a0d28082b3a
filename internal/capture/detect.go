// Package capture turns raw pasted or dropped input into block content:
// type detection for URLs, image data URIs with thumbnails, and tag lists.
package capture

import (
	"regexp"
	"strings"

	"github.com/kimhsiao/stash/internal/models"
)

var (
	urlPattern      = regexp.MustCompile(`^https?://`)
	imageExtPattern = regexp.MustCompile(`(?i)\.(jpeg|jpg|gif|png|webp)$`)
)

// DetectType classifies content as it is being entered. An http(s) URL
// ending in an image extension is an image, any other http(s) URL is a
// link. Data URIs already typed as images stay images. Anything else keeps
// the current type.
func DetectType(content string, current models.BlockType) models.BlockType {
	if current == models.BlockTypeImage && strings.HasPrefix(content, "data:") {
		return models.BlockTypeImage
	}
	if urlPattern.MatchString(content) {
		if imageExtPattern.MatchString(content) {
			return models.BlockTypeImage
		}
		return models.BlockTypeLink
	}
	return current
}

// ParseTags splits a comma separated tag list, dropping blanks.
func ParseTags(s string) []string {
	tags := []string{}
	for _, part := range strings.Split(s, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
