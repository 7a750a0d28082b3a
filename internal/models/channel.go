// Package models provides data model definitions for Stash.
package models

import (
	"regexp"
	"strings"
	"time"
)

// GeneralVertical is the display label for channels without a vertical.
const GeneralVertical = "General"

var whitespaceRun = regexp.MustCompile(`\s+`)

// Channel represents a named bucket of blocks.
type Channel struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Slug        string  `json:"slug"`
	Vertical    *string `json:"vertical,omitempty"`
	CreatedAt   int64   `json:"createdAt"` // Unix milliseconds
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (c *Channel) CreatedAtTime() time.Time {
	return time.UnixMilli(c.CreatedAt)
}

// HasVertical reports whether the channel belongs to the named vertical.
func (c *Channel) HasVertical(name string) bool {
	return c.Vertical != nil && *c.Vertical == name
}

// VerticalName returns the vertical, or "" when ungrouped.
func (c *Channel) VerticalName() string {
	return Deref(c.Vertical)
}

// SetTitle updates the title and recomputes the slug.
func (c *Channel) SetTitle(title string) {
	c.Title = title
	c.Slug = Slugify(title)
}

// Clone returns a deep copy of the channel.
func (c Channel) Clone() Channel {
	out := c
	out.Description = cloneString(c.Description)
	out.Vertical = cloneString(c.Vertical)
	return out
}

// Slugify lowercases a title and replaces whitespace runs with a single hyphen.
func Slugify(title string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(title), "-")
}

// NormalizeVertical maps user input to a stored vertical value.
// Blank input and the General label both mean "ungrouped" and yield nil.
func NormalizeVertical(v *string) *string {
	if v == nil {
		return nil
	}
	name := strings.TrimSpace(*v)
	if name == "" || name == GeneralVertical {
		return nil
	}
	return &name
}
