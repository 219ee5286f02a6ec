// Package sanitize cleans user-supplied text before it is stored or
// broadcast to other clients.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes all HTML tags and attributes.
	StrictPolicy = bluemonday.StrictPolicy()

	// UGCPolicy allows safe user-generated formatting (<p>, <b>, <a>, lists).
	UGCPolicy = bluemonday.UGCPolicy()
)

// Text strips every tag and returns trimmed plain text. Entities escaped by
// the policy are decoded again so "Milk & Eggs" survives unchanged; the
// result is plain text, never markup.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(input)))
}

// HTML sanitizes content that may carry basic formatting, such as list
// descriptions. Scripts, iframes, event handlers and style attributes are
// removed.
func HTML(input string) string {
	return strings.TrimSpace(UGCPolicy.Sanitize(input))
}

// OptionalText applies Text to a non-nil pointer.
func OptionalText(input *string) *string {
	if input == nil {
		return nil
	}
	out := Text(*input)
	return &out
}

// OptionalHTML applies HTML to a non-nil pointer.
func OptionalHTML(input *string) *string {
	if input == nil {
		return nil
	}
	out := HTML(*input)
	return &out
}
