package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes all HTML tags and attributes.
	StrictPolicy = bluemonday.StrictPolicy()

	// UGCPolicy keeps basic formatting (<p>, <b>, <em>, links, lists) and drops
	// scripts, iframes, event handlers and style attributes.
	UGCPolicy = bluemonday.UGCPolicy()
)

// Text strips all markup and returns plain text. Entities that bluemonday
// escapes on output are decoded again, so "Tea & Talk" is stored verbatim;
// API responses are JSON-encoded, never rendered as HTML.
// Use for: event titles, locations, organizer and user names.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(input)))
}

// IsPlainText reports whether input has nothing for Text to strip or decode,
// so it can be stored as sent. A lone "<" or ">" is text; "<b>" and "&lt;"
// are not.
func IsPlainText(input string) bool {
	input = strings.TrimSpace(input)
	return Text(input) == input
}

// HTML sanitizes rich text, allowing safe formatting tags.
// Use for: event descriptions.
func HTML(input string) string {
	return strings.TrimSpace(UGCPolicy.Sanitize(input))
}
