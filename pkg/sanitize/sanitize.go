// Package sanitize turns post markup into the plain text the Markov model
// learns from.
package sanitize

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	// lineBreakRegex matches markup that separates lines or paragraphs.
	lineBreakRegex = regexp.MustCompile(`(?i)<br\s*/?>|</p>\s*<p[^>]*>|</p>`)
	urlRegex       = regexp.MustCompile(`(?i)\bhttps?://\S+`)
	spaceRegex     = regexp.MustCompile(`[ \t\x{00a0}]+`)
	blankLineRegex = regexp.MustCompile(`\n\s*\n+`)
)

// Sanitizer strips markup from post content. It is safe for concurrent use.
type Sanitizer struct {
	policy    *bluemonday.Policy
	keepLinks bool
}

// Option Is a function that configures a Sanitizer.
type Option func(*Sanitizer)

// WithLinks keeps http(s) URLs in the output.
// Default: links are removed
func WithLinks(keep bool) Option {
	return func(s *Sanitizer) {
		s.keepLinks = keep
	}
}

// New creates a Sanitizer with default settings, which can be overridden by
// providing one or more Option functions.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{
		policy: bluemonday.StrictPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Text returns the plain text of content: line-breaking tags become
// newlines, every other tag is dropped, entities are decoded, and the result
// is NFC-normalized with runs of spaces collapsed.
func (s *Sanitizer) Text(content string) string {
	text := lineBreakRegex.ReplaceAllString(content, "\n")
	text = s.policy.Sanitize(text)
	text = html.UnescapeString(text)
	text = norm.NFC.String(text)
	if !s.keepLinks {
		text = urlRegex.ReplaceAllString(text, "")
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRegex.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLineRegex.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// Text sanitizes content with the default settings.
func Text(content string) string {
	return defaultSanitizer.Text(content)
}

var defaultSanitizer = New()
