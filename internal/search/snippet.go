package search

import (
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Snippet cuts a window of roughly maxLen runes out of content, centered on
// the first occurrence of any search keyword. Rune-based so multibyte text
// (the index is largely Thai) never gets cut mid-character. When no keyword
// matches, the snippet is simply the head of the content.
func Snippet(content, query string, maxLen int) string {
	content = strings.TrimSpace(whitespaceRe.ReplaceAllString(content, " "))
	if content == "" {
		return ""
	}

	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}

	pos := firstMatch(content, query)

	// Center the window on the match.
	start := pos - maxLen/2
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end > len(runes) {
		end = len(runes)
		start = end - maxLen
		if start < 0 {
			start = 0
		}
	}

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet = snippet + "..."
	}
	return snippet
}

// firstMatch returns the rune offset of the earliest keyword occurrence, or 0
// when nothing matches. Keywords shorter than two runes are ignored, they
// match too noisily.
func firstMatch(content, query string) int {
	lower := strings.ToLower(content)
	best := -1
	for _, kw := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(kw)) < 2 {
			continue
		}
		idx := strings.Index(lower, kw)
		if idx < 0 {
			continue
		}
		if best == -1 || idx < best {
			best = idx
		}
	}
	if best < 0 {
		return 0
	}
	// Byte offset to rune offset.
	return len([]rune(lower[:best]))
}
