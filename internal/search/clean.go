package search

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var markdownLink = regexp.MustCompile(`\[(.*?)\]\((.*?)\)`)

// StripLinks rewrites inline markdown links "[text](url)" to "text"
func StripLinks(text string) string {
	return markdownLink.ReplaceAllString(text, "$1")
}

// SiteFromURL returns the host of rawURL, or "" when it has none
func SiteFromURL(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		return ""
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// snippet merges content and description the way providers split them and
// removes link markup.
func snippet(doc Document) string {
	text := strings.TrimSpace(doc.Content + "\n" + doc.Description)
	return StripLinks(text)
}

func textLen(s string) int {
	return utf8.RuneCountInString(s)
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if textLen(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
