package provider

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML returns the text content of s with whitespace collapsed.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapseSpaces(s)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseSpaces(s)
	}

	return collapseSpaces(doc.Text())
}

// Truncate cuts s to at most limit runes, appending an ellipsis when
// something was dropped. A non-positive limit keeps s as is.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return strings.TrimSpace(string(runes[:limit])) + "..."
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
