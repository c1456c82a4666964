package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// Text strips every tag from user input and keeps line breaks.
func Text(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(html.UnescapeString(policy.Sanitize(line)))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Flatten is Text on a single line, for search documents.
func Flatten(s string) string {
	s = strings.ReplaceAll(s, "</p>", " ")
	s = strings.ReplaceAll(s, "<br>", " ")
	s = strings.ReplaceAll(s, "</div>", " ")
	return strings.Join(strings.Fields(html.UnescapeString(policy.Sanitize(s))), " ")
}
