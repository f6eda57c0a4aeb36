package adapter

import (
	"html"
	"strings"
)

// normalizeText unescapes HTML entities some feeds double-encode and
// collapses runs of spaces while keeping line breaks.
func normalizeText(content string) string {
	unescaped := html.UnescapeString(content)
	lines := strings.Split(strings.ReplaceAll(unescaped, "\r\n", "\n"), "\n")

	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
