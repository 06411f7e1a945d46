package parser

import "strings"

// FindTextLinks treats plain text as a URL list: one URL per line,
// blank lines and #-comments skipped.
func FindTextLinks(body []byte) []Link {
	var links []Link
	for i, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		links = append(links, Link{URL: line, Line: i + 1, Column: 1})
	}
	return links
}
