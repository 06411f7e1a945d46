package parser

import (
	"regexp"
	"strings"
)

// cssCommentRe removes /* */ comments, including ones spanning lines.
var cssCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)

// FindCSSLinks scans stylesheet content for url() references. Line
// numbers are 1-based, columns the 1-based match offset in the line.
func FindCSSLinks(body []byte) []Link {
	content := cssCommentRe.ReplaceAllStringFunc(string(body), blankNonNewlines)
	var links []Link
	for i, line := range strings.Split(content, "\n") {
		for _, m := range cssURLRe.FindAllStringSubmatchIndex(line, -1) {
			url := stripCSSQuotes(line[m[2]:m[3]])
			links = append(links, Link{URL: url, Line: i + 1, Column: m[0] + 1})
		}
	}
	return links
}

// blankNonNewlines replaces a comment with spaces so that line and
// column numbers of later matches stay correct.
func blankNonNewlines(s string) string {
	out := []byte(s)
	for i := range out {
		if out[i] != '\n' {
			out[i] = ' '
		}
	}
	return string(out)
}
