// Package strutil provides string and number formatting helpers shared by
// the loggers and checkers.
package strutil

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// Size returns a human readable representation of a byte count.
func Size(b int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b < 0:
		return fmt.Sprintf("%dB", b)
	case b < kb:
		return fmt.Sprintf("%dB", b)
	case b < 10*kb:
		return fmt.Sprintf("%dKB", b/kb)
	case b < mb:
		return fmt.Sprintf("%.2fKB", float64(b)/kb)
	case b < 10*mb:
		return fmt.Sprintf("%.2fMB", float64(b)/mb)
	case b < gb:
		return fmt.Sprintf("%.1fMB", float64(b)/mb)
	case b < 10*gb:
		return fmt.Sprintf("%.2fGB", float64(b)/gb)
	default:
		return fmt.Sprintf("%.1fGB", float64(b)/gb)
	}
}

// Duration formats a duration as mm:ss, or hh:mm:ss for durations of an
// hour or more. Sub-second remainders are rounded up.
func Duration(d time.Duration) string {
	prefix := ""
	if d < 0 {
		d = -d
		prefix = "-"
	}
	secs := int64(math.Ceil(d.Seconds()))
	if secs >= 3600 {
		return fmt.Sprintf("%s%02d:%02d:%02d", prefix, secs/3600, (secs%3600)/60, secs%60)
	}
	return fmt.Sprintf("%s%02d:%02d", prefix, secs/60, secs%60)
}

// DurationLong spells a duration out in words ("2 hours, 5 minutes"). At
// most the two largest units are kept. Durations under a second are given
// as fractional seconds.
func DurationLong(d time.Duration) string {
	prefix := ""
	if d < 0 {
		d = -d
		prefix = "-"
	}
	secs := d.Seconds()
	if secs < 1 {
		return fmt.Sprintf("%s%.02f seconds", prefix, secs)
	}
	cutoffs := []struct {
		div            int64
		single, plural string
	}{
		{60, "%d second", "%d seconds"},
		{60, "%d minute", "%d minutes"},
		{24, "%d hour", "%d hours"},
		{365, "%d day", "%d days"},
		{0, "%d year", "%d years"},
	}
	n := int64(secs)
	var parts []string
	for _, c := range cutoffs {
		if n < 1 {
			break
		}
		var unit int64
		if c.div == 0 {
			n, unit = 0, n
		} else {
			n, unit = n/c.div, n%c.div
		}
		if unit != 0 {
			format := c.single
			if unit != 1 {
				format = c.plural
			}
			parts = append(parts, fmt.Sprintf(format, unit))
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	if len(parts) > 2 {
		parts = parts[:len(parts)-1]
	}
	return prefix + strings.Join(parts, ", ")
}

// Time formats a timestamp as ISO 8601 with a numeric zone offset.
func Time(t time.Time) string {
	return t.Format("2006-01-02 15:04:05-0700")
}

// Wrap reflows text so that no line exceeds width. Paragraphs separated by
// blank lines are preserved as separate lines. Text is returned unchanged
// when width <= 0.
func Wrap(text string, width int) string {
	if width <= 0 || text == "" {
		return text
	}
	var out []string
	for _, para := range paragraphs(text) {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len(line)+1+len(w) > width {
				out = append(out, line)
				line = w
				continue
			}
			line += " " + w
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

var paraSep = regexp.MustCompile(`(?:\r\n|\r|\n)(?:(?:\r\n|\r|\n)\s*)+`)

func paragraphs(text string) []string {
	return paraSep.Split(text, -1)
}

// Indent prefixes each line of text with the given indent string.
func Indent(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}

// Limit cuts s off at length characters, appending three dots when it was
// truncated.
func Limit(s string, length int) string {
	if length <= 0 {
		return ""
	}
	if len(s) <= length {
		return s
	}
	return s[:length] + "..."
}

var controlChars = regexp.MustCompile(`[\x01-\x1F\x7F]`)

// StripControl removes console control characters from text.
func StripControl(text string) string {
	if text == "" {
		return text
	}
	return controlChars.ReplaceAllString(text, "")
}

// Line renders s in backquotes on a single line for log messages.
func Line(s string) string {
	return StripControl("`" + strings.ReplaceAll(s, "\n", "\\n") + "'")
}

// StripURL reduces a raw URL string to its first line with surrounding
// whitespace removed.
func StripURL(s string) string {
	if s == "" {
		return s
	}
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Unquote strips one leading and one trailing single or double quote. With
// matching set, quotes are only stripped when they are the same character
// on both ends.
func Unquote(s string, matching bool) string {
	if len(s) < 2 {
		return s
	}
	isQuote := func(b byte) bool { return b == '"' || b == '\'' }
	if matching {
		if isQuote(s[0]) && s[0] == s[len(s)-1] {
			return s[1 : len(s)-1]
		}
		return s
	}
	if isQuote(s[0]) {
		s = s[1:]
	}
	if len(s) > 0 && isQuote(s[len(s)-1]) {
		s = s[:len(s)-1]
	}
	return s
}

// LineNumber returns the 1-based line number of byte index i in s, or zero
// for a negative index.
func LineNumber(s string, i int) int {
	if i < 0 {
		return 0
	}
	if i > len(s) {
		i = len(s)
	}
	return 1 + strings.Count(s[:i], "\n")
}
