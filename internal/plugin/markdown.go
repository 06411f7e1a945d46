package plugin

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/parser"
	"github.com/linkchecker/linkchecker/internal/strutil"
	"github.com/linkchecker/linkchecker/internal/urlutil"
)

// defaultMarkdownFilenameRe matches the usual Markdown file suffixes.
const defaultMarkdownFilenameRe = `.*\.(markdown|md(own)?|mkdn?)$`

var (
	autolinkRe = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9+.-]*://[^>\s]+)>`)
	refDefRe   = regexp.MustCompile(`(?m)^ {0,3}\[[^\]]+\]:\s*<?(\S+?)>?(?:\s+["'(].*)?$`)
)

// MarkdownCheck extracts links from Markdown documents so they join
// the check like links from HTML pages.
type MarkdownCheck struct {
	filenameRe *regexp.Regexp
}

// NewMarkdownCheck honors the filename_re option for deciding which
// documents count as Markdown.
func NewMarkdownCheck(options map[string]string) *MarkdownCheck {
	pattern := defaultMarkdownFilenameRe
	if raw, ok := options["filename_re"]; ok && raw != "" {
		pattern = raw
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		re = regexp.MustCompile(defaultMarkdownFilenameRe)
	}
	return &MarkdownCheck{filenameRe: re}
}

func (p *MarkdownCheck) Name() string { return "MarkdownCheck" }

func (p *MarkdownCheck) Description() string {
	return "Extract and check links in Markdown files."
}

// CheckContent collects autolinks, inline links and reference
// definitions and appends them to the URL's header links so the
// crawler follows them.
func (p *MarkdownCheck) CheckContent(ctx context.Context, u *checker.URL) {
	name := path.Base(urlutil.Split(u.URL).Path)
	if !p.filenameRe.MatchString(name) {
		return
	}
	text := string(u.Content)
	u.HeaderLinks = append(u.HeaderLinks, extractMarkdownLinks(text)...)
}

func extractMarkdownLinks(text string) []parser.Link {
	var links []parser.Link
	add := func(target string, offset int) {
		target = strings.TrimSpace(target)
		if target == "" || strings.HasPrefix(target, "#") {
			return
		}
		links = append(links, parser.Link{
			URL:  target,
			Name: "Markdown link",
			Line: strutil.LineNumber(text, offset),
		})
	}
	for _, m := range autolinkRe.FindAllStringSubmatchIndex(text, -1) {
		add(text[m[2]:m[3]], m[0])
	}
	for _, m := range refDefRe.FindAllStringSubmatchIndex(text, -1) {
		add(text[m[2]:m[3]], m[0])
	}
	for _, m := range findInlineLinks(text) {
		add(m.target, m.offset)
	}
	return links
}

type inlineLink struct {
	target string
	offset int
}

// findInlineLinks scans for [text](target) with balanced brackets in
// the link text.
func findInlineLinks(text string) []inlineLink {
	var links []inlineLink
	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		depth := 1
		j := i + 1
		for ; j < len(text) && depth > 0; j++ {
			switch text[j] {
			case '[':
				depth++
			case ']':
				depth--
			}
		}
		if depth != 0 || j >= len(text) || text[j] != '(' {
			continue
		}
		end := strings.IndexByte(text[j:], ')')
		if end < 0 {
			continue
		}
		target := text[j+1 : j+end]
		// Drop an optional title after the target.
		if space := strings.IndexAny(target, " \t"); space >= 0 {
			target = target[:space]
		}
		links = append(links, inlineLink{target: target, offset: i})
		i = j + end
	}
	return links
}
