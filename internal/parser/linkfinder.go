package parser

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// linkTags maps element names to the attributes that carry URLs. The
// "*" entry applies to every element.
var linkTags = map[string][]string{
	"a":          {"href"},
	"applet":     {"archive", "src"},
	"area":       {"href"},
	"audio":      {"src"},
	"bgsound":    {"src"},
	"blockquote": {"cite"},
	"body":       {"background"},
	"button":     {"formaction"},
	"del":        {"cite"},
	"embed":      {"pluginspage", "src"},
	"form":       {"action"},
	"frame":      {"src", "longdesc"},
	"head":       {"profile"},
	"html":       {"manifest"},
	"iframe":     {"src", "longdesc"},
	"ilayer":     {"background"},
	"img":        {"src", "lowsrc", "longdesc", "usemap", "srcset"},
	"input":      {"src", "usemap", "formaction"},
	"ins":        {"cite"},
	"isindex":    {"action"},
	"layer":      {"background", "src"},
	"link":       {"href"},
	"meta":       {"content", "href"},
	"object":     {"classid", "data", "archive", "usemap", "codebase"},
	"q":          {"cite"},
	"script":     {"src"},
	"source":     {"src"},
	"table":      {"background"},
	"td":         {"background"},
	"th":         {"background"},
	"tr":         {"background"},
	"track":      {"src"},
	"video":      {"src"},
	"xmp":        {"href"},
	"*":          {"style", "itemtype"},
}

// refreshRe extracts the target of a meta refresh, as in
// <meta http-equiv="refresh" content="5; url=http://example.com/">.
var refreshRe = regexp.MustCompile(`(?i)^\d+;\s*url=(.+)$`)

// cssURLRe matches url() references in stylesheets and style
// attributes. The group keeps surrounding quotes for later stripping.
var cssURLRe = regexp.MustCompile(`url\(\s*('[^']+'|"[^"]+"|[^\)\s]+)\s*\)`)

// HTMLResult holds everything one pass over an HTML document yields.
type HTMLResult struct {
	Links   []Link
	Anchors []string
	BaseRef string
}

// ParseHTML tokenizes HTML from r and collects links, anchor names and
// the document base reference. Positions are 1-based line/column of
// the tag start.
func ParseHTML(r io.Reader) (*HTMLResult, error) {
	f := &htmlFinder{res: &HTMLResult{}, line: 1, col: 1}
	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return nil, err
			}
			break
		}
		tokLine, tokCol := f.line, f.col
		f.advance(z.Raw())
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			f.startTag(z.Token(), tokLine, tokCol)
		case html.EndTagToken:
			name, _ := z.TagName()
			f.endTag(string(name))
		case html.TextToken:
			if f.collecting {
				f.textBuf.WriteString(string(z.Text()))
			}
		}
	}
	f.endTag("a")
	return f.res, nil
}

type htmlFinder struct {
	res        *HTMLResult
	line, col  int
	collecting bool
	linkIndex  int
	linkTitle  string
	textBuf    strings.Builder
}

func (f *htmlFinder) advance(raw []byte) {
	for _, b := range raw {
		if b == '\n' {
			f.line++
			f.col = 1
		} else {
			f.col++
		}
	}
}

func (f *htmlFinder) startTag(tok html.Token, line, col int) {
	attrs := make(map[string]string, len(tok.Attr))
	for _, a := range tok.Attr {
		key := strings.ToLower(a.Key)
		if _, seen := attrs[key]; !seen {
			attrs[key] = a.Val
		}
	}
	tag := tok.Data

	if tag == "base" {
		if f.res.BaseRef == "" {
			f.res.BaseRef = strings.TrimSpace(attrs["href"])
		}
		return
	}

	// Anchor targets: a name attributes and any id attribute.
	if tag == "a" {
		if name := attrs["name"]; name != "" {
			f.res.Anchors = append(f.res.Anchors, name)
		}
	}
	if id := attrs["id"]; id != "" {
		f.res.Anchors = append(f.res.Anchors, id)
	}

	for _, attr := range linkTags[tag] {
		value, ok := attrs[attr]
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		f.emitTagLink(tag, attr, value, attrs, line, col)
	}
	for _, attr := range linkTags["*"] {
		value, ok := attrs[attr]
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		switch attr {
		case "style":
			for _, m := range cssURLRe.FindAllStringSubmatch(value, -1) {
				f.add(Link{URL: stripCSSQuotes(m[1]), Line: line, Column: col})
			}
		case "itemtype":
			f.add(Link{URL: strings.TrimSpace(value), Line: line, Column: col})
		}
	}
}

func (f *htmlFinder) emitTagLink(tag, attr, value string, attrs map[string]string, line, col int) {
	switch {
	case tag == "meta" && attr == "content":
		equiv := strings.ToLower(strings.TrimSpace(attrs["http-equiv"]))
		scheme := strings.ToLower(strings.TrimSpace(attrs["scheme"]))
		if equiv == "refresh" {
			m := refreshRe.FindStringSubmatch(value)
			if m == nil {
				return
			}
			value = strings.TrimSpace(m[1])
		} else if scheme != "dcterms.uri" {
			return
		}
	case tag == "meta" && attr == "href":
		rel := strings.ToLower(strings.TrimSpace(attrs["rel"]))
		if rel != "icon" && rel != "shortcut icon" {
			return
		}
	case tag == "link" && attr == "href":
		rel := strings.ToLower(strings.TrimSpace(attrs["rel"]))
		if rel == "dns-prefetch" || rel == "preconnect" {
			if i := strings.Index(value, ":"); i >= 0 {
				value = value[i+1:]
			}
			value = "dns:" + strings.TrimLeft(value, "/")
		}
	case tag == "form" && attr == "action":
		method := strings.ToLower(strings.TrimSpace(attrs["method"]))
		if method != "" && method != "get" {
			return
		}
	case attr == "archive":
		base := attrs["codebase"]
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				f.add(Link{URL: part, Base: base, Line: line, Column: col})
			}
		}
		return
	case tag == "img" && attr == "srcset":
		for _, cand := range ParseSrcset(value) {
			f.add(Link{URL: cand, Name: linkName(tag, attrs), Line: line, Column: col})
		}
		return
	}

	link := Link{URL: value, Name: linkName(tag, attrs), Line: line, Column: col}
	if tag == "applet" || tag == "object" {
		link.Base = attrs["codebase"]
	}
	f.add(link)

	// Anchor text becomes the link name once the end tag closes it.
	if tag == "a" && attr == "href" {
		f.collecting = true
		f.linkIndex = len(f.res.Links) - 1
		f.linkTitle = attrs["title"]
		f.textBuf.Reset()
	}
}

func (f *htmlFinder) endTag(tag string) {
	if tag != "a" || !f.collecting {
		return
	}
	f.collecting = false
	name := strings.Join(strings.Fields(f.textBuf.String()), " ")
	if name == "" {
		name = f.linkTitle
	}
	f.res.Links[f.linkIndex].Name = name
	f.textBuf.Reset()
}

func (f *htmlFinder) add(link Link) {
	f.res.Links = append(f.res.Links, link)
}

// linkName returns the display name for a link: img alt or title, a
// title until the anchor text is known, nothing for other tags.
func linkName(tag string, attrs map[string]string) string {
	switch tag {
	case "img":
		if alt := attrs["alt"]; alt != "" {
			return alt
		}
		return attrs["title"]
	case "a":
		return attrs["title"]
	}
	return ""
}

// stripCSSQuotes removes one pair of matching quotes around a url()
// argument.
func stripCSSQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
