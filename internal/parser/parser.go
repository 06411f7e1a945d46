// Package parser extracts links from fetched content. HTML is walked
// with the x/net/html tokenizer, CSS and plain text with per-line
// scanners, XML sitemaps with XPath and Flash files with a byte regex.
package parser

import (
	"bytes"
	"regexp"
	"strings"
)

// Link is one extracted reference with its position in the source
// document. URL is the raw attribute value, not yet resolved or
// quoted. Base is a per-link base override (codebase attributes),
// empty for most links.
type Link struct {
	URL    string
	Name   string
	Base   string
	Line   int
	Column int
}

// ContentMimetypes maps MIME types to the parser handling them.
// Types missing from the map are not parsed for links.
var ContentMimetypes = map[string]string{
	"text/html":                     "html",
	"application/xhtml+xml":         "html",
	"text/css":                      "css",
	"text/plain":                    "text",
	"application/xml":               "xml",
	"text/xml":                      "xml",
	"application/x-shockwave-flash": "swf",
}

// ParseableMimetype reports whether content of the given MIME type can
// be parsed for links.
func ParseableMimetype(mime string) bool {
	_, ok := ContentMimetypes[strings.ToLower(mime)]
	return ok
}

// Find dispatches on the MIME type and returns the links found in
// body. HTML callers wanting anchors or the base reference should use
// ParseHTML directly. XML content yields links only when it is a
// sitemap or sitemap index.
func Find(mime string, body []byte) ([]Link, error) {
	switch ContentMimetypes[strings.ToLower(mime)] {
	case "html":
		res, err := ParseHTML(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		return res.Links, nil
	case "css":
		return FindCSSLinks(body), nil
	case "text":
		return FindTextLinks(body), nil
	case "xml":
		return FindSitemapLinks(body)
	case "swf":
		return FindSWFLinks(body), nil
	}
	return nil, nil
}

// swfURLRe matches HTTP URLs embedded in Flash bytecode.
var swfURLRe = regexp.MustCompile(`https?://[^"\s]+`)

// FindSWFLinks scans Flash content for embedded HTTP URLs.
func FindSWFLinks(body []byte) []Link {
	var links []Link
	for _, m := range swfURLRe.FindAll(body, -1) {
		links = append(links, Link{URL: string(m)})
	}
	return links
}
