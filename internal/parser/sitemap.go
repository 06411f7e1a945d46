package parser

import (
	"bytes"

	"github.com/antchfx/htmlquery"
)

// IsSitemap reports whether XML content is a sitemap or sitemap index.
func IsSitemap(body []byte) bool {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return htmlquery.FindOne(doc, "//urlset") != nil ||
		htmlquery.FindOne(doc, "//sitemapindex") != nil
}

// FindSitemapLinks extracts the loc entries of a sitemap or sitemap
// index. Non-sitemap XML yields no links.
func FindSitemapLinks(body []byte) ([]Link, error) {
	doc, err := htmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	name := "URL from sitemap"
	if htmlquery.FindOne(doc, "//sitemapindex") != nil {
		name = "Sitemap from sitemap index"
	} else if htmlquery.FindOne(doc, "//urlset") == nil {
		return nil, nil
	}
	var links []Link
	for _, node := range htmlquery.Find(doc, "//loc") {
		url := htmlquery.InnerText(node)
		if url != "" {
			links = append(links, Link{URL: url, Name: name})
		}
	}
	return links, nil
}
