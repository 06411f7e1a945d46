package plugin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/linkchecker/linkchecker/internal/cache"
	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/parser"
)

// AnchorCheck verifies that the fragment of a checked URL names an
// anchor that actually exists in the HTML document. A missing anchor
// is a warning, the URL itself stays valid.
type AnchorCheck struct {
	anchors *cache.AnchorCache
}

// NewAnchorCheck creates the plugin sharing the given anchor cache, so
// a document parsed once serves all URLs pointing into it.
func NewAnchorCheck(anchors *cache.AnchorCache) *AnchorCheck {
	return &AnchorCheck{anchors: anchors}
}

func (p *AnchorCheck) Name() string { return "AnchorCheck" }

func (p *AnchorCheck) Description() string {
	return "Check that HTML anchors named in URL fragments exist."
}

// CheckContent looks the fragment up in the document's anchor list.
func (p *AnchorCheck) CheckContent(ctx context.Context, u *checker.URL) {
	if u.Anchor == "" || len(u.Content) == 0 {
		return
	}
	if parser.ContentMimetypes[strings.ToLower(u.ContentType)] != "html" {
		return
	}
	names, err := p.documentAnchors(u)
	if err != nil {
		return
	}
	for _, name := range names {
		if name == u.Anchor {
			return
		}
	}
	u.AddWarning(checker.WarnURLAnchorNotFound,
		"Anchor %q not found. Available anchors: %s.", u.Anchor, formatAnchors(names))
}

func (p *AnchorCheck) documentAnchors(u *checker.URL) ([]string, error) {
	// The result cache may key per fragment; the anchor set belongs to
	// the document, so the cache key drops the fragment.
	key, _, _ := strings.Cut(u.CacheURL, "#")
	if p.anchors != nil {
		if cached := p.anchors.Get(key, "anchors"); cached != nil {
			if names, ok := cached.([]string); ok {
				return names, nil
			}
		}
	}
	names, err := checker.Anchors(u.Content)
	if err != nil {
		return nil, err
	}
	if p.anchors != nil {
		p.anchors.Put(key, "anchors", names)
	}
	return names, nil
}

// formatAnchors renders the available anchors for the warning message,
// sorted and quoted, or a dash when the document has none.
func formatAnchors(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	quoted := make([]string, len(sorted))
	for i, name := range sorted {
		quoted[i] = fmt.Sprintf("`%s'", name)
	}
	return strings.Join(quoted, ", ")
}
