package plugin

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/linkchecker/linkchecker/internal/cache"
	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/config"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func htmlURL(content, anchor string) *checker.URL {
	u := checker.NewURL("http://example.com/page.html#"+anchor, "", "", 0)
	u.URL = "http://example.com/page.html"
	u.CacheURL = "http://example.com/page.html"
	u.Anchor = anchor
	u.ContentType = "text/html"
	u.Content = []byte(content)
	return u
}

func TestAnchorCheckFound(t *testing.T) {
	p := NewAnchorCheck(cache.NewAnchorCache(10))
	u := htmlURL(`<html><body><a name="intro">Intro</a></body></html>`, "intro")
	p.CheckContent(context.Background(), u)
	if len(u.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", u.Warnings)
	}
}

func TestAnchorCheckMissing(t *testing.T) {
	p := NewAnchorCheck(cache.NewAnchorCache(10))
	u := htmlURL(`<html><body><a name="zeta"></a><p id="alpha"></p></body></html>`, "missing")
	p.CheckContent(context.Background(), u)
	if len(u.Warnings) != 1 {
		t.Fatalf("want one warning, got %v", u.Warnings)
	}
	w := u.Warnings[0]
	if w.Tag != checker.WarnURLAnchorNotFound {
		t.Errorf("tag = %q", w.Tag)
	}
	want := "Anchor \"missing\" not found. Available anchors: `alpha', `zeta'."
	if w.Msg != want {
		t.Errorf("msg = %q, want %q", w.Msg, want)
	}
}

func TestAnchorCheckNoAnchors(t *testing.T) {
	p := NewAnchorCheck(cache.NewAnchorCache(10))
	u := htmlURL(`<html><body><p>plain</p></body></html>`, "x")
	p.CheckContent(context.Background(), u)
	if len(u.Warnings) != 1 {
		t.Fatalf("want one warning, got %v", u.Warnings)
	}
	if !strings.Contains(u.Warnings[0].Msg, "Available anchors: -.") {
		t.Errorf("msg = %q", u.Warnings[0].Msg)
	}
}

func TestAnchorCheckUsesCache(t *testing.T) {
	anchors := cache.NewAnchorCache(10)
	anchors.Put("http://example.com/page.html", "anchors", []string{"cached"})
	p := NewAnchorCheck(anchors)
	// Content disagrees with the cache entry, the cache wins.
	u := htmlURL(`<html><body></body></html>`, "cached")
	p.CheckContent(context.Background(), u)
	if len(u.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", u.Warnings)
	}
}

type gatePlugin struct {
	allow bool
	seen  int
}

func (p *gatePlugin) Name() string        { return "GateCheck" }
func (p *gatePlugin) Description() string { return "test gate" }

func (p *gatePlugin) CheckPreConnect(ctx context.Context, u *checker.URL) bool {
	p.seen++
	return p.allow
}

func TestManagerRunPreConnect(t *testing.T) {
	first := &gatePlugin{allow: true}
	blocker := &gatePlugin{allow: false}
	after := &gatePlugin{allow: true}
	m := &Manager{logger: discard()}
	m.add(first)
	m.add(blocker)
	m.add(after)

	u := htmlURL("", "")
	if m.RunPreConnect(context.Background(), u) {
		t.Fatal("RunPreConnect did not report the cancel")
	}
	if first.seen != 1 || blocker.seen != 1 {
		t.Errorf("plugins before the cancel ran %d/%d times, want 1/1", first.seen, blocker.seen)
	}
	if after.seen != 0 {
		t.Errorf("plugin after the cancel ran %d times, want 0", after.seen)
	}

	blocker.allow = true
	if !m.RunPreConnect(context.Background(), u) {
		t.Fatal("RunPreConnect cancelled with all plugins allowing")
	}
}

func TestAnchorCheckOneCacheEntryPerDocument(t *testing.T) {
	anchors := cache.NewAnchorCache(10)
	p := NewAnchorCheck(anchors)
	content := `<html><body><a name="alpha"></a></body></html>`
	// Result-cache keys carry the fragment, the anchor cache must not.
	for _, fragment := range []string{"alpha", "beta"} {
		u := htmlURL(content, fragment)
		u.CacheURL += "#" + fragment
		p.CheckContent(context.Background(), u)
	}
	if got := anchors.Len(); got != 1 {
		t.Errorf("anchor cache holds %d keys for one page, want 1", got)
	}
	if anchors.Get("http://example.com/page.html", "anchors") == nil {
		t.Error("anchor set not cached under the fragment-free URL")
	}
}

func TestMarkdownFilename(t *testing.T) {
	p := NewMarkdownCheck(nil)
	for name, want := range map[string]bool{
		"README.md":   true,
		"notes.mkdn":  true,
		"a.markdown":  true,
		"b.mdown":     true,
		"page.html":   false,
		"markdown.go": false,
	} {
		if got := p.filenameRe.MatchString(name); got != want {
			t.Errorf("match(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestMarkdownExtraction(t *testing.T) {
	text := "See <https://example.com/auto> now.\n" +
		"A [link [nested]](https://example.com/inline \"title\") here.\n" +
		"[ref]: https://example.com/refdef\n" +
		"Skip [local](#section) fragments.\n"
	links := extractMarkdownLinks(text)
	got := map[string]int{}
	for _, l := range links {
		got[l.URL] = l.Line
	}
	want := map[string]int{
		"https://example.com/auto":   1,
		"https://example.com/inline": 2,
		"https://example.com/refdef": 3,
	}
	if len(got) != len(want) {
		t.Fatalf("links = %v, want %v", got, want)
	}
	for url, line := range want {
		if got[url] != line {
			t.Errorf("line(%q) = %d, want %d", url, got[url], line)
		}
	}
}

func TestMarkdownCheckAppendsHeaderLinks(t *testing.T) {
	p := NewMarkdownCheck(nil)
	u := checker.NewURL("http://example.com/README.md", "", "", 0)
	u.URL = "http://example.com/README.md"
	u.ContentType = "text/plain"
	u.Content = []byte("[docs](https://example.com/docs)\n")
	p.CheckContent(context.Background(), u)
	if len(u.HeaderLinks) != 1 || u.HeaderLinks[0].URL != "https://example.com/docs" {
		t.Fatalf("header links = %v", u.HeaderLinks)
	}
}

func TestSslCertCheckOptions(t *testing.T) {
	p := NewSslCertCheck(map[string]string{"sslcertwarndays": "30"}, true)
	if p.warnDays != 30 {
		t.Errorf("warnDays = %d, want 30", p.warnDays)
	}
	p = NewSslCertCheck(map[string]string{"sslcertwarndays": "bogus"}, true)
	if p.warnDays != defaultCertWarnDays {
		t.Errorf("warnDays = %d, want default", p.warnDays)
	}
}

func TestSslCertCheckVerifyDisabled(t *testing.T) {
	p := NewSslCertCheck(nil, false)
	u := checker.NewURL("https://example.com/", "", "", 0)
	u.Scheme = "https"
	u.Host = "example.com"
	p.CheckConnection(context.Background(), u)
	if len(u.Warnings) != 1 || u.Warnings[0].Tag != checker.WarnSSLVerifyDisabled {
		t.Fatalf("warnings = %v", u.Warnings)
	}
	// Second URL on the same host is not inspected again.
	u2 := checker.NewURL("https://example.com/other", "", "", 0)
	u2.Scheme = "https"
	u2.Host = "example.com"
	p.CheckConnection(context.Background(), u2)
	if len(u2.Warnings) != 0 {
		t.Fatalf("warnings = %v", u2.Warnings)
	}
}

func TestManagerEnablesConfiguredPlugins(t *testing.T) {
	cfg := config.Default()
	cfg.Plugins.Enabled = []string{"AnchorCheck", "SslCertCheck"}
	m := NewManager(cfg, cache.NewAnchorCache(10), discard())
	if len(m.content) != 1 || len(m.connection) != 1 {
		t.Fatalf("content = %d, connection = %d", len(m.content), len(m.connection))
	}
}

func TestAvailable(t *testing.T) {
	infos := Available()
	if len(infos) != 4 {
		t.Fatalf("got %d plugins", len(infos))
	}
	names := map[string]bool{}
	for _, info := range infos {
		names[info.Name] = true
		if info.Description == "" {
			t.Errorf("plugin %s has no description", info.Name)
		}
	}
	for _, want := range []string{"AnchorCheck", "SslCertCheck", "CssSyntaxCheck", "MarkdownCheck"} {
		if !names[want] {
			t.Errorf("missing plugin %s", want)
		}
	}
}
