package checker

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linkchecker/linkchecker/internal/config"
)

type stubAggregate struct {
	cfg          *config.Config
	robotsDenied bool
	maxRated     []string
	bytes        int64
	preConnect   func(u *URL) bool
}

func (s *stubAggregate) Config() *config.Config { return s.cfg }

func (s *stubAggregate) RobotsAllowed(ctx context.Context, u *URL) bool {
	return !s.robotsDenied
}

func (s *stubAggregate) WaitForHost(ctx context.Context, host string) error { return nil }

func (s *stubAggregate) SetMaxRated(host string) { s.maxRated = append(s.maxRated, host) }

func (s *stubAggregate) AddDownloadedBytes(n int64) { s.bytes += n }

func (s *stubAggregate) ClassifyExtern(rawurl string) (bool, bool) { return false, false }

func (s *stubAggregate) RunPreConnectPlugins(ctx context.Context, u *URL) bool {
	if s.preConnect != nil {
		return s.preConnect(u)
	}
	return true
}

func (s *stubAggregate) RunConnectionPlugins(ctx context.Context, u *URL) {}

func (s *stubAggregate) RunContentPlugins(ctx context.Context, u *URL) {}

func newTestChecker(t *testing.T) (*Checker, *stubAggregate) {
	t.Helper()
	cfg := config.Default()
	agg := &stubAggregate{cfg: cfg}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := NewSession(cfg, nil, logger)
	return New(agg, session, logger), agg
}

func buildURL(t *testing.T, rawurl string) *URL {
	t.Helper()
	u := NewURL(rawurl, "", "", 0)
	if !u.Build(BuildConfig{}) {
		t.Fatalf("Build(%q) failed: %s", rawurl, u.Result)
	}
	return u
}

func TestBuildResolvesAgainstParent(t *testing.T) {
	u := NewURL("page.html", "http://example.com/dir/", "", 1)
	if !u.Build(BuildConfig{}) {
		t.Fatalf("Build failed: %s", u.Result)
	}
	if u.URL != "http://example.com/dir/page.html" {
		t.Errorf("URL = %q", u.URL)
	}
	if u.Host != "example.com" || u.Port != 80 {
		t.Errorf("host/port = %q/%d", u.Host, u.Port)
	}
}

func TestBuildBaseRefWins(t *testing.T) {
	u := NewURL("x.html", "http://example.com/a/", "http://other.org/b/", 1)
	if !u.Build(BuildConfig{}) {
		t.Fatal(u.Result)
	}
	if u.URL != "http://other.org/b/x.html" {
		t.Errorf("URL = %q", u.URL)
	}
}

func TestBuildWhitespaceWarning(t *testing.T) {
	u := NewURL("  http://example.com/  ", "", "", 0)
	if !u.Build(BuildConfig{}) {
		t.Fatal(u.Result)
	}
	if len(u.Warnings) != 1 || u.Warnings[0].Tag != WarnURLWhitespace {
		t.Errorf("warnings = %+v", u.Warnings)
	}
}

func TestBuildEmptyURL(t *testing.T) {
	u := NewURL("", "", "", 0)
	if u.Build(BuildConfig{}) {
		t.Fatal("empty URL should fail")
	}
	if u.Result != "URL is empty" {
		t.Errorf("result = %q", u.Result)
	}
	u = NewURL("   ", "", "", 0)
	if u.Build(BuildConfig{}) {
		t.Fatal("whitespace URL should fail")
	}
	if u.Result != "URL is empty, skipping" {
		t.Errorf("result = %q", u.Result)
	}
}

func TestBuildTooLongWarning(t *testing.T) {
	u := NewURL("http://example.com/"+strings.Repeat("a", 300), "", "", 0)
	if !u.Build(BuildConfig{}) {
		t.Fatal(u.Result)
	}
	found := false
	for _, w := range u.Warnings {
		if w.Tag == WarnURLTooLong {
			found = true
		}
	}
	if !found {
		t.Errorf("missing too-long warning: %+v", u.Warnings)
	}
}

func TestBuildAnchorAndCacheURL(t *testing.T) {
	u := NewURL("http://example.com/page#section", "", "", 0)
	if !u.Build(BuildConfig{}) {
		t.Fatal(u.Result)
	}
	if u.Anchor != "section" {
		t.Errorf("anchor = %q", u.Anchor)
	}
	if u.CacheURL != "http://example.com/page" {
		t.Errorf("cache url = %q", u.CacheURL)
	}
	u = NewURL("http://example.com/page#section", "", "", 0)
	if !u.Build(BuildConfig{AnchorKeys: true}) {
		t.Fatal(u.Result)
	}
	if u.CacheURL != "http://example.com/page#section" {
		t.Errorf("anchored cache url = %q", u.CacheURL)
	}
}

func TestWarningDedup(t *testing.T) {
	u := NewURL("http://example.com/", "", "", 0)
	u.AddWarning("tag", "same message")
	u.AddWarning("tag", "same message")
	u.AddWarning("tag", "other message")
	if len(u.Warnings) != 2 {
		t.Errorf("warnings = %+v", u.Warnings)
	}
}

func TestAllowsRecursion(t *testing.T) {
	u := buildURL(t, "http://example.com/")
	if !u.AllowsRecursion(-1) {
		t.Error("negative max level should be unbounded")
	}
	u.RecursionLevel = 5
	if u.AllowsRecursion(5) {
		t.Error("level at limit should not recurse")
	}
	u.RecursionLevel = 0
	u.Extern = true
	if u.AllowsRecursion(-1) {
		t.Error("extern URLs should not recurse")
	}
}

func TestCheckHTTPStatuses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, "<html><body>ok</body></html>")
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/limited", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c, _ := newTestChecker(t)

	tests := []struct {
		path       string
		valid      bool
		result     string
		warningTag string
	}{
		{"/ok", true, "200 OK", ""},
		{"/missing", false, "404 Not Found", ""},
		{"/limited", true, "429 Too Many Requests", WarnHTTPRateLimited},
		{"/empty", true, "204 No Content", WarnHTTPEmptyContent},
	}
	for _, tt := range tests {
		u := buildURL(t, srv.URL+tt.path)
		c.Check(context.Background(), u)
		if u.Valid != tt.valid {
			t.Errorf("%s: valid = %v, want %v (%s)", tt.path, u.Valid, tt.valid, u.Result)
		}
		if u.Result != tt.result {
			t.Errorf("%s: result = %q, want %q", tt.path, u.Result, tt.result)
		}
		if tt.warningTag != "" {
			found := false
			for _, w := range u.Warnings {
				if w.Tag == tt.warningTag {
					found = true
				}
			}
			if !found {
				t.Errorf("%s: missing warning %s: %+v", tt.path, tt.warningTag, u.Warnings)
			}
		}
	}
}

func TestCheckHTTPRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/target", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/target", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "arrived")
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/cross", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "ftp://example.com/file", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c, _ := newTestChecker(t)

	u := buildURL(t, srv.URL+"/start")
	c.Check(context.Background(), u)
	if !u.Valid || u.Result != "200 OK" {
		t.Errorf("redirect: valid=%v result=%q", u.Valid, u.Result)
	}
	if u.RealURL != srv.URL+"/target" {
		t.Errorf("real url = %q", u.RealURL)
	}
	if len(u.Aliases) != 1 || u.Aliases[0] != srv.URL+"/start" {
		t.Errorf("aliases = %v", u.Aliases)
	}

	u = buildURL(t, srv.URL+"/loop")
	c.Check(context.Background(), u)
	if u.Valid || u.Result != "recursive redirection" {
		t.Errorf("loop: valid=%v result=%q", u.Valid, u.Result)
	}

	u = buildURL(t, srv.URL+"/cross")
	c.Check(context.Background(), u)
	if u.Valid {
		t.Errorf("cross-scheme redirect should be invalid, got %q", u.Result)
	}
}

func TestCheckHTTPRobotsDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("content should not be fetched when robots deny")
	}))
	defer srv.Close()
	c, agg := newTestChecker(t)
	agg.robotsDenied = true

	u := buildURL(t, srv.URL+"/secret")
	c.Check(context.Background(), u)
	if !u.Valid || u.Result != "syntax OK" {
		t.Errorf("valid=%v result=%q", u.Valid, u.Result)
	}
	if len(u.Info) != 1 || u.Info[0] != "Access denied by robots.txt, checked only syntax." {
		t.Errorf("info = %v", u.Info)
	}
}

func TestCheckHTTPMaxRated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("LinkChecker", "1")
	}))
	defer srv.Close()
	c, agg := newTestChecker(t)

	u := buildURL(t, srv.URL+"/")
	c.Check(context.Background(), u)
	if len(agg.maxRated) != 1 {
		t.Errorf("maxRated = %v", agg.maxRated)
	}
}

func TestChildrenFromHTML(t *testing.T) {
	c, _ := newTestChecker(t)
	u := buildURL(t, "http://example.com/")
	u.ContentType = "text/html"
	u.Content = []byte(`<html><body><a href="a.html">A</a><img src="b.png"></body></html>`)
	children := c.Children(u)
	if len(children) != 2 {
		t.Fatalf("children = %d", len(children))
	}
	if children[0].OrigURL != "a.html" || children[0].ParentURL != "http://example.com/" {
		t.Errorf("child = %+v", children[0])
	}
	if children[0].RecursionLevel != 1 {
		t.Errorf("recursion level = %d", children[0].RecursionLevel)
	}
}

func TestChildrenParseSizeCap(t *testing.T) {
	c, agg := newTestChecker(t)
	u := buildURL(t, "http://example.com/")
	u.ContentType = "text/html"
	u.Content = []byte(`<html><body><a href="a.html">A</a></body></html>`)

	agg.cfg.Checking.MaxFileSizeParse = int64(len(u.Content)) - 1
	if children := c.Children(u); children != nil {
		t.Errorf("oversized content was parsed: %d children", len(children))
	}

	agg.cfg.Checking.MaxFileSizeParse = int64(len(u.Content))
	if children := c.Children(u); len(children) != 1 {
		t.Errorf("content at the limit gave %d children, want 1", len(children))
	}
}

func TestChildrenMetaRobotsNoFollow(t *testing.T) {
	c, _ := newTestChecker(t)
	u := buildURL(t, "http://example.com/")
	u.ContentType = "text/html"
	u.Content = []byte(`<html><head><meta name="robots" content="NOFOLLOW"></head>
<body><a href="a.html">A</a></body></html>`)
	children := c.Children(u)
	if children != nil {
		t.Errorf("children = %v", children)
	}
	if !u.NoFollow {
		t.Error("NoFollow should be set")
	}
}

func TestCheckFile(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "page.html")
	if err := os.WriteFile(page, []byte("<html><body><a href=\"other.html\">x</a></body></html>"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, _ := newTestChecker(t)

	u := buildURL(t, "file://"+page)
	c.Check(context.Background(), u)
	if !u.Valid {
		t.Errorf("file check failed: %q", u.Result)
	}
	if u.ContentType != "text/html" {
		t.Errorf("content type = %q", u.ContentType)
	}
	if len(c.Children(u)) != 1 {
		t.Error("file content should yield children")
	}

	u = buildURL(t, "file://"+filepath.Join(dir, "missing.html"))
	c.Check(context.Background(), u)
	if u.Valid {
		t.Error("missing file should be invalid")
	}
}

func TestCheckFileDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o700); err != nil {
		t.Fatal(err)
	}
	c, _ := newTestChecker(t)

	u := buildURL(t, "file://"+dir)
	c.Check(context.Background(), u)
	if !u.Valid {
		t.Fatalf("directory check failed: %q", u.Result)
	}
	content := string(u.Content)
	if !strings.Contains(content, `"a.txt"`) || !strings.Contains(content, `"sub/"`) {
		t.Errorf("listing = %q", content)
	}
	found := false
	for _, w := range u.Warnings {
		if w.Tag == WarnFileMissingSlash {
			found = true
		}
	}
	if !found {
		t.Errorf("missing trailing-slash warning: %+v", u.Warnings)
	}
}

func TestCheckFileInsecureParent(t *testing.T) {
	c, _ := newTestChecker(t)
	u := NewURL("file:///etc/passwd", "http://example.com/", "", 1)
	if !u.Build(BuildConfig{}) {
		t.Fatal(u.Result)
	}
	c.Check(context.Background(), u)
	if u.Valid {
		t.Error("insecure file link should be invalid")
	}
}

func TestCheckMailSyntax(t *testing.T) {
	tests := []struct {
		addr string
		ok   bool
	}{
		{"user@example.com", true},
		{"first.last@example.com", true},
		{"user@[127.0.0.1]", true},
		{"noat.example.com", false},
		{"@example.com", false},
		{"user@", false},
		{".user@example.com", false},
		{"user.@example.com", false},
		{"us..er@example.com", false},
		{strings.Repeat("a", 65) + "@example.com", false},
		{"user@[not-an-ip]", false},
		{"user@bad_domain.com", false},
		{`us"er@example.com`, false},
	}
	for _, tt := range tests {
		msg := checkMailSyntax(tt.addr)
		if (msg == "") != tt.ok {
			t.Errorf("checkMailSyntax(%q) = %q, ok=%v", tt.addr, msg, tt.ok)
		}
	}
}

func TestCheckMailtoNoAddress(t *testing.T) {
	c, _ := newTestChecker(t)
	u := buildURL(t, "mailto:?subject=hello")
	c.Check(context.Background(), u)
	if !u.Valid {
		t.Errorf("subject-only mailto should be valid: %q", u.Result)
	}
	u = buildURL(t, "mailto:")
	c.Check(context.Background(), u)
	if u.Valid {
		t.Error("empty mailto should be invalid")
	}
}

func TestBuildMailtoCacheKey(t *testing.T) {
	// Address order and duplicates must not change the cache key, or
	// equivalent mailto links would be checked more than once.
	want := "mailto:a@example.com,b@example.com"
	for _, rawurl := range []string{
		"mailto:a@example.com,b@example.com",
		"mailto:b@example.com,a@example.com",
		"mailto:a@example.com,b@example.com,a@example.com",
		"mailto:a@example.com?cc=b@example.com",
	} {
		u := buildURL(t, rawurl)
		if u.CacheURL != want {
			t.Errorf("CacheURL(%q) = %q, want %q", rawurl, u.CacheURL, want)
		}
	}
}

func TestCheckCancelledBeforeConnect(t *testing.T) {
	c, agg := newTestChecker(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("connection made for a cancelled check")
	}))
	defer srv.Close()
	agg.preConnect = func(u *URL) bool {
		u.SetResult("ignored", true)
		return false
	}
	u := buildURL(t, srv.URL+"/")
	c.Check(context.Background(), u)
	if !u.Valid || u.Result != "ignored" {
		t.Errorf("cancelled check got result %q, valid %v", u.Result, u.Valid)
	}
}

func TestCheckItmsServices(t *testing.T) {
	c, _ := newTestChecker(t)
	u := buildURL(t, "itms-services:?action=download-manifest&url=https://example.com/app.plist")
	c.Check(context.Background(), u)
	if !u.Valid || u.Result != "syntax OK" {
		t.Errorf("valid=%v result=%q", u.Valid, u.Result)
	}
	if len(u.HeaderLinks) != 1 || u.HeaderLinks[0].URL != "https://example.com/app.plist" {
		t.Errorf("header links = %+v", u.HeaderLinks)
	}

	u = buildURL(t, "itms-services:?action=download-manifest")
	c.Check(context.Background(), u)
	if u.Valid || u.Result != "Missing url CGI parameter" {
		t.Errorf("valid=%v result=%q", u.Valid, u.Result)
	}
}

func TestCheckUnknownScheme(t *testing.T) {
	c, _ := newTestChecker(t)
	for _, raw := range []string{"javascript:void(0)", "tel:+1-555-0100", "skype:someone"} {
		u := buildURL(t, raw)
		c.Check(context.Background(), u)
		if !u.Valid || u.Result != "ignored" {
			t.Errorf("%s: valid=%v result=%q", raw, u.Valid, u.Result)
		}
		if u.State != StateIgnored {
			t.Errorf("%s: state = %v", raw, u.State)
		}
	}
	u := buildURL(t, "bogusscheme:whatever")
	c.Check(context.Background(), u)
	if u.Valid {
		t.Errorf("unknown scheme should be invalid: %q", u.Result)
	}
}

func TestCheckNNTPWithoutServer(t *testing.T) {
	c, _ := newTestChecker(t)
	u := buildURL(t, "news:comp.lang.misc")
	c.Check(context.Background(), u)
	if !u.Valid {
		t.Errorf("news without server should be valid: %q", u.Result)
	}
	if len(u.Warnings) != 1 || u.Warnings[0].Tag != WarnNNTPNoServer {
		t.Errorf("warnings = %+v", u.Warnings)
	}
}
