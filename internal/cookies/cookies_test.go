package cookies

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCookieFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.txt")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromFile(t *testing.T) {
	path := writeCookieFile(t, `# example cookie file

Host: example.com
Path: /hello
Set-cookie: ID="smee"
Set-cookie: spam="egg"

Scheme: https
Host: example.org
Set-cookie: baggage="elitist"; comment="hologram"
`)
	entries, errs, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected block errors: %v", errs)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	first := entries[0]
	if first.URL.String() != "http://example.com/hello" {
		t.Errorf("first URL = %q", first.URL)
	}
	if len(first.Cookies) != 2 {
		t.Fatalf("got %d cookies, want 2", len(first.Cookies))
	}
	if first.Cookies[0].Name != "ID" {
		t.Errorf("cookie name = %q, want ID", first.Cookies[0].Name)
	}
	if first.Cookies[0].Path != "/hello" {
		t.Errorf("cookie path = %q, want /hello", first.Cookies[0].Path)
	}

	second := entries[1]
	if second.URL.Scheme != "https" {
		t.Errorf("second scheme = %q, want https", second.URL.Scheme)
	}
	if second.URL.Path != "/" {
		t.Errorf("second path = %q, want /", second.URL.Path)
	}
	if second.Cookies[0].Name != "baggage" {
		t.Errorf("second cookie name = %q", second.Cookies[0].Name)
	}
}

func TestFromFileMissingHost(t *testing.T) {
	path := writeCookieFile(t, `Path: /
Set-cookie: a=b
`)
	entries, errs, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
	if len(errs) != 1 {
		t.Fatalf("got %d block errors, want 1", len(errs))
	}
}

func TestFromFileBadBlockIsRecoverable(t *testing.T) {
	path := writeCookieFile(t, `Host: good.example.com
Set-cookie: a=b

Path: /no-host-here
Set-cookie: c=d
`)
	entries, errs, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if len(errs) != 1 {
		t.Fatalf("got %d block errors, want 1", len(errs))
	}
}
