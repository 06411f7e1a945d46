package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Checking.Threads != 10 {
		t.Errorf("Threads = %d, want 10", cfg.Checking.Threads)
	}
	if cfg.Checking.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cfg.Checking.Timeout)
	}
	if cfg.Checking.RecursionLevel != -1 {
		t.Errorf("RecursionLevel = %d, want -1", cfg.Checking.RecursionLevel)
	}
	if !cfg.Checking.RobotsTxt {
		t.Error("RobotsTxt should default to true")
	}
	if !cfg.Output.Warnings {
		t.Error("Warnings should default to true")
	}
	if cfg.Output.Log.Type != "text" {
		t.Errorf("Log.Type = %q, want text", cfg.Output.Log.Type)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "linkcheckerrc")
	content := `[checking]
threads = 4
timeout = 30
recursionlevel = 2
allowedschemes = http,https

[filtering]
ignore = ^mailto:
checkextern = 1

[authentication]
entry = admin:secret ^https://example\.com

[output]
log = csv

[AnchorCheck]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load([]string{path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Checking.Threads != 4 {
		t.Errorf("Threads = %d, want 4", cfg.Checking.Threads)
	}
	if cfg.Checking.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Checking.Timeout)
	}
	if cfg.Checking.RecursionLevel != 2 {
		t.Errorf("RecursionLevel = %d, want 2", cfg.Checking.RecursionLevel)
	}
	if len(cfg.Checking.AllowedSchemes) != 2 || cfg.Checking.AllowedSchemes[0] != "http" {
		t.Errorf("AllowedSchemes = %v, want [http https]", cfg.Checking.AllowedSchemes)
	}
	if !cfg.Filtering.CheckExtern {
		t.Error("CheckExtern should be set")
	}
	if len(cfg.Filtering.IgnoreURLs) != 1 || !cfg.Filtering.IgnoreURLs[0].Match("mailto:x@y.org") {
		t.Errorf("ignore pattern not applied: %v", cfg.Filtering.IgnoreURLs)
	}
	if user, pass := cfg.GetUserPassword("https://example.com/page"); user != "admin" || pass != "secret" {
		t.Errorf("GetUserPassword = %q/%q, want admin/secret", user, pass)
	}
	if user, _ := cfg.GetUserPassword("https://other.org/"); user != "" {
		t.Errorf("GetUserPassword matched unrelated URL: %q", user)
	}
	if cfg.Output.Log.Type != "csv" {
		t.Errorf("Log.Type = %q, want csv", cfg.Output.Log.Type)
	}
	if !cfg.PluginEnabled("AnchorCheck") {
		t.Error("AnchorCheck plugin should be enabled by its section")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"badkey":     "[checking]\nthreds = 4\n",
		"badoutput":  "[output]\nlogfile = out.txt\n",
		"badsection": "[checkers]\nthreads = 4\n",
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load([]string{path}); err == nil {
			t.Errorf("Load(%s) accepted %q", name, content)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load([]string{"/nonexistent/linkcheckerrc"})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLinkPatternNegate(t *testing.T) {
	p, err := NewLinkPattern("!^https://", false)
	if err != nil {
		t.Fatal(err)
	}
	if p.Match("https://example.com/") {
		t.Error("negated pattern should not match https URL")
	}
	if !p.Match("ftp://example.com/") {
		t.Error("negated pattern should match ftp URL")
	}
}

func TestParseLoggerSpec(t *testing.T) {
	spec, err := ParseLoggerSpec("html/utf-8")
	if err != nil {
		t.Fatal(err)
	}
	if spec.Type != "html" || spec.Encoding != "utf-8" {
		t.Errorf("spec = %+v", spec)
	}
	if _, err := ParseLoggerSpec("bogus"); err == nil {
		t.Error("expected error for unknown logger type")
	}
}

func TestAllowedScheme(t *testing.T) {
	cfg := Default()
	if !cfg.AllowedScheme("gopher") {
		t.Error("empty filter should allow any scheme")
	}
	cfg.Checking.AllowedSchemes = []string{"http", "https"}
	if cfg.AllowedScheme("ftp") {
		t.Error("ftp should be rejected")
	}
	if !cfg.AllowedScheme("https") {
		t.Error("https should be allowed")
	}
}
