package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/config"
	"github.com/linkchecker/linkchecker/internal/engine"
)

func checkedURL(rawurl, result string, valid bool) *checker.URL {
	u := checker.NewURL(rawurl, "", "", 0)
	u.URL = rawurl
	u.RealURL = rawurl
	u.CacheURL = rawurl
	u.Result = result
	u.Valid = valid
	u.CheckTime = 123 * time.Millisecond
	u.Size = 42
	return u
}

func buffered(t *testing.T, kind string, cfg *config.Config) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(config.LoggerSpec{Type: kind}, cfg, &buf)
	if err != nil {
		t.Fatal(err)
	}
	return l, &buf
}

func stats() engine.Stats {
	return engine.Stats{
		LinksChecked:    3,
		URLsChecked:     2,
		Warnings:        1,
		Errors:          1,
		DownloadedBytes: 1024,
		Duration:        2 * time.Second,
	}
}

func TestFanoutFiltersValidURLs(t *testing.T) {
	cfg := config.Default()
	text, buf := buffered(t, "text", cfg)
	f := NewFanout(cfg, text)
	f.Start()
	f.Log(checkedURL("http://example.com/ok", "200 OK", true))
	f.Log(checkedURL("http://example.com/bad", "404 Not Found", false))
	f.End(stats())
	out := buf.String()
	if strings.Contains(out, "example.com/ok") {
		t.Error("valid URL logged without verbose")
	}
	if !strings.Contains(out, "example.com/bad") {
		t.Error("invalid URL not logged")
	}
	if f.ErrorsLogged() != 1 {
		t.Errorf("errors logged = %d", f.ErrorsLogged())
	}
}

func TestFanoutVerbose(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Verbose = true
	text, buf := buffered(t, "text", cfg)
	f := NewFanout(cfg, text)
	f.Start()
	f.Log(checkedURL("http://example.com/ok", "200 OK", true))
	f.End(stats())
	if !strings.Contains(buf.String(), "example.com/ok") {
		t.Error("valid URL not logged in verbose mode")
	}
}

func TestFanoutNoWarnings(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Warnings = false
	text, buf := buffered(t, "text", cfg)
	f := NewFanout(cfg, text)
	f.Start()
	u := checkedURL("http://example.com/warned", "200 OK", true)
	u.AddWarning("test-tag", "something odd")
	f.Log(u)
	f.End(stats())
	if strings.Contains(buf.String(), "something odd") {
		t.Error("warning logged with warnings disabled")
	}
	if f.WarningsLogged() != 0 {
		t.Errorf("warnings logged = %d", f.WarningsLogged())
	}
}

func TestTextLoggerFormat(t *testing.T) {
	l, buf := buffered(t, "text", config.Default())
	l.Start()
	u := checkedURL("http://example.com/page", "404 Not Found", false)
	u.ParentURL = "http://example.com/"
	u.Line = 3
	u.Column = 7
	u.Name = "broken link"
	u.AddWarning("test-tag", "watch out")
	l.Log(u)
	l.End(stats())
	out := buf.String()
	for _, want := range []string{
		"Start checking at ",
		"URL        `http://example.com/page'",
		"Name       `broken link'",
		"Parent URL http://example.com/, line 3, col 7",
		"Warning    [test-tag] watch out",
		"Result     Error: 404 Not Found",
		"That's it. 3 links in 2 URLs checked. 1 warnings found. 1 errors found.",
		"Stopped checking at ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
}

func TestTextLoggerParts(t *testing.T) {
	cfg := config.Default()
	cfg.Loggers["text"] = map[string]string{"parts": "url,result"}
	l, buf := buffered(t, "text", cfg)
	l.Start()
	u := checkedURL("http://example.com/x", "200 OK", true)
	u.Name = "hidden name"
	l.Log(u)
	l.End(stats())
	out := buf.String()
	if !strings.Contains(out, "URL        `http://example.com/x'") {
		t.Error("url part missing")
	}
	if strings.Contains(out, "hidden name") {
		t.Error("name printed despite parts filter")
	}
}

func TestCSVLogger(t *testing.T) {
	l, buf := buffered(t, "csv", config.Default())
	l.Start()
	l.Log(checkedURL("http://example.com/;semi", "200 OK", true))
	l.End(stats())
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header plus one row", len(lines))
	}
	if got := strings.Count(lines[0], ";"); got != 16 {
		t.Errorf("header has %d separators, want 16", got)
	}
	if !strings.Contains(lines[1], `"http://example.com/;semi"`) {
		t.Errorf("row not quoted: %s", lines[1])
	}
}

func TestJSONLogger(t *testing.T) {
	l, buf := buffered(t, "json", config.Default())
	l.Start()
	u := checkedURL("http://example.com/j", "200 OK", true)
	u.AddWarning("test-tag", "hm")
	l.Log(u)
	l.End(stats())
	var records []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if len(records) != 1 {
		t.Fatalf("got %d records", len(records))
	}
	if records[0]["url"] != "http://example.com/j" {
		t.Errorf("url = %v", records[0]["url"])
	}
	warnings, _ := records[0]["warnings"].([]any)
	if len(warnings) != 1 || warnings[0] != "[test-tag] hm" {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestXMLLogger(t *testing.T) {
	l, buf := buffered(t, "xml", config.Default())
	l.Start()
	l.Log(checkedURL("http://example.com/<x>", "200 OK", true))
	l.End(stats())
	out := buf.String()
	if !strings.Contains(out, "<linkchecker-out") || !strings.Contains(out, "</linkchecker-out>") {
		t.Error("missing root element")
	}
	if !strings.Contains(out, "http://example.com/&lt;x&gt;") {
		t.Errorf("URL not escaped:\n%s", out)
	}
}

func TestDotLogger(t *testing.T) {
	l, buf := buffered(t, "dot", config.Default())
	l.Start()
	parent := checkedURL("http://example.com/", "200 OK", true)
	child := checkedURL("http://example.com/a", "404 Not Found", false)
	child.ParentURL = "http://example.com/"
	child.Name = "a link"
	l.Log(parent)
	l.Log(child)
	l.End(stats())
	out := buf.String()
	if !strings.Contains(out, "digraph linksgraph {") {
		t.Error("missing digraph header")
	}
	if !strings.Contains(out, `0 -> 1 [label="a link", valid=0];`) {
		t.Errorf("missing edge:\n%s", out)
	}
}

func TestGMLLogger(t *testing.T) {
	l, buf := buffered(t, "gml", config.Default())
	l.Start()
	child := checkedURL("http://example.com/a", "200 OK", true)
	child.ParentURL = "http://example.com/"
	l.Log(child)
	l.End(stats())
	out := buf.String()
	if !strings.Contains(out, "graph [") || !strings.Contains(out, "source 1") {
		t.Errorf("unexpected GML output:\n%s", out)
	}
}

func TestSQLLogger(t *testing.T) {
	l, buf := buffered(t, "sql", config.Default())
	l.Start()
	u := checkedURL("http://example.com/it's", "200 OK", true)
	l.Log(u)
	l.End(stats())
	out := buf.String()
	if !strings.Contains(out, "insert into linksdb(") {
		t.Errorf("missing insert statement:\n%s", out)
	}
	if !strings.Contains(out, "'http://example.com/it''s'") {
		t.Errorf("quote not doubled:\n%s", out)
	}
	if !strings.Contains(out, "NULL") {
		t.Error("unset line should be NULL")
	}
}

func TestFailuresLogger(t *testing.T) {
	file := filepath.Join(t.TempDir(), "failures")
	os.WriteFile(file, []byte(
		`2 "" "http://example.com/old"`+"\n"+
			`1 "" "http://example.com/fixed"`+"\n"), 0o644)

	l, err := newFailuresLogger(file)
	if err != nil {
		t.Fatal(err)
	}
	l.Start()
	l.Log(checkedURL("http://example.com/old", "404 Not Found", false))
	l.Log(checkedURL("http://example.com/fixed", "200 OK", true))
	l.Log(checkedURL("http://example.com/new", "500 Internal Server Error", false))
	l.End(stats())

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.Contains(got, `3 "" "http://example.com/old"`) {
		t.Errorf("old count not incremented:\n%s", got)
	}
	if strings.Contains(got, "fixed") {
		t.Errorf("fixed URL not removed:\n%s", got)
	}
	if !strings.Contains(got, `1 "" "http://example.com/new"`) {
		t.Errorf("new failure missing:\n%s", got)
	}
}

func TestFailuresLoggerKeyedByParent(t *testing.T) {
	file := filepath.Join(t.TempDir(), "failures")
	l, err := newFailuresLogger(file)
	if err != nil {
		t.Fatal(err)
	}
	l.Start()
	// The same broken URL on two pages is two entries; fixing it on
	// one page leaves the other.
	broken := func(parent string) *checker.URL {
		u := checkedURL("http://example.com/broken", "404 Not Found", false)
		u.ParentURL = parent
		return u
	}
	l.Log(broken("http://example.com/a"))
	l.Log(broken("http://example.com/b"))
	fixed := broken("http://example.com/a")
	fixed.Valid = true
	l.Log(fixed)
	l.End(stats())

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if strings.Contains(got, `"http://example.com/a"`) {
		t.Errorf("fixed parent entry not removed:\n%s", got)
	}
	if !strings.Contains(got, `1 "http://example.com/b" "http://example.com/broken"`) {
		t.Errorf("remaining parent entry missing:\n%s", got)
	}
}

func TestNewUnknownType(t *testing.T) {
	if _, err := New(config.LoggerSpec{Type: "bogus"}, config.Default(), os.Stdout); err == nil {
		t.Fatal("want error for unknown logger type")
	}
}

func TestHTMLLogger(t *testing.T) {
	l, buf := buffered(t, "html", config.Default())
	l.Start()
	l.Log(checkedURL("http://example.com/<script>", "404 Not Found", false))
	l.End(stats())
	out := buf.String()
	if strings.Contains(out, "<script>") {
		t.Error("URL not escaped")
	}
	if !strings.Contains(out, "Error: 404 Not Found") {
		t.Errorf("result missing:\n%s", out)
	}
}
