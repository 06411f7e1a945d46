package strutil

import (
	"testing"
	"time"
)

func TestSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0B"},
		{1, "1B"},
		{1023, "1023B"},
		{1024, "1KB"},
		{9216, "9KB"},
		{10240, "10.00KB"},
		{1024 * 1024, "1.00MB"},
		{5 * 1024 * 1024, "5.00MB"},
		{100 * 1024 * 1024, "100.0MB"},
		{1024 * 1024 * 1024, "1.00GB"},
		{15 * 1024 * 1024 * 1024, "15.0GB"},
	}
	for _, tt := range tests {
		if got := Size(tt.bytes); got != tt.want {
			t.Errorf("Size(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{500 * time.Millisecond, "00:01"},
		{59 * time.Second, "00:59"},
		{90 * time.Second, "01:30"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
		{-90 * time.Second, "-01:30"},
	}
	for _, tt := range tests {
		if got := Duration(tt.d); got != tt.want {
			t.Errorf("Duration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestDurationLong(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Millisecond, "0.50 seconds"},
		{time.Second, "1 second"},
		{30 * time.Second, "30 seconds"},
		{61 * time.Second, "1 minute, 1 second"},
		{2 * time.Minute, "2 minutes"},
		{time.Hour + time.Minute + time.Second, "1 hour, 1 minute"},
	}
	for _, tt := range tests {
		if got := DurationLong(tt.d); got != tt.want {
			t.Errorf("DurationLong(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestWrap(t *testing.T) {
	got := Wrap("aaa bbb ccc", 7)
	want := "aaa bbb\nccc"
	if got != want {
		t.Errorf("Wrap() = %q, want %q", got, want)
	}
	if got := Wrap("unchanged text", 0); got != "unchanged text" {
		t.Errorf("Wrap with width 0 changed text: %q", got)
	}
	// Paragraph breaks survive as line breaks.
	got = Wrap("one two\n\nthree", 20)
	want = "one two\nthree"
	if got != want {
		t.Errorf("Wrap() = %q, want %q", got, want)
	}
}

func TestLimit(t *testing.T) {
	if got := Limit("short", 72); got != "short" {
		t.Errorf("Limit() = %q", got)
	}
	if got := Limit("abcdef", 3); got != "abc..." {
		t.Errorf("Limit() = %q", got)
	}
	if got := Limit("abc", 0); got != "" {
		t.Errorf("Limit() = %q", got)
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in       string
		matching bool
		want     string
	}{
		{`"quoted"`, true, "quoted"},
		{`'quoted'`, true, "quoted"},
		{`"mismatch'`, true, `"mismatch'`},
		{`"loose'`, false, "loose"},
		{`x`, true, "x"},
		{``, true, ""},
	}
	for _, tt := range tests {
		if got := Unquote(tt.in, tt.matching); got != tt.want {
			t.Errorf("Unquote(%q, %v) = %q, want %q", tt.in, tt.matching, got, tt.want)
		}
	}
}

func TestStripURL(t *testing.T) {
	if got := StripURL("  http://example.com/ \nsecond line"); got != "http://example.com/" {
		t.Errorf("StripURL() = %q", got)
	}
	if got := StripURL(""); got != "" {
		t.Errorf("StripURL() = %q", got)
	}
}

func TestLine(t *testing.T) {
	if got := Line("a\nb"); got != "`a\\nb'" {
		t.Errorf("Line() = %q", got)
	}
}

func TestLineNumber(t *testing.T) {
	s := "one\ntwo\nthree"
	if got := LineNumber(s, 0); got != 1 {
		t.Errorf("LineNumber(0) = %d", got)
	}
	if got := LineNumber(s, 5); got != 2 {
		t.Errorf("LineNumber(5) = %d", got)
	}
	if got := LineNumber(s, -1); got != 0 {
		t.Errorf("LineNumber(-1) = %d", got)
	}
}
