package urlutil

import (
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func TestQuoteURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"http://a:80/bcd", "http://a:80/bcd"},
		{"http://a:80/bcd?", "http://a:80/bcd"},
		{"http://a:80/bcd?a=b", "http://a:80/bcd?a=b"},
		{"a/b", "a/b"},
		{"bcd?", "bcd"},
		{"bcd?a=b", "bcd?a=b"},
		{"http://a/b c", "http://a/b%20c"},
	}
	for _, tt := range tests {
		got, err := QuoteURL(tt.in, nil)
		if err != nil {
			t.Errorf("QuoteURL(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("QuoteURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct{ in, want string }{
		{"abc", "abc"},
		{"a%20b", "a b"},
		{"a%zzb", "a%zzb"},
		{"a%", "a%"},
		{"%C3%A4", "ä"},
		{"%25", "%"},
	}
	for _, tt := range tests {
		if got := Unquote(tt.in, nil); got != tt.want {
			t.Errorf("Unquote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := Unquote("%E4", charmap.ISO8859_1); got != "ä" {
		t.Errorf("latin-1 Unquote = %q", got)
	}
}

func TestQuoteWith(t *testing.T) {
	got, err := quoteWith("a b/c~d", pathSafe, nil)
	if err != nil {
		t.Fatalf("quoteWith error: %v", err)
	}
	if want := "a%20b/c~d"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	// uppercase hex digits
	got, err = quoteWith("*", querySafe, nil)
	if err != nil {
		t.Fatalf("quoteWith error: %v", err)
	}
	if want := "%2A"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	got, err = quoteWith("ä", pathSafe, charmap.ISO8859_1)
	if err != nil {
		t.Fatalf("quoteWith error: %v", err)
	}
	if want := "%E4"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNeedsQuoting(t *testing.T) {
	needing := []string{
		"mailto:<calvin@example.org>?subject=Halli Hallo",
		" http://www.example.com/",
		"http://www.example.com/ ",
		"http://www.example.com/\n",
		"\nhttp://www.example.com/",
		"http://www.example.com/#a b",
	}
	for _, u := range needing {
		if !NeedsQuoting(u) {
			t.Errorf("NeedsQuoting(%q) = false, want true", u)
		}
	}
	fine := []string{
		"http://www.example.com/#a!",
		"http://hulla/a/b/!?c=d",
		"http://example.com/~jane",
	}
	for _, u := range fine {
		if NeedsQuoting(u) {
			t.Errorf("NeedsQuoting(%q) = true, want false", u)
		}
	}
}
