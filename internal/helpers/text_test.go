package helpers

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"hello", 0, ""},
		{"héllo wörld", 4, "héll"},
		{"日本語テキスト", 3, "日本語"},
	}
	for _, tc := range cases {
		if got := Truncate(tc.in, tc.n); got != tc.want {
			t.Fatalf("Truncate(%q, %d): expected %q, got %q", tc.in, tc.n, tc.want, got)
		}
	}
}

func TestTruncateLongInputBound(t *testing.T) {
	in := strings.Repeat("ü", 20000)
	got := Truncate(in, 5000)
	if n := utf8.RuneCountInString(got); n != 5000 {
		t.Fatalf("expected 5000 runes, got %d", n)
	}
}

func TestBracketSpan(t *testing.T) {
	got, ok := BracketSpan(`Sure! Here: ["a", "b"] hope [this] helps`)
	if !ok {
		t.Fatalf("expected span")
	}
	if got != `["a", "b"] hope [this]` {
		t.Fatalf("unexpected span %q", got)
	}
	if _, ok := BracketSpan("no list here"); ok {
		t.Fatalf("expected no span")
	}
	if _, ok := BracketSpan("] backwards ["); ok {
		t.Fatalf("expected no span for reversed brackets")
	}
}

func TestStripCodeFence(t *testing.T) {
	in := "```json\n[\"x\"]\n```"
	if got := StripCodeFence(in); got != `["x"]` {
		t.Fatalf("unexpected %q", got)
	}
	if got := StripCodeFence("  plain  "); got != "plain" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestDedupeNonEmpty(t *testing.T) {
	got := DedupeNonEmpty([]string{" a ", "", "b", "a", "  "})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected %v", got)
	}
}
