package api

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"Bearer   abc123  ", "abc123"},
		{"Basic abc123", ""},
		{"abc123", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := bearerToken(tc.header); got != tc.want {
			t.Fatalf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}

func TestExtractFirstURL(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"check out https://example.com/story today", "https://example.com/story"},
		{"https://example.com/a then https://example.com/b", "https://example.com/a"},
		{"ends with punctuation https://example.com/story.", "https://example.com/story"},
		{"wrapped (https://example.com/story)", "https://example.com/story"},
		{"http works too http://example.com", "http://example.com"},
		{"no link here", ""},
		{"ftp://example.com is not http", ""},
	}
	for _, tc := range tests {
		if got := extractFirstURL(tc.text); got != tc.want {
			t.Fatalf("extractFirstURL(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestWriteTwiMLEscapes(t *testing.T) {
	rec := httptest.NewRecorder()
	writeTwiML(rec, `got <link> & "more"`)

	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	want := `<Message>got &lt;link&gt; &amp; &#34;more&#34;</Message>`
	if !strings.Contains(body, want) {
		t.Fatalf("body %q missing %q", body, want)
	}
}

func TestClientIPStripsPort(t *testing.T) {
	r := httptest.NewRequest("GET", "/r/cand_abc", nil)
	r.RemoteAddr = "203.0.113.9:51442"
	if got := clientIP(r); got != "203.0.113.9" {
		t.Fatalf("clientIP = %q", got)
	}
	r.RemoteAddr = "203.0.113.9"
	if got := clientIP(r); got != "203.0.113.9" {
		t.Fatalf("clientIP without port = %q", got)
	}
}

func TestQueryInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/leaderboard?limit=7", nil)
	if got := queryInt(r, "limit", 20); got != 7 {
		t.Fatalf("queryInt = %d, want 7", got)
	}
	if got := queryInt(r, "missing", 20); got != 20 {
		t.Fatalf("queryInt fallback = %d, want 20", got)
	}
	r = httptest.NewRequest("GET", "/api/leaderboard?limit=junk", nil)
	if got := queryInt(r, "limit", 20); got != 20 {
		t.Fatalf("queryInt junk = %d, want 20", got)
	}
}
