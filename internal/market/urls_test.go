package market

import "testing"

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips www", "https://www.example.com/story", "https://example.com/story"},
		{"lowercases host", "https://Example.COM/Story", "https://example.com/Story"},
		{"defaults scheme", "example.com/story", "https://example.com/story"},
		{"keeps http", "http://example.com/story", "http://example.com/story"},
		{"drops utm params", "https://example.com/a?utm_source=tw&utm_medium=feed", "https://example.com/a"},
		{"drops tracking ids", "https://example.com/a?fbclid=xyz&gclid=123", "https://example.com/a"},
		{"keeps and sorts real params", "https://example.com/a?z=2&a=1&utm_campaign=x", "https://example.com/a?a=1&z=2"},
		{"drops blank values", "https://example.com/a?id=&page=3", "https://example.com/a?page=3"},
		{"trims trailing slash", "https://example.com/story/", "https://example.com/story"},
		{"root path survives", "https://example.com/", "https://example.com/"},
		{"bare host gets root", "https://example.com", "https://example.com/"},
		{"drops fragment", "https://example.com/a#comments", "https://example.com/a"},
		{"whitespace trimmed", "  https://example.com/a  ", "https://example.com/a"},
		{"duplicate keys both kept", "https://example.com/a?t=2&t=1", "https://example.com/a?t=1&t=2"},
	}
	for _, tc := range tests {
		got, err := CanonicalURL(tc.in)
		if err != nil {
			t.Fatalf("%s: CanonicalURL(%q) error: %v", tc.name, tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%s: CanonicalURL(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestCanonicalURLStable(t *testing.T) {
	in := "https://www.example.com/story/?utm_source=x&b=2&a=1"
	first, err := CanonicalURL(in)
	if err != nil {
		t.Fatalf("CanonicalURL error: %v", err)
	}
	again, err := CanonicalURL(first)
	if err != nil {
		t.Fatalf("recanonicalize error: %v", err)
	}
	if first != again {
		t.Fatalf("canonical form not a fixed point: %q then %q", first, again)
	}
}

func TestCanonicalURLRejectsEmpty(t *testing.T) {
	if _, err := CanonicalURL("   "); err == nil {
		t.Fatalf("blank input should error")
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.ft.com/content/abc", "ft.com"},
		{"http://Example.com/x", "example.com"},
		{"https://sub.domain.org:8080/p", "sub.domain.org"},
		{"marginalrevolution.com/post", "marginalrevolution.com"},
		{"", ""},
	}
	for _, tc := range tests {
		if got := Domain(tc.in); got != tc.want {
			t.Fatalf("Domain(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
