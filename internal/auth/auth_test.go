package auth

import (
	"strings"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"ten digit us", "5551234567", "+15551234567", false},
		{"formatted us", "(555) 123-4567", "+15551234567", false},
		{"already e164", "+15551234567", "+15551234567", false},
		{"international", "+44 20 7946 0958", "+442079460958", false},
		{"too short", "12345", "", true},
		{"letters only", "call-me", "", true},
		{"too long", "12345678901234567890", "", true},
	}
	for _, tc := range tests {
		got, err := NormalizePhone(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: NormalizePhone(%q) succeeded with %q, want error", tc.name, tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: NormalizePhone(%q) error: %v", tc.name, tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%s: NormalizePhone(%q) = %q, want %q", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := generateToken()
	if err != nil {
		t.Fatalf("generateToken: %v", err)
	}
	b, err := generateToken()
	if err != nil {
		t.Fatalf("generateToken: %v", err)
	}
	if a == b {
		t.Fatalf("two tokens collided")
	}
	if len(a) < 40 {
		t.Fatalf("token %q too short for 32 random bytes", a)
	}
	if strings.ContainsAny(a, "+/=") {
		t.Fatalf("token %q is not URL safe", a)
	}
}

func TestHashTokenStable(t *testing.T) {
	if hashToken("abc") != hashToken("abc") {
		t.Fatalf("same token hashed differently")
	}
	if hashToken("abc") == hashToken("abd") {
		t.Fatalf("different tokens share a hash")
	}
	if len(hashToken("abc")) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(hashToken("abc")))
	}
}

func TestRandomCodeShape(t *testing.T) {
	for i := 0; i < 20; i++ {
		code, err := randomCode()
		if err != nil {
			t.Fatalf("randomCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q length = %d, want 6", code, len(code))
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q has non-digit", code)
			}
		}
	}
}

func TestGoogleAuthorizeURL(t *testing.T) {
	c := NewGoogleClient("client-123", "secret", "https://app.example.com/auth/google/callback")
	u := c.AuthorizeURL("state-xyz")
	for _, want := range []string{
		"client_id=client-123",
		"state=state-xyz",
		"response_type=code",
		"scope=openid+email+profile",
	} {
		if !strings.Contains(u, want) {
			t.Fatalf("authorize url %q missing %q", u, want)
		}
	}
	if !strings.HasPrefix(u, "https://accounts.google.com/") {
		t.Fatalf("authorize url %q has wrong host", u)
	}
}
