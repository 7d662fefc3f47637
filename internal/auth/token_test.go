package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	codec := NewTokenCodec([]byte("test-secret"), false)
	identity := Identity{ID: "u-1", Email: "user@example.com", Name: "User", Kind: KindRegular}

	token, err := codec.Issue(identity, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	got, err := codec.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if *got != identity {
		t.Errorf("got %+v, want %+v", *got, identity)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenCodec([]byte("secret-a"), false)
	verifier := NewTokenCodec([]byte("secret-b"), false)

	token, err := issuer.Issue(Identity{ID: "u-1", Email: "e", Kind: KindRegular}, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := verifier.Verify(token); err == nil {
		t.Error("expected verification to fail with a different secret")
	}
}

func TestTokenRejectsExpired(t *testing.T) {
	codec := NewTokenCodec([]byte("test-secret"), false)

	token, err := codec.Issue(Identity{ID: "u-1", Email: "e", Kind: KindRegular}, -time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := codec.Verify(token); err == nil {
		t.Error("expected verification to fail for an expired token")
	}
}

func TestTokenRejectsGarbage(t *testing.T) {
	codec := NewTokenCodec([]byte("test-secret"), false)
	for _, value := range []string{"", "garbage", "a.b.c"} {
		if _, err := codec.Verify(value); err == nil {
			t.Errorf("Verify(%q) expected error", value)
		}
	}
}

func TestCookieNameByEnvironment(t *testing.T) {
	if got := NewTokenCodec(nil, false).CookieName(); got != "parlor-session" {
		t.Errorf("dev cookie name = %q", got)
	}
	if got := NewTokenCodec(nil, true).CookieName(); got != "__Secure-parlor-session" {
		t.Errorf("secure cookie name = %q", got)
	}
}
