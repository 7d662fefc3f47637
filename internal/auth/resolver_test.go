package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testResolver(t *testing.T) (*Resolver, *TokenCodec) {
	t.Helper()
	codec := NewTokenCodec([]byte("test-secret"), false)
	return NewResolver(codec), codec
}

func guestCookieValue(t *testing.T, id, email string) string {
	t.Helper()
	return EncodeGuestCookie(Identity{ID: id, Email: email, Name: email, Kind: KindGuest})
}

func TestResolveNoIdentity(t *testing.T) {
	resolver, _ := testResolver(t)

	r := httptest.NewRequest("GET", "/chat/abc", nil)
	res := resolver.Resolve(r)

	if res.Source != SourceNone {
		t.Errorf("source = %v, want none", res.Source)
	}
	if res.Identity != nil {
		t.Errorf("identity = %+v, want nil", res.Identity)
	}
}

func TestResolveTokenWins(t *testing.T) {
	resolver, codec := testResolver(t)

	token, err := codec.Issue(Identity{ID: "u-1", Email: "u@example.com", Name: "U", Kind: KindRegular}, time.Hour)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	r := httptest.NewRequest("GET", "/?guestId=g-1&guestEmail=guest-1", nil)
	r.AddCookie(&http.Cookie{Name: codec.CookieName(), Value: token})
	r.AddCookie(&http.Cookie{Name: GuestCookieName, Value: guestCookieValue(t, "g-2", "guest-2")})

	res := resolver.Resolve(r)
	if res.Source != SourceToken {
		t.Fatalf("source = %v, want token", res.Source)
	}
	if res.Identity.ID != "u-1" {
		t.Errorf("identity = %+v, want token identity", res.Identity)
	}
}

func TestResolveInvalidTokenFallsThrough(t *testing.T) {
	resolver, codec := testResolver(t)

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: codec.CookieName(), Value: "tampered.token.value"})
	r.AddCookie(&http.Cookie{Name: GuestCookieName, Value: guestCookieValue(t, "g-1", "guest-1")})

	res := resolver.Resolve(r)
	if res.Source != SourceGuestCookie {
		t.Errorf("source = %v, want guest-cookie", res.Source)
	}
	if res.Identity == nil || res.Identity.ID != "g-1" {
		t.Errorf("identity = %+v, want guest g-1", res.Identity)
	}
}

func TestResolveGuestCookieBeatsParams(t *testing.T) {
	resolver, _ := testResolver(t)

	r := httptest.NewRequest("GET", "/?guestId=g-stale&guestEmail=guest-stale", nil)
	r.AddCookie(&http.Cookie{Name: GuestCookieName, Value: guestCookieValue(t, "g-pinned", "guest-pinned")})

	res := resolver.Resolve(r)
	if res.Source != SourceGuestCookie {
		t.Fatalf("source = %v, want guest-cookie", res.Source)
	}
	if res.Identity.ID != "g-pinned" {
		t.Errorf("identity = %+v, want the cookie identity", res.Identity)
	}
	if !res.Canonicalize {
		t.Error("leftover params alongside a cookie should request canonicalization")
	}
}

func TestResolveGuestParams(t *testing.T) {
	resolver, _ := testResolver(t)

	r := httptest.NewRequest("GET", "/chat/x?guestId=g-1&guestEmail=guest-1", nil)
	res := resolver.Resolve(r)

	if res.Source != SourceGuestParams {
		t.Fatalf("source = %v, want guest-params", res.Source)
	}
	if res.Identity.ID != "g-1" || res.Identity.Kind != KindGuest {
		t.Errorf("identity = %+v", res.Identity)
	}
	if !res.Canonicalize {
		t.Error("params must be stripped via canonicalization")
	}
}

func TestResolvePartialParamsIgnored(t *testing.T) {
	resolver, _ := testResolver(t)

	for _, target := range []string{"/?guestId=g-1", "/?guestEmail=guest-1"} {
		r := httptest.NewRequest("GET", target, nil)
		res := resolver.Resolve(r)
		if res.Source != SourceNone {
			t.Errorf("Resolve(%q) source = %v, want none", target, res.Source)
		}
	}
}

func TestResolveCorruptGuestCookie(t *testing.T) {
	resolver, _ := testResolver(t)

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(&http.Cookie{Name: GuestCookieName, Value: "corrupt-not-json"})

	res := resolver.Resolve(r)
	if res.Source != SourceNone {
		t.Errorf("source = %v, want none", res.Source)
	}
	if !res.ClearGuestCookie {
		t.Error("corrupt cookie should be scheduled for deletion")
	}
}

func TestResolveCorruptCookieWithParams(t *testing.T) {
	resolver, _ := testResolver(t)

	r := httptest.NewRequest("GET", "/?guestId=g-1&guestEmail=guest-1", nil)
	r.AddCookie(&http.Cookie{Name: GuestCookieName, Value: "corrupt"})

	res := resolver.Resolve(r)
	if res.Source != SourceGuestParams {
		t.Fatalf("source = %v, want guest-params", res.Source)
	}
	if !res.ClearGuestCookie {
		t.Error("corrupt cookie should still be cleared when params resolve")
	}
}
