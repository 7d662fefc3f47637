package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/parlor-chat/parlor/internal/auth"
	"github.com/parlor-chat/parlor/internal/config"
	"github.com/parlor-chat/parlor/internal/store"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	cfg := &config.Config{Env: config.EnvDevelopment, AuthSecret: []byte("test-secret")}
	tokens := auth.NewTokenCodec(cfg.AuthSecret, false)
	return New(store.NewFailover(nil, store.NewMemory(), nil), cfg, tokens, nil)
}

func TestGuestProvision(t *testing.T) {
	h := newTestHandler(t)

	r := httptest.NewRequest("GET", "/api/auth/guest?redirectUrl="+url.QueryEscape("/chat/abc"), nil)
	rec := httptest.NewRecorder()
	h.GuestProvision(rec, r)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rec.Code)
	}

	location, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad Location: %v", err)
	}
	if location.Path != "/chat/abc" {
		t.Errorf("redirect path = %q, want /chat/abc", location.Path)
	}
	guestID := location.Query().Get(auth.GuestIDParam)
	guestEmail := location.Query().Get(auth.GuestEmailParam)
	if guestID == "" || guestEmail == "" {
		t.Errorf("redirect must carry bootstrap params, got %q", location.RawQuery)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.GuestCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("guest cookie not set")
	}
	session, err := auth.DecodeGuestSession(cookie.Value)
	if err != nil {
		t.Fatalf("cookie does not decode: %v", err)
	}
	if session.User.ID != guestID || session.User.Email != guestEmail {
		t.Errorf("cookie identity %+v does not match redirect params %s/%s", session.User, guestID, guestEmail)
	}

	// The provisioned guest exists in the store.
	if _, err := h.store.GetUserByEmail(r.Context(), guestEmail); err != nil {
		t.Errorf("guest record missing: %v", err)
	}
}

func TestGuestProvisionDefaultsRedirect(t *testing.T) {
	h := newTestHandler(t)

	tests := []struct {
		name     string
		redirect string
		wantPath string
	}{
		{"missing", "", "/"},
		{"absolute external", "https://evil.example.com/phish", "/phish"},
		{"schemeless external", "//evil.example.com/phish", "/"},
		{"relative", "/chat/x", "/chat/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/auth/guest?redirectUrl="+url.QueryEscape(tt.redirect), nil)
			rec := httptest.NewRecorder()
			h.GuestProvision(rec, r)

			location, err := url.Parse(rec.Header().Get("Location"))
			if err != nil {
				t.Fatalf("bad Location: %v", err)
			}
			if location.Path != tt.wantPath {
				t.Errorf("redirect path = %q, want %q", location.Path, tt.wantPath)
			}
			if location.Host != "" {
				t.Errorf("redirect must stay on this origin, got host %q", location.Host)
			}
		})
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	h := newTestHandler(t)

	body, _ := json.Marshal(map[string]string{"email": "u@example.com", "password": "hunter22"})
	r := httptest.NewRequest("POST", "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, r)

	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}
	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == h.tokens.CookieName() {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("register must set the session cookie")
	}
	if _, err := h.tokens.Verify(sessionCookie.Value); err != nil {
		t.Errorf("session cookie does not verify: %v", err)
	}

	// Duplicate registration conflicts.
	r = httptest.NewRequest("POST", "/api/auth/register", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	h.Register(rec, r)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", rec.Code)
	}

	// Login with the same credentials.
	r = httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	h.Login(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", rec.Code, rec.Body.String())
	}

	// Wrong password.
	bad, _ := json.Marshal(map[string]string{"email": "u@example.com", "password": "nope"})
	r = httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(bad))
	rec = httptest.NewRecorder()
	h.Login(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", rec.Code)
	}

	// Logout clears both cookies.
	r = httptest.NewRequest("POST", "/api/auth/logout", nil)
	rec = httptest.NewRecorder()
	h.Logout(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	cleared := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = true
		}
	}
	if !cleared[h.tokens.CookieName()] || !cleared[auth.GuestCookieName] {
		t.Errorf("logout should clear session and guest cookies, cleared %v", cleared)
	}
}
