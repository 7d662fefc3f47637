package auth

import (
	"net/url"
	"strings"
	"testing"
)

func TestDecodeGuestSession(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
		wantID  string
	}{
		{
			name:   "raw JSON form",
			value:  `{"user":{"id":"g-1","email":"guest-1700000000000","name":"guest-1700000000000","type":"guest"}}`,
			wantID: "g-1",
		},
		{
			name:   "cookie-escaped form",
			value:  url.QueryEscape(`{"user":{"id":"g-2","email":"guest-2","name":"guest-2","type":"guest"}}`),
			wantID: "g-2",
		},
		{
			name:    "empty value",
			value:   "",
			wantErr: true,
		},
		{
			name:    "not JSON",
			value:   "not-json-at-all",
			wantErr: true,
		},
		{
			name:    "truncated JSON",
			value:   `{"user":{"id":"g-3","email":`,
			wantErr: true,
		},
		{
			name:    "missing id",
			value:   `{"user":{"email":"guest-4","type":"guest"}}`,
			wantErr: true,
		},
		{
			name:    "missing email",
			value:   `{"user":{"id":"g-5","type":"guest"}}`,
			wantErr: true,
		},
		{
			name:    "wrong type",
			value:   `{"user":{"id":"g-6","email":"guest-6","type":"regular"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := DecodeGuestSession(tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeGuestSession(%q) expected error, got %+v", tt.value, session)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeGuestSession(%q) unexpected error: %v", tt.value, err)
			}
			if session.User.ID != tt.wantID {
				t.Errorf("got id %q, want %q", session.User.ID, tt.wantID)
			}
			if session.User.Kind != KindGuest {
				t.Errorf("got kind %q, want guest", session.User.Kind)
			}
		})
	}
}

func TestDecodeGuestSessionDefaultsName(t *testing.T) {
	session, err := DecodeGuestSession(`{"user":{"id":"g-1","email":"guest-1","type":"guest"}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.User.Name != "guest-1" {
		t.Errorf("got name %q, want email fallback", session.User.Name)
	}
}

func TestGuestCookieRoundTrip(t *testing.T) {
	identity := Identity{ID: "abc", Email: "guest-123", Name: "guest-123", Kind: KindGuest}

	encoded := EncodeGuestCookie(identity)
	if strings.ContainsAny(encoded, `{}" ;,`) {
		t.Errorf("cookie value contains cookie-unsafe characters: %q", encoded)
	}

	session, err := DecodeGuestSession(encoded)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if session.User != identity {
		t.Errorf("round trip mismatch: got %+v, want %+v", session.User, identity)
	}
}

func TestEncodeGuestSessionForcesGuestKind(t *testing.T) {
	encoded := EncodeGuestSession(Identity{ID: "x", Email: "e", Name: "n", Kind: KindRegular})
	if !strings.Contains(encoded, `"type":"guest"`) {
		t.Errorf("encoded session should always carry type guest: %s", encoded)
	}
}
