// Package auth implements identity resolution for inbound requests:
// signed session tokens for registered users, guest-session cookies and
// bootstrap query parameters for guests, and the rate limiter guarding
// guest provisioning.
package auth

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/parlor-chat/parlor/internal/model"
)

// Guest session wire names. The cookie and the forwarded header carry the
// same JSON shape; the query parameters exist only to bootstrap a guest
// identity and are stripped from the canonical URL once consumed.
const (
	GuestCookieName = "guest-session"
	GuestHeaderName = "x-guest-session"
	GuestIDParam    = "guestId"
	GuestEmailParam = "guestEmail"

	GuestSessionMaxAge = 24 * time.Hour
)

// Kind distinguishes registered identities from on-demand guests.
type Kind string

const (
	KindRegular Kind = "regular"
	KindGuest   Kind = "guest"
)

// Identity is a resolved request identity.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Kind  Kind   `json:"type"`
}

// IsGuest reports whether the identity was provisioned as a guest.
func (i *Identity) IsGuest() bool { return i.Kind == KindGuest }

// IdentityFromUser converts a persisted user record.
func IdentityFromUser(u *model.User) Identity {
	kind := KindRegular
	if u.IsGuest() {
		kind = KindGuest
	}
	name := u.Name
	if name == "" {
		name = u.Email
	}
	return Identity{ID: u.ID, Email: u.Email, Name: name, Kind: kind}
}

// GuestSession is the JSON payload of the guest-session cookie and the
// x-guest-session forwarded header:
//
//	{"user":{"id":"...","email":"...","name":"...","type":"guest"}}
type GuestSession struct {
	User Identity `json:"user"`
}

var errMalformedGuestSession = errors.New("malformed guest session")

// EncodeGuestSession renders the session as its JSON wire form.
func EncodeGuestSession(identity Identity) string {
	identity.Kind = KindGuest
	data, _ := json.Marshal(GuestSession{User: identity})
	return string(data)
}

// EncodeGuestCookie renders the session escaped for use as a cookie value
// (the JSON form contains characters that are not cookie-safe).
func EncodeGuestCookie(identity Identity) string {
	return url.QueryEscape(EncodeGuestSession(identity))
}

// DecodeGuestSession parses a guest-session cookie value, accepting both
// the raw JSON form and the cookie-escaped form. A value that does not
// parse as a well-formed guest session returns an error; it never panics,
// so a corrupted cookie degrades to "no guest identity".
func DecodeGuestSession(value string) (*GuestSession, error) {
	if value == "" {
		return nil, errMalformedGuestSession
	}
	if strings.Contains(value, "%") {
		if unescaped, err := url.QueryUnescape(value); err == nil {
			value = unescaped
		}
	}
	var session GuestSession
	if err := json.Unmarshal([]byte(value), &session); err != nil {
		return nil, errMalformedGuestSession
	}
	if session.User.ID == "" || session.User.Email == "" || session.User.Kind != KindGuest {
		return nil, errMalformedGuestSession
	}
	if session.User.Name == "" {
		session.User.Name = session.User.Email
	}
	return &session, nil
}
