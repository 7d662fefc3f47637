package auth

import (
	"net/http"
)

// Source identifies where a request's identity came from, in resolution
// priority order.
type Source int

const (
	SourceNone Source = iota
	SourceToken
	SourceGuestCookie
	SourceGuestParams
)

func (s Source) String() string {
	switch s {
	case SourceToken:
		return "token"
	case SourceGuestCookie:
		return "guest-cookie"
	case SourceGuestParams:
		return "guest-params"
	default:
		return "none"
	}
}

// Resolution is the outcome of inspecting one request. At most one
// identity is ever resolved; a verified token always beats guest material.
type Resolution struct {
	Source   Source
	Identity *Identity

	// Canonicalize is set when guest bootstrap params are present on the
	// URL but their information is already captured (cookie present, or
	// params just consumed); the gate strips them with a redirect.
	Canonicalize bool

	// ClearGuestCookie is set when the guest cookie exists but does not
	// parse; the gate schedules it for deletion.
	ClearGuestCookie bool
}

// Resolver inspects token material, cookies, and query parameters in
// strict priority order.
type Resolver struct {
	tokens *TokenCodec
}

// NewResolver creates a resolver using the given token codec.
func NewResolver(tokens *TokenCodec) *Resolver {
	return &Resolver{tokens: tokens}
}

// Resolve produces exactly one resolved identity or none. It never fails:
// unverifiable tokens and corrupted guest cookies degrade to the next
// source in priority order.
func (r *Resolver) Resolve(req *http.Request) Resolution {
	// 1. Verified session token wins outright.
	if cookie, err := req.Cookie(r.tokens.CookieName()); err == nil && cookie.Value != "" {
		if identity, err := r.tokens.Verify(cookie.Value); err == nil {
			return Resolution{Source: SourceToken, Identity: identity}
		}
	}

	query := req.URL.Query()
	guestID := query.Get(GuestIDParam)
	guestEmail := query.Get(GuestEmailParam)
	hasParams := guestID != "" && guestEmail != ""

	// 2. Guest cookie before params, so a stale bookmark with params
	// cannot displace the identity already pinned in the cookie.
	var clearCookie bool
	if cookie, err := req.Cookie(GuestCookieName); err == nil && cookie.Value != "" {
		session, err := DecodeGuestSession(cookie.Value)
		if err != nil {
			clearCookie = true
		} else {
			return Resolution{
				Source:       SourceGuestCookie,
				Identity:     &session.User,
				Canonicalize: hasParams,
			}
		}
	}

	// 3. Bootstrap params, honored only when both are present.
	if hasParams {
		identity := Identity{ID: guestID, Email: guestEmail, Name: guestEmail, Kind: KindGuest}
		return Resolution{
			Source:           SourceGuestParams,
			Identity:         &identity,
			Canonicalize:     true,
			ClearGuestCookie: clearCookie,
		}
	}

	return Resolution{Source: SourceNone, ClearGuestCookie: clearCookie}
}
