// Package middleware contains the request gate: the single entry point
// that resolves an identity for every matched request and decides whether
// to forward it, redirect it, or reject it.
package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/parlor-chat/parlor/internal/auth"
)

type contextKey string

const (
	// IdentityKey carries the resolved *auth.Identity.
	IdentityKey contextKey = "identity"
	// UserIDKey carries the resolved identity's id.
	UserIDKey contextKey = "userID"
)

// ProvisionPath is the guest-provisioning endpoint. The gate redirects
// identity-less requests here; skip passes the whole /api/auth subtree
// through untouched, so the redirect target itself can never be
// throttled.
const ProvisionPath = "/api/auth/guest"

// RateLimitMessage is the plain-text body of a 429 response.
const RateLimitMessage = "Rate limited. Please wait and refresh the page."

// authPages are login/registration-only paths; a resolved non-guest
// identity hitting them is sent back to the application root.
var authPages = map[string]bool{
	"/login":    true,
	"/register": true,
}

// decision enumerates the gate's terminal states. Encoding the
// transitions as states (rather than nested conditionals) makes
// redirect-loop prevention structural: cookie beats params, and a request
// that already resolved can only forward or canonicalize.
type decision int

const (
	decideForward decision = iota
	decideCanonicalize
	decideProvision
	decideThrottle
	decideHome
)

// verdict is one request's resolved outcome plus the side effects the
// HTTP boundary must apply.
type verdict struct {
	decision         decision
	identity         *auth.Identity
	setGuestCookie   bool
	clearGuestCookie bool
	target           string
}

// Gate orchestrates the identity resolver, the rate limiter, and guest
// provisioning redirects for every matched request.
type Gate struct {
	resolver *auth.Resolver
	limiter  auth.Limiter
	log      *zap.Logger

	secureCookies       bool
	sharedUnknownBucket bool
}

// NewGate creates the request gate. sharedUnknownBucket controls whether
// clients with an undetectable origin share one throttle bucket (so they
// cannot bypass throttling individually) or are exempted.
func NewGate(resolver *auth.Resolver, limiter auth.Limiter, secureCookies, sharedUnknownBucket bool, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{
		resolver:            resolver,
		limiter:             limiter,
		log:                 log,
		secureCookies:       secureCookies,
		sharedUnknownBucket: sharedUnknownBucket,
	}
}

// skip reports whether the gate should pass the request through
// untouched: the readiness ping, the auth endpoints themselves, and
// static assets.
func skip(path string) bool {
	if strings.HasPrefix(path, "/api/auth/") || path == "/api/auth" {
		return true
	}
	if strings.HasPrefix(path, "/favicon") || strings.HasPrefix(path, "/static/") || strings.Contains(path, ".") {
		return true
	}
	return false
}

// Middleware runs the gate in front of next.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/ping") {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("pong"))
			return
		}
		if skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		v := g.decide(r)

		if v.clearGuestCookie {
			g.log.Warn("clearing corrupted guest-session cookie", zap.String("path", r.URL.Path))
			http.SetCookie(w, &http.Cookie{
				Name:     auth.GuestCookieName,
				Value:    "",
				Path:     "/",
				HttpOnly: true,
				MaxAge:   -1,
			})
		}
		if v.setGuestCookie {
			g.setGuestCookie(w, *v.identity)
		}
		if v.identity != nil && v.identity.IsGuest() {
			// Forwarded header for downstream consumers that cannot read
			// cookies directly. Also set on canonicalize redirects so the
			// next hop does not need to re-resolve.
			w.Header().Set(auth.GuestHeaderName, auth.EncodeGuestSession(*v.identity))
		}

		switch v.decision {
		case decideThrottle:
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(RateLimitMessage))
		case decideProvision, decideCanonicalize:
			http.Redirect(w, r, v.target, http.StatusTemporaryRedirect)
		case decideHome:
			http.Redirect(w, r, "/", http.StatusFound)
		default:
			ctx := r.Context()
			if v.identity != nil {
				ctx = context.WithValue(ctx, IdentityKey, v.identity)
				ctx = context.WithValue(ctx, UserIDKey, v.identity.ID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	})
}

// decide runs the state machine for one request.
func (g *Gate) decide(r *http.Request) verdict {
	res := g.resolver.Resolve(r)

	switch res.Source {
	case auth.SourceToken:
		if authPages[r.URL.Path] && !res.Identity.IsGuest() {
			return verdict{decision: decideHome, identity: res.Identity}
		}
		return verdict{decision: decideForward, identity: res.Identity}

	case auth.SourceGuestCookie:
		if res.Canonicalize {
			// Cookie wins over stray bootstrap params; strip them so the
			// visible URL stops re-asserting a guest identity.
			return verdict{
				decision: decideCanonicalize,
				identity: res.Identity,
				target:   canonicalTarget(r.URL),
			}
		}
		return verdict{decision: decideForward, identity: res.Identity}

	case auth.SourceGuestParams:
		// Pin the params into a cookie, then drop them from the URL.
		return verdict{
			decision:         decideCanonicalize,
			identity:         res.Identity,
			setGuestCookie:   true,
			clearGuestCookie: res.ClearGuestCookie,
			target:           canonicalTarget(r.URL),
		}

	default:
		return g.decideAnonymous(r, res)
	}
}

// decideAnonymous handles the NoIdentity state: throttle check, then a
// redirect into guest provisioning.
func (g *Gate) decideAnonymous(r *http.Request, res auth.Resolution) verdict {
	key := auth.ClientKey(r)
	exempt := key == auth.UnknownClientKey && !g.sharedUnknownBucket

	if !exempt {
		if g.limiter.ShouldThrottle(key) {
			g.log.Info("throttled guest provisioning",
				zap.String("client", key),
				zap.String("path", r.URL.Path),
			)
			return verdict{decision: decideThrottle, clearGuestCookie: res.ClearGuestCookie}
		}
		g.limiter.Record(key)
	}

	target := ProvisionPath + "?redirectUrl=" + url.QueryEscape(r.URL.RequestURI())
	return verdict{
		decision:         decideProvision,
		clearGuestCookie: res.ClearGuestCookie,
		target:           target,
	}
}

// canonicalTarget rebuilds the request URL without the guest bootstrap
// parameters.
func canonicalTarget(u *url.URL) string {
	clean := *u
	query := clean.Query()
	query.Del(auth.GuestIDParam)
	query.Del(auth.GuestEmailParam)
	clean.RawQuery = query.Encode()
	return clean.RequestURI()
}

func (g *Gate) setGuestCookie(w http.ResponseWriter, identity auth.Identity) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.GuestCookieName,
		Value:    auth.EncodeGuestCookie(identity),
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.GuestSessionMaxAge.Seconds()),
	})
}

// GetIdentity extracts the resolved identity from the request context.
func GetIdentity(ctx context.Context) *auth.Identity {
	if identity, ok := ctx.Value(IdentityKey).(*auth.Identity); ok {
		return identity
	}
	return nil
}

// GetUserID extracts the resolved identity's id from the request context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}
