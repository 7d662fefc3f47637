package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session token cookie names. The __Secure- prefix is used when cookies
// carry the Secure attribute (production).
const (
	sessionCookieName       = "parlor-session"
	secureSessionCookieName = "__Secure-parlor-session"
)

// DefaultSessionTTL is how long an issued session token stays valid.
const DefaultSessionTTL = 30 * 24 * time.Hour

// TokenCodec signs and verifies registered-session tokens (HS256).
type TokenCodec struct {
	secret []byte
	secure bool
}

// NewTokenCodec creates a codec with the configured signing secret. secure
// selects the __Secure- cookie name and mirrors the cookie Secure flag.
func NewTokenCodec(secret []byte, secure bool) *TokenCodec {
	return &TokenCodec{secret: secret, secure: secure}
}

// CookieName returns the session cookie name for the current environment.
func (c *TokenCodec) CookieName() string {
	if c.secure {
		return secureSessionCookieName
	}
	return sessionCookieName
}

// Secure reports whether session cookies should carry the Secure attribute.
func (c *TokenCodec) Secure() bool { return c.secure }

type sessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	jwt.RegisteredClaims
}

// Issue signs a session token for the identity.
func (c *TokenCodec) Issue(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Email: identity.Email,
		Name:  identity.Name,
		Kind:  identity.Kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token, returning the identity it
// carries. Any invalid, expired, or tampered token returns an error; the
// caller treats that as anonymous.
func (c *TokenCodec) Verify(tokenString string) (*Identity, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("invalid session token: missing subject")
	}
	kind := claims.Kind
	if kind == "" {
		kind = KindRegular
	}
	return &Identity{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Kind:  kind,
	}, nil
}
