package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/parlor-chat/parlor/internal/auth"
	"github.com/parlor-chat/parlor/internal/service"
)

// GuestProvision handles GET /api/auth/guest. It creates a guest
// identity, attaches the guest cookie, and redirects back to redirectUrl.
// The bootstrap params are appended to the target as well; the gate
// canonicalizes them away on the next request, which keeps bootstrap
// working for clients that drop Set-Cookie across redirects.
func (h *Handler) GuestProvision(w http.ResponseWriter, r *http.Request) {
	target := sanitizeRedirect(r.URL.Query().Get("redirectUrl"))

	identity, err := h.guestService.Provision(r.Context())
	if err != nil {
		// Degrade to the application root rather than failing the request.
		h.log.Error("guest provisioning failed", zap.Error(err))
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}

	h.setGuestCookie(w, identity)
	w.Header().Set(auth.GuestHeaderName, auth.EncodeGuestSession(identity))

	parsed, err := url.Parse(target)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
		return
	}
	query := parsed.Query()
	query.Set(auth.GuestIDParam, identity.ID)
	query.Set(auth.GuestEmailParam, identity.Email)
	parsed.RawQuery = query.Encode()

	http.Redirect(w, r, parsed.RequestURI(), http.StatusTemporaryRedirect)
}

// sanitizeRedirect confines the post-provisioning redirect to this
// origin. Absolute URLs are reduced to their path and query; anything
// unusable becomes the application root.
func sanitizeRedirect(raw string) string {
	if raw == "" {
		return "/"
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "/"
	}
	target := parsed.RequestURI()
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return "/"
	}
	return target
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		h.Error(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	identity, token, err := h.authService.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			h.Error(w, http.StatusConflict, "Email already registered")
			return
		}
		h.log.Error("registration failed", zap.Error(err))
		h.Error(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	h.setSessionCookie(w, token)
	h.JSON(w, http.StatusCreated, map[string]any{"user": identity})
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	identity, token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.Error(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.log.Error("login failed", zap.Error(err))
		h.Error(w, http.StatusInternalServerError, "Login failed")
		return
	}

	h.setSessionCookie(w, token)
	h.JSON(w, http.StatusOK, map[string]any{"user": identity})
}

// Logout handles POST /api/auth/logout. Clears both the session token
// and any guest session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	h.clearGuestCookie(w)
	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Me handles GET /api/auth/me, reporting the caller's identity from the
// session token or guest cookie.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.tokens.CookieName()); err == nil && cookie.Value != "" {
		if identity, err := h.tokens.Verify(cookie.Value); err == nil {
			h.JSON(w, http.StatusOK, map[string]any{"user": identity})
			return
		}
	}
	if cookie, err := r.Cookie(auth.GuestCookieName); err == nil && cookie.Value != "" {
		if session, err := auth.DecodeGuestSession(cookie.Value); err == nil {
			h.JSON(w, http.StatusOK, map[string]any{"user": session.User})
			return
		}
	}
	h.Error(w, http.StatusUnauthorized, "Not authenticated")
}
