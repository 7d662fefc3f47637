// Package handler contains the HTTP handlers.
package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/parlor-chat/parlor/internal/auth"
	"github.com/parlor-chat/parlor/internal/config"
	"github.com/parlor-chat/parlor/internal/service"
	"github.com/parlor-chat/parlor/internal/store"
)

// Handler contains all HTTP handlers
type Handler struct {
	store        store.Store
	cfg          *config.Config
	tokens       *auth.TokenCodec
	authService  *service.AuthService
	guestService *service.GuestService
	chatService  *service.ChatService
	docService   *service.DocumentService
	log          *zap.Logger
}

// New creates a new Handler.
func New(s store.Store, cfg *config.Config, tokens *auth.TokenCodec, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:        s,
		cfg:          cfg,
		tokens:       tokens,
		authService:  service.NewAuthService(s, tokens),
		guestService: service.NewGuestService(s, log),
		chatService:  service.NewChatService(s),
		docService:   service.NewDocumentService(s),
		log:          log,
	}
}

// JSON helper to write JSON responses
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error helper to write error responses
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// DecodeJSON helper to decode request body
func (h *Handler) DecodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// setSessionCookie sets the signed session-token cookie
func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.tokens.CookieName(),
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.tokens.Secure(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.DefaultSessionTTL.Seconds()),
	})
}

// clearSessionCookie clears the session cookie
func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.tokens.CookieName(),
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// setGuestCookie sets the guest-session cookie
func (h *Handler) setGuestCookie(w http.ResponseWriter, identity auth.Identity) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.GuestCookieName,
		Value:    auth.EncodeGuestCookie(identity),
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.GuestSessionMaxAge.Seconds()),
	})
}

// clearGuestCookie clears the guest-session cookie
func (h *Handler) clearGuestCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.GuestCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
