package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/parlor-chat/parlor/internal/middleware"
	"github.com/parlor-chat/parlor/internal/model"
	"github.com/parlor-chat/parlor/internal/service"
)

// identity extracts the gate-resolved identity, writing a 401 when the
// request somehow reached a protected handler without one.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		h.Error(w, http.StatusUnauthorized, "Not authenticated")
		return "", false
	}
	return userID, true
}

// serviceError maps chat/document service errors onto HTTP statuses.
func (h *Handler) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrChatNotFound):
		h.Error(w, http.StatusNotFound, "Chat not found")
	case errors.Is(err, service.ErrDocumentNotFound):
		h.Error(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, service.ErrForbidden):
		h.Error(w, http.StatusForbidden, "Access denied")
	case errors.Is(err, service.ErrQuotaExceeded):
		h.Error(w, http.StatusTooManyRequests, "Daily message quota exceeded")
	default:
		h.log.Error("request failed", zap.Error(err))
		h.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

type appendMessageRequest struct {
	ID         string         `json:"id"`
	Message    *model.Message `json:"message"`
	Visibility string         `json:"visibility,omitempty"`
}

// AppendMessage handles POST /api/chat
func (h *Handler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		h.Error(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req appendMessageRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID == "" || req.Message == nil {
		h.Error(w, http.StatusBadRequest, "Chat id and message are required")
		return
	}

	chat, err := h.chatService.AppendMessage(r.Context(), *identity, req.ID, req.Message, req.Visibility)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, chat)
}

// GetChat handles GET /api/chat/{chatID}
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	chat, err := h.chatService.GetChat(r.Context(), userID, chi.URLParam(r, "chatID"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, chat)
}

// DeleteChat handles DELETE /api/chat/{chatID}
func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	chat, err := h.chatService.DeleteChat(r.Context(), userID, chi.URLParam(r, "chatID"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, chat)
}

// History handles GET /api/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 100 {
			h.Error(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}
	startingAfter := r.URL.Query().Get("starting_after")
	endingBefore := r.URL.Query().Get("ending_before")
	if startingAfter != "" && endingBefore != "" {
		h.Error(w, http.StatusBadRequest, "Only one of starting_after or ending_before can be provided")
		return
	}

	page, err := h.chatService.History(r.Context(), userID, limit, startingAfter, endingBefore)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, page)
}

// Messages handles GET /api/chat/{chatID}/messages
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	messages, err := h.chatService.Messages(r.Context(), userID, chi.URLParam(r, "chatID"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, messages)
}

// DeleteTrailingMessages handles DELETE /api/chat/{chatID}/messages.
// Accepts either from_message_id (that message and everything after it)
// or after (an RFC3339 timestamp).
func (h *Handler) DeleteTrailingMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}
	chatID := chi.URLParam(r, "chatID")

	if messageID := r.URL.Query().Get("from_message_id"); messageID != "" {
		if err := h.chatService.DeleteMessagesFrom(r.Context(), userID, chatID, messageID); err != nil {
			h.serviceError(w, err)
			return
		}
		h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	after, err := time.Parse(time.RFC3339, r.URL.Query().Get("after"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid after timestamp")
		return
	}
	if err := h.chatService.DeleteMessagesAfter(r.Context(), userID, chatID, after); err != nil {
		h.serviceError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type visibilityRequest struct {
	Visibility string `json:"visibility"`
}

// UpdateVisibility handles PATCH /api/chat/{chatID}/visibility
func (h *Handler) UpdateVisibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req visibilityRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.chatService.UpdateVisibility(r.Context(), userID, chi.URLParam(r, "chatID"), req.Visibility); err != nil {
		if errors.Is(err, service.ErrChatNotFound) || errors.Is(err, service.ErrForbidden) {
			h.serviceError(w, err)
			return
		}
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Streams handles GET /api/chat/{chatID}/streams
func (h *Handler) Streams(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	ids, err := h.chatService.StreamIDs(r.Context(), userID, chi.URLParam(r, "chatID"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"streamIds": ids})
}

type voteRequest struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Type      string `json:"type"`
}

// Vote handles PATCH /api/vote
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req voteRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChatID == "" || req.MessageID == "" {
		h.Error(w, http.StatusBadRequest, "chatId and messageId are required")
		return
	}

	if err := h.chatService.Vote(r.Context(), userID, req.ChatID, req.MessageID, req.Type); err != nil {
		if errors.Is(err, service.ErrChatNotFound) || errors.Is(err, service.ErrForbidden) {
			h.serviceError(w, err)
			return
		}
		h.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Votes handles GET /api/vote?chatId=
func (h *Handler) Votes(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	chatID := r.URL.Query().Get("chatId")
	if chatID == "" {
		h.Error(w, http.StatusBadRequest, "chatId is required")
		return
	}

	votes, err := h.chatService.Votes(r.Context(), userID, chatID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, votes)
}
