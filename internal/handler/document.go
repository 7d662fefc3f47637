package handler

import (
	"net/http"
	"time"

	"github.com/parlor-chat/parlor/internal/model"
)

type saveDocumentRequest struct {
	Title   string `json:"title"`
	Kind    string `json:"kind,omitempty"`
	Content string `json:"content"`
}

// SaveDocument handles POST /api/document?id=
func (h *Handler) SaveDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		h.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req saveDocumentRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" {
		h.Error(w, http.StatusBadRequest, "title is required")
		return
	}

	doc, err := h.docService.Save(r.Context(), userID, id, req.Title, req.Kind, req.Content)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, doc)
}

// GetDocument handles GET /api/document?id=, returning all versions
// oldest first.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		h.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	docs, err := h.docService.Versions(r.Context(), userID, id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, docs)
}

// DeleteDocumentVersions handles DELETE /api/document?id=&timestamp=,
// removing versions newer than the timestamp.
func (h *Handler) DeleteDocumentVersions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		h.Error(w, http.StatusBadRequest, "id is required")
		return
	}
	after, err := time.Parse(time.RFC3339, r.URL.Query().Get("timestamp"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid timestamp")
		return
	}

	if err := h.docService.DeleteVersionsAfter(r.Context(), userID, id, after); err != nil {
		h.serviceError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type saveSuggestionsRequest struct {
	Suggestions []*model.Suggestion `json:"suggestions"`
}

// SaveSuggestions handles POST /api/suggestions
func (h *Handler) SaveSuggestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req saveSuggestionsRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Suggestions) == 0 {
		h.Error(w, http.StatusBadRequest, "suggestions are required")
		return
	}

	if err := h.docService.SaveSuggestions(r.Context(), userID, req.Suggestions); err != nil {
		h.serviceError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Suggestions handles GET /api/suggestions?documentId=
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	documentID := r.URL.Query().Get("documentId")
	if documentID == "" {
		h.Error(w, http.StatusBadRequest, "documentId is required")
		return
	}

	suggestions, err := h.docService.Suggestions(r.Context(), userID, documentID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, suggestions)
}
