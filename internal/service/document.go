package service

import (
	"context"
	"errors"
	"time"

	"github.com/parlor-chat/parlor/internal/model"
	"github.com/parlor-chat/parlor/internal/store"
)

// ErrDocumentNotFound is returned when a document id has no versions.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentService owns artifact documents and their suggestions. Every
// save appends a new version keyed by (id, created_at); reads over an id
// see the full version history.
type DocumentService struct {
	store store.Store
}

// NewDocumentService creates a new document service.
func NewDocumentService(s store.Store) *DocumentService {
	return &DocumentService{store: s}
}

// Save appends a new version of a document owned by the requester.
func (s *DocumentService) Save(ctx context.Context, requesterID, id, title, kind, content string) (*model.Document, error) {
	if kind == "" {
		kind = "text"
	}
	doc := &model.Document{
		ID:        id,
		CreatedAt: time.Now(),
		Title:     title,
		Kind:      kind,
		Content:   content,
		UserID:    requesterID,
	}
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Versions lists all versions of a document, oldest first. Owner only.
func (s *DocumentService) Versions(ctx context.Context, requesterID, id string) ([]*model.Document, error) {
	docs, err := s.store.ListDocumentsByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrDocumentNotFound
	}
	if docs[0].UserID != requesterID {
		return nil, ErrForbidden
	}
	return docs, nil
}

// Latest returns the newest version of a document. Owner only.
func (s *DocumentService) Latest(ctx context.Context, requesterID, id string) (*model.Document, error) {
	doc, err := s.store.GetDocumentByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if doc.UserID != requesterID {
		return nil, ErrForbidden
	}
	return doc, nil
}

// DeleteVersionsAfter removes versions newer than a timestamp, along
// with their suggestions. Owner only.
func (s *DocumentService) DeleteVersionsAfter(ctx context.Context, requesterID, id string, after time.Time) error {
	if _, err := s.Latest(ctx, requesterID, id); err != nil {
		return err
	}
	return s.store.DeleteDocumentsByIDAfter(ctx, id, after)
}

// SaveSuggestions records suggested edits for a document version.
func (s *DocumentService) SaveSuggestions(ctx context.Context, requesterID string, suggestions []*model.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	if _, err := s.Latest(ctx, requesterID, suggestions[0].DocumentID); err != nil {
		return err
	}
	for _, suggestion := range suggestions {
		suggestion.UserID = requesterID
	}
	return s.store.SaveSuggestions(ctx, suggestions)
}

// Suggestions lists suggested edits for a document. Owner only.
func (s *DocumentService) Suggestions(ctx context.Context, requesterID, documentID string) ([]*model.Suggestion, error) {
	if _, err := s.Latest(ctx, requesterID, documentID); err != nil {
		return nil, err
	}
	return s.store.ListSuggestionsByDocument(ctx, documentID)
}
