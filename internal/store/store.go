// Package store provides the persistence access layer. Every entity action
// is one operation on a capability interface, with a durable GORM-backed
// implementation and an in-memory fallback implementation selected behind
// the Failover facade.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/parlor-chat/parlor/internal/model"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// ChatPage is one page of a user's chat history, newest first. HasMore is
// detected with a limit+1 probe so both backing stores report it the same
// way.
type ChatPage struct {
	Chats   []*model.Chat `json:"chats"`
	HasMore bool          `json:"hasMore"`
}

// UserStore covers user lookup and creation.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	// CreateGuestUser persists a minimal guest user record. The caller
	// generates the id and the synthetic email.
	CreateGuestUser(ctx context.Context, user *model.User) error
}

// ChatStore covers chat lifecycle and history listing.
type ChatStore interface {
	SaveChat(ctx context.Context, chat *model.Chat) error
	GetChatByID(ctx context.Context, id string) (*model.Chat, error)
	// DeleteChatByID removes a chat with its messages, votes and stream
	// markers, returning the deleted chat.
	DeleteChatByID(ctx context.Context, id string) (*model.Chat, error)
	// ListChatsByUser returns chats owned by userID, descending by
	// creation time. startingAfter/endingBefore are chat ids used as
	// cursors; at most one may be set.
	ListChatsByUser(ctx context.Context, userID string, limit int, startingAfter, endingBefore string) (*ChatPage, error)
	UpdateChatVisibility(ctx context.Context, chatID, visibility string) error
}

// MessageStore covers message persistence and the usage-window count.
type MessageStore interface {
	SaveMessages(ctx context.Context, messages []*model.Message) error
	ListMessagesByChat(ctx context.Context, chatID string) ([]*model.Message, error)
	GetMessageByID(ctx context.Context, id string) (*model.Message, error)
	DeleteMessagesByChatAfter(ctx context.Context, chatID string, after time.Time) error
	// CountRecentMessagesByUser counts user-role messages sent in chats
	// owned by userID within the past window.
	CountRecentMessagesByUser(ctx context.Context, userID string, window time.Duration) (int64, error)
}

// VoteStore covers message voting.
type VoteStore interface {
	SaveVote(ctx context.Context, vote *model.Vote) error
	ListVotesByChat(ctx context.Context, chatID string) ([]*model.Vote, error)
}

// DocumentStore covers artifact documents and their versions.
type DocumentStore interface {
	SaveDocument(ctx context.Context, doc *model.Document) error
	// ListDocumentsByID returns all versions of a document id, ascending
	// by creation time.
	ListDocumentsByID(ctx context.Context, id string) ([]*model.Document, error)
	// GetDocumentByID returns the latest version of a document id.
	GetDocumentByID(ctx context.Context, id string) (*model.Document, error)
	DeleteDocumentsByIDAfter(ctx context.Context, id string, after time.Time) error
}

// SuggestionStore covers suggested document edits.
type SuggestionStore interface {
	SaveSuggestions(ctx context.Context, suggestions []*model.Suggestion) error
	ListSuggestionsByDocument(ctx context.Context, documentID string) ([]*model.Suggestion, error)
}

// StreamStore covers resumable stream markers.
type StreamStore interface {
	CreateStream(ctx context.Context, stream *model.Stream) error
	ListStreamIDsByChat(ctx context.Context, chatID string) ([]string, error)
}

// Store is the full persistence contract seen by services and handlers.
// Callers cannot observe which backing store serviced an operation, only
// the returned value's shape.
type Store interface {
	UserStore
	ChatStore
	MessageStore
	VoteStore
	DocumentStore
	SuggestionStore
	StreamStore
}
