// Package model defines the database models used throughout the application.
// These models work with both PostgreSQL and SQLite via GORM, and double as
// the record shapes served by the in-memory fallback store.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User kinds. Guest users are provisioned on demand and carry a synthetic,
// time-ordered email.
const (
	UserKindRegular = "regular"
	UserKindGuest   = "guest"
)

// Chat visibility values.
const (
	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

// Vote directions.
const (
	VoteUp   = "up"
	VoteDown = "down"
)

// User represents a registered or guest user.
type User struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;type:text" json:"email"`
	Name      string    `gorm:"type:text" json:"name"`
	Password  *string   `gorm:"type:text" json:"-"`
	Kind      string    `gorm:"not null;type:text;default:regular" json:"kind"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// IsGuest reports whether this user was provisioned as a guest.
func (u *User) IsGuest() bool { return u.Kind == UserKindGuest }

// Chat represents a conversation owned by a single user.
type Chat struct {
	ID         string    `gorm:"primaryKey;type:text" json:"id"`
	UserID     string    `gorm:"column:user_id;not null;type:text;index" json:"userId"`
	Title      string    `gorm:"not null;type:text" json:"title"`
	Visibility string    `gorm:"not null;type:text;default:private" json:"visibility"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"createdAt"`

	User     *User     `gorm:"foreignKey:UserID" json:"-"`
	Messages []Message `gorm:"foreignKey:ChatID" json:"-"`
}

func (Chat) TableName() string { return "chats" }

func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// Message represents a chat message. Parts holds the UIMessage-format
// payload as opaque JSON.
type Message struct {
	ID          string          `gorm:"primaryKey;type:text" json:"id"`
	ChatID      string          `gorm:"column:chat_id;not null;type:text;index" json:"chatId"`
	Role        string          `gorm:"not null;type:text" json:"role"`
	Parts       json.RawMessage `gorm:"type:text;not null" json:"parts"`
	Attachments json.RawMessage `gorm:"type:text" json:"attachments,omitempty"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"createdAt"`

	Chat *Chat `gorm:"foreignKey:ChatID" json:"-"`
}

func (Message) TableName() string { return "messages" }

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// TextPart represents a text part in a UIMessage.
type TextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextParts creates a JSON parts array with a single text part.
func NewTextParts(text string) json.RawMessage {
	parts := []TextPart{{Type: "text", Text: text}}
	data, _ := json.Marshal(parts)
	return data
}

// Vote represents an up/down vote on a message. One vote per message.
type Vote struct {
	ChatID    string `gorm:"column:chat_id;primaryKey;type:text" json:"chatId"`
	MessageID string `gorm:"column:message_id;primaryKey;type:text" json:"messageId"`
	IsUpvoted bool   `gorm:"column:is_upvoted;not null" json:"isUpvoted"`

	Chat    *Chat    `gorm:"foreignKey:ChatID" json:"-"`
	Message *Message `gorm:"foreignKey:MessageID" json:"-"`
}

func (Vote) TableName() string { return "votes" }

// Document represents an artifact produced in a chat. A document id can
// have several versions distinguished by creation time, so the primary key
// is (id, created_at).
type Document struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time `gorm:"primaryKey" json:"createdAt"`
	Title     string    `gorm:"not null;type:text" json:"title"`
	Kind      string    `gorm:"not null;type:text;default:text" json:"kind"`
	Content   string    `gorm:"type:text" json:"content"`
	UserID    string    `gorm:"column:user_id;not null;type:text;index" json:"userId"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Document) TableName() string { return "documents" }

// Suggestion represents a suggested edit to a document version.
type Suggestion struct {
	ID                string    `gorm:"primaryKey;type:text" json:"id"`
	DocumentID        string    `gorm:"column:document_id;not null;type:text;index" json:"documentId"`
	DocumentCreatedAt time.Time `gorm:"column:document_created_at;not null" json:"documentCreatedAt"`
	OriginalText      string    `gorm:"column:original_text;not null;type:text" json:"originalText"`
	SuggestedText     string    `gorm:"column:suggested_text;not null;type:text" json:"suggestedText"`
	Description       string    `gorm:"type:text" json:"description,omitempty"`
	IsResolved        bool      `gorm:"column:is_resolved;not null;default:false" json:"isResolved"`
	UserID            string    `gorm:"column:user_id;not null;type:text" json:"userId"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"createdAt"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (Suggestion) TableName() string { return "suggestions" }

func (s *Suggestion) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Stream marks a resumable response stream attached to a chat.
type Stream struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	ChatID    string    `gorm:"column:chat_id;not null;type:text;index" json:"chatId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`

	Chat *Chat `gorm:"foreignKey:ChatID" json:"-"`
}

func (Stream) TableName() string { return "streams" }

func (s *Stream) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// AllModels returns all model types for migration.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Chat{},
		&Message{},
		&Vote{},
		&Document{},
		&Suggestion{},
		&Stream{},
	}
}
