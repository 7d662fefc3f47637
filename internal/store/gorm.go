package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/parlor-chat/parlor/internal/model"
)

// Gorm is the durable Store implementation backed by a GORM connection
// (PostgreSQL or SQLite).
type Gorm struct {
	db *gorm.DB
}

// NewGorm creates a durable store with the given GORM DB.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

var _ Store = (*Gorm)(nil)

// --- Users ---

func (s *Gorm) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Gorm) CreateUser(ctx context.Context, user *model.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *Gorm) CreateGuestUser(ctx context.Context, user *model.User) error {
	user.Kind = model.UserKindGuest
	return s.db.WithContext(ctx).Create(user).Error
}

// --- Chats ---

func (s *Gorm) SaveChat(ctx context.Context, chat *model.Chat) error {
	return s.db.WithContext(ctx).Create(chat).Error
}

func (s *Gorm) GetChatByID(ctx context.Context, id string) (*model.Chat, error) {
	var chat model.Chat
	if err := s.db.WithContext(ctx).First(&chat, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chat, nil
}

func (s *Gorm) DeleteChatByID(ctx context.Context, id string) (*model.Chat, error) {
	var chat model.Chat
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&chat, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		// Delete dependents first; no cascade in schema
		if err := tx.Where("chat_id = ?", id).Delete(&model.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ?", id).Delete(&model.Stream{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Chat{}, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *Gorm) ListChatsByUser(ctx context.Context, userID string, limit int, startingAfter, endingBefore string) (*ChatPage, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")

	switch {
	case startingAfter != "":
		cursor, err := s.GetChatByID(ctx, startingAfter)
		if err != nil {
			return nil, err
		}
		query = query.Where("created_at > ?", cursor.CreatedAt)
	case endingBefore != "":
		cursor, err := s.GetChatByID(ctx, endingBefore)
		if err != nil {
			return nil, err
		}
		query = query.Where("created_at < ?", cursor.CreatedAt)
	}

	// Fetch one extra row to detect whether another page exists.
	var chats []*model.Chat
	if err := query.Limit(limit + 1).Find(&chats).Error; err != nil {
		return nil, err
	}

	hasMore := len(chats) > limit
	if hasMore {
		chats = chats[:limit]
	}
	if chats == nil {
		// Same empty-page shape as the fallback store.
		chats = []*model.Chat{}
	}
	return &ChatPage{Chats: chats, HasMore: hasMore}, nil
}

func (s *Gorm) UpdateChatVisibility(ctx context.Context, chatID, visibility string) error {
	return s.db.WithContext(ctx).Model(&model.Chat{}).
		Where("id = ?", chatID).
		Update("visibility", visibility).Error
}

// --- Messages ---

func (s *Gorm) SaveMessages(ctx context.Context, messages []*model.Message) error {
	if len(messages) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(messages).Error
}

func (s *Gorm) ListMessagesByChat(ctx context.Context, chatID string) ([]*model.Message, error) {
	var messages []*model.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&messages).Error
	return messages, err
}

func (s *Gorm) GetMessageByID(ctx context.Context, id string) (*model.Message, error) {
	var message model.Message
	if err := s.db.WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &message, nil
}

func (s *Gorm) DeleteMessagesByChatAfter(ctx context.Context, chatID string, after time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&model.Message{}).
			Where("chat_id = ? AND created_at >= ?", chatID, after).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("chat_id = ? AND message_id IN ?", chatID, ids).Delete(&model.Vote{}).Error; err != nil {
			return err
		}
		return tx.Where("chat_id = ? AND id IN ?", chatID, ids).Delete(&model.Message{}).Error
	})
}

func (s *Gorm) CountRecentMessagesByUser(ctx context.Context, userID string, window time.Duration) (int64, error) {
	cutoff := time.Now().Add(-window)
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Message{}).
		Joins("JOIN chats ON chats.id = messages.chat_id").
		Where("chats.user_id = ? AND messages.role = ? AND messages.created_at >= ?", userID, "user", cutoff).
		Count(&count).Error
	return count, err
}

// --- Votes ---

func (s *Gorm) SaveVote(ctx context.Context, vote *model.Vote) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Vote
		err := tx.First(&existing, "chat_id = ? AND message_id = ?", vote.ChatID, vote.MessageID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(vote).Error
		}
		return tx.Model(&model.Vote{}).
			Where("chat_id = ? AND message_id = ?", vote.ChatID, vote.MessageID).
			Update("is_upvoted", vote.IsUpvoted).Error
	})
}

func (s *Gorm) ListVotesByChat(ctx context.Context, chatID string) ([]*model.Vote, error) {
	var votes []*model.Vote
	err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).Find(&votes).Error
	return votes, err
}

// --- Documents ---

func (s *Gorm) SaveDocument(ctx context.Context, doc *model.Document) error {
	return s.db.WithContext(ctx).Create(doc).Error
}

func (s *Gorm) ListDocumentsByID(ctx context.Context, id string) ([]*model.Document, error) {
	var docs []*model.Document
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		Order("created_at ASC").
		Find(&docs).Error
	return docs, err
}

func (s *Gorm) GetDocumentByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		Order("created_at DESC").
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (s *Gorm) DeleteDocumentsByIDAfter(ctx context.Context, id string, after time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ? AND document_created_at > ?", id, after).
			Delete(&model.Suggestion{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND created_at > ?", id, after).Delete(&model.Document{}).Error
	})
}

// --- Suggestions ---

func (s *Gorm) SaveSuggestions(ctx context.Context, suggestions []*model.Suggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(suggestions).Error
}

func (s *Gorm) ListSuggestionsByDocument(ctx context.Context, documentID string) ([]*model.Suggestion, error) {
	var suggestions []*model.Suggestion
	err := s.db.WithContext(ctx).Where("document_id = ?", documentID).Find(&suggestions).Error
	return suggestions, err
}

// --- Streams ---

func (s *Gorm) CreateStream(ctx context.Context, stream *model.Stream) error {
	return s.db.WithContext(ctx).Create(stream).Error
}

func (s *Gorm) ListStreamIDsByChat(ctx context.Context, chatID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&model.Stream{}).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}
