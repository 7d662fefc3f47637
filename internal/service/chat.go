package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parlor-chat/parlor/internal/auth"
	"github.com/parlor-chat/parlor/internal/model"
	"github.com/parlor-chat/parlor/internal/store"
)

// Chat access errors surfaced to the HTTP layer.
var (
	ErrChatNotFound  = errors.New("chat not found")
	ErrForbidden     = errors.New("not allowed")
	ErrQuotaExceeded = errors.New("daily message quota exceeded")
)

// Daily message quotas by identity kind.
const (
	guestDailyMessageLimit   = 20
	regularDailyMessageLimit = 100
	quotaWindow              = 24 * time.Hour
)

// ChatService owns chat lifecycle, message persistence, and voting.
type ChatService struct {
	store store.Store
}

// NewChatService creates a new chat service.
func NewChatService(s store.Store) *ChatService {
	return &ChatService{store: s}
}

// AppendMessage appends a user message to a chat, creating the chat on
// first use with a title derived from the message. A stream marker is
// created for the downstream completion consumer to attach to.
func (s *ChatService) AppendMessage(ctx context.Context, identity auth.Identity, chatID string, message *model.Message, visibility string) (*model.Chat, error) {
	if err := s.checkQuota(ctx, identity); err != nil {
		return nil, err
	}

	chat, err := s.store.GetChatByID(ctx, chatID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if visibility == "" {
			visibility = model.VisibilityPrivate
		}
		chat = &model.Chat{
			ID:         chatID,
			UserID:     identity.ID,
			Title:      deriveTitle(message.Parts),
			Visibility: visibility,
		}
		if err := s.store.SaveChat(ctx, chat); err != nil {
			return nil, fmt.Errorf("failed to save chat: %w", err)
		}
	case err != nil:
		return nil, err
	case chat.UserID != identity.ID:
		return nil, ErrForbidden
	}

	message.ChatID = chat.ID
	if message.Role == "" {
		message.Role = "user"
	}
	if err := s.store.SaveMessages(ctx, []*model.Message{message}); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	if err := s.store.CreateStream(ctx, &model.Stream{ID: uuid.New().String(), ChatID: chat.ID}); err != nil {
		return nil, fmt.Errorf("failed to create stream marker: %w", err)
	}

	return chat, nil
}

func (s *ChatService) checkQuota(ctx context.Context, identity auth.Identity) error {
	limit := int64(regularDailyMessageLimit)
	if identity.IsGuest() {
		limit = guestDailyMessageLimit
	}
	count, err := s.store.CountRecentMessagesByUser(ctx, identity.ID, quotaWindow)
	if err != nil {
		return err
	}
	if count >= limit {
		return ErrQuotaExceeded
	}
	return nil
}

// GetChat returns a chat, enforcing owner-only access to private chats.
func (s *ChatService) GetChat(ctx context.Context, requesterID, chatID string) (*model.Chat, error) {
	chat, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if chat.Visibility == model.VisibilityPrivate && chat.UserID != requesterID {
		return nil, ErrForbidden
	}
	return chat, nil
}

// History lists the requester's chats, newest first.
func (s *ChatService) History(ctx context.Context, userID string, limit int, startingAfter, endingBefore string) (*store.ChatPage, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.ListChatsByUser(ctx, userID, limit, startingAfter, endingBefore)
}

// Messages lists a chat's messages after an access check.
func (s *ChatService) Messages(ctx context.Context, requesterID, chatID string) ([]*model.Message, error) {
	if _, err := s.GetChat(ctx, requesterID, chatID); err != nil {
		return nil, err
	}
	return s.store.ListMessagesByChat(ctx, chatID)
}

// DeleteMessagesAfter removes a chat's messages from a timestamp onward
// (used when regenerating a response). Owner only.
func (s *ChatService) DeleteMessagesAfter(ctx context.Context, requesterID, chatID string, after time.Time) error {
	chat, err := s.GetChat(ctx, requesterID, chatID)
	if err != nil {
		return err
	}
	if chat.UserID != requesterID {
		return ErrForbidden
	}
	return s.store.DeleteMessagesByChatAfter(ctx, chatID, after)
}

// DeleteMessagesFrom removes a message and everything after it in the
// chat, keyed by message id (used when regenerating from a specific
// turn). Owner only.
func (s *ChatService) DeleteMessagesFrom(ctx context.Context, requesterID, chatID, messageID string) error {
	message, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	if message.ChatID != chatID {
		return ErrChatNotFound
	}
	return s.DeleteMessagesAfter(ctx, requesterID, chatID, message.CreatedAt)
}

// DeleteChat removes a chat and its dependents. Owner only.
func (s *ChatService) DeleteChat(ctx context.Context, requesterID, chatID string) (*model.Chat, error) {
	chat, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if chat.UserID != requesterID {
		return nil, ErrForbidden
	}
	return s.store.DeleteChatByID(ctx, chatID)
}

// UpdateVisibility flips a chat between private and public. Owner only.
func (s *ChatService) UpdateVisibility(ctx context.Context, requesterID, chatID, visibility string) error {
	if visibility != model.VisibilityPrivate && visibility != model.VisibilityPublic {
		return fmt.Errorf("invalid visibility %q", visibility)
	}
	chat, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	if chat.UserID != requesterID {
		return ErrForbidden
	}
	return s.store.UpdateChatVisibility(ctx, chatID, visibility)
}

// Vote records an up/down vote on a message in a chat the requester can
// read.
func (s *ChatService) Vote(ctx context.Context, requesterID, chatID, messageID, direction string) error {
	if direction != model.VoteUp && direction != model.VoteDown {
		return fmt.Errorf("invalid vote direction %q", direction)
	}
	if _, err := s.GetChat(ctx, requesterID, chatID); err != nil {
		return err
	}
	return s.store.SaveVote(ctx, &model.Vote{
		ChatID:    chatID,
		MessageID: messageID,
		IsUpvoted: direction == model.VoteUp,
	})
}

// Votes lists votes for a chat the requester can read.
func (s *ChatService) Votes(ctx context.Context, requesterID, chatID string) ([]*model.Vote, error) {
	if _, err := s.GetChat(ctx, requesterID, chatID); err != nil {
		return nil, err
	}
	return s.store.ListVotesByChat(ctx, chatID)
}

// StreamIDs lists the resumable stream markers for a chat.
func (s *ChatService) StreamIDs(ctx context.Context, requesterID, chatID string) ([]string, error) {
	if _, err := s.GetChat(ctx, requesterID, chatID); err != nil {
		return nil, err
	}
	return s.store.ListStreamIDsByChat(ctx, chatID)
}

// deriveTitle extracts a title from a message's first text part.
func deriveTitle(parts json.RawMessage) string {
	const fallback = "New Chat"
	if len(parts) == 0 {
		return fallback
	}
	var decoded []model.TextPart
	if err := json.Unmarshal(parts, &decoded); err != nil {
		return fallback
	}
	for _, part := range decoded {
		if part.Type != "text" {
			continue
		}
		text := strings.TrimSpace(part.Text)
		if text == "" {
			continue
		}
		if len(text) > 80 {
			text = strings.TrimSpace(text[:80])
		}
		return text
	}
	return fallback
}
