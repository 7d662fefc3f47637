package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/parlor-chat/parlor/internal/model"
)

// Failover is the single composition point between the durable store and
// the in-memory fallback. Every operation attempts the durable store
// first; if no durable store is configured, or the attempt fails with an
// infrastructure error, the operation is re-executed against the fallback
// store and that result is returned. Availability failures are logged,
// never surfaced to the caller.
//
// ErrNotFound is a result, not a store failure, and passes straight
// through.
//
// A flapping durable store can serve successive calls from different
// backing stores; records written while degraded live only in the
// fallback store. That divergence is deliberate (degraded/demo mode) and
// is surfaced through Health and the degradation logs.
type Failover struct {
	durable Store // nil when no durable store is configured
	memory  *Memory
	log     *zap.Logger

	fallbackOps  atomic.Int64
	mu           sync.Mutex
	lastFallback time.Time
}

// Health describes which backing store is in play.
type Health struct {
	Mode         string     `json:"mode"` // "durable" or "fallback-only"
	FallbackOps  int64      `json:"fallbackOps"`
	LastFallback *time.Time `json:"lastFallback,omitempty"`
}

// NewFailover composes the DAL. durable may be nil for fallback-only mode.
func NewFailover(durable Store, memory *Memory, log *zap.Logger) *Failover {
	if log == nil {
		log = zap.NewNop()
	}
	return &Failover{durable: durable, memory: memory, log: log}
}

var _ Store = (*Failover)(nil)

// Health reports the current degradation state.
func (f *Failover) Health() Health {
	h := Health{Mode: "durable", FallbackOps: f.fallbackOps.Load()}
	if f.durable == nil {
		h.Mode = "fallback-only"
	}
	f.mu.Lock()
	if !f.lastFallback.IsZero() {
		t := f.lastFallback
		h.LastFallback = &t
	}
	f.mu.Unlock()
	return h
}

// usable reports whether the durable result should be returned as-is.
func usable(err error) bool {
	return err == nil || errors.Is(err, ErrNotFound)
}

func (f *Failover) degraded(op string, err error) {
	f.fallbackOps.Add(1)
	f.mu.Lock()
	f.lastFallback = time.Now()
	f.mu.Unlock()
	f.log.Warn("durable store failed, serving from fallback store",
		zap.String("op", op),
		zap.Error(err),
	)
}

// --- Users ---

func (f *Failover) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if f.durable != nil {
		user, err := f.durable.GetUserByEmail(ctx, email)
		if usable(err) {
			return user, err
		}
		f.degraded("GetUserByEmail", err)
	}
	return f.memory.GetUserByEmail(ctx, email)
}

func (f *Failover) CreateUser(ctx context.Context, user *model.User) error {
	if f.durable != nil {
		err := f.durable.CreateUser(ctx, user)
		if err == nil {
			return nil
		}
		f.degraded("CreateUser", err)
	}
	return f.memory.CreateUser(ctx, user)
}

func (f *Failover) CreateGuestUser(ctx context.Context, user *model.User) error {
	if f.durable != nil {
		err := f.durable.CreateGuestUser(ctx, user)
		if err == nil {
			return nil
		}
		f.degraded("CreateGuestUser", err)
	}
	return f.memory.CreateGuestUser(ctx, user)
}

// --- Chats ---

func (f *Failover) SaveChat(ctx context.Context, chat *model.Chat) error {
	if f.durable != nil {
		err := f.durable.SaveChat(ctx, chat)
		if err == nil {
			return nil
		}
		f.degraded("SaveChat", err)
	}
	return f.memory.SaveChat(ctx, chat)
}

func (f *Failover) GetChatByID(ctx context.Context, id string) (*model.Chat, error) {
	if f.durable != nil {
		chat, err := f.durable.GetChatByID(ctx, id)
		if usable(err) {
			return chat, err
		}
		f.degraded("GetChatByID", err)
	}
	return f.memory.GetChatByID(ctx, id)
}

func (f *Failover) DeleteChatByID(ctx context.Context, id string) (*model.Chat, error) {
	if f.durable != nil {
		chat, err := f.durable.DeleteChatByID(ctx, id)
		if usable(err) {
			return chat, err
		}
		f.degraded("DeleteChatByID", err)
	}
	return f.memory.DeleteChatByID(ctx, id)
}

func (f *Failover) ListChatsByUser(ctx context.Context, userID string, limit int, startingAfter, endingBefore string) (*ChatPage, error) {
	if f.durable != nil {
		page, err := f.durable.ListChatsByUser(ctx, userID, limit, startingAfter, endingBefore)
		if usable(err) {
			return page, err
		}
		f.degraded("ListChatsByUser", err)
	}
	return f.memory.ListChatsByUser(ctx, userID, limit, startingAfter, endingBefore)
}

func (f *Failover) UpdateChatVisibility(ctx context.Context, chatID, visibility string) error {
	if f.durable != nil {
		err := f.durable.UpdateChatVisibility(ctx, chatID, visibility)
		if err == nil {
			return nil
		}
		f.degraded("UpdateChatVisibility", err)
	}
	return f.memory.UpdateChatVisibility(ctx, chatID, visibility)
}

// --- Messages ---

func (f *Failover) SaveMessages(ctx context.Context, messages []*model.Message) error {
	if f.durable != nil {
		err := f.durable.SaveMessages(ctx, messages)
		if err == nil {
			return nil
		}
		f.degraded("SaveMessages", err)
	}
	return f.memory.SaveMessages(ctx, messages)
}

func (f *Failover) ListMessagesByChat(ctx context.Context, chatID string) ([]*model.Message, error) {
	if f.durable != nil {
		messages, err := f.durable.ListMessagesByChat(ctx, chatID)
		if usable(err) {
			return messages, err
		}
		f.degraded("ListMessagesByChat", err)
	}
	return f.memory.ListMessagesByChat(ctx, chatID)
}

func (f *Failover) GetMessageByID(ctx context.Context, id string) (*model.Message, error) {
	if f.durable != nil {
		message, err := f.durable.GetMessageByID(ctx, id)
		if usable(err) {
			return message, err
		}
		f.degraded("GetMessageByID", err)
	}
	return f.memory.GetMessageByID(ctx, id)
}

func (f *Failover) DeleteMessagesByChatAfter(ctx context.Context, chatID string, after time.Time) error {
	if f.durable != nil {
		err := f.durable.DeleteMessagesByChatAfter(ctx, chatID, after)
		if err == nil {
			return nil
		}
		f.degraded("DeleteMessagesByChatAfter", err)
	}
	return f.memory.DeleteMessagesByChatAfter(ctx, chatID, after)
}

func (f *Failover) CountRecentMessagesByUser(ctx context.Context, userID string, window time.Duration) (int64, error) {
	if f.durable != nil {
		count, err := f.durable.CountRecentMessagesByUser(ctx, userID, window)
		if usable(err) {
			return count, err
		}
		f.degraded("CountRecentMessagesByUser", err)
	}
	return f.memory.CountRecentMessagesByUser(ctx, userID, window)
}

// --- Votes ---

func (f *Failover) SaveVote(ctx context.Context, vote *model.Vote) error {
	if f.durable != nil {
		err := f.durable.SaveVote(ctx, vote)
		if err == nil {
			return nil
		}
		f.degraded("SaveVote", err)
	}
	return f.memory.SaveVote(ctx, vote)
}

func (f *Failover) ListVotesByChat(ctx context.Context, chatID string) ([]*model.Vote, error) {
	if f.durable != nil {
		votes, err := f.durable.ListVotesByChat(ctx, chatID)
		if usable(err) {
			return votes, err
		}
		f.degraded("ListVotesByChat", err)
	}
	return f.memory.ListVotesByChat(ctx, chatID)
}

// --- Documents ---

func (f *Failover) SaveDocument(ctx context.Context, doc *model.Document) error {
	if f.durable != nil {
		err := f.durable.SaveDocument(ctx, doc)
		if err == nil {
			return nil
		}
		f.degraded("SaveDocument", err)
	}
	return f.memory.SaveDocument(ctx, doc)
}

func (f *Failover) ListDocumentsByID(ctx context.Context, id string) ([]*model.Document, error) {
	if f.durable != nil {
		docs, err := f.durable.ListDocumentsByID(ctx, id)
		if usable(err) {
			return docs, err
		}
		f.degraded("ListDocumentsByID", err)
	}
	return f.memory.ListDocumentsByID(ctx, id)
}

func (f *Failover) GetDocumentByID(ctx context.Context, id string) (*model.Document, error) {
	if f.durable != nil {
		doc, err := f.durable.GetDocumentByID(ctx, id)
		if usable(err) {
			return doc, err
		}
		f.degraded("GetDocumentByID", err)
	}
	return f.memory.GetDocumentByID(ctx, id)
}

func (f *Failover) DeleteDocumentsByIDAfter(ctx context.Context, id string, after time.Time) error {
	if f.durable != nil {
		err := f.durable.DeleteDocumentsByIDAfter(ctx, id, after)
		if err == nil {
			return nil
		}
		f.degraded("DeleteDocumentsByIDAfter", err)
	}
	return f.memory.DeleteDocumentsByIDAfter(ctx, id, after)
}

// --- Suggestions ---

func (f *Failover) SaveSuggestions(ctx context.Context, suggestions []*model.Suggestion) error {
	if f.durable != nil {
		err := f.durable.SaveSuggestions(ctx, suggestions)
		if err == nil {
			return nil
		}
		f.degraded("SaveSuggestions", err)
	}
	return f.memory.SaveSuggestions(ctx, suggestions)
}

func (f *Failover) ListSuggestionsByDocument(ctx context.Context, documentID string) ([]*model.Suggestion, error) {
	if f.durable != nil {
		suggestions, err := f.durable.ListSuggestionsByDocument(ctx, documentID)
		if usable(err) {
			return suggestions, err
		}
		f.degraded("ListSuggestionsByDocument", err)
	}
	return f.memory.ListSuggestionsByDocument(ctx, documentID)
}

// --- Streams ---

func (f *Failover) CreateStream(ctx context.Context, stream *model.Stream) error {
	if f.durable != nil {
		err := f.durable.CreateStream(ctx, stream)
		if err == nil {
			return nil
		}
		f.degraded("CreateStream", err)
	}
	return f.memory.CreateStream(ctx, stream)
}

func (f *Failover) ListStreamIDsByChat(ctx context.Context, chatID string) ([]string, error) {
	if f.durable != nil {
		ids, err := f.durable.ListStreamIDsByChat(ctx, chatID)
		if usable(err) {
			return ids, err
		}
		f.degraded("ListStreamIDsByChat", err)
	}
	return f.memory.ListStreamIDsByChat(ctx, chatID)
}
