package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parlor-chat/parlor/internal/model"
)

// Memory is the in-process fallback Store. It mirrors the durable schema
// with plain maps and survives for the lifetime of the process only.
// All methods are safe for concurrent use.
type Memory struct {
	mu          sync.RWMutex
	users       map[string]*model.User
	chats       map[string]*model.Chat
	messages    map[string]*model.Message
	votes       map[string]*model.Vote // keyed chatID + "/" + messageID
	documents   map[string][]*model.Document
	suggestions map[string]*model.Suggestion
	streams     map[string]*model.Stream
}

// NewMemory creates an empty fallback store.
func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]*model.User),
		chats:       make(map[string]*model.Chat),
		messages:    make(map[string]*model.Message),
		votes:       make(map[string]*model.Vote),
		documents:   make(map[string][]*model.Document),
		suggestions: make(map[string]*model.Suggestion),
		streams:     make(map[string]*model.Stream),
	}
}

var _ Store = (*Memory)(nil)

// GORM fills ids and creation times via hooks; outside GORM we do it here
// so records round-trip with the same shape either way.
func fillID(id *string) {
	if *id == "" {
		*id = uuid.New().String()
	}
}

func fillTime(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

// --- Users ---

func (s *Memory) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Memory) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fillID(&user.ID)
	fillTime(&user.CreatedAt)
	if user.Kind == "" {
		user.Kind = model.UserKindRegular
	}
	copied := *user
	s.users[user.ID] = &copied
	return nil
}

func (s *Memory) CreateGuestUser(ctx context.Context, user *model.User) error {
	user.Kind = model.UserKindGuest
	return s.CreateUser(ctx, user)
}

// --- Chats ---

func (s *Memory) SaveChat(_ context.Context, chat *model.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fillID(&chat.ID)
	fillTime(&chat.CreatedAt)
	if chat.Visibility == "" {
		chat.Visibility = model.VisibilityPrivate
	}
	copied := *chat
	s.chats[chat.ID] = &copied
	return nil
}

func (s *Memory) GetChatByID(_ context.Context, id string) (*model.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := s.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *chat
	return &copied, nil
}

func (s *Memory) DeleteChatByID(_ context.Context, id string) (*model.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	for mid, m := range s.messages {
		if m.ChatID == id {
			delete(s.messages, mid)
		}
	}
	for key, v := range s.votes {
		if v.ChatID == id {
			delete(s.votes, key)
		}
	}
	for sid, st := range s.streams {
		if st.ChatID == id {
			delete(s.streams, sid)
		}
	}
	delete(s.chats, id)
	copied := *chat
	return &copied, nil
}

func (s *Memory) ListChatsByUser(_ context.Context, userID string, limit int, startingAfter, endingBefore string) (*ChatPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []*model.Chat
	for _, c := range s.chats {
		if c.UserID == userID {
			owned = append(owned, c)
		}
	}
	// Newest first, same as the durable query.
	sort.Slice(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	switch {
	case startingAfter != "":
		cursor, ok := s.chats[startingAfter]
		if !ok {
			return nil, ErrNotFound
		}
		owned = filterChats(owned, func(c *model.Chat) bool {
			return c.CreatedAt.After(cursor.CreatedAt)
		})
	case endingBefore != "":
		cursor, ok := s.chats[endingBefore]
		if !ok {
			return nil, ErrNotFound
		}
		owned = filterChats(owned, func(c *model.Chat) bool {
			return c.CreatedAt.Before(cursor.CreatedAt)
		})
	}

	// limit+1 probe, identical to the durable implementation.
	hasMore := len(owned) > limit
	if hasMore {
		owned = owned[:limit]
	}
	page := &ChatPage{Chats: make([]*model.Chat, 0, len(owned)), HasMore: hasMore}
	for _, c := range owned {
		copied := *c
		page.Chats = append(page.Chats, &copied)
	}
	return page, nil
}

func filterChats(chats []*model.Chat, keep func(*model.Chat) bool) []*model.Chat {
	out := chats[:0:0]
	for _, c := range chats {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Memory) UpdateChatVisibility(_ context.Context, chatID, visibility string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chat, ok := s.chats[chatID]; ok {
		chat.Visibility = visibility
	}
	return nil
}

// --- Messages ---

func (s *Memory) SaveMessages(_ context.Context, messages []*model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range messages {
		fillID(&m.ID)
		fillTime(&m.CreatedAt)
		copied := *m
		s.messages[m.ID] = &copied
	}
	return nil
}

func (s *Memory) ListMessagesByChat(_ context.Context, chatID string) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Memory) GetMessageByID(_ context.Context, id string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *m
	return &copied, nil
}

func (s *Memory) DeleteMessagesByChatAfter(_ context.Context, chatID string, after time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.messages {
		if m.ChatID == chatID && !m.CreatedAt.Before(after) {
			delete(s.votes, voteKey(chatID, id))
			delete(s.messages, id)
		}
	}
	return nil
}

func (s *Memory) CountRecentMessagesByUser(_ context.Context, userID string, window time.Duration) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().Add(-window)
	var count int64
	for _, m := range s.messages {
		if m.Role != "user" || m.CreatedAt.Before(cutoff) {
			continue
		}
		if chat, ok := s.chats[m.ChatID]; ok && chat.UserID == userID {
			count++
		}
	}
	return count, nil
}

// --- Votes ---

func voteKey(chatID, messageID string) string {
	return chatID + "/" + messageID
}

func (s *Memory) SaveVote(_ context.Context, vote *model.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *vote
	s.votes[voteKey(vote.ChatID, vote.MessageID)] = &copied
	return nil
}

func (s *Memory) ListVotesByChat(_ context.Context, chatID string) ([]*model.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Vote
	for _, v := range s.votes {
		if v.ChatID == chatID {
			copied := *v
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MessageID < out[j].MessageID
	})
	return out, nil
}

// --- Documents ---

func (s *Memory) SaveDocument(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fillID(&doc.ID)
	fillTime(&doc.CreatedAt)
	copied := *doc
	s.documents[doc.ID] = append(s.documents[doc.ID], &copied)
	return nil
}

func (s *Memory) ListDocumentsByID(_ context.Context, id string) ([]*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.documents[id]
	out := make([]*model.Document, 0, len(versions))
	for _, d := range versions {
		copied := *d
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Memory) GetDocumentByID(_ context.Context, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := s.documents[id]
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	latest := versions[0]
	for _, d := range versions[1:] {
		if d.CreatedAt.After(latest.CreatedAt) {
			latest = d
		}
	}
	copied := *latest
	return &copied, nil
}

func (s *Memory) DeleteDocumentsByIDAfter(_ context.Context, id string, after time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.documents[id]
	kept := versions[:0:0]
	for _, d := range versions {
		if d.CreatedAt.After(after) {
			for sid, sg := range s.suggestions {
				if sg.DocumentID == id && sg.DocumentCreatedAt.Equal(d.CreatedAt) {
					delete(s.suggestions, sid)
				}
			}
			continue
		}
		kept = append(kept, d)
	}
	if len(kept) == 0 {
		delete(s.documents, id)
	} else {
		s.documents[id] = kept
	}
	return nil
}

// --- Suggestions ---

func (s *Memory) SaveSuggestions(_ context.Context, suggestions []*model.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sg := range suggestions {
		fillID(&sg.ID)
		fillTime(&sg.CreatedAt)
		copied := *sg
		s.suggestions[sg.ID] = &copied
	}
	return nil
}

func (s *Memory) ListSuggestionsByDocument(_ context.Context, documentID string) ([]*model.Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Suggestion
	for _, sg := range s.suggestions {
		if sg.DocumentID == documentID {
			copied := *sg
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// --- Streams ---

func (s *Memory) CreateStream(_ context.Context, stream *model.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fillID(&stream.ID)
	fillTime(&stream.CreatedAt)
	copied := *stream
	s.streams[stream.ID] = &copied
	return nil
}

func (s *Memory) ListStreamIDsByChat(_ context.Context, chatID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var markers []*model.Stream
	for _, st := range s.streams {
		if st.ChatID == chatID {
			markers = append(markers, st)
		}
	}
	sort.Slice(markers, func(i, j int) bool {
		return markers[i].CreatedAt.Before(markers[j].CreatedAt)
	})
	ids := make([]string, 0, len(markers))
	for _, st := range markers {
		ids = append(ids, st.ID)
	}
	return ids, nil
}
