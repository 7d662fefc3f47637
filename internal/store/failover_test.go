package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/parlor-chat/parlor/internal/model"
)

// flakyStore wraps a Memory store and fails every call while broken is
// set, simulating a durable store losing its connection.
type flakyStore struct {
	Store
	broken bool
}

var errConnRefused = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

func (s *flakyStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if s.broken {
		return nil, errConnRefused
	}
	return s.Store.GetUserByEmail(ctx, email)
}

func (s *flakyStore) CreateGuestUser(ctx context.Context, user *model.User) error {
	if s.broken {
		return errConnRefused
	}
	return s.Store.CreateGuestUser(ctx, user)
}

func (s *flakyStore) GetChatByID(ctx context.Context, id string) (*model.Chat, error) {
	if s.broken {
		return nil, errConnRefused
	}
	return s.Store.GetChatByID(ctx, id)
}

func (s *flakyStore) SaveChat(ctx context.Context, chat *model.Chat) error {
	if s.broken {
		return errConnRefused
	}
	return s.Store.SaveChat(ctx, chat)
}

func TestFailoverFallbackOnly(t *testing.T) {
	f := NewFailover(nil, NewMemory(), nil)
	ctx := context.Background()

	user := &model.User{Email: "guest-1"}
	if err := f.CreateGuestUser(ctx, user); err != nil {
		t.Fatalf("CreateGuestUser: %v", err)
	}
	got, err := f.GetUserByEmail(ctx, "guest-1")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("got %q, want %q", got.ID, user.ID)
	}

	h := f.Health()
	if h.Mode != "fallback-only" {
		t.Errorf("mode = %q, want fallback-only", h.Mode)
	}
	if h.FallbackOps != 0 {
		t.Errorf("fallback-only operation must not count as degradation, got %d", h.FallbackOps)
	}
}

func TestFailoverDegradesOnInfrastructureError(t *testing.T) {
	durable := &flakyStore{Store: NewMemory()}
	f := NewFailover(durable, NewMemory(), nil)
	ctx := context.Background()

	durable.broken = true
	user := &model.User{Email: "guest-1"}
	if err := f.CreateGuestUser(ctx, user); err != nil {
		t.Fatalf("CreateGuestUser during outage: %v", err)
	}

	// The write landed in the fallback store and reads keep working.
	got, err := f.GetUserByEmail(ctx, "guest-1")
	if err != nil {
		t.Fatalf("GetUserByEmail during outage: %v", err)
	}
	if got.Email != "guest-1" {
		t.Errorf("got %+v", got)
	}

	h := f.Health()
	if h.Mode != "durable" {
		t.Errorf("mode = %q, want durable (a store is configured)", h.Mode)
	}
	if h.FallbackOps != 2 {
		t.Errorf("fallbackOps = %d, want 2", h.FallbackOps)
	}
	if h.LastFallback == nil {
		t.Error("lastFallback should be recorded")
	}
}

func TestFailoverNotFoundPassesThrough(t *testing.T) {
	durable := &flakyStore{Store: NewMemory()}
	memory := NewMemory()
	f := NewFailover(durable, memory, nil)
	ctx := context.Background()

	// Seed the fallback store only; a durable miss must NOT be retried
	// against it.
	if err := memory.SaveChat(ctx, &model.Chat{ID: "c-1", UserID: "u-1"}); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	if _, err := f.GetChatByID(ctx, "c-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("durable miss: err = %v, want ErrNotFound passthrough", err)
	}
	if got := f.Health().FallbackOps; got != 0 {
		t.Errorf("a miss must not count as degradation, fallbackOps = %d", got)
	}
}

func TestFailoverRecovers(t *testing.T) {
	durable := &flakyStore{Store: NewMemory()}
	f := NewFailover(durable, NewMemory(), nil)
	ctx := context.Background()

	durable.broken = true
	if err := f.SaveChat(ctx, &model.Chat{ID: "c-degraded", UserID: "u-1"}); err != nil {
		t.Fatalf("SaveChat during outage: %v", err)
	}

	durable.broken = false
	if err := f.SaveChat(ctx, &model.Chat{ID: "c-durable", UserID: "u-1"}); err != nil {
		t.Fatalf("SaveChat after recovery: %v", err)
	}

	// The durable store sees only what was written while it was up.
	if _, err := durable.Store.GetChatByID(ctx, "c-durable"); err != nil {
		t.Errorf("recovered write missing from durable store: %v", err)
	}
	if _, err := durable.Store.GetChatByID(ctx, "c-degraded"); !errors.Is(err, ErrNotFound) {
		t.Errorf("degraded-mode write should not be in the durable store, err = %v", err)
	}
}

func TestFailoverHealthTimestamp(t *testing.T) {
	durable := &flakyStore{Store: NewMemory(), broken: true}
	f := NewFailover(durable, NewMemory(), nil)

	before := time.Now()
	if err := f.SaveChat(context.Background(), &model.Chat{ID: "c-1", UserID: "u-1"}); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	h := f.Health()
	if h.LastFallback == nil || h.LastFallback.Before(before) {
		t.Errorf("lastFallback = %v, want >= %v", h.LastFallback, before)
	}
}
