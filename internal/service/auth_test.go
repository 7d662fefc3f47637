package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/parlor-chat/parlor/internal/auth"
	"github.com/parlor-chat/parlor/internal/store"
)

func newAuthService() (*AuthService, *auth.TokenCodec) {
	codec := auth.NewTokenCodec([]byte("test-secret"), false)
	return NewAuthService(store.NewMemory(), codec), codec
}

func TestRegisterAndLogin(t *testing.T) {
	s, codec := newAuthService()
	ctx := context.Background()

	identity, token, err := s.Register(ctx, "u@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if identity.Kind != auth.KindRegular {
		t.Errorf("kind = %q, want regular", identity.Kind)
	}
	if got, err := codec.Verify(token); err != nil || got.ID != identity.ID {
		t.Errorf("issued token does not verify: %v", err)
	}

	loggedIn, token2, err := s.Login(ctx, "u@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loggedIn.ID != identity.ID {
		t.Errorf("login identity = %+v, want %+v", loggedIn, identity)
	}
	if _, err := codec.Verify(token2); err != nil {
		t.Errorf("login token does not verify: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	s, _ := newAuthService()
	ctx := context.Background()

	if _, _, err := s.Register(ctx, "u@example.com", "pw-one"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := s.Register(ctx, "u@example.com", "pw-two"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("err = %v, want ErrEmailTaken", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s, _ := newAuthService()
	ctx := context.Background()

	if _, _, err := s.Register(ctx, "u@example.com", "correct"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := s.Login(ctx, "u@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := s.Login(ctx, "nobody@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginRejectsGuestRecords(t *testing.T) {
	mem := store.NewMemory()
	codec := auth.NewTokenCodec([]byte("test-secret"), false)
	s := NewAuthService(mem, codec)
	ctx := context.Background()

	guests := NewGuestService(mem, nil)
	identity, err := guests.Provision(ctx)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}

	if _, _, err := s.Login(ctx, identity.Email, ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("guest login: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestGuestProvision(t *testing.T) {
	mem := store.NewMemory()
	s := NewGuestService(mem, nil)
	ctx := context.Background()

	identity, err := s.Provision(ctx)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if identity.ID == "" {
		t.Error("guest must get an id")
	}
	if !strings.HasPrefix(identity.Email, "guest-") {
		t.Errorf("email = %q, want guest- prefix", identity.Email)
	}
	if identity.Kind != auth.KindGuest {
		t.Errorf("kind = %q, want guest", identity.Kind)
	}

	// The record is queryable through the store.
	user, err := mem.GetUserByEmail(ctx, identity.Email)
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if !user.IsGuest() {
		t.Error("persisted record should be a guest")
	}
	if user.Password != nil {
		t.Error("guest records carry no password")
	}
}
