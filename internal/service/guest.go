package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parlor-chat/parlor/internal/auth"
	"github.com/parlor-chat/parlor/internal/model"
	"github.com/parlor-chat/parlor/internal/store"
)

// GuestService provisions ephemeral guest identities. Provisioning is a
// two-step contract: Provision creates the record, and the HTTP boundary
// attaches the cookie. A response lost between the two orphans the guest
// record; that is accepted and logged rather than compensated.
type GuestService struct {
	store store.Store
	log   *zap.Logger
}

// NewGuestService creates a new guest provisioner.
func NewGuestService(s store.Store, log *zap.Logger) *GuestService {
	if log == nil {
		log = zap.NewNop()
	}
	return &GuestService{store: s, log: log}
}

// Provision creates a guest user with a synthetic, time-ordered email and
// returns its identity. Safe to call when the durable store is
// unreachable; the DAL falls through to the fallback store transparently.
func (s *GuestService) Provision(ctx context.Context) (auth.Identity, error) {
	email := fmt.Sprintf("guest-%d", time.Now().UnixMilli())
	user := &model.User{
		ID:    uuid.New().String(),
		Email: email,
		Name:  email,
		Kind:  model.UserKindGuest,
	}
	if err := s.store.CreateGuestUser(ctx, user); err != nil {
		return auth.Identity{}, fmt.Errorf("failed to create guest user: %w", err)
	}

	identity := auth.IdentityFromUser(user)
	s.log.Info("provisioned guest identity",
		zap.String("id", identity.ID),
		zap.String("email", identity.Email),
	)
	return identity, nil
}
