// Package service contains the application services between the HTTP
// handlers and the persistence access layer.
package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/parlor-chat/parlor/internal/auth"
	"github.com/parlor-chat/parlor/internal/model"
	"github.com/parlor-chat/parlor/internal/store"
)

// Credential auth errors surfaced to the HTTP layer.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// AuthService handles credential registration and login, and issues
// signed session tokens.
type AuthService struct {
	store  store.Store
	tokens *auth.TokenCodec
}

// NewAuthService creates a new auth service.
func NewAuthService(s store.Store, tokens *auth.TokenCodec) *AuthService {
	return &AuthService{store: s, tokens: tokens}
}

// Register creates a registered user and returns its identity with a
// signed session token.
func (s *AuthService) Register(ctx context.Context, email, password string) (auth.Identity, string, error) {
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return auth.Identity{}, "", ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return auth.Identity{}, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return auth.Identity{}, "", fmt.Errorf("failed to hash password: %w", err)
	}
	hashed := string(hash)

	user := &model.User{
		Email:    email,
		Name:     email,
		Password: &hashed,
		Kind:     model.UserKindRegular,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return auth.Identity{}, "", fmt.Errorf("failed to create user: %w", err)
	}

	return s.issue(user)
}

// Login verifies credentials and returns the identity with a fresh
// session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (auth.Identity, string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.Identity{}, "", ErrInvalidCredentials
		}
		return auth.Identity{}, "", err
	}
	if user.Password == nil {
		// Guest records have no password and cannot log in directly.
		return auth.Identity{}, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(password)); err != nil {
		return auth.Identity{}, "", ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (auth.Identity, string, error) {
	identity := auth.IdentityFromUser(user)
	token, err := s.tokens.Issue(identity, auth.DefaultSessionTTL)
	if err != nil {
		return auth.Identity{}, "", err
	}
	return identity, token, nil
}
