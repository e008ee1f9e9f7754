package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tasklight/tasklight/internal/platform/httpx"
)

// Service wraps registration and authentication business rules.
type Service struct {
	repo   Repository
	hasher Hasher
}

// NewService constructs a new Service.
func NewService(repo Repository, hasher Hasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

// Register creates a new account with a hashed password. A duplicate email
// surfaces as ErrEmailTaken.
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	user := User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate validates email/password credentials. An unknown email and a
// wrong password both return ErrInvalidCredentials so callers cannot probe
// which accounts exist.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil, httpx.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, httpx.ErrInvalidCredentials
	}
	return user, nil
}

// UserByID loads an account by id.
func (s *Service) UserByID(ctx context.Context, id string) (*User, error) {
	return s.repo.FindByID(ctx, id)
}
