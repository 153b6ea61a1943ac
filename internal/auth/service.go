// Package auth registers users, issues opaque tokens and resolves them back
// to the acting user.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/park285/cheese-chess/internal/domain"
	"github.com/park285/cheese-chess/internal/store"
)

// Service is the AuthResolver the session layer consumes, plus account management.
type Service struct {
	users  store.UserStore
	tokens store.AuthStore
	cost   int
	logger *zap.Logger
}

type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost. Values outside bcrypt's range fall back to the default.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.cost = cost
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(users store.UserStore, tokens store.AuthStore, opts ...Option) *Service {
	s := &Service{users: users, tokens: tokens, cost: bcrypt.DefaultCost, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account and logs it in.
func (s *Service) Register(ctx context.Context, username, password, email string) (*domain.AuthTicket, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" || email == "" {
		return nil, fmt.Errorf("%w: username, password and email are required", domain.ErrInvalidRequest)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}
	if err := s.users.CreateUser(ctx, domain.User{Username: username, PasswordHash: string(hash), Email: email}); err != nil {
		return nil, err
	}
	s.logger.Info("user_register", zap.String("username", username))
	return s.issue(ctx, username)
}

// Login checks credentials and issues a fresh token. Unknown users and bad
// passwords fail the same way.
func (s *Service) Login(ctx context.Context, username, password string) (*domain.AuthTicket, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", domain.ErrInvalidRequest)
	}
	u, err := s.users.GetUser(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}
	return s.issue(ctx, username)
}

// Logout revokes token.
func (s *Service) Logout(ctx context.Context, token string) error {
	t, err := s.Validate(ctx, token)
	if err != nil {
		return err
	}
	if err := s.tokens.DeleteAuth(ctx, t.Token); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: invalid auth token", domain.ErrUnauthorized)
		}
		return err
	}
	return nil
}

// Validate resolves token to its ticket. Absent and unknown tokens are Unauthorized.
func (s *Service) Validate(ctx context.Context, token string) (*domain.AuthTicket, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: missing auth token", domain.ErrUnauthorized)
	}
	t, err := s.tokens.GetAuth(ctx, token)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: invalid auth token", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Clear drops every account and token.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.tokens.ClearAuth(ctx); err != nil {
		return err
	}
	return s.users.ClearUsers(ctx)
}

func (s *Service) issue(ctx context.Context, username string) (*domain.AuthTicket, error) {
	t := domain.AuthTicket{Token: uuid.NewString(), Username: username}
	if err := s.tokens.PutAuth(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}
