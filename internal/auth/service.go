package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/bigelephant/storefront/internal/rbac"
	"github.com/bigelephant/storefront/internal/shared"
)

// RoleResolver loads the roles granted to a user.
type RoleResolver interface {
	RolesForUser(ctx context.Context, userID int64) ([]rbac.Role, error)
}

// SessionStore issues and revokes session tokens.
type SessionStore interface {
	Issue(ctx context.Context, userID int64, email string, roles []string) (*shared.Session, error)
	Revoke(ctx context.Context, token string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	roles    RoleResolver
	sessions SessionStore
}

// NewService constructs a new Service.
func NewService(repo Repository, roles RoleResolver, sessions SessionStore) *Service {
	return &Service{repo: repo, roles: roles, sessions: sessions}
}

// Register creates a Customer account.
func (s *Service) Register(ctx context.Context, email, password string) (*User, error) {
	email = NormalizeEmail(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, email, string(hash), rbac.RoleCustomer)
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the credentials and opens a session carrying the user's roles.
func (s *Service) Login(ctx context.Context, email, password string) (*shared.Session, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	roles, err := s.roles.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	return s.sessions.Issue(ctx, user.ID, user.Email, names)
}

// Logout revokes the session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}
