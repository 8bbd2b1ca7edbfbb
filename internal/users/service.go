package users

import (
	"context"
	"fmt"

	"github.com/bigelephant/storefront/internal/rbac"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
}

// AuditPort records admin views.
type AuditPort interface {
	Record(ctx context.Context, adminID int64, action string) error
}

// Service handles user business logic.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// ListUsers returns all users and records the view.
func (s *Service) ListUsers(ctx context.Context, admin rbac.Principal) ([]User, error) {
	if err := rbac.Authorize(&admin, rbac.OpListUsers); err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, admin.UserID, "Viewed users list"); err != nil {
			return nil, fmt.Errorf("users: audit view: %w", err)
		}
	}
	return users, nil
}
