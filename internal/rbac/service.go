package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Service resolves role assignments stored in user_roles.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// RolesForUser lists the known roles held by a user, ordered by name.
func (s *Service) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role`, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: roles for user %d: %w", userID, err)
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if role, ok := ParseRole(name); ok {
			roles = append(roles, role)
		}
	}
	return roles, rows.Err()
}
