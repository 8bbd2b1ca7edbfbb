package rbac

import (
	"slices"

	"github.com/bigelephant/storefront/internal/shared"
)

// Role represents a high-level permission grouping.
type Role string

// Known roles.
const (
	RoleCustomer Role = "Customer"
	RoleAdmin    Role = "Admin"
)

// ParseRole maps a stored role name onto a known Role.
func ParseRole(name string) (Role, bool) {
	switch Role(name) {
	case RoleCustomer, RoleAdmin:
		return Role(name), true
	}
	return "", false
}

// Principal describes the authenticated actor. It is passed explicitly into every
// service operation that depends on who is calling.
type Principal struct {
	UserID int64
	Email  string
	Roles  []Role
}

// HasRole reports whether the principal holds role.
func (p Principal) HasRole(role Role) bool {
	return slices.Contains(p.Roles, role)
}

// IsAdmin is shorthand for HasRole(RoleAdmin).
func (p Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// PrincipalFromSession converts a resolved session into a Principal. Unknown role names
// stored in the session are ignored.
func PrincipalFromSession(sess *shared.Session) (Principal, bool) {
	if sess == nil || sess.UserID <= 0 {
		return Principal{}, false
	}
	p := Principal{UserID: sess.UserID, Email: sess.Email}
	for _, name := range sess.Roles {
		if role, ok := ParseRole(name); ok {
			p.Roles = append(p.Roles, role)
		}
	}
	return p, true
}
