package rbac

import (
	"fmt"

	"github.com/bigelephant/storefront/internal/platform/httpx"
)

// Operation names an externally reachable capability.
type Operation string

// Operations exposed over HTTP.
const (
	OpListProducts Operation = "catalog.list_visible"
	OpRegister     Operation = "auth.register"
	OpLogin        Operation = "auth.login"

	OpLogout         Operation = "auth.logout"
	OpCreateOrder    Operation = "orders.create"
	OpListOwnOrders  Operation = "orders.list_own"
	OpGetOwnOrder    Operation = "orders.get_own"
	OpCancelOwnOrder Operation = "orders.cancel_own"

	OpManageProducts  Operation = "catalog.manage"
	OpListAllOrders   Operation = "orders.list_all"
	OpGetAnyOrder     Operation = "orders.get_any"
	OpTransitionOrder Operation = "orders.transition"
	OpListUsers       Operation = "users.list"
	OpListAdminLogs   Operation = "audit.list"
	OpInspectJobs     Operation = "jobs.inspect"
)

type rule struct {
	public bool
	roles  []Role
}

// policy is the complete access table. Operations absent from it are denied.
var policy = map[Operation]rule{
	OpListProducts: {public: true},
	OpRegister:     {public: true},
	OpLogin:        {public: true},

	OpLogout:         {},
	OpCreateOrder:    {},
	OpListOwnOrders:  {},
	OpGetOwnOrder:    {},
	OpCancelOwnOrder: {},

	OpManageProducts:  {roles: []Role{RoleAdmin}},
	OpListAllOrders:   {roles: []Role{RoleAdmin}},
	OpGetAnyOrder:     {roles: []Role{RoleAdmin}},
	OpTransitionOrder: {roles: []Role{RoleAdmin}},
	OpListUsers:       {roles: []Role{RoleAdmin}},
	OpListAdminLogs:   {roles: []Role{RoleAdmin}},
	OpInspectJobs:     {roles: []Role{RoleAdmin}},
}

var (
	// ErrUnauthenticated is returned when a non-public operation has no caller.
	ErrUnauthenticated = httpx.NewError(httpx.ErrUnauthorized, "Unauthenticated", "authentication required")
	// ErrMissingRole is returned when the caller lacks the role an operation requires.
	ErrMissingRole = httpx.NewError(httpx.ErrForbidden, "Forbidden", "operation not permitted for this account")
)

// Authorize decides whether principal may perform op. A nil or zero principal is
// anonymous.
func Authorize(principal *Principal, op Operation) error {
	r, ok := policy[op]
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrMissingRole)
	}
	if r.public {
		return nil
	}
	if principal == nil || principal.UserID <= 0 {
		return ErrUnauthenticated
	}
	if len(r.roles) == 0 {
		return nil
	}
	for _, role := range r.roles {
		if principal.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", op, ErrMissingRole)
}
