package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/bigelephant/storefront/internal/platform/httpx"
	"github.com/bigelephant/storefront/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Require rejects requests whose caller may not perform op.
func (m Middleware) Require(op Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var caller *Principal
			if p, ok := PrincipalFromContext(r.Context()); ok {
				caller = &p
			}
			if err := Authorize(caller, op); err != nil {
				if m.Logger != nil && caller != nil {
					m.Logger.Warn("rbac denied",
						slog.String("operation", string(op)),
						slog.Int64("user_id", caller.UserID),
					)
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext returns the caller attached by the authentication middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	return PrincipalFromSession(shared.SessionFromContext(ctx))
}
