package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bigelephant/storefront/internal/shared"
)

func TestRequireStatusCodes(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Middleware{}.Require(OpListUsers)(ok)

	serve := func(sess *shared.Session) int {
		req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
		if sess != nil {
			req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusUnauthorized, serve(nil))
	require.Equal(t, http.StatusForbidden, serve(&shared.Session{UserID: 1, Roles: []string{"Customer"}}))
	require.Equal(t, http.StatusNoContent, serve(&shared.Session{UserID: 2, Roles: []string{"Admin"}}))
}
