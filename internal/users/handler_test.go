package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigelephant/storefront/internal/rbac"
	"github.com/bigelephant/storefront/internal/shared"
)

type stubRepo struct {
	users []User
	err   error
}

func (s stubRepo) ListUsers(ctx context.Context) ([]User, error) {
	return s.users, s.err
}

type recordingAudit struct {
	actions []string
}

func (a *recordingAudit) Record(ctx context.Context, adminID int64, action string) error {
	a.actions = append(a.actions, action)
	return nil
}

func serve(svc *Service, sess *shared.Session) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewHandler(nil, svc, rbac.Middleware{}).MountRoutes(r)
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	if sess != nil {
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestListUsersAuditsView(t *testing.T) {
	audit := &recordingAudit{}
	svc := NewService(stubRepo{users: []User{
		{ID: 1, Email: "admin@store.local", Roles: []string{"Admin", "Customer"}},
		{ID: 2, Email: "a@x.io", Roles: []string{"Customer"}},
	}}, audit)

	rr := serve(svc, &shared.Session{UserID: 1, Roles: []string{"Admin"}})
	require.Equal(t, http.StatusOK, rr.Code)
	var body []map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body, 2)
	assert.Equal(t, "a@x.io", body[1]["email"])
	assert.NotContains(t, body[1], "passwordHash")
	assert.Equal(t, []string{"Viewed users list"}, audit.actions)
}

func TestListUsersRequiresAdmin(t *testing.T) {
	audit := &recordingAudit{}
	svc := NewService(stubRepo{}, audit)

	assert.Equal(t, http.StatusUnauthorized, serve(svc, nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(svc, &shared.Session{UserID: 2, Roles: []string{"Customer"}}).Code)
	assert.Empty(t, audit.actions)
}

func TestListUsersRepositoryFailure(t *testing.T) {
	audit := &recordingAudit{}
	svc := NewService(stubRepo{err: errors.New("db down")}, audit)

	rr := serve(svc, &shared.Session{UserID: 1, Roles: []string{"Admin"}})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Empty(t, audit.actions)
}
