package audithttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigelephant/storefront/internal/audit"
	"github.com/bigelephant/storefront/internal/rbac"
	"github.com/bigelephant/storefront/internal/shared"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.Entry
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(ctx context.Context, admin rbac.Principal, filters audit.TimelineFilters) (audit.Result, error) {
	if err := rbac.Authorize(&admin, rbac.OpListAdminLogs); err != nil {
		return audit.Result{}, err
	}
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) Export(ctx context.Context, admin rbac.Principal, filters audit.TimelineFilters) ([]audit.Entry, error) {
	s.lastFilters = filters
	return s.exportRows, nil
}

func newRouter(svc TimelineService) http.Handler {
	r := chi.NewRouter()
	NewHandler(nil, svc, rbac.Middleware{}).MountRoutes(r)
	return r
}

func request(h http.Handler, path string, sess *shared.Session) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if sess != nil {
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

var adminSession = &shared.Session{UserID: 1, Roles: []string{"Admin"}}

func TestTimelineParsesFilters(t *testing.T) {
	svc := &stubTimelineService{result: audit.Result{
		Entries: []audit.Entry{{ID: 7, AdminID: 1, AdminEmail: "admin@store.local", Action: "Viewed users list"}},
		Paging:  audit.PagingInfo{Page: 2, PageSize: 5},
	}}
	rr := request(newRouter(svc), "/logs?from=2026-03-01&to=2026-03-31&adminId=1&action=order&page=2&pageSize=5", adminSession)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), svc.lastFilters.From)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), svc.lastFilters.To)
	assert.Equal(t, int64(1), svc.lastFilters.AdminID)
	assert.Equal(t, "order", svc.lastFilters.Action)
	assert.Equal(t, 2, svc.lastFilters.Page)
	assert.Equal(t, 5, svc.lastFilters.PageSize)

	var body audit.Result
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Entries, 1)
	assert.Equal(t, "Viewed users list", body.Entries[0].Action)
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	router := newRouter(&stubTimelineService{})
	for _, q := range []string{"from=03-01-2026", "to=x", "from=2026-03-02&to=2026-03-01", "from=2025-01-01&to=2026-01-01", "adminId=-1", "page=0", "pageSize=abc"} {
		rr := request(router, "/logs?"+q, adminSession)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestTimelineRequiresAdmin(t *testing.T) {
	router := newRouter(&stubTimelineService{})
	assert.Equal(t, http.StatusUnauthorized, request(router, "/logs", nil).Code)
	assert.Equal(t, http.StatusForbidden, request(router, "/logs", &shared.Session{UserID: 2, Roles: []string{"Customer"}}).Code)
}

func TestExportCSV(t *testing.T) {
	svc := &stubTimelineService{exportRows: []audit.Entry{
		{ID: 1, AdminID: 1, AdminEmail: "admin@store.local", Action: "Changed order 4 status to Paid", CreatedAt: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)},
	}}
	rr := request(newRouter(svc), "/logs/export.csv", adminSession)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rr.Body.String(), "Changed order 4 status to Paid"))
}
