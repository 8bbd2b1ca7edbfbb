package orders

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigelephant/storefront/internal/platform/httpx"
	"github.com/bigelephant/storefront/internal/rbac"
	"github.com/bigelephant/storefront/internal/shared"
)

var (
	adminSession     = &shared.Session{UserID: 1, Roles: []string{"Admin"}}
	customerASession = &shared.Session{UserID: 2, Roles: []string{"Customer"}}
	customerBSession = &shared.Session{UserID: 3, Roles: []string{"Customer"}}
)

func newTestRouter(svc *Service, createPerMinute int) http.Handler {
	h := NewHandler(svc, nil, rbac.Middleware{}, createPerMinute)
	r := chi.NewRouter()
	h.MountRoutes(r)
	r.Route("/admin", h.MountAdminRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string, sess *shared.Session, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if sess != nil {
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func problemCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpx.ProblemDetail
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body.Code
}

func TestCreateOrderEndpoint(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(1, "Test", 100, 10)
	repo.addProduct(2, "Scarce", 50, 1)
	svc, _, _ := newTestService(repo)
	router := newTestRouter(svc, 0)

	res := do(t, router, http.MethodPost, "/orders", `{"items":[{"productId":1,"quantity":2}]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = do(t, router, http.MethodPost, "/orders", `{"items":[{"productId":1,"quantity":2}]}`, customerASession)
	require.Equal(t, http.StatusCreated, res.Code)
	var created map[string]int64
	require.NoError(t, json.NewDecoder(res.Body).Decode(&created))
	assert.Equal(t, int64(1), created["orderId"])

	cases := []struct {
		body   string
		status int
		code   string
	}{
		{`{"items":[]}`, http.StatusBadRequest, "EmptyOrder"},
		{`{"items":[{"productId":99,"quantity":1}]}`, http.StatusNotFound, "ProductNotFound"},
		{`{"items":[{"productId":1,"quantity":0}]}`, http.StatusBadRequest, "InvalidQuantity"},
		{`{"items":[{"productId":2,"quantity":2}]}`, http.StatusConflict, "InsufficientStock"},
	}
	for _, tc := range cases {
		res := do(t, router, http.MethodPost, "/orders", tc.body, customerASession)
		require.Equal(t, tc.status, res.Code, tc.body)
		assert.Equal(t, tc.code, problemCode(t, res), tc.body)
	}
	assert.Equal(t, 1, repo.products[2].Stock)

	res = do(t, router, http.MethodPost, "/orders", `{`, customerASession)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestCreateOrderIdempotencyHeader(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(1, "Test", 100, 10)
	svc, _, _ := newTestService(repo)
	router := newTestRouter(svc, 0)
	body := `{"items":[{"productId":1,"quantity":1}]}`

	res := do(t, router, http.MethodPost, "/orders", body, customerASession, idempotencyHeader, "k1")
	require.Equal(t, http.StatusCreated, res.Code)
	res = do(t, router, http.MethodPost, "/orders", body, customerASession, idempotencyHeader, "k1")
	require.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "DuplicateRequest", problemCode(t, res))
	assert.Equal(t, 9, repo.products[1].Stock)
}

func TestCreateOrderRateLimitedPerUser(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(1, "Test", 100, 10)
	svc, _, _ := newTestService(repo)
	router := newTestRouter(svc, 2)
	body := `{"items":[{"productId":1,"quantity":1}]}`

	assert.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/orders", body, customerASession).Code)
	assert.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/orders", body, customerASession).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, router, http.MethodPost, "/orders", body, customerASession).Code)
	assert.Equal(t, http.StatusCreated, do(t, router, http.MethodPost, "/orders", body, customerBSession).Code)
}

func TestCustomerOrderEndpoints(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(1, "Test", 100, 10)
	svc, _, _ := newTestService(repo)
	router := newTestRouter(svc, 0)

	res := do(t, router, http.MethodPost, "/orders", `{"items":[{"productId":1,"quantity":2}]}`, customerASession)
	require.Equal(t, http.StatusCreated, res.Code)

	res = do(t, router, http.MethodGet, "/myOrders/1", "", customerASession)
	require.Equal(t, http.StatusOK, res.Code)
	var order map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&order))
	assert.Equal(t, "Created", order["status"])
	assert.Equal(t, "200", order["total"])
	items := order["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Test", items[0].(map[string]any)["productName"])
	assert.Equal(t, "100", items[0].(map[string]any)["unitPrice"])

	res = do(t, router, http.MethodGet, "/myOrders/1", "", customerBSession)
	require.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "OrderNotFound", problemCode(t, res))

	res = do(t, router, http.MethodGet, "/myOrders", "", customerBSession)
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `[]`, res.Body.String())

	res = do(t, router, http.MethodPatch, "/myOrder/1/cancel", "", customerBSession)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = do(t, router, http.MethodPatch, "/myOrder/1/cancel", "", customerASession)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 10, repo.products[1].Stock)

	res = do(t, router, http.MethodPatch, "/myOrder/1/cancel", "", customerASession)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 10, repo.products[1].Stock)

	res = do(t, router, http.MethodGet, "/myOrders/abc", "", customerASession)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestAdminOrderEndpoints(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(1, "Test", 100, 10)
	svc, _, audit := newTestService(repo)
	router := newTestRouter(svc, 0)

	res := do(t, router, http.MethodPost, "/orders", `{"items":[{"productId":1,"quantity":1}]}`, customerASession)
	require.Equal(t, http.StatusCreated, res.Code)

	assert.Equal(t, http.StatusForbidden, do(t, router, http.MethodGet, "/admin/orders", "", customerASession).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/admin/orders", "", nil).Code)

	res = do(t, router, http.MethodGet, "/admin/orders?page=1&pageSize=10", "", adminSession)
	require.Equal(t, http.StatusOK, res.Code)
	var list struct {
		Orders     []map[string]any  `json:"orders"`
		Pagination shared.Pagination `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	assert.Len(t, list.Orders, 1)
	assert.Equal(t, 1, list.Pagination.Total)

	res = do(t, router, http.MethodPatch, "/admin/orders/1/status", `{"status":"Paid"}`, adminSession)
	require.Equal(t, http.StatusOK, res.Code)

	transitions := []struct {
		body string
		code string
	}{
		{`{"status":"Paid"}`, "NoOpStatus"},
		{`{"status":"Completed"}`, "IllegalTransition"},
	}
	for _, tc := range transitions {
		res := do(t, router, http.MethodPatch, "/admin/orders/1/status", tc.body, adminSession)
		require.Equal(t, http.StatusConflict, res.Code, tc.body)
		assert.Equal(t, tc.code, problemCode(t, res))
	}

	res = do(t, router, http.MethodPatch, "/admin/orders/1/status", `{"status":"Lost"}`, adminSession)
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "UnknownStatus", problemCode(t, res))

	res = do(t, router, http.MethodPatch, "/admin/orders/1/status", `{}`, adminSession)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = do(t, router, http.MethodGet, "/admin/orders/1", "", adminSession)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []string{"Viewed all orders", "Viewed order 1"}, audit.actions)
	assert.Equal(t, []string{"Changed order 1 status to Paid"}, repo.logs)
}
