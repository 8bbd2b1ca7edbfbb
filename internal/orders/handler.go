package orders

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/bigelephant/storefront/internal/platform/httpx"
	"github.com/bigelephant/storefront/internal/rbac"
	"github.com/bigelephant/storefront/internal/shared"
)

const (
	idempotencyHeader = "Idempotency-Key"
	createRateWindow  = time.Minute
)

// Handler exposes customer and admin order endpoints.
type Handler struct {
	service    *Service
	logger     *slog.Logger
	rbac       rbac.Middleware
	validator  *validator.Validate
	createRate int
}

// NewHandler builds Handler. createPerMinute bounds order submissions per user; zero
// disables the limiter.
func NewHandler(service *Service, logger *slog.Logger, rbacMW rbac.Middleware, createPerMinute int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:    service,
		logger:     logger,
		rbac:       rbacMW,
		validator:  validator.New(),
		createRate: createPerMinute,
	}
}

// MountRoutes registers the customer facing order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.OpListOwnOrders)).Get("/myOrders", h.listMine)
	r.With(h.rbac.Require(rbac.OpGetOwnOrder)).Get("/myOrders/{id}", h.getMine)
	r.With(h.rbac.Require(rbac.OpCancelOwnOrder)).Patch("/myOrder/{id}/cancel", h.cancel)
	r.Group(func(gr chi.Router) {
		gr.Use(h.rbac.Require(rbac.OpCreateOrder))
		if h.createRate > 0 {
			gr.Use(httprate.Limit(h.createRate, createRateWindow,
				httprate.WithKeyFuncs(rateLimitKey),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "too many orders, retry later")
				}),
			))
		}
		gr.Post("/orders", h.create)
	})
}

// MountAdminRoutes registers order administration routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.OpListAllOrders)).Get("/orders", h.listAll)
	r.With(h.rbac.Require(rbac.OpGetAnyOrder)).Get("/orders/{id}", h.get)
	r.With(h.rbac.Require(rbac.OpTransitionOrder)).Patch("/orders/{id}/status", h.transition)
}

func rateLimitKey(r *http.Request) (string, error) {
	if p, ok := rbac.PrincipalFromContext(r.Context()); ok {
		return "user:" + strconv.FormatInt(p.UserID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

type createOrderRequest struct {
	Items []orderLineRequest `json:"items"`
}

type orderLineRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity"`
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderItemResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type orderResponse struct {
	ID        int64               `json:"id"`
	UserID    int64               `json:"userId"`
	Status    Status              `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
	Items     []orderItemResponse `json:"items"`
	Total     decimal.Decimal     `json:"total"`
}

type orderListResponse struct {
	Orders     []orderResponse   `json:"orders"`
	Pagination shared.Pagination `json:"pagination"`
}

func toResponse(o Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return orderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
		Items:     items,
		Total:     o.Total(),
	}
}

func toResponses(list []Order) []orderResponse {
	out := make([]orderResponse, 0, len(list))
	for _, o := range list {
		out = append(out, toResponse(o))
	}
	return out
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines := make([]Line, 0, len(req.Items))
	for _, item := range req.Items {
		if err := httpx.Validate(h.validator, item); err != nil {
			httpx.RespondError(w, err)
			return
		}
		lines = append(lines, Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	customer, _ := rbac.PrincipalFromContext(r.Context())
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	id, err := h.service.Create(r.Context(), customer, lines, key)
	if err != nil {
		h.fail(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]int64{"orderId": id})
}

func (h *Handler) listMine(w http.ResponseWriter, r *http.Request) {
	customer, _ := rbac.PrincipalFromContext(r.Context())
	list, err := h.service.ListMine(r.Context(), customer)
	if err != nil {
		h.fail(w, "list own orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponses(list))
}

func (h *Handler) getMine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	customer, _ := rbac.PrincipalFromContext(r.Context())
	order, err := h.service.GetMine(r.Context(), customer, id)
	if err != nil {
		h.fail(w, "get own order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(order))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	customer, _ := rbac.PrincipalFromContext(r.Context())
	order, err := h.service.Cancel(r.Context(), customer, id)
	if err != nil {
		h.fail(w, "cancel order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(order))
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	admin, _ := rbac.PrincipalFromContext(r.Context())
	list, page, err := h.service.ListAll(r.Context(), admin, shared.ParsePageRequest(r))
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orderListResponse{Orders: toResponses(list), Pagination: page})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	admin, _ := rbac.PrincipalFromContext(r.Context())
	order, err := h.service.Get(r.Context(), admin, id)
	if err != nil {
		h.fail(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(order))
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	admin, _ := rbac.PrincipalFromContext(r.Context())
	order, err := h.service.Transition(r.Context(), admin, id, req.Status)
	if err != nil {
		h.fail(w, "transition order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(order))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.IsClientError(err) {
		h.logger.Debug(op, slog.Any("error", err))
	} else {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
