package catalog

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/bigelephant/storefront/internal/platform/httpx"
	"github.com/bigelephant/storefront/internal/rbac"
)

// Handler exposes catalog endpoints.
type Handler struct {
	service   *Service
	logger    *slog.Logger
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(service *Service, logger *slog.Logger, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger, rbac: rbacMW, validator: validator.New()}
}

// MountRoutes registers the public listing.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.OpListProducts)).Get("/products", h.listVisible)
}

// MountAdminRoutes registers product management routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.OpManageProducts))
		r.Get("/products", h.listAll)
		r.Post("/products", h.create)
		r.Get("/products/{id}", h.get)
		r.Patch("/products/{id}", h.update)
		r.Delete("/products/{id}", h.softDelete)
		r.Patch("/products/{id}/restore", h.restore)
		r.Patch("/products/{id}/stock", h.updateStock)
		r.Patch("/products/{id}/active", h.updateActive)
		r.Patch("/products/{id}/name", h.updateName)
		r.Patch("/products/{id}/price", h.updatePrice)
		r.Patch("/products/{id}/image", h.updateImage)
	})
}

type createProductRequest struct {
	Name     string          `json:"name" validate:"required,max=200"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock" validate:"gte=0,lte=2147483647"`
	ImageURL *string         `json:"imageUrl" validate:"omitempty,max=2048"`
}

type patchProductRequest struct {
	Name     *string          `json:"name" validate:"omitempty,max=200"`
	Price    *decimal.Decimal `json:"price"`
	Stock    *int             `json:"stock" validate:"omitempty,gte=0,lte=2147483647"`
	IsActive *bool            `json:"isActive"`
	ImageURL *string          `json:"imageUrl" validate:"omitempty,max=2048"`
}

func (h *Handler) listVisible(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListVisible(r.Context())
	if err != nil {
		h.fail(w, "list visible products", err)
		return
	}
	out := make([]PublicProduct, 0, len(products))
	for _, p := range products {
		out = append(out, p.Public())
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	admin, _ := rbac.PrincipalFromContext(r.Context())
	products, err := h.service.ListAll(r.Context(), admin)
	if err != nil {
		h.fail(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	admin, _ := rbac.PrincipalFromContext(r.Context())
	product, err := h.service.Get(r.Context(), admin, id)
	if err != nil {
		h.fail(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	admin, _ := rbac.PrincipalFromContext(r.Context())
	product, err := h.service.Create(r.Context(), admin, CreateInput{
		Name:     req.Name,
		Price:    req.Price,
		Stock:    req.Stock,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		h.fail(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req patchProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	patch := Patch{Name: req.Name, Price: req.Price, Stock: req.Stock, IsActive: req.IsActive, ImageURL: req.ImageURL}
	if patch.Empty() {
		httpx.RespondError(w, fmt.Errorf("%w: no fields to update", httpx.ErrValidation))
		return
	}
	h.applyPatch(w, r, patch)
}

func (h *Handler) updateStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stock *int `json:"stock"`
	}
	if !h.decodeField(w, r, &req, func() bool { return req.Stock != nil }, "stock") {
		return
	}
	h.applyPatch(w, r, Patch{Stock: req.Stock})
}

func (h *Handler) updateActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsActive *bool `json:"isActive"`
	}
	if !h.decodeField(w, r, &req, func() bool { return req.IsActive != nil }, "isActive") {
		return
	}
	h.applyPatch(w, r, Patch{IsActive: req.IsActive})
}

func (h *Handler) updateName(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name *string `json:"name"`
	}
	if !h.decodeField(w, r, &req, func() bool { return req.Name != nil }, "name") {
		return
	}
	h.applyPatch(w, r, Patch{Name: req.Name})
}

func (h *Handler) updatePrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price *decimal.Decimal `json:"price"`
	}
	if !h.decodeField(w, r, &req, func() bool { return req.Price != nil }, "price") {
		return
	}
	h.applyPatch(w, r, Patch{Price: req.Price})
}

func (h *Handler) updateImage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ImageURL *string `json:"imageUrl"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.ImageURL == nil {
		h.applyPatch(w, r, Patch{ClearImage: true})
		return
	}
	h.applyPatch(w, r, Patch{ImageURL: req.ImageURL})
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	admin, _ := rbac.PrincipalFromContext(r.Context())
	product, err := h.service.SoftDelete(r.Context(), admin, id)
	if err != nil {
		h.fail(w, "soft delete product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	admin, _ := rbac.PrincipalFromContext(r.Context())
	product, err := h.service.Restore(r.Context(), admin, id)
	if err != nil {
		h.fail(w, "restore product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) decodeField(w http.ResponseWriter, r *http.Request, target any, present func() bool, field string) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if !present() {
		httpx.RespondError(w, fmt.Errorf("%w: %s is required", httpx.ErrValidation, field))
		return false
	}
	return true
}

func (h *Handler) applyPatch(w http.ResponseWriter, r *http.Request, patch Patch) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	admin, _ := rbac.PrincipalFromContext(r.Context())
	product, err := h.service.Update(r.Context(), admin, id, patch)
	if err != nil {
		h.fail(w, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.IsClientError(err) {
		h.logger.Debug(op, slog.Any("error", err))
	} else {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
