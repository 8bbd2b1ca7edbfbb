package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bigelephant/storefront/internal/platform/httpx"
	"github.com/bigelephant/storefront/internal/rbac"
	"github.com/bigelephant/storefront/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	rbac           rbac.Middleware
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, rbacMW rbac.Middleware) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		rbac:           rbacMW,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.With(h.rbac.Require(rbac.OpLogout)).Post("/logout", h.handleLogout)
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=64"`
}

type registerResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type loginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Roles       []string  `json:"roles"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondErr(w, "register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, registerResponse{ID: user.ID, Email: user.Email})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.RespondError(w, shared.ErrInvalidCredentials)
		return
	}
	sess, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondErr(w, "login", err)
		return
	}
	h.sessionManager.SetCookie(w, sess)
	httpx.JSON(w, http.StatusOK, loginResponse{AccessToken: sess.Token, ExpiresAt: sess.ExpiresAt, Roles: sess.Roles})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if err := h.service.Logout(r.Context(), sess.Token); err != nil && h.logger != nil {
			h.logger.Warn("revoke session", slog.Any("error", err))
		}
	}
	h.sessionManager.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		if httpx.IsClientError(err) {
			h.logger.Warn("auth "+op+" failed", slog.Any("error", err))
		} else {
			h.logger.Error("auth "+op+" failed", slog.Any("error", err))
		}
	}
	httpx.RespondError(w, err)
}
