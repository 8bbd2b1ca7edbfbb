package audithttp

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bigelephant/storefront/internal/audit"
	"github.com/bigelephant/storefront/internal/platform/httpx"
	"github.com/bigelephant/storefront/internal/rbac"
)

const (
	dateLayout        = "2006-01-02"
	maxDateRangeHours = 24 * 90
)

// TimelineService defines the business contract for timeline data.
type TimelineService interface {
	Timeline(ctx context.Context, admin rbac.Principal, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, admin rbac.Principal, filters audit.TimelineFilters) ([]audit.Entry, error)
}

// Handler serves the admin log timeline.
type Handler struct {
	logger  *slog.Logger
	service TimelineService
	rbac    rbac.Middleware
}

// NewHandler builds the audit handler.
func NewHandler(logger *slog.Logger, service TimelineService, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbacMW}
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	admin, _ := rbac.PrincipalFromContext(r.Context())
	result, err := h.service.Timeline(r.Context(), admin, filters)
	if err != nil {
		h.fail(w, "load admin log timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	admin, _ := rbac.PrincipalFromContext(r.Context())
	entries, err := h.service.Export(r.Context(), admin, filters)
	if err != nil {
		h.fail(w, "export admin logs", err)
		return
	}
	var buf bytes.Buffer
	if err := audit.WriteCSV(&buf, entries); err != nil {
		h.fail(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"admin-logs.csv\"")
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

// parseFilters reads from/to (inclusive dates), adminId, action, page and pageSize.
func parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	var f audit.TimelineFilters
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		from, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, invalid("from")
		}
		f.From = from
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		to, err := time.Parse(dateLayout, v)
		if err != nil {
			return f, invalid("to")
		}
		f.To = to.AddDate(0, 0, 1)
	}
	if !f.From.IsZero() && !f.To.IsZero() {
		if !f.From.Before(f.To) || f.To.Sub(f.From) > maxDateRangeHours*time.Hour {
			return f, invalid("range")
		}
	}
	if v := strings.TrimSpace(q.Get("adminId")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, invalid("adminId")
		}
		f.AdminID = id
	}
	f.Action = strings.TrimSpace(q.Get("action"))
	for _, p := range []struct {
		name   string
		target *int
	}{{"page", &f.Page}, {"pageSize", &f.PageSize}} {
		if v := strings.TrimSpace(q.Get(p.name)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return f, invalid(p.name)
			}
			*p.target = n
		}
	}
	return f, nil
}

func invalid(field string) error {
	return fmt.Errorf("%w: invalid %s", httpx.ErrValidation, field)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.IsClientError(err) {
		h.logger.Debug(op, slog.Any("error", err))
	} else {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
