package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/bigelephant/storefront/internal/rbac"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	maxExportRows   = 10000
)

// Repository reads admin_logs.
type Repository interface {
	Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Entry, error)
}

// Service serves the admin log timeline.
type Service struct {
	repo Repository
}

// NewService builds the timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of admin log entries, newest first.
func (s *Service) Timeline(ctx context.Context, admin rbac.Principal, filters TimelineFilters) (Result, error) {
	if err := rbac.Authorize(&admin, rbac.OpListAdminLogs); err != nil {
		return Result{}, err
	}
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	filters = normalise(filters)
	pageSize := filters.PageSize
	page := filters.Page
	rows, err := s.repo.Window(ctx, filters, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if rows == nil {
		rows = []Entry{}
	}
	return Result{Entries: rows, Paging: paging}, nil
}

// Export returns every matching entry up to a fixed cap, ignoring paging.
func (s *Service) Export(ctx context.Context, admin rbac.Principal, filters TimelineFilters) ([]Entry, error) {
	if err := rbac.Authorize(&admin, rbac.OpListAdminLogs); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.Window(ctx, normalise(filters), 0, maxExportRows)
}

func normalise(f TimelineFilters) TimelineFilters {
	if f.PageSize <= 0 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	f.Action = strings.TrimSpace(f.Action)
	return f
}
