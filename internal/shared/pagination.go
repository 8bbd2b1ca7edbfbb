package shared

import (
	"math"
	"net/http"
	"strconv"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int  `json:"page"`
	PerPage    int  `json:"pageSize"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
}

// PageRequest is a validated page/pageSize pair.
type PageRequest struct {
	Page    int
	PerPage int
}

// ParsePageRequest reads page and pageSize query parameters, clamping them to sane bounds.
func ParsePageRequest(r *http.Request) PageRequest {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	return NewPageRequest(page, perPage)
}

// NewPageRequest normalises page and perPage.
func NewPageRequest(page, perPage int) PageRequest {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return PageRequest{Page: page, PerPage: perPage}
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// NewPagination computes pagination metadata.
func NewPagination(req PageRequest, total int) Pagination {
	req = NewPageRequest(req.Page, req.PerPage)
	totalPages := int(math.Ceil(float64(total) / float64(req.PerPage)))
	return Pagination{
		Page:       req.Page,
		PerPage:    req.PerPage,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    req.Page < totalPages,
	}
}
