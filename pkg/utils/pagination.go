package utils

import (
	"net/http"
	"strconv"
)

const (
	// DefaultPageSize is the number of items per page when not specified.
	DefaultPageSize = 20
	// MaxPageSize caps the page size to prevent resource exhaustion.
	MaxPageSize = 100
)

// PageParams holds pagination parameters extracted from an HTTP request,
// plus the calculated offset/limit for the store query.
type PageParams struct {
	Page     int // 1-based page number
	PageSize int
	Offset   int
	Limit    int
}

// PageMeta is the pagination block included in list responses.
type PageMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
	TotalItems int64 `json:"total_items"`
	HasNext    bool  `json:"has_next"`
}

// PaginatedResponse wraps list data with pagination metadata.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Pagination PageMeta    `json:"pagination"`
}

// ParsePageParams reads "page" and "page_size" query parameters, applying
// defaults and bounds, and computes the offset/limit for the store.
//
// Example:
//
//	params := utils.ParsePageParams(r)
//	products, total, err := db.ListPublishedProducts(ctx, params.Offset, params.Limit)
func ParsePageParams(r *http.Request) PageParams {
	page := parseIntParam(r, "page", 1)
	pageSize := parseIntParam(r, "page_size", DefaultPageSize)

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	return PageParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	}
}

// CalculateMeta builds pagination metadata from the total item count.
func (p PageParams) CalculateMeta(totalItems int64) PageMeta {
	totalPages := int((totalItems + int64(p.PageSize) - 1) / int64(p.PageSize))
	if totalPages < 1 {
		totalPages = 1
	}

	return PageMeta{
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: totalPages,
		TotalItems: totalItems,
		HasNext:    p.Page < totalPages,
	}
}

func parseIntParam(r *http.Request, name string, defaultValue int) int {
	valueStr := r.URL.Query().Get(name)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
