// internal/models/query_types.go
package models

import "strings"

// OrderBy is the storage ordering key.
type OrderBy string

const (
	OrderByLatest    OrderBy = "latest"
	OrderByOldest    OrderBy = "oldest"
	OrderByPriceAsc  OrderBy = "price_asc"
	OrderByPriceDesc OrderBy = "price_desc"
)

func (o OrderBy) Valid() bool {
	switch o {
	case OrderByLatest, OrderByOldest, OrderByPriceAsc, OrderByPriceDesc:
		return true
	}
	return false
}

// SearchFilters is built fresh for every query attempt and never mutated
// after it is handed to storage.
type SearchFilters struct {
	SearchTerm         *string `json:"searchTerm"`
	CategoryID         *int    `json:"categoryId"`
	MinPrice           *int64  `json:"minPrice"`
	MaxPrice           *int64  `json:"maxPrice"`
	Condition          string  `json:"condition,omitempty"`
	IncludeAllStatuses bool    `json:"includeAllStatuses"`
	StatusFilter       string  `json:"statusFilter"`
}

// Term returns the trimmed search term or "".
func (f SearchFilters) Term() string {
	if f.SearchTerm == nil {
		return ""
	}
	return strings.TrimSpace(*f.SearchTerm)
}

// IsEmpty reports whether no narrowing filter is set.
func (f SearchFilters) IsEmpty() bool {
	return f.Term() == "" && f.CategoryID == nil && f.MinPrice == nil && f.MaxPrice == nil && f.Condition == ""
}

// Status returns the status the query is restricted to, or "" for all.
func (f SearchFilters) Status() string {
	if f.IncludeAllStatuses {
		return ""
	}
	if f.StatusFilter == "" {
		return ProductStatusActive
	}
	return f.StatusFilter
}

type ProductQuery struct {
	Filters SearchFilters `json:"filters"`
	OrderBy OrderBy       `json:"orderBy"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}
