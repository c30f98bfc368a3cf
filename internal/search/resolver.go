// Package search turns a parsed chat query into storage filters, runs the
// query and broadens it when nothing matches.
package search

import (
	"marketplace-chat/internal/models"
	"marketplace-chat/internal/nlu"
)

type ResolverConfig struct {
	IncludeAllStatuses bool
	StatusFilter       string
}

// Resolver maps a ParsedQuery to SearchFilters and an ordering key.
type Resolver struct {
	catalog *nlu.Catalog
	config  ResolverConfig
}

func NewResolver(catalog *nlu.Catalog, config ResolverConfig) *Resolver {
	if config.StatusFilter == "" {
		config.StatusFilter = models.ProductStatusActive
	}
	return &Resolver{catalog: catalog, config: config}
}

// Resolve builds a fresh filter set. A search term that is only a product
// noun or category word is replaced by its category, so the query is not
// filtered twice on the same meaning. When an explicit category differs
// from the term's own category the term is kept.
func (r *Resolver) Resolve(q nlu.ParsedQuery) (models.SearchFilters, models.OrderBy) {
	e := q.Entities
	filters := models.SearchFilters{
		IncludeAllStatuses: r.config.IncludeAllStatuses,
		StatusFilter:       r.config.StatusFilter,
		Condition:          e.Condition,
	}

	var categoryID *int
	if e.CategoryID != nil {
		if _, ok := r.catalog.CategoryByID(*e.CategoryID); ok {
			categoryID = intPtr(*e.CategoryID)
		}
	}

	term := e.SearchTerm()
	if term != "" {
		if cat, ok := r.catalog.LookupBareTerm(term); ok {
			switch {
			case categoryID == nil:
				categoryID = intPtr(cat.ID)
				term = ""
			case *categoryID == cat.ID:
				term = ""
			}
		}
	}
	if term != "" {
		filters.SearchTerm = &term
	}
	filters.CategoryID = categoryID

	if e.MinPrice != nil {
		filters.MinPrice = int64Ptr(*e.MinPrice)
	}
	if e.MaxPrice != nil {
		filters.MaxPrice = int64Ptr(*e.MaxPrice)
	}

	return filters, orderFor(e.SortBy)
}

func orderFor(sort nlu.SortOrder) models.OrderBy {
	switch sort {
	case nlu.SortOldest:
		return models.OrderByOldest
	case nlu.SortPriceAsc:
		return models.OrderByPriceAsc
	case nlu.SortPriceDesc:
		return models.OrderByPriceDesc
	default:
		return models.OrderByLatest
	}
}

// CategoryName returns the display name of the filters' category, if any.
func (r *Resolver) CategoryName(filters models.SearchFilters) string {
	if filters.CategoryID == nil {
		return ""
	}
	return r.catalog.CategoryName(*filters.CategoryID)
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func strPtr(s string) *string { return &s }
