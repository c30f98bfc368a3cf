// internal/search/searcher.go
package search

import (
	"context"
	"strings"

	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/models"
	"marketplace-chat/internal/nlu"
)

// Outcome is the full result of one chat search, fallback included.
type Outcome struct {
	Query        models.ProductQuery `json:"query"`
	Page         Page                `json:"page"`
	FallbackTier Tier                `json:"fallbackType,omitempty"`
	Attempts     []Attempt           `json:"attempts,omitempty"`
}

// Searcher ties resolver, executor and fallback engine together.
type Searcher struct {
	resolver *Resolver
	executor *Executor
	fallback *FallbackEngine
	logger   logger.Logger
}

func NewSearcher(resolver *Resolver, executor *Executor, fallback *FallbackEngine, log logger.Logger) *Searcher {
	return &Searcher{
		resolver: resolver,
		executor: executor,
		fallback: fallback,
		logger:   logger.ForComponent(log, "searcher"),
	}
}

func (s *Searcher) Resolve(q nlu.ParsedQuery) (models.SearchFilters, models.OrderBy) {
	return s.resolver.Resolve(q)
}

func (s *Searcher) CategoryName(filters models.SearchFilters) string {
	return s.resolver.CategoryName(filters)
}

func (s *Searcher) Categories(ctx context.Context) []models.CategoryCount {
	return s.executor.Categories(ctx)
}

// Run executes query and, when it finds nothing for a non-empty message,
// walks the fallback tiers.
func (s *Searcher) Run(ctx context.Context, q nlu.ParsedQuery, query models.ProductQuery) Outcome {
	page := s.executor.Run(ctx, query)
	out := Outcome{Query: query, Page: page}
	if !page.Empty() || strings.TrimSpace(q.OriginalMessage) == "" || s.fallback == nil {
		return out
	}

	res, attempts := s.fallback.Broaden(ctx, q, query)
	out.Attempts = attempts
	if res != nil {
		out.Query = res.Query
		out.Page = res.Page
		out.FallbackTier = res.Tier
	}
	s.logger.Debug("initial search empty", map[string]interface{}{
		"attempts": len(attempts),
		"fallback": string(out.FallbackTier),
	})
	return out
}

// Search resolves and runs q with the given window.
func (s *Searcher) Search(ctx context.Context, q nlu.ParsedQuery, limit, offset int) Outcome {
	filters, order := s.Resolve(q)
	return s.Run(ctx, q, models.ProductQuery{Filters: filters, OrderBy: order, Limit: limit, Offset: offset})
}
