// internal/search/fallback.go
package search

import (
	"context"
	"strings"
	"unicode/utf8"

	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/common/metrics"
	"marketplace-chat/internal/models"
	"marketplace-chat/internal/nlu"
)

// Tier names a broadening step. The zero value means no fallback was used.
type Tier string

const (
	TierCategory  Tier = "category"
	TierBroadened Tier = "broadened"
)

// Attempt records one tier's try, hit or not.
type Attempt struct {
	Tier    Tier                 `json:"tier"`
	Filters models.SearchFilters `json:"filters"`
	Total   int                  `json:"total"`
	Skipped bool                 `json:"skipped,omitempty"`
	Reason  string               `json:"reason,omitempty"`
}

// FallbackResult is set when a tier found products.
type FallbackResult struct {
	Tier  Tier
	Query models.ProductQuery
	Page  Page
}

// FallbackEngine retries an empty search with progressively looser
// filters. Tiers run strictly in order; each builds its own filter set.
type FallbackEngine struct {
	catalog   *nlu.Catalog
	extractor *nlu.Extractor
	executor  *Executor
	logger    logger.Logger
}

func NewFallbackEngine(catalog *nlu.Catalog, extractor *nlu.Extractor, executor *Executor, log logger.Logger) *FallbackEngine {
	return &FallbackEngine{
		catalog:   catalog,
		extractor: extractor,
		executor:  executor,
		logger:    logger.ForComponent(log, "search-fallback"),
	}
}

// Broaden returns the first tier that produced products, or nil, along
// with every attempt made.
func (f *FallbackEngine) Broaden(ctx context.Context, q nlu.ParsedQuery, initial models.ProductQuery) (*FallbackResult, []Attempt) {
	var attempts []Attempt

	for _, tier := range []Tier{TierCategory, TierBroadened} {
		filters, reason, ok := f.filtersFor(tier, q, initial.Filters)
		if !ok {
			metrics.SearchFallbackTotal.WithLabelValues(string(tier), "skipped").Inc()
			attempts = append(attempts, Attempt{Tier: tier, Skipped: true, Reason: reason})
			continue
		}

		query := models.ProductQuery{Filters: filters, OrderBy: initial.OrderBy, Limit: initial.Limit, Offset: initial.Offset}
		page := f.executor.Run(ctx, query)
		attempts = append(attempts, Attempt{Tier: tier, Filters: filters, Total: page.Total, Reason: reason})

		if page.Empty() {
			metrics.SearchFallbackTotal.WithLabelValues(string(tier), "miss").Inc()
			continue
		}

		metrics.SearchFallbackTotal.WithLabelValues(string(tier), "hit").Inc()
		f.logger.Info("fallback search found products", map[string]interface{}{
			"tier":   string(tier),
			"reason": reason,
			"total":  page.Total,
		})
		return &FallbackResult{Tier: tier, Query: query, Page: page}, attempts
	}
	return nil, attempts
}

func (f *FallbackEngine) filtersFor(tier Tier, q nlu.ParsedQuery, initial models.SearchFilters) (models.SearchFilters, string, bool) {
	switch tier {
	case TierCategory:
		return f.categoryFilters(initial)
	case TierBroadened:
		return f.broadenedFilters(q, initial)
	}
	return models.SearchFilters{}, "unknown tier", false
}

// categoryFilters reads the search term as a product type: the text filter
// is dropped in favour of that type's category. Price bounds survive.
func (f *FallbackEngine) categoryFilters(initial models.SearchFilters) (models.SearchFilters, string, bool) {
	term := initial.Term()
	if term == "" {
		return models.SearchFilters{}, "no search term", false
	}
	if initial.CategoryID != nil {
		return models.SearchFilters{}, "category already applied", false
	}
	pt, ok := f.catalog.MatchProductType(term)
	if !ok {
		return models.SearchFilters{}, "no product type matches " + term, false
	}

	filters := models.SearchFilters{
		CategoryID:         intPtr(pt.CategoryID),
		IncludeAllStatuses: initial.IncludeAllStatuses,
		StatusFilter:       initial.StatusFilter,
		Condition:          initial.Condition,
	}
	if initial.MinPrice != nil {
		filters.MinPrice = int64Ptr(*initial.MinPrice)
	}
	if initial.MaxPrice != nil {
		filters.MaxPrice = int64Ptr(*initial.MaxPrice)
	}
	return filters, "product type " + pt.Noun, true
}

// broadenedFilters searches on a single substitute term with category and
// price cleared.
func (f *FallbackEngine) broadenedFilters(q nlu.ParsedQuery, initial models.SearchFilters) (models.SearchFilters, string, bool) {
	term, reason := f.BroadenedTerm(q)
	if term == "" {
		return models.SearchFilters{}, "no broadened term", false
	}
	if strings.EqualFold(term, q.Entities.SearchTerm()) {
		return models.SearchFilters{}, "broadened term equals original", false
	}
	return models.SearchFilters{
		SearchTerm:         strPtr(term),
		IncludeAllStatuses: initial.IncludeAllStatuses,
		StatusFilter:       initial.StatusFilter,
	}, reason, true
}

// BroadenedTerm picks the substitute term: an explicit PRODUCT entity, else
// the longest noun chunk, else the first comma-separated clause of the
// message. Rule-based parses carry no noun chunks and their clause still
// holds price and filler words, so the clause is cut down to its keywords
// first.
func (f *FallbackEngine) BroadenedTerm(q nlu.ParsedQuery) (string, string) {
	if p := strings.TrimSpace(q.Entities.Product); p != "" {
		return p, "product entity"
	}
	if chunk := longestChunk(q.NounChunks); chunk != "" {
		return chunk, "noun chunk"
	}

	segment := strings.TrimSpace(strings.SplitN(q.OriginalMessage, ",", 2)[0])
	if segment == "" {
		return "", ""
	}
	if q.EntitySource != nlu.SourceNLP {
		if kws := f.extractor.ExtractKeywords(segment); len(kws) > 0 {
			return strings.Join(kws, " "), "first clause keywords"
		}
	}
	return segment, "first clause"
}

func longestChunk(chunks []string) string {
	best := ""
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if utf8.RuneCountInString(c) > utf8.RuneCountInString(best) {
			best = c
		}
	}
	return best
}
