// internal/search/executor.go
package search

import (
	"context"
	"sync"
	"time"

	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/common/metrics"
	"marketplace-chat/internal/models"
)

// Page is one result window plus the total number of matches.
type Page struct {
	Products []models.ProductSummary `json:"products"`
	Total    int                     `json:"total"`
}

func (p Page) Empty() bool { return len(p.Products) == 0 }

// Executor runs the row and count queries concurrently. Storage failures
// never escape: either failing query yields an empty page.
type Executor struct {
	repo    models.ProductRepository
	timeout time.Duration
	logger  logger.Logger
}

func NewExecutor(repo models.ProductRepository, timeout time.Duration, log logger.Logger) *Executor {
	return &Executor{
		repo:    repo,
		timeout: timeout,
		logger:  logger.ForComponent(log, "search-executor"),
	}
}

func (x *Executor) Run(ctx context.Context, query models.ProductQuery) Page {
	if x.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.timeout)
		defer cancel()
	}

	var (
		wg       sync.WaitGroup
		rows     []models.ProductSummary
		total    int
		rowsErr  error
		countErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		rows, rowsErr = x.repo.FindProducts(ctx, query)
	}()
	go func() {
		defer wg.Done()
		total, countErr = x.repo.CountProducts(ctx, query.Filters)
	}()
	wg.Wait()

	if rowsErr != nil || countErr != nil {
		fields := map[string]interface{}{"searchTerm": query.Filters.Term()}
		if rowsErr != nil {
			metrics.StorageFailuresTotal.WithLabelValues("find_products").Inc()
			fields["findError"] = rowsErr.Error()
		}
		if countErr != nil {
			metrics.StorageFailuresTotal.WithLabelValues("count_products").Inc()
			fields["countError"] = countErr.Error()
		}
		x.logger.Error("product query failed, treating as no results", fields)
		return Page{}
	}

	if total < len(rows) {
		total = len(rows)
	}
	return Page{Products: rows, Total: total}
}

// Categories returns category counts, or nil when storage fails.
func (x *Executor) Categories(ctx context.Context) []models.CategoryCount {
	cats, err := x.repo.GetCategoriesWithCounts(ctx)
	if err != nil {
		metrics.StorageFailuresTotal.WithLabelValues("categories_with_counts").Inc()
		x.logger.Warn("category counts unavailable", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return cats
}
