// Package repository holds the product storage backends the chat pipeline
// reads from: PostgreSQL, an Elasticsearch index, and a Redis cache in
// front of category counts.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "marketplace-chat/internal/common/errors"
	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/models"
)

// PostgresProductStore reads products and categories with database/sql
// over lib/pq.
type PostgresProductStore struct {
	db      *sql.DB
	timeout time.Duration
	logger  logger.Logger
}

func NewPostgresProductStore(db *sql.DB, timeout time.Duration, log logger.Logger) *PostgresProductStore {
	return &PostgresProductStore{
		db:      db,
		timeout: timeout,
		logger:  logger.ForComponent(log, "postgres-product-store"),
	}
}

func (s *PostgresProductStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PostgresProductStore) FindProducts(ctx context.Context, q models.ProductQuery) ([]models.ProductSummary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query, args := buildFindQuery(q)
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("find_products", err)
	}
	defer rows.Close()

	products := []models.ProductSummary{}
	for rows.Next() {
		var (
			p                                    models.ProductSummary
			description, categoryName, condition sql.NullString
			imageURL, sellerID                   sql.NullString
		)
		if err := rows.Scan(
			&p.ID, &p.Name, &description, &p.Price, &p.CategoryID, &categoryName,
			&condition, &p.Status, &imageURL, &sellerID, &p.CreatedAt,
		); err != nil {
			return nil, storageError("find_products", err)
		}
		p.Description = description.String
		p.CategoryName = categoryName.String
		p.Condition = condition.String
		p.ImageURL = imageURL.String
		p.SellerID = sellerID.String
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("find_products", err)
	}

	s.logger.Debug("products found", map[string]interface{}{
		"count":      len(products),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return products, nil
}

func (s *PostgresProductStore) CountProducts(ctx context.Context, f models.SearchFilters) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query, args := buildCountQuery(f)
	var total int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, storageError("count_products", err)
	}
	return total, nil
}

func (s *PostgresProductStore) GetCategoriesWithCounts(ctx context.Context) ([]models.CategoryCount, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, categoriesWithCountsQuery, models.ProductStatusActive)
	if err != nil {
		return nil, storageError("categories_with_counts", err)
	}
	defer rows.Close()

	var cats []models.CategoryCount
	for rows.Next() {
		var c models.CategoryCount
		if err := rows.Scan(&c.ID, &c.Name, &c.ProductCount); err != nil {
			return nil, storageError("categories_with_counts", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("categories_with_counts", err)
	}
	return cats, nil
}

func storageError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewStorageTimeoutError(op)
	}
	return apperrors.NewStorageQueryFailedError(op, err)
}
