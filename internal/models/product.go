// internal/models/product.go
package models

import (
	"context"
	"time"
)

// Product statuses as stored by the marketplace.
const (
	ProductStatusActive   = "active"
	ProductStatusSold     = "sold"
	ProductStatusInactive = "inactive"
)

// ProductSummary is the listing shape returned to chat clients.
type ProductSummary struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description,omitempty" db:"description"`
	Price        int64     `json:"price" db:"price"`
	CategoryID   int       `json:"categoryId" db:"category_id"`
	CategoryName string    `json:"categoryName,omitempty" db:"category_name"`
	Condition    string    `json:"condition,omitempty" db:"condition"`
	Status       string    `json:"status" db:"status"`
	ImageURL     string    `json:"imageUrl,omitempty" db:"image_url"`
	SellerID     string    `json:"sellerId,omitempty" db:"seller_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

type CategoryCount struct {
	ID           int    `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	ProductCount int    `json:"productCount" db:"product_count"`
}

// ProductRepository is the storage collaborator the chat pipeline reads from.
type ProductRepository interface {
	FindProducts(ctx context.Context, query ProductQuery) ([]ProductSummary, error)
	CountProducts(ctx context.Context, filters SearchFilters) (int, error)
	GetCategoriesWithCounts(ctx context.Context) ([]CategoryCount, error)
}
