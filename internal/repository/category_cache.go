// internal/repository/category_cache.go
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/models"
)

const categoryCountsKey = "marketplace:chat:category_counts"

// CategoryCountCache puts a Redis cache-aside in front of
// GetCategoriesWithCounts. Product reads pass straight through. A Redis
// failure only costs the cache: the store is still asked.
type CategoryCountCache struct {
	models.ProductRepository
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCategoryCountCache(store models.ProductRepository, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CategoryCountCache {
	return &CategoryCountCache{
		ProductRepository: store,
		redis:             rdb,
		ttl:               ttl,
		logger:            logger.ForComponent(log, "category-count-cache"),
	}
}

func (c *CategoryCountCache) GetCategoriesWithCounts(ctx context.Context) ([]models.CategoryCount, error) {
	val, err := c.redis.Get(ctx, categoryCountsKey).Result()
	switch {
	case err == nil:
		var cats []models.CategoryCount
		if jsonErr := json.Unmarshal([]byte(val), &cats); jsonErr == nil {
			return cats, nil
		}
		c.logger.Warn("discarding unreadable cached category counts", nil)
	case err != redis.Nil:
		c.logger.Warn("redis get failed", map[string]interface{}{"error": err.Error()})
	}

	cats, err := c.ProductRepository.GetCategoriesWithCounts(ctx)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(cats)
	if err == nil {
		if setErr := c.redis.Set(ctx, categoryCountsKey, data, c.ttl).Err(); setErr != nil {
			c.logger.Warn("redis set failed", map[string]interface{}{"error": setErr.Error()})
		}
	}
	return cats, nil
}
