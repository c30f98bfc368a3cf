// internal/repository/elasticsearch.go
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/models"
)

// esProduct is the document shape of the product index.
type esProduct struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Price        int64     `json:"price"`
	CategoryID   int       `json:"category_id"`
	CategoryName string    `json:"category_name"`
	Condition    string    `json:"condition"`
	Status       string    `json:"status"`
	ImageURL     string    `json:"image_url"`
	SellerID     string    `json:"seller_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (d esProduct) summary() models.ProductSummary {
	return models.ProductSummary{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		Price:        d.Price,
		CategoryID:   d.CategoryID,
		CategoryName: d.CategoryName,
		Condition:    d.Condition,
		Status:       d.Status,
		ImageURL:     d.ImageURL,
		SellerID:     d.SellerID,
		CreatedAt:    d.CreatedAt,
	}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source esProduct `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		Categories struct {
			Buckets []struct {
				Key      int `json:"key"`
				DocCount int `json:"doc_count"`
				Names    struct {
					Buckets []struct {
						Key string `json:"key"`
					} `json:"buckets"`
				} `json:"names"`
			} `json:"buckets"`
		} `json:"categories"`
	} `json:"aggregations"`
}

// ElasticsearchProductStore serves the same contract as the SQL store from
// a denormalized product index.
type ElasticsearchProductStore struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticsearchProductStore(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchProductStore {
	return &ElasticsearchProductStore{
		client: client,
		index:  index,
		logger: logger.ForComponent(log, "es-product-store"),
	}
}

func (s *ElasticsearchProductStore) FindProducts(ctx context.Context, q models.ProductQuery) ([]models.ProductSummary, error) {
	body := map[string]interface{}{
		"query": buildESQuery(q.Filters),
		"sort":  buildESSort(q.OrderBy),
		"from":  q.Offset,
		"size":  q.Limit,
	}

	var resp searchResponse
	if err := s.search(ctx, "find_products", body, &resp); err != nil {
		return nil, err
	}

	products := make([]models.ProductSummary, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		products = append(products, hit.Source.summary())
	}
	return products, nil
}

func (s *ElasticsearchProductStore) CountProducts(ctx context.Context, f models.SearchFilters) (int, error) {
	payload, err := json.Marshal(map[string]interface{}{"query": buildESQuery(f)})
	if err != nil {
		return 0, storageError("count_products", err)
	}

	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(s.index),
		s.client.Count.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return 0, storageError("count_products", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, storageError("count_products", fmt.Errorf("count failed: %s", res.Status()))
	}

	var out struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, storageError("count_products", err)
	}
	return out.Count, nil
}

func (s *ElasticsearchProductStore) GetCategoriesWithCounts(ctx context.Context) ([]models.CategoryCount, error) {
	body := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"term": map[string]interface{}{"status": models.ProductStatusActive},
		},
		"aggs": map[string]interface{}{
			"categories": map[string]interface{}{
				"terms": map[string]interface{}{"field": "category_id", "size": 100, "order": map[string]string{"_key": "asc"}},
				"aggs": map[string]interface{}{
					"names": map[string]interface{}{
						"terms": map[string]interface{}{"field": "category_name.keyword", "size": 1},
					},
				},
			},
		},
	}

	var resp searchResponse
	if err := s.search(ctx, "categories_with_counts", body, &resp); err != nil {
		return nil, err
	}

	cats := make([]models.CategoryCount, 0, len(resp.Aggregations.Categories.Buckets))
	for _, b := range resp.Aggregations.Categories.Buckets {
		c := models.CategoryCount{ID: b.Key, ProductCount: b.DocCount}
		if len(b.Names.Buckets) > 0 {
			c.Name = b.Names.Buckets[0].Key
		}
		cats = append(cats, c)
	}
	return cats, nil
}

func (s *ElasticsearchProductStore) search(ctx context.Context, op string, body map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return storageError(op, err)
	}

	req := esapi.SearchRequest{
		Index:          []string{s.index},
		Body:           bytes.NewReader(payload),
		TrackTotalHits: true,
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return storageError(op, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		s.logger.Warn("elasticsearch search failed", map[string]interface{}{
			"operation": op,
			"status":    res.StatusCode,
		})
		return storageError(op, fmt.Errorf("search failed: %s", res.Status()))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return storageError(op, err)
	}
	return nil
}

// buildESQuery mirrors whereClause: the whole search term as a phrase on
// name or description (the SQL store's ILIKE substring), exact filters on
// status, category and condition, a range on price.
func buildESQuery(f models.SearchFilters) map[string]interface{} {
	var must, filter []interface{}

	if term := f.Term(); term != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  term,
				"fields": []string{"name^3", "description"},
				"type":   "phrase_prefix",
			},
		})
	}
	if status := f.Status(); status != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"status": status}})
	}
	if f.CategoryID != nil {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"category_id": *f.CategoryID}})
	}
	if f.Condition != "" {
		filter = append(filter, map[string]interface{}{"term": map[string]interface{}{"condition": f.Condition}})
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		rng := map[string]interface{}{}
		if f.MinPrice != nil {
			rng["gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			rng["lte"] = *f.MaxPrice
		}
		filter = append(filter, map[string]interface{}{"range": map[string]interface{}{"price": rng}})
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]interface{}{"bool": boolQuery}
}

func buildESSort(order models.OrderBy) []interface{} {
	switch order {
	case models.OrderByOldest:
		return []interface{}{map[string]string{"created_at": "asc"}}
	case models.OrderByPriceAsc:
		return []interface{}{map[string]string{"price": "asc"}, map[string]string{"created_at": "desc"}}
	case models.OrderByPriceDesc:
		return []interface{}{map[string]string{"price": "desc"}, map[string]string{"created_at": "desc"}}
	default:
		return []interface{}{map[string]string{"created_at": "desc"}}
	}
}
