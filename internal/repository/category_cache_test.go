package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/models"
)

type countingStore struct {
	models.ProductRepository
	calls int
	cats  []models.CategoryCount
	err   error
}

func (s *countingStore) GetCategoriesWithCounts(ctx context.Context) ([]models.CategoryCount, error) {
	s.calls++
	return s.cats, s.err
}

func newMiniredisCache(t *testing.T, store models.ProductRepository) (*CategoryCountCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewCategoryCountCache(store, rdb, 5*time.Minute, logger.NewTestLogger(t)), mr
}

func TestCategoryCountCache_MissThenHit(t *testing.T) {
	store := &countingStore{cats: []models.CategoryCount{{ID: 1, Name: "Stationery", ProductCount: 3}}}
	cache, mr := newMiniredisCache(t, store)
	ctx := context.Background()

	first, err := cache.GetCategoriesWithCounts(ctx)
	require.NoError(t, err)
	second, err := cache.GetCategoriesWithCounts(ctx)
	require.NoError(t, err)

	assert.Equal(t, store.cats, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.calls)
	assert.True(t, mr.Exists(categoryCountsKey))
	assert.Equal(t, 5*time.Minute, mr.TTL(categoryCountsKey))
}

func TestCategoryCountCache_ExpiredEntryReloads(t *testing.T) {
	store := &countingStore{cats: []models.CategoryCount{{ID: 2, Name: "Books", ProductCount: 1}}}
	cache, mr := newMiniredisCache(t, store)
	ctx := context.Background()

	_, err := cache.GetCategoriesWithCounts(ctx)
	require.NoError(t, err)
	mr.FastForward(6 * time.Minute)
	_, err = cache.GetCategoriesWithCounts(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, store.calls)
}

func TestCategoryCountCache_CorruptedValueFallsThrough(t *testing.T) {
	store := &countingStore{cats: []models.CategoryCount{{ID: 4, Name: "Electronics", ProductCount: 9}}}
	cache, mr := newMiniredisCache(t, store)
	require.NoError(t, mr.Set(categoryCountsKey, "{not json"))

	cats, err := cache.GetCategoriesWithCounts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, store.cats, cats)
	assert.Equal(t, 1, store.calls)

	raw, err := mr.Get(categoryCountsKey)
	require.NoError(t, err)
	var cached []models.CategoryCount
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, store.cats, cached)
}

func TestCategoryCountCache_StoreErrorIsNotCached(t *testing.T) {
	store := &countingStore{err: errors.New("db down")}
	cache, mr := newMiniredisCache(t, store)

	_, err := cache.GetCategoriesWithCounts(context.Background())

	require.Error(t, err)
	assert.False(t, mr.Exists(categoryCountsKey))
}

func TestCategoryCountCache_RedisErrorsAreBestEffort(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := &countingStore{cats: []models.CategoryCount{{ID: 1, Name: "Stationery", ProductCount: 3}}}
	cache := NewCategoryCountCache(store, db, time.Minute, logger.NewTestLogger(t))

	payload, err := json.Marshal(store.cats)
	require.NoError(t, err)

	mock.ExpectGet(categoryCountsKey).SetErr(errors.New("connection refused"))
	mock.ExpectSet(categoryCountsKey, payload, time.Minute).SetErr(errors.New("connection refused"))

	cats, err := cache.GetCategoriesWithCounts(context.Background())

	require.NoError(t, err)
	assert.Equal(t, store.cats, cats)
	assert.NoError(t, mock.ExpectationsWereMet())
}
