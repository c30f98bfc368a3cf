package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/models"
	"marketplace-chat/internal/nlu"
)

// memoryRepo filters an in-memory product list the way the SQL store does.
type memoryRepo struct {
	mu       sync.Mutex
	products []models.ProductSummary
	queries  []models.ProductQuery
	findErr  error
	countErr error
}

func (r *memoryRepo) match(p models.ProductSummary, f models.SearchFilters) bool {
	if term := strings.ToLower(f.Term()); term != "" &&
		!strings.Contains(strings.ToLower(p.Name), term) &&
		!strings.Contains(strings.ToLower(p.Description), term) {
		return false
	}
	if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if s := f.Status(); s != "" && p.Status != s {
		return false
	}
	return true
}

func (r *memoryRepo) FindProducts(ctx context.Context, q models.ProductQuery) ([]models.ProductSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
	if r.findErr != nil {
		return nil, r.findErr
	}
	var out []models.ProductSummary
	for _, p := range r.products {
		if r.match(p, q.Filters) {
			out = append(out, p)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *memoryRepo) CountProducts(ctx context.Context, f models.SearchFilters) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countErr != nil {
		return 0, r.countErr
	}
	n := 0
	for _, p := range r.products {
		if r.match(p, f) {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) GetCategoriesWithCounts(ctx context.Context) ([]models.CategoryCount, error) {
	return []models.CategoryCount{{ID: 4, Name: "Electronics", ProductCount: 2}}, nil
}

func (r *memoryRepo) Queries() []models.ProductQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ProductQuery(nil), r.queries...)
}

func testProducts() []models.ProductSummary {
	return []models.ProductSummary{
		{ID: 1, Name: "Dell Inspiron", Description: "Used office machine", Price: 4500000, CategoryID: 4, Status: "active"},
		{ID: 2, Name: "Casio FX-580", Description: "Scientific calculator", Price: 350000, CategoryID: 1, Status: "active"},
		{ID: 3, Name: "Grey hoodie", Description: "Size M", Price: 150000, CategoryID: 3, Status: "active"},
		{ID: 4, Name: "Old Dell", Description: "", Price: 900000, CategoryID: 4, Status: "sold"},
	}
}

func newTestSearcher(t *testing.T, repo models.ProductRepository) (*Searcher, *nlu.Parser) {
	log := logger.NewTestLogger(t)
	catalog := nlu.DefaultCatalog()
	parser := nlu.NewParser(catalog, nil, nil, nlu.ParserConfig{}, log)
	executor := NewExecutor(repo, time.Second, log)
	fallback := NewFallbackEngine(catalog, parser.Extractor(), executor, log)
	return NewSearcher(NewResolver(catalog, ResolverConfig{}), executor, fallback, log), parser
}

func TestResolver_Resolve(t *testing.T) {
	catalog := nlu.DefaultCatalog()
	parser := nlu.NewParser(catalog, nil, nil, nlu.ParserConfig{}, logger.NewNoOpLogger())
	r := NewResolver(catalog, ResolverConfig{})

	tests := []struct {
		name     string
		message  string
		term     string
		category *int
		order    models.OrderBy
	}{
		{"category keyword only", "browse electronics", "", intPtr(4), models.OrderByLatest},
		{"bare product noun suppresses term", "find laptop under 500k", "", intPtr(4), models.OrderByLatest},
		{"free term kept", "gaming laptop", "gaming laptop", nil, models.OrderByLatest},
		{"term kept when category differs", "sách laptop", "laptop", intPtr(2), models.OrderByLatest},
		{"cheap sorts ascending", "cheapest hoodie", "", intPtr(3), models.OrderByPriceAsc},
		{"oldest", "oldest books", "", intPtr(2), models.OrderByOldest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters, order := r.Resolve(parser.Parse(context.Background(), tt.message, nil))
			assert.Equal(t, tt.term, filters.Term())
			if tt.term == "" {
				assert.Nil(t, filters.SearchTerm)
			}
			assert.Equal(t, tt.category, filters.CategoryID)
			assert.Equal(t, tt.order, order)
			assert.Equal(t, "active", filters.StatusFilter)
		})
	}
}

func TestResolver_Resolve_CopiesPriceBounds(t *testing.T) {
	catalog := nlu.DefaultCatalog()
	parser := nlu.NewParser(catalog, nil, nil, nlu.ParserConfig{}, logger.NewNoOpLogger())
	q := parser.Parse(context.Background(), "books between 50k and 200k", nil)

	filters, _ := NewResolver(catalog, ResolverConfig{}).Resolve(q)

	require.NotNil(t, filters.MinPrice)
	require.NotNil(t, filters.MaxPrice)
	assert.Equal(t, int64(50000), *filters.MinPrice)
	assert.Equal(t, int64(200000), *filters.MaxPrice)

	// the filter set owns its values
	*q.Entities.MinPrice = 1
	assert.Equal(t, int64(50000), *filters.MinPrice)
}

func TestExecutor_Run(t *testing.T) {
	repo := &memoryRepo{products: testProducts()}
	x := NewExecutor(repo, time.Second, logger.NewTestLogger(t))

	page := x.Run(context.Background(), models.ProductQuery{
		Filters: models.SearchFilters{CategoryID: intPtr(4), StatusFilter: "active"},
		Limit:   10,
	})
	require.Len(t, page.Products, 1)
	assert.Equal(t, int64(1), page.Products[0].ID)
	assert.Equal(t, 1, page.Total)

	all := x.Run(context.Background(), models.ProductQuery{
		Filters: models.SearchFilters{IncludeAllStatuses: true},
		Limit:   2,
	})
	assert.Len(t, all.Products, 2)
	assert.Equal(t, 4, all.Total)
}

func TestExecutor_Run_StorageFailureIsEmptyPage(t *testing.T) {
	tests := []struct {
		name string
		repo *memoryRepo
	}{
		{"find fails", &memoryRepo{products: testProducts(), findErr: errors.New("connection reset")}},
		{"count fails", &memoryRepo{products: testProducts(), countErr: errors.New("timeout")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := NewExecutor(tt.repo, time.Second, logger.NewTestLogger(t)).Run(context.Background(), models.ProductQuery{Limit: 10})
			assert.True(t, page.Empty())
			assert.Equal(t, 0, page.Total)
		})
	}
}

func TestSearcher_CategoryFallback(t *testing.T) {
	repo := &memoryRepo{products: testProducts()}
	s, parser := newTestSearcher(t, repo)

	// "gaming laptop" matches no product text; the laptop product type maps
	// it to electronics
	out := s.Search(context.Background(), parser.Parse(context.Background(), "gaming laptop", nil), 10, 0)

	assert.Equal(t, TierCategory, out.FallbackTier)
	require.Len(t, out.Page.Products, 1)
	assert.Equal(t, "Dell Inspiron", out.Page.Products[0].Name)
	assert.Nil(t, out.Query.Filters.SearchTerm)
	require.NotNil(t, out.Query.Filters.CategoryID)
	assert.Equal(t, 4, *out.Query.Filters.CategoryID)
	require.Len(t, out.Attempts, 1)
}

func TestSearcher_CategoryFallbackKeepsPriceBounds(t *testing.T) {
	repo := &memoryRepo{products: testProducts()}
	s, parser := newTestSearcher(t, repo)

	out := s.Search(context.Background(), parser.Parse(context.Background(), "gaming laptop under 1tr", nil), 10, 0)

	assert.Empty(t, out.Page.Products)
	assert.Equal(t, Tier(""), out.FallbackTier)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, TierCategory, out.Attempts[0].Tier)
	require.NotNil(t, out.Attempts[0].Filters.MaxPrice)
	assert.Equal(t, int64(1000000), *out.Attempts[0].Filters.MaxPrice)
	// the broadened term equals the original keywords, so tier two is skipped
	assert.True(t, out.Attempts[1].Skipped)
}

func TestSearcher_BroadenedFallbackFromProductEntity(t *testing.T) {
	repo := &memoryRepo{products: testProducts()}
	s, _ := newTestSearcher(t, repo)

	q := nlu.ParsedQuery{
		Intent:          nlu.ParsedIntent{Name: nlu.IntentSearchProduct, Source: nlu.SourceNLP},
		EntitySource:    nlu.SourceNLP,
		Entities:        nlu.Entities{Keywords: []string{"casio", "blue"}, Product: "Casio"},
		OriginalMessage: "blue casio",
	}
	out := s.Search(context.Background(), q, 10, 0)

	assert.Equal(t, TierBroadened, out.FallbackTier)
	assert.Equal(t, "Casio", out.Query.Filters.Term())
	assert.Nil(t, out.Query.Filters.CategoryID)
	assert.Nil(t, out.Query.Filters.MaxPrice)
	require.Len(t, out.Page.Products, 1)
	assert.Equal(t, int64(2), out.Page.Products[0].ID)
}

func TestSearcher_NoFallbackWhenResultsFound(t *testing.T) {
	repo := &memoryRepo{products: testProducts()}
	s, parser := newTestSearcher(t, repo)

	out := s.Search(context.Background(), parser.Parse(context.Background(), "hoodie", nil), 10, 0)

	assert.Equal(t, Tier(""), out.FallbackTier)
	assert.Len(t, out.Page.Products, 1)
	assert.Len(t, repo.Queries(), 1)
}

func TestSearcher_StorageFailureInEveryTier(t *testing.T) {
	repo := &memoryRepo{products: testProducts(), findErr: errors.New("db down")}
	s, parser := newTestSearcher(t, repo)

	out := s.Search(context.Background(), parser.Parse(context.Background(), "gaming laptop", nil), 10, 0)

	assert.True(t, out.Page.Empty())
	assert.Equal(t, Tier(""), out.FallbackTier)
}

func TestFallbackEngine_BroadenedTerm(t *testing.T) {
	catalog := nlu.DefaultCatalog()
	f := NewFallbackEngine(catalog, nlu.NewExtractor(catalog), nil, logger.NewNoOpLogger())

	tests := []struct {
		name string
		q    nlu.ParsedQuery
		want string
	}{
		{"product entity first", nlu.ParsedQuery{
			Entities: nlu.Entities{Product: "iPad"}, NounChunks: []string{"a cheap used tablet"}, EntitySource: nlu.SourceNLP,
		}, "iPad"},
		{"longest noun chunk", nlu.ParsedQuery{
			NounChunks: []string{"a", "used mechanical keyboard", "budget"}, EntitySource: nlu.SourceNLP,
		}, "used mechanical keyboard"},
		{"first clause from nlp parse", nlu.ParsedQuery{
			OriginalMessage: "red scarf, wool, under 200k", EntitySource: nlu.SourceNLP,
		}, "red scarf"},
		{"first clause reduced to keywords for rule parse", nlu.ParsedQuery{
			OriginalMessage: "find red scarf under 200k, please", EntitySource: nlu.SourceRegexFallback,
		}, "red scarf"},
		{"stop words only keep the raw clause", nlu.ParsedQuery{
			OriginalMessage: "show me, please", EntitySource: nlu.SourceRegexFallback,
		}, "show me"},
		{"empty message", nlu.ParsedQuery{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := f.BroadenedTerm(tt.q)
			assert.Equal(t, tt.want, got)
		})
	}
}
