package chat

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
	"marketplace-chat/internal/common/nlp"
	"marketplace-chat/internal/models"
	"marketplace-chat/internal/nlu"
	"marketplace-chat/internal/search"
)

// ==========================
// Test Fakes
// ==========================

type productStore struct {
	mu       sync.Mutex
	products []models.ProductSummary
	queries  []models.ProductQuery
	err      error
}

func (s *productStore) matches(p models.ProductSummary, f models.SearchFilters) bool {
	if term := strings.ToLower(f.Term()); term != "" && !strings.Contains(strings.ToLower(p.Name), term) {
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
	return f.Status() == "" || p.Status == f.Status()
}

func (s *productStore) FindProducts(ctx context.Context, q models.ProductQuery) ([]models.ProductSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	var out []models.ProductSummary
	for _, p := range s.products {
		if s.matches(p, q.Filters) {
			out = append(out, p)
		}
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *productStore) CountProducts(ctx context.Context, f models.SearchFilters) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for _, p := range s.products {
		if s.matches(p, f) {
			n++
		}
	}
	return n, nil
}

func (s *productStore) GetCategoriesWithCounts(ctx context.Context) ([]models.CategoryCount, error) {
	return []models.CategoryCount{
		{ID: 1, Name: "Stationery", ProductCount: 1},
		{ID: 4, Name: "Electronics", ProductCount: 2},
	}, nil
}

type recorder struct {
	mu   sync.Mutex
	msgs []models.ChatMessage
	err  error
}

func (r *recorder) Record(ctx context.Context, msg models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) Messages() []models.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ChatMessage(nil), r.msgs...)
}

var testProducts = []models.ProductSummary{
	{ID: 1, Name: "Dell laptop", Price: 450000, CategoryID: 4, CategoryName: "Electronics", Status: "active", Condition: "used"},
	{ID: 2, Name: "Sony headphones", Price: 900000, CategoryID: 4, CategoryName: "Electronics", Status: "active"},
	{ID: 3, Name: "Calculator FX-580", Price: 350000, CategoryID: 1, CategoryName: "Stationery", Status: "active"},
	{ID: 4, Name: "Gray hoodie", Price: 150000, CategoryID: 3, CategoryName: "Clothing", Status: "active", Description: "Size M, worn twice"},
	{ID: 5, Name: "Old laptop", Price: 100000, CategoryID: 4, CategoryName: "Electronics", Status: "sold"},
}

func newTestService(t *testing.T, store *productStore, rec MessageRecorder) *Service {
	t.Helper()
	log := logger.NewTestLogger(t)
	catalog := nlu.DefaultCatalog()
	parser := nlu.NewParser(catalog, nil, nil, nlu.ParserConfig{}, log)

	executor := search.NewExecutor(store, time.Second, log)
	searcher := search.NewSearcher(
		search.NewResolver(catalog, search.ResolverConfig{}),
		executor,
		search.NewFallbackEngine(catalog, parser.Extractor(), executor, log),
		log,
	)
	return NewService(parser, searcher, rec, nil, Config{}, log)
}

// ==========================
// Search Replies
// ==========================

func TestService_Handle_FindWithPriceBound(t *testing.T) {
	store := &productStore{products: testProducts}
	svc := newTestService(t, store, nil)

	res := svc.Handle(context.Background(), Request{SessionID: "s-1", Text: "find laptop under 500k"})

	assert.Equal(t, "I found 1 product in Electronics under 500,000₫:", res.Reply)
	require.Len(t, res.Metadata.Results, 1)
	assert.Equal(t, "Dell laptop", res.Metadata.Results[0].Name)
	assert.Equal(t, "search_items", res.Metadata.Intent)
	assert.Empty(t, res.Metadata.FallbackType)
	require.NotNil(t, res.Metadata.Filters)
	assert.Nil(t, res.Metadata.Filters.SearchTerm)
	require.NotNil(t, res.Metadata.Filters.CategoryID)
	assert.Equal(t, 4, *res.Metadata.Filters.CategoryID)
	assert.Equal(t, int64(500000), *res.Metadata.Filters.MaxPrice)
	assert.NotEmpty(t, res.Metadata.RequestID)
}

func TestService_Handle_BrowseCategorySuppressesTerm(t *testing.T) {
	store := &productStore{products: testProducts}
	svc := newTestService(t, store, nil)

	res := svc.Handle(context.Background(), Request{Text: "browse electronics"})

	require.NotNil(t, res.Metadata.Filters)
	assert.Nil(t, res.Metadata.Filters.SearchTerm)
	require.NotNil(t, res.Metadata.Filters.CategoryID)
	assert.Equal(t, 4, *res.Metadata.Filters.CategoryID)
	assert.Equal(t, "Electronics", res.Metadata.CategoryName)
	assert.Equal(t, 2, res.Metadata.TotalCount)
	assert.Equal(t, "I found 2 products in Electronics:", res.Reply)
}

func TestService_Handle_CategoryFallback(t *testing.T) {
	store := &productStore{products: testProducts}
	svc := newTestService(t, store, nil)

	res := svc.Handle(context.Background(), Request{Text: "casio calculator"})

	assert.Equal(t, "category", res.Metadata.FallbackType)
	require.Len(t, res.Metadata.Results, 1)
	assert.Equal(t, "Calculator FX-580", res.Metadata.Results[0].Name)
	assert.Equal(t, "Stationery", res.Metadata.CategoryName)
	assert.True(t, strings.HasPrefix(res.Reply, "No exact matches, so I looked through Stationery instead."))
}

func TestService_Handle_NothingFound(t *testing.T) {
	store := &productStore{products: testProducts}
	svc := newTestService(t, store, nil)

	res := svc.Handle(context.Background(), Request{Text: "unicorn saddle"})

	assert.Regexp(t, `(?i)couldn't find any products`, res.Reply)
	assert.Equal(t, `I couldn't find any products matching "unicorn saddle". Try a different search term?`, res.Reply)
	assert.NotNil(t, res.Metadata.Results)
	assert.Empty(t, res.Metadata.Results)
	assert.Empty(t, res.Metadata.FallbackType)
	assert.Contains(t, res.Suggestions, "Show all products")
}

func TestService_Handle_StorageFailureIsNotFound(t *testing.T) {
	store := &productStore{products: testProducts, err: errors.New("connection reset")}
	svc := newTestService(t, store, nil)

	res := svc.Handle(context.Background(), Request{Text: "find laptop"})

	assert.Contains(t, res.Reply, "couldn't find any products")
	assert.Empty(t, res.Metadata.Error)
	assert.Empty(t, res.Metadata.Results)
}

func TestService_Handle_InvalidPriceRange(t *testing.T) {
	store := &productStore{products: testProducts}
	svc := newTestService(t, store, nil)

	res := svc.Handle(context.Background(), Request{
		Text: "laptop price",
		NLP: &nlp.Result{
			Intent: &nlp.Intent{Name: "search_items", Confidence: 0.9},
			Entities: []nlp.Entity{
				{Label: "KEYWORDS", Value: []interface{}{"laptop"}},
				{Label: "MINPRICE", Value: float64(900000)},
				{Label: "MAXPRICE", Value: float64(200000)},
			},
		},
	})

	require.NotEmpty(t, res.Metadata.ValidationErrors)
	assert.Contains(t, res.Metadata.ValidationErrors[0], "cannot be greater than maxPrice")
	require.NotNil(t, res.Metadata.Filters)
	assert.Nil(t, res.Metadata.Filters.MinPrice)
	assert.Nil(t, res.Metadata.Filters.MaxPrice)
	assert.Equal(t, "nlp", res.Metadata.IntentSource)
}

// ==========================
// Intent Handling
// ==========================

func TestService_Handle_HelpIntent(t *testing.T) {
	store := &productStore{products: testProducts}
	svc := newTestService(t, store, nil)

	tests := []struct {
		name string
		req  Request
	}{
		{"what can you do", Request{Text: "what can you do"}},
		{"bare help", Request{Text: "help"}},
		{"nlp says search", Request{Text: "help", NLP: &nlp.Result{Intent: &nlp.Intent{Name: "search_items", Confidence: 0.8}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.Handle(context.Background(), tt.req)
			assert.Equal(t, "help", res.Metadata.Intent)
			assert.Equal(t, "rule-based", res.Metadata.IntentSource)
			assert.Contains(t, res.Reply, "- Electronics (2 products)")
			assert.Len(t, res.Metadata.Categories, 2)
			assert.Empty(t, store.queries)
		})
	}
}

func TestService_Handle_Greeting(t *testing.T) {
	svc := newTestService(t, &productStore{}, nil)

	res := svc.Handle(context.Background(), Request{Text: "xin chào"})

	assert.Equal(t, "greeting", res.Metadata.Intent)
	assert.Contains(t, res.Reply, "Hi there!")
	assert.Contains(t, res.Suggestions, "What can you do?")
}

func TestService_Handle_AskPrice(t *testing.T) {
	store := &productStore{products: testProducts}
	svc := newTestService(t, store, nil)

	res := svc.Handle(context.Background(), Request{
		Text: "how much is a hoodie",
		NLP: &nlp.Result{
			Intent:   &nlp.Intent{Name: "search_items"},
			Entities: []nlp.Entity{{Label: "KEYWORDS", Value: []interface{}{"hoodie"}}},
		},
	})

	assert.Equal(t, "ask_price", res.Metadata.Intent)
	assert.Equal(t, "Gray hoodie is listed at 150,000₫.", res.Reply)
}

func TestService_Handle_ItemDetailsUsesLimitOne(t *testing.T) {
	store := &productStore{products: testProducts}
	svc := newTestService(t, store, nil)

	res := svc.Handle(context.Background(), Request{
		Text: "hoodie",
		NLP: &nlp.Result{
			Intent:   &nlp.Intent{Name: "item_details", Confidence: 0.9},
			Entities: []nlp.Entity{{Label: "KEYWORDS", Value: []interface{}{"hoodie"}}},
		},
	})

	assert.Equal(t, 1, res.Metadata.Limit)
	assert.Contains(t, res.Reply, "Here are the details for Gray hoodie:")
	assert.Contains(t, res.Reply, "- Description: Size M, worn twice")
}

func TestService_LimitFor(t *testing.T) {
	svc := newTestService(t, &productStore{}, nil)

	tests := []struct {
		name   string
		intent nlu.IntentName
		limit  int
		want   int
	}{
		{"default", nlu.IntentSearchItems, 0, DefaultLimit},
		{"recommendations", nlu.IntentGetRecommendations, 0, RecommendationLimit},
		{"details", nlu.IntentItemDetails, 0, 1},
		{"explicit", nlu.IntentSearchItems, 20, 20},
		{"capped", nlu.IntentSearchItems, 80, MaxLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := nlu.ParsedQuery{Intent: nlu.ParsedIntent{Name: tt.intent}, Entities: nlu.Entities{Limit: tt.limit}}
			assert.Equal(t, tt.want, svc.limitFor(q))
		})
	}
}

// ==========================
// Failure And Recording
// ==========================

func TestService_Handle_RecoversFromPanic(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, Config{}, logger.NewTestLogger(t))

	res := svc.Handle(context.Background(), Request{Text: "find laptop"})

	assert.Equal(t, genericErrorReply, res.Reply)
	assert.NotEmpty(t, res.Metadata.Error)
	assert.NotEmpty(t, res.Metadata.RequestID)
}

func TestService_Handle_RecordsBothMessages(t *testing.T) {
	rec := &recorder{}
	svc := newTestService(t, &productStore{products: testProducts}, rec)

	res := svc.Handle(context.Background(), Request{SessionID: "s-9", UserID: "u-1", Text: "find laptop"})
	svc.Drain()

	msgs := rec.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.ChatRoleUser, msgs[0].Role)
	assert.Equal(t, "find laptop", msgs[0].Content)
	assert.Equal(t, models.ChatRoleBot, msgs[1].Role)
	assert.Equal(t, res.Reply, msgs[1].Content)
	assert.Equal(t, res.Metadata.RequestID, msgs[1].Metadata["requestId"])
	assert.NotEqual(t, msgs[0].EventID, msgs[1].EventID)
}

func TestService_Handle_RecorderFailureDoesNotAffectReply(t *testing.T) {
	rec := &recorder{err: errors.New("broker unavailable")}
	svc := newTestService(t, &productStore{products: testProducts}, rec)

	res := svc.Handle(context.Background(), Request{SessionID: "s-9", Text: "find laptop"})
	svc.Drain()

	assert.Empty(t, res.Metadata.Error)
	assert.NotEmpty(t, res.Metadata.Results)
}
