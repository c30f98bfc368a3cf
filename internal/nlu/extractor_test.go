package nlu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor() *Extractor {
	return NewExtractor(DefaultCatalog())
}

func TestExtractor_Extract_PriceAndProductNoun(t *testing.T) {
	e := newTestExtractor().Extract("find laptop under 500k")

	require.NotNil(t, e.MaxPrice)
	assert.Equal(t, int64(500000), *e.MaxPrice)
	assert.Nil(t, e.MinPrice)
	assert.Equal(t, []string{"laptop"}, e.Keywords)
	require.NotNil(t, e.CategoryID)
	assert.Equal(t, 4, *e.CategoryID)
	assert.Equal(t, "Electronics", e.CategoryName)
}

func TestExtractor_Extract_CategoryOnly(t *testing.T) {
	e := newTestExtractor().Extract("browse electronics")

	require.NotNil(t, e.CategoryID)
	assert.Equal(t, 4, *e.CategoryID)
	assert.Empty(t, e.Keywords)
	assert.Equal(t, "", e.SearchTerm())
}

func TestExtractor_Extract_PriceRanges(t *testing.T) {
	tests := []struct {
		name    string
		message string
		min     *int64
		max     *int64
	}{
		{"from to", "laptop from 5tr to 10tr", int64Ptr(5000000), int64Ptr(10000000)},
		{"between and", "books between 50k and 200k", int64Ptr(50000), int64Ptr(200000)},
		{"dash range", "áo 100k-300k", int64Ptr(100000), int64Ptr(300000)},
		{"vietnamese range", "điện thoại từ 2 triệu đến 5 triệu", int64Ptr(2000000), int64Ptr(5000000)},
		{"under vietnamese unit word", "điện thoại dưới 2 triệu", nil, int64Ptr(2000000)},
		{"over", "laptop above 10tr", int64Ptr(10000000), nil},
		{"under and over", "sách trên 50k dưới 200k", int64Ptr(50000), int64Ptr(200000)},
		{"keyword then words then number", "under about 300k", nil, int64Ptr(300000)},
		{"bare small number", "bút dưới 20", nil, int64Ptr(20000)},
		{"no price", "blue hoodie", nil, nil},
	}

	x := newTestExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := x.Extract(tt.message)
			assert.Equal(t, tt.min, e.MinPrice)
			assert.Equal(t, tt.max, e.MaxPrice)
		})
	}
}

func TestExtractor_Extract_Sort(t *testing.T) {
	tests := []struct {
		message   string
		sort      SortOrder
		cheapest  bool
		expensive bool
	}{
		{"cheapest books", SortPriceAsc, true, false},
		{"most expensive first laptops", SortPriceDesc, false, false},
		{"premium headphones", SortPriceDesc, false, true},
		{"sách mới nhất", SortNewest, false, false},
		{"oldest listings", SortOldest, false, false},
		{"laptop giá rẻ", SortPriceAsc, true, false},
		{"calculator", "", false, false},
	}

	x := newTestExtractor()
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			e := x.Extract(tt.message)
			assert.Equal(t, tt.sort, e.SortBy)
			assert.Equal(t, tt.cheapest, e.Cheapest)
			assert.Equal(t, tt.expensive, e.Expensive)
		})
	}
}

func TestExtractor_Extract_Condition(t *testing.T) {
	x := newTestExtractor()

	assert.Equal(t, ConditionUsed, x.Extract("used textbook").Condition)
	assert.Equal(t, ConditionNew, x.Extract("brand new iphone").Condition)
	assert.Equal(t, ConditionUsed, x.Extract("laptop cũ giá rẻ").Condition)
	// "mới nhất" is a sort phrase, not a condition
	assert.Equal(t, "", x.Extract("sách mới nhất").Condition)
	// first mention wins
	assert.Equal(t, ConditionNew, x.Extract("new or used bike").Condition)
}

func TestExtractor_Extract_Limit(t *testing.T) {
	x := newTestExtractor()

	assert.Equal(t, 5, x.Extract("show me 5 items").Limit)
	assert.Equal(t, MaxLimit, x.Extract("show me 100 results").Limit)
	assert.Equal(t, 3, x.Extract("cho tôi 3 sản phẩm").Limit)
	assert.Equal(t, 0, x.Extract("laptop").Limit)
}

func TestExtractor_ExtractKeywords(t *testing.T) {
	x := newTestExtractor()

	tests := []struct {
		message string
		want    []string
	}{
		{"find a gaming laptop, please!", []string{"gaming", "laptop"}},
		{"laptop laptop gaming", []string{"laptop", "gaming"}},
		{"hoodie 100k-300k", []string{"hoodie"}},
		{"tìm tai nghe bluetooth", []string{"tai", "nghe", "bluetooth"}},
		{"electronics under 2tr", nil},
		{"iphone 13 pro", []string{"iphone", "pro"}},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, x.ExtractKeywords(tt.message))
		})
	}
}

func TestExtractor_Extract_IsIdempotentUnderNormalization(t *testing.T) {
	x := newTestExtractor()

	for _, msg := range []string{
		"Find LAPTOP under 500K",
		"  Điện Thoại   dưới 2 Triệu ",
		"cheapest BOOKS between 50k and 200k",
	} {
		assert.Equal(t, x.Extract(msg), x.Extract(Normalize(msg)), msg)
	}
}

func TestValidatePriceBounds(t *testing.T) {
	assert.Empty(t, ValidatePriceBounds(int64Ptr(100), int64Ptr(200)))
	assert.Empty(t, ValidatePriceBounds(nil, nil))

	errs := ValidatePriceBounds(int64Ptr(500), int64Ptr(100))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "minPrice")

	errs = ValidatePriceBounds(int64Ptr(-1), int64Ptr(-2))
	assert.Len(t, errs, 3)
}
