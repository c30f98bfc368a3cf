package nlu

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Category is one row of the category keyword table.
type Category struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
}

// ProductType maps a concrete product noun to the category it lives in.
type ProductType struct {
	Noun       string `json:"noun"`
	CategoryID int    `json:"categoryId"`
}

// Catalog holds the two read-only lookup tables. Table order is significant:
// the first matching row wins.
type Catalog struct {
	categories   []Category
	productTypes []ProductType
	byID         map[int]int
	// every category keyword, longest first, for stripping
	stripOrder []string
}

// NewCatalog copies and normalizes the given tables.
func NewCatalog(categories []Category, productTypes []ProductType) *Catalog {
	c := &Catalog{byID: make(map[int]int, len(categories))}

	for _, cat := range categories {
		kws := make([]string, 0, len(cat.Keywords))
		for _, kw := range cat.Keywords {
			if kw = Normalize(kw); kw != "" {
				kws = append(kws, kw)
				c.stripOrder = append(c.stripOrder, kw)
			}
		}
		c.byID[cat.ID] = len(c.categories)
		c.categories = append(c.categories, Category{ID: cat.ID, Name: cat.Name, Keywords: kws})
	}

	for _, pt := range productTypes {
		if noun := Normalize(pt.Noun); noun != "" {
			c.productTypes = append(c.productTypes, ProductType{Noun: noun, CategoryID: pt.CategoryID})
		}
	}

	sort.SliceStable(c.stripOrder, func(i, j int) bool {
		return utf8.RuneCountInString(c.stripOrder[i]) > utf8.RuneCountInString(c.stripOrder[j])
	})
	return c
}

// Categories returns a copy of the category table.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	for i, cat := range c.categories {
		out[i] = Category{ID: cat.ID, Name: cat.Name, Keywords: append([]string(nil), cat.Keywords...)}
	}
	return out
}

func (c *Catalog) CategoryByID(id int) (Category, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Category{}, false
	}
	return c.categories[i], true
}

// CategoryName returns the display name for id, or "" when unknown.
func (c *Catalog) CategoryName(id int) string {
	cat, _ := c.CategoryByID(id)
	return cat.Name
}

// FindCategoryInText returns the first category whose keyword occurs in the
// normalized text on word boundaries.
func (c *Catalog) FindCategoryInText(text string) (Category, bool) {
	for _, cat := range c.categories {
		for _, kw := range cat.Keywords {
			if containsWord(text, kw) {
				return cat, true
			}
		}
	}
	return Category{}, false
}

// MatchCategory resolves a free category mention (e.g. an NLP CATEGORY
// entity) by case-insensitive containment in either direction against the
// category name and its keywords.
func (c *Catalog) MatchCategory(term string) (Category, bool) {
	term = Normalize(term)
	if term == "" {
		return Category{}, false
	}
	for _, cat := range c.categories {
		if mutualContains(term, Normalize(cat.Name)) {
			return cat, true
		}
		for _, kw := range cat.Keywords {
			if mutualContains(term, kw) {
				return cat, true
			}
		}
	}
	return Category{}, false
}

// LookupBareTerm resolves a search term that is exactly a product noun or
// a category keyword/name.
func (c *Catalog) LookupBareTerm(term string) (Category, bool) {
	term = Normalize(term)
	if term == "" {
		return Category{}, false
	}
	for _, pt := range c.productTypes {
		if pt.Noun == term {
			return c.CategoryByID(pt.CategoryID)
		}
	}
	for _, cat := range c.categories {
		if Normalize(cat.Name) == term {
			return cat, true
		}
		for _, kw := range cat.Keywords {
			if kw == term {
				return cat, true
			}
		}
	}
	return Category{}, false
}

// MatchProductType finds the first product type related to term by
// containment in either direction.
func (c *Catalog) MatchProductType(term string) (ProductType, bool) {
	term = Normalize(term)
	if term == "" {
		return ProductType{}, false
	}
	for _, pt := range c.productTypes {
		if mutualContains(term, pt.Noun) {
			return pt, true
		}
	}
	return ProductType{}, false
}

// StripCategoryKeywords removes every category keyword from the normalized
// text, longest keyword first.
func (c *Catalog) StripCategoryKeywords(text string) string {
	for _, kw := range c.stripOrder {
		text = replaceWord(text, kw, " ")
	}
	return strings.Join(strings.Fields(text), " ")
}

func mutualContains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// DefaultCatalog is the campus marketplace's fixed category set.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultCategories, defaultProductTypes)
}

var defaultCategories = []Category{
	{ID: 1, Name: "Stationery", Keywords: []string{
		"văn phòng phẩm", "dụng cụ học tập", "stationery", "bút", "vở", "giấy", "thước", "pen", "pencil",
	}},
	{ID: 2, Name: "Books", Keywords: []string{
		"giáo trình", "sách", "truyện", "tài liệu", "books", "book", "novel",
	}},
	{ID: 3, Name: "Clothing", Keywords: []string{
		"quần áo", "thời trang", "clothing", "clothes", "fashion", "áo", "quần", "váy", "giày", "shirt", "shoes",
	}},
	{ID: 4, Name: "Electronics", Keywords: []string{
		"đồ điện tử", "điện tử", "electronics", "electronic", "gadgets", "gadget",
	}},
	{ID: 5, Name: "Accessories", Keywords: []string{
		"phụ kiện", "accessories", "accessory", "balo", "túi", "bag", "wallet",
	}},
}

var defaultProductTypes = []ProductType{
	{Noun: "máy tính bỏ túi", CategoryID: 1},
	{Noun: "calculator", CategoryID: 1},
	{Noun: "notebook", CategoryID: 1},
	{Noun: "highlighter", CategoryID: 1},
	{Noun: "laptop", CategoryID: 4},
	{Noun: "máy tính", CategoryID: 4},
	{Noun: "computer", CategoryID: 4},
	{Noun: "điện thoại", CategoryID: 4},
	{Noun: "smartphone", CategoryID: 4},
	{Noun: "phone", CategoryID: 4},
	{Noun: "iphone", CategoryID: 4},
	{Noun: "tai nghe", CategoryID: 4},
	{Noun: "headphones", CategoryID: 4},
	{Noun: "earphones", CategoryID: 4},
	{Noun: "bàn phím", CategoryID: 4},
	{Noun: "keyboard", CategoryID: 4},
	{Noun: "chuột", CategoryID: 4},
	{Noun: "mouse", CategoryID: 4},
	{Noun: "tablet", CategoryID: 4},
	{Noun: "ipad", CategoryID: 4},
	{Noun: "charger", CategoryID: 4},
	{Noun: "camera", CategoryID: 4},
	{Noun: "monitor", CategoryID: 4},
	{Noun: "áo khoác", CategoryID: 3},
	{Noun: "hoodie", CategoryID: 3},
	{Noun: "jacket", CategoryID: 3},
	{Noun: "t-shirt", CategoryID: 3},
	{Noun: "jeans", CategoryID: 3},
	{Noun: "sneakers", CategoryID: 3},
	{Noun: "dress", CategoryID: 3},
	{Noun: "đồng phục", CategoryID: 3},
	{Noun: "uniform", CategoryID: 3},
	{Noun: "từ điển", CategoryID: 2},
	{Noun: "dictionary", CategoryID: 2},
	{Noun: "textbook", CategoryID: 2},
	{Noun: "manga", CategoryID: 2},
	{Noun: "comic", CategoryID: 2},
	{Noun: "backpack", CategoryID: 5},
	{Noun: "đồng hồ", CategoryID: 5},
	{Noun: "watch", CategoryID: 5},
	{Noun: "kính", CategoryID: 5},
	{Noun: "glasses", CategoryID: 5},
	{Noun: "bình nước", CategoryID: 5},
	{Noun: "bottle", CategoryID: 5},
	{Noun: "umbrella", CategoryID: 5},
}
