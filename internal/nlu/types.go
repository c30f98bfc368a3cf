// Package nlu turns a free-text marketplace chat message into a ParsedQuery:
// a classified intent plus typed entities (category, price bounds, sort,
// condition, limit and keyword remainder).
package nlu

import "strings"

// IntentName is the closed set of intents the pipeline understands.
type IntentName string

const (
	IntentSearchItems        IntentName = "search_items"
	IntentSearchProduct      IntentName = "search_product"
	IntentGetRecommendations IntentName = "get_recommendations"
	IntentItemDetails        IntentName = "item_details"
	IntentHelp               IntentName = "help"
	IntentGreeting           IntentName = "greeting"
	IntentAskPrice           IntentName = "ask_price"
	IntentUnknown            IntentName = "unknown"
)

// ParseIntentName maps an external label to a known intent; unknown labels
// map to IntentUnknown.
func ParseIntentName(s string) IntentName {
	switch n := IntentName(strings.ToLower(strings.TrimSpace(s))); n {
	case IntentSearchItems, IntentSearchProduct, IntentGetRecommendations, IntentItemDetails,
		IntentHelp, IntentGreeting, IntentAskPrice:
		return n
	default:
		return IntentUnknown
	}
}

// IsSearch reports whether the intent is answered with a product search.
func (n IntentName) IsSearch() bool {
	switch n {
	case IntentGreeting, IntentHelp:
		return false
	default:
		return true
	}
}

// IntentSource records which layer produced the intent.
type IntentSource string

const (
	SourceNLP           IntentSource = "nlp"
	SourceRegexFallback IntentSource = "regex-fallback"
	SourceRuleBased     IntentSource = "rule-based"
)

type ParsedIntent struct {
	Name       IntentName   `json:"name"`
	Confidence float64      `json:"confidence"`
	Source     IntentSource `json:"source"`
}

// SortOrder is the user's explicit ordering preference.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
)

func parseSortOrder(s string) (SortOrder, bool) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case SortNewest, SortOldest, SortPriceAsc, SortPriceDesc:
		return o, true
	case "latest":
		return SortNewest, true
	default:
		return "", false
	}
}

// Condition of a listed item.
const (
	ConditionNew  = "new"
	ConditionUsed = "used"
)

// Entity labels, upper-case as emitted by the NLP service.
const (
	LabelCategoryID = "CATEGORYID"
	LabelCategory   = "CATEGORY"
	LabelMinPrice   = "MINPRICE"
	LabelMaxPrice   = "MAXPRICE"
	LabelKeywords   = "KEYWORDS"
	LabelSortBy     = "SORTBY"
	LabelCheapest   = "CHEAPEST"
	LabelExpensive  = "EXPENSIVE"
	LabelCondition  = "CONDITION"
	LabelLimit      = "LIMIT"
	LabelProduct    = "PRODUCT"
)

// Entity is one labelled span.
type Entity struct {
	Label string      `json:"label"`
	Text  string      `json:"text,omitempty"`
	Value interface{} `json:"value,omitempty"`
}

// Entities is the typed view of everything extracted from one message.
// Pointer fields are nil when the entity is absent.
type Entities struct {
	CategoryID   *int      `json:"categoryId,omitempty"`
	CategoryName string    `json:"categoryName,omitempty"`
	MinPrice     *int64    `json:"minPrice,omitempty"`
	MaxPrice     *int64    `json:"maxPrice,omitempty"`
	SortBy       SortOrder `json:"sortBy,omitempty"`
	Cheapest     bool      `json:"cheapest,omitempty"`
	Expensive    bool      `json:"expensive,omitempty"`
	Condition    string    `json:"condition,omitempty"`
	Limit        int       `json:"limit,omitempty"`
	Keywords     []string  `json:"keywords,omitempty"`
	Product      string    `json:"product,omitempty"`
}

// SearchTerm is the keyword remainder joined by single spaces.
func (e Entities) SearchTerm() string {
	return strings.Join(e.Keywords, " ")
}

// HasPriceBounds reports whether either bound is set.
func (e Entities) HasPriceBounds() bool {
	return e.MinPrice != nil || e.MaxPrice != nil
}

// List returns the entities as an ordered labelled sequence.
func (e Entities) List() []Entity {
	var out []Entity
	if e.CategoryID != nil {
		out = append(out, Entity{Label: LabelCategoryID, Text: e.CategoryName, Value: *e.CategoryID})
	}
	if e.MinPrice != nil {
		out = append(out, Entity{Label: LabelMinPrice, Value: *e.MinPrice})
	}
	if e.MaxPrice != nil {
		out = append(out, Entity{Label: LabelMaxPrice, Value: *e.MaxPrice})
	}
	if e.SortBy != "" {
		out = append(out, Entity{Label: LabelSortBy, Value: string(e.SortBy)})
	}
	if e.Cheapest {
		out = append(out, Entity{Label: LabelCheapest, Value: true})
	}
	if e.Expensive {
		out = append(out, Entity{Label: LabelExpensive, Value: true})
	}
	if e.Condition != "" {
		out = append(out, Entity{Label: LabelCondition, Value: e.Condition})
	}
	if e.Limit > 0 {
		out = append(out, Entity{Label: LabelLimit, Value: e.Limit})
	}
	if len(e.Keywords) > 0 {
		out = append(out, Entity{Label: LabelKeywords, Text: e.SearchTerm(), Value: append([]string(nil), e.Keywords...)})
	}
	if e.Product != "" {
		out = append(out, Entity{Label: LabelProduct, Text: e.Product, Value: e.Product})
	}
	return out
}

// Map returns label -> value for response metadata.
func (e Entities) Map() map[string]interface{} {
	list := e.List()
	out := make(map[string]interface{}, len(list))
	for _, ent := range list {
		out[ent.Label] = ent.Value
	}
	return out
}

func (e Entities) clone() Entities {
	c := e
	if e.CategoryID != nil {
		id := *e.CategoryID
		c.CategoryID = &id
	}
	if e.MinPrice != nil {
		v := *e.MinPrice
		c.MinPrice = &v
	}
	if e.MaxPrice != nil {
		v := *e.MaxPrice
		c.MaxPrice = &v
	}
	c.Keywords = append([]string(nil), e.Keywords...)
	return c
}

// ParsedQuery is produced once per message and treated as read-only.
type ParsedQuery struct {
	Intent   ParsedIntent `json:"intent"`
	Entities Entities     `json:"entities"`
	// EntitySource is nlp or regex-fallback; unlike Intent.Source it is not
	// changed by the override layer.
	EntitySource    IntentSource `json:"entitySource"`
	NounChunks      []string     `json:"nounChunks,omitempty"`
	OriginalMessage string       `json:"originalMessage"`
}

// EntityMap returns label -> value for the query's entities.
func (q ParsedQuery) EntityMap() map[string]interface{} {
	return q.Entities.Map()
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }
