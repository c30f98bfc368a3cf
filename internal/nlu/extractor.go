package nlu

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLimit caps an explicit "N items" request.
const MaxLimit = 50

// number followed by an optional letter run that may be a unit suffix
const numPat = `(\d+(?:[.,]\d+)*)\s*(\p{L}*)`

var (
	rangeRes = []*regexp.Regexp{
		regexp.MustCompile(`(?:from|từ)\s+` + numPat + `\s*(?:to|đến|tới|-|~)\s*` + numPat),
		regexp.MustCompile(`(?:between|trong khoảng|khoảng)\s+` + numPat + `\s*(?:and|và|đến|tới|-|~)\s*` + numPat),
		regexp.MustCompile(`(?:^|\s)` + numPat + `\s*(?:-|~|đến|tới|\bto\b)\s*` + numPat),
	}

	underKeywords = `(?:\b(?:less than|cheaper than|lower than|at most|maximum|under|below|max|up to)\b|không quá|tối đa|nhỏ hơn|ít hơn|thấp hơn|rẻ hơn|dưới|<)`
	overKeywords  = `(?:\b(?:more than|greater than|higher than|at least|minimum|over|above|min)\b|trên|nhiều hơn|lớn hơn|cao hơn|đắt hơn|ít nhất|tối thiểu|>)`

	underRe          = regexp.MustCompile(underKeywords + `\s*(?:` + numPat + `)?`)
	overRe           = regexp.MustCompile(overKeywords + `\s*(?:` + numPat + `)?`)
	underFollowingRe = regexp.MustCompile(underKeywords + `[^\d]{0,24}?(\d+(?:[.,]\d+)*)(\p{L}*)`)
	overFollowingRe  = regexp.MustCompile(overKeywords + `[^\d]{0,24}?(\d+(?:[.,]\d+)*)(\p{L}*)`)

	limitRe = regexp.MustCompile(`(\d+)\s*(?:items?|results?|products?|listings?|sản phẩm|kết quả|món)(?:$|[^\p{L}])`)

	sortPhraseRe = regexp.MustCompile(`mới nhất|cũ nhất`)
	rangeDashRe  = regexp.MustCompile(`(\d\p{L}{0,5})[-~](\d)`)
)

type sortRule struct {
	order   SortOrder
	pattern *regexp.Regexp
}

var explicitSortRules = []sortRule{
	{SortPriceAsc, regexp.MustCompile(`giá (?:từ )?thấp (?:đến|tới) cao|giá tăng dần|low to high|price ascending|lowest price first|cheapest first`)},
	{SortPriceDesc, regexp.MustCompile(`giá (?:từ )?cao (?:đến|tới) thấp|giá giảm dần|high to low|price descending|highest price first|most expensive first`)},
	{SortNewest, regexp.MustCompile(`mới nhất|gần đây|newest|latest|most recent|\brecent\b|mới đăng`)},
	{SortOldest, regexp.MustCompile(`cũ nhất|oldest|earliest`)},
}

var (
	cheapRe     = regexp.MustCompile(`\bcheap(?:est|er)?\b|\baffordable\b|\bbudget\b|giá rẻ|rẻ nhất|(?:^|\s)rẻ(?:$|\s)`)
	expensiveRe = regexp.MustCompile(`\bexpensive\b|\bpremium\b|\bhigh[- ]end\b|đắt nhất|(?:^|\s)đắt(?:$|\s)|cao cấp|xịn`)
	newRe       = regexp.MustCompile(`\bbrand new\b|\blike new\b|\bnew\b|còn mới|(?:^|\s)mới(?:$|\s)`)
	usedRe      = regexp.MustCompile(`\bused\b|\bsecond[- ]?hand\b|\bpre-owned\b|đã qua sử dụng|thanh lý|(?:^|\s)cũ(?:$|\s)`)
)

// Extractor pulls typed entities out of a message with deterministic rules.
type Extractor struct {
	catalog   *Catalog
	stopWords map[string]struct{}
}

func NewExtractor(catalog *Catalog) *Extractor {
	sw := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		sw[w] = struct{}{}
	}
	return &Extractor{catalog: catalog, stopWords: sw}
}

// Extract runs every rule over the normalized message.
func (x *Extractor) Extract(message string) Entities {
	msg := Normalize(message)
	var e Entities

	if cat, ok := x.catalog.FindCategoryInText(msg); ok {
		e.CategoryID = intPtr(cat.ID)
		e.CategoryName = cat.Name
	}

	e.MinPrice, e.MaxPrice = extractPriceBounds(msg)
	e.SortBy, e.Cheapest, e.Expensive = extractSort(msg)
	e.Condition = extractCondition(msg)
	e.Limit = extractLimit(msg)
	e.Keywords = x.ExtractKeywords(msg)
	x.resolveBareTerm(&e)
	return e
}

// resolveBareTerm gives a category to a keyword remainder that is nothing
// but a product noun or category word.
func (x *Extractor) resolveBareTerm(e *Entities) {
	if e.CategoryID != nil || len(e.Keywords) == 0 {
		return
	}
	if cat, ok := x.catalog.LookupBareTerm(e.SearchTerm()); ok {
		e.CategoryID = intPtr(cat.ID)
		e.CategoryName = cat.Name
	}
}

// ExtractKeywords returns the deduplicated content words of the message
// after category keywords, prices, stop words and short tokens are removed.
func (x *Extractor) ExtractKeywords(message string) []string {
	text := x.catalog.StripCategoryKeywords(Normalize(message))
	text = sortPhraseRe.ReplaceAllString(text, " ")
	text = rangeDashRe.ReplaceAllString(text, "${1} ${2}")

	seen := make(map[string]struct{})
	var out []string
	for _, raw := range strings.Fields(text) {
		if isPriceToken(raw) {
			continue
		}
		tok := cleanToken(raw)
		if utf8.RuneCountInString(tok) <= 2 || isDigits(tok) || isPriceToken(tok) || isUnitWord(tok) {
			continue
		}
		if _, stop := x.stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

func cleanToken(tok string) string {
	tok = strings.Map(func(r rune) rune {
		if isWordRune(r) || r == '-' {
			return r
		}
		return -1
	}, tok)
	return strings.Trim(tok, "-")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// priceCapture joins a captured number with its letter run when the run is
// a known unit; otherwise the letters are some unrelated following word.
func priceCapture(number, letters string) string {
	if letters != "" && isUnitWord(letters) {
		return number + letters
	}
	return number
}

// extractPriceBounds applies range, then under, then over. A range match
// short-circuits the other two.
func extractPriceBounds(msg string) (min, max *int64) {
	for _, re := range rangeRes {
		m := re.FindStringSubmatch(msg)
		if m == nil {
			continue
		}
		lo, okLo := ResolvePrice(priceCapture(m[1], m[2]), msg)
		hi, okHi := ResolvePrice(priceCapture(m[3], m[4]), msg)
		if okLo && okHi {
			return int64Ptr(lo), int64Ptr(hi)
		}
	}

	if v, ok := boundPrice(msg, underRe, underFollowingRe); ok {
		max = int64Ptr(v)
	}
	if v, ok := boundPrice(msg, overRe, overFollowingRe); ok {
		min = int64Ptr(v)
	}
	return min, max
}

func boundPrice(msg string, primary, following *regexp.Regexp) (int64, bool) {
	m := primary.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	if m[1] != "" {
		return ResolvePrice(priceCapture(m[1], m[2]), msg)
	}
	if f := following.FindStringSubmatch(msg); f != nil {
		return ResolvePrice(priceCapture(f[1], f[2]), msg)
	}
	return 0, false
}

// extractSort returns an explicit order when one is named; otherwise cheap
// and expensive cues set a price order and their flag.
func extractSort(msg string) (SortOrder, bool, bool) {
	for _, rule := range explicitSortRules {
		if rule.pattern.MatchString(msg) {
			return rule.order, false, false
		}
	}
	if cheapRe.MatchString(msg) {
		return SortPriceAsc, true, false
	}
	if expensiveRe.MatchString(msg) {
		return SortPriceDesc, false, true
	}
	return "", false, false
}

func extractCondition(msg string) string {
	msg = sortPhraseRe.ReplaceAllString(msg, " ")
	newAt := indexOf(newRe, msg)
	usedAt := indexOf(usedRe, msg)
	switch {
	case newAt < 0 && usedAt < 0:
		return ""
	case usedAt < 0 || (newAt >= 0 && newAt < usedAt):
		return ConditionNew
	default:
		return ConditionUsed
	}
}

func indexOf(re *regexp.Regexp, s string) int {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return -1
	}
	return loc[0]
}

// extractLimit takes the last "N items" style phrase, capped at MaxLimit.
func extractLimit(msg string) int {
	matches := limitRe.FindAllStringSubmatch(msg, -1)
	if len(matches) == 0 {
		return 0
	}
	n, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil || n <= 0 {
		return 0
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

var stopWords = []string{
	// English
	"find", "search", "searching", "looking", "look", "for", "show", "want", "need", "buy", "the",
	"and", "with", "under", "below", "over", "above", "between", "from", "less", "more", "than",
	"cheap", "cheaper", "cheapest", "affordable", "budget", "expensive", "premium", "price", "prices",
	"priced", "item", "items", "result", "results", "product", "products", "listing", "listings", "any",
	"some", "please", "can", "you", "have", "has", "get", "give", "list", "browse", "all", "new",
	"used", "brand", "like", "second-hand", "secondhand", "hand", "newest", "latest", "oldest", "recent",
	"about", "what", "which", "that", "this", "are", "there", "sort", "sorted", "high", "low",
	"max", "maximum", "min", "minimum", "least", "most", "around", "recommend", "recommendation",
	"recommendations", "suggest", "suggestion", "details", "detail", "info", "information", "tell",
	"how", "much", "cost", "costs", "sell", "selling", "sale", "store", "shop", "help", "hello",
	"hey", "there", "thanks", "thank", "want", "would", "could", "something", "anything", "good",
	"best", "top", "vnd", "dong", "đồng", "first", "earliest", "ascending", "descending",
	// Vietnamese
	"tìm", "kiếm", "mua", "cần", "muốn", "cho", "tôi", "mình", "xem", "các", "những", "giá",
	"dưới", "trên", "khoảng", "từ", "đến", "tới", "không", "quá", "tối", "thiểu", "nhất", "hơn",
	"đắt", "mới", "sản", "phẩm", "kết", "quả", "nghìn", "ngàn", "triệu", "loại", "nào", "gợi",
	"đề", "xuất", "thông", "tin", "chi", "tiết", "bao", "nhiêu", "tiền", "được", "món", "cái",
	"với", "và", "của", "hàng", "bán", "nhé", "giúp", "hãy", "thì", "một", "hoặc", "theo",
	"sắp", "xếp", "tăng", "giảm", "dần", "thấp", "cao", "cấp", "còn", "đang", "rồi", "những",
	"thanh", "qua", "dụng", "trong", "nhiều", "lớn", "nhỏ", "ít", "xịn", "đăng", "gần", "đây",
}
