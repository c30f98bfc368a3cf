// Package chat is the chat entry point: it parses a message, searches the
// catalog, broadens empty searches and composes the reply.
package chat

import (
	"fmt"
	"strconv"
	"strings"

	"marketplace-chat/internal/models"
	"marketplace-chat/internal/nlu"
	"marketplace-chat/internal/search"
)

// Summary is everything the composer needs to phrase a search reply.
type Summary struct {
	ResultCount  int
	TotalCount   int
	Filters      models.SearchFilters
	CategoryName string
	FallbackTier search.Tier
	Intent       nlu.IntentName
}

// Reply is the composed answer text plus follow-up suggestions.
type Reply struct {
	Text        string
	Suggestions []string
}

// Compose phrases a search reply. It reads only its argument.
func Compose(s Summary) Reply {
	desc := Describe(s.Filters, s.CategoryName)

	var text string
	switch {
	case s.ResultCount == 0:
		text = fmt.Sprintf("I couldn't find any products %s. Try a different search term?", desc)
	case s.FallbackTier == "" && s.Filters.IsEmpty():
		text = fmt.Sprintf("Here are %d products available. These are the newest %d:", s.TotalCount, s.ResultCount)
	case s.ResultCount >= s.TotalCount:
		text = fmt.Sprintf("I found %d %s %s:", s.TotalCount, plural(s.TotalCount, "product"), desc)
	default:
		text = fmt.Sprintf("Here are the first %d of %d products %s:", s.ResultCount, s.TotalCount, desc)
	}

	if s.ResultCount > 0 {
		if prefix := fallbackPrefix(s); prefix != "" {
			text = prefix + " " + text
		}
		if s.Intent == nlu.IntentGetRecommendations && s.FallbackTier == "" {
			text = "Here are some picks for you. " + text
		}
	}

	return Reply{Text: text, Suggestions: Suggestions(s)}
}

func fallbackPrefix(s Summary) string {
	switch s.FallbackTier {
	case search.TierCategory:
		if s.CategoryName != "" {
			return fmt.Sprintf("No exact matches, so I looked through %s instead.", s.CategoryName)
		}
		return "No exact matches, so I looked through the whole category instead."
	case search.TierBroadened:
		return "No exact matches, so I broadened the search."
	default:
		return ""
	}
}

// Describe joins the active filter parts, or returns "in the store".
func Describe(f models.SearchFilters, categoryName string) string {
	var parts []string
	if term := f.Term(); term != "" {
		parts = append(parts, fmt.Sprintf("matching %q", term))
	}
	if categoryName != "" {
		parts = append(parts, "in "+categoryName)
	}
	if f.MaxPrice != nil {
		parts = append(parts, "under "+FormatPrice(*f.MaxPrice))
	}
	if f.MinPrice != nil {
		parts = append(parts, "above "+FormatPrice(*f.MinPrice))
	}
	if len(parts) == 0 {
		return "in the store"
	}
	return strings.Join(parts, " ")
}

// Suggestions depends only on whether anything was found and which
// filters are already set.
func Suggestions(s Summary) []string {
	hasPrice := s.Filters.MinPrice != nil || s.Filters.MaxPrice != nil

	if s.ResultCount == 0 {
		out := []string{"Show all products"}
		if hasPrice {
			out = append(out, "Remove the price limit")
		}
		if s.Filters.CategoryID != nil {
			out = append(out, "Browse other categories")
		} else {
			out = append(out, "Browse electronics")
		}
		return append(out, "What can you do?")
	}

	var out []string
	if !hasPrice {
		out = append(out, "Only show items under 200k")
	}
	if s.Filters.CategoryID == nil {
		out = append(out, "Browse by category")
	}
	out = append(out, "Sort by price: low to high")
	if s.ResultCount < s.TotalCount {
		out = append(out, "Show more results")
	}
	return out
}

// FormatPrice renders an amount in VND with comma thousands separators,
// e.g. 500000 -> "500,000₫".
func FormatPrice(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return sign + b.String() + "₫"
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
