package chat

import (
	"fmt"
	"strings"

	"marketplace-chat/internal/models"
)

const genericErrorReply = "Sorry, something went wrong while processing your message. Please try again."

func greetingReply() Reply {
	return Reply{
		Text: "Hi there! I can help you find things on the campus marketplace. " +
			`Try "find laptop under 500k" or "show me books".`,
		Suggestions: []string{"Show me electronics", "Find books under 100k", "What can you do?"},
	}
}

func helpReply(categories []models.CategoryCount) Reply {
	var parts []string
	parts = append(parts, "I can search the marketplace for you. Ask for a product, a category or a price range, "+
		`for example "find laptop under 500k", "cheapest books" or "áo khoác dưới 200k".`)

	if len(categories) > 0 {
		parts = append(parts, "\nCategories:")
		for _, c := range categories {
			parts = append(parts, fmt.Sprintf("- %s (%d %s)", c.Name, c.ProductCount, plural(c.ProductCount, "product")))
		}
	}

	return Reply{
		Text:        strings.Join(parts, "\n"),
		Suggestions: []string{"Show all products", "Browse electronics", "Find something under 100k"},
	}
}

// priceReply answers "how much is X" from the products found.
func priceReply(products []models.ProductSummary, s Summary) Reply {
	if len(products) == 0 {
		return Compose(s)
	}
	if len(products) == 1 {
		p := products[0]
		return Reply{
			Text:        fmt.Sprintf("%s is listed at %s.", p.Name, FormatPrice(p.Price)),
			Suggestions: []string{"Show similar items", "Show cheaper options"},
		}
	}

	lo, hi := products[0].Price, products[0].Price
	for _, p := range products[1:] {
		if p.Price < lo {
			lo = p.Price
		}
		if p.Price > hi {
			hi = p.Price
		}
	}
	desc := Describe(s.Filters, s.CategoryName)
	return Reply{
		Text: fmt.Sprintf("Prices for %d products %s range from %s to %s:",
			len(products), desc, FormatPrice(lo), FormatPrice(hi)),
		Suggestions: Suggestions(s),
	}
}

// detailsReply describes the single best match.
func detailsReply(products []models.ProductSummary, s Summary) Reply {
	if len(products) == 0 {
		return Compose(s)
	}
	p := products[0]

	var parts []string
	parts = append(parts, fmt.Sprintf("Here are the details for %s:", p.Name))
	parts = append(parts, "- Price: "+FormatPrice(p.Price))
	if p.Condition != "" {
		parts = append(parts, "- Condition: "+p.Condition)
	}
	if p.CategoryName != "" {
		parts = append(parts, "- Category: "+p.CategoryName)
	}
	if d := strings.TrimSpace(p.Description); d != "" {
		parts = append(parts, "- Description: "+d)
	}

	return Reply{
		Text:        strings.Join(parts, "\n"),
		Suggestions: []string{"Show similar items", "How much is it?"},
	}
}
