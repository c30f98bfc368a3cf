// internal/repository/queries.go
package repository

import (
	"strconv"
	"strings"

	"marketplace-chat/internal/models"
)

const productColumns = `p.id, p.name, p.description, p.price, p.category_id, c.name,
		       p.condition, p.status, p.image_url, p.seller_id, p.created_at`

const categoriesWithCountsQuery = `
		SELECT c.id, c.name, COUNT(p.id) AS product_count
		FROM categories c
		LEFT JOIN products p ON p.category_id = c.id AND p.status = $1
		GROUP BY c.id, c.name
		ORDER BY c.id`

var orderClauses = map[models.OrderBy]string{
	models.OrderByLatest:    "p.created_at DESC, p.id DESC",
	models.OrderByOldest:    "p.created_at ASC, p.id ASC",
	models.OrderByPriceAsc:  "p.price ASC, p.created_at DESC",
	models.OrderByPriceDesc: "p.price DESC, p.created_at DESC",
}

// whereClause renders filters as a WHERE clause with $n placeholders
// starting at $1. It returns "" when nothing filters.
func whereClause(f models.SearchFilters) (string, []interface{}) {
	var conds []string
	var args []interface{}
	next := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if status := f.Status(); status != "" {
		conds = append(conds, "p.status = "+next(status))
	}
	if term := f.Term(); term != "" {
		ph := next("%" + escapeLike(term) + "%")
		conds = append(conds, "(p.name ILIKE "+ph+" OR p.description ILIKE "+ph+")")
	}
	if f.CategoryID != nil {
		conds = append(conds, "p.category_id = "+next(*f.CategoryID))
	}
	if f.MinPrice != nil {
		conds = append(conds, "p.price >= "+next(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "p.price <= "+next(*f.MaxPrice))
	}
	if f.Condition != "" {
		conds = append(conds, "p.condition = "+next(f.Condition))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func buildFindQuery(q models.ProductQuery) (string, []interface{}) {
	where, args := whereClause(q.Filters)

	order, ok := orderClauses[q.OrderBy]
	if !ok {
		order = orderClauses[models.OrderByLatest]
	}

	query := `SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id` + where + `
		ORDER BY ` + order

	args = append(args, q.Limit)
	query += " LIMIT $" + strconv.Itoa(len(args))
	args = append(args, q.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))
	return query, args
}

func buildCountQuery(f models.SearchFilters) (string, []interface{}) {
	where, args := whereClause(f)
	return `SELECT COUNT(*) FROM products p` + where, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
