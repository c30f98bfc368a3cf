// internal/workers/catalog/validate-search-filters/models.go
package validatesearchfilters

import "marketplace-chat/internal/models"

type Input struct {
	RawFilters map[string]interface{} `json:"rawFilters"`
}

type Output struct {
	Valid            bool                 `json:"valid"`
	ValidationErrors []string             `json:"validationErrors"`
	Filters          models.SearchFilters `json:"filters"`
	OrderBy          models.OrderBy       `json:"orderBy"`
	Pagination       Pagination           `json:"pagination"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
