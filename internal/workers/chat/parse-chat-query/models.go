// internal/workers/chat/parse-chat-query/models.go
package parsechatquery

import (
	"marketplace-chat/internal/common/nlp"
	"marketplace-chat/internal/models"
	"marketplace-chat/internal/nlu"
)

type Input struct {
	Message string      `json:"message"`
	NLP     *nlp.Result `json:"nlp,omitempty"`
}

type Output struct {
	ParsedQuery      nlu.ParsedQuery      `json:"parsedQuery"`
	Intent           string               `json:"intent"`
	Filters          models.SearchFilters `json:"filters"`
	OrderBy          models.OrderBy       `json:"orderBy"`
	CategoryName     string               `json:"categoryName,omitempty"`
	ValidationErrors []string             `json:"validationErrors"`
}
