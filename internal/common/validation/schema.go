package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// NLPPayloadSchema describes an NLP parse. A payload carrying neither an
// intent nor an entities list is malformed.
const NLPPayloadSchema = `{
  "type": "object",
  "properties": {
    "intent": {
      "oneOf": [
        {"type": "string"},
        {"type": "null"},
        {
          "type": "object",
          "properties": {
            "name": {"type": "string"},
            "label": {"type": "string"},
            "confidence": {"type": "number", "minimum": 0, "maximum": 1},
            "score": {"type": "number", "minimum": 0, "maximum": 1}
          }
        }
      ]
    },
    "entities": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["label"],
        "properties": {
          "label": {"type": "string", "minLength": 1},
          "text": {"type": ["string", "null"]}
        }
      }
    },
    "noun_chunks": {"type": ["array", "null"], "items": {"type": "string"}}
  },
  "anyOf": [
    {"required": ["intent"], "properties": {"intent": {"not": {"type": "null"}}}},
    {"required": ["entities"], "properties": {"entities": {"type": "array"}}}
  ]
}`

// SearchFiltersSchema describes the raw filter map accepted by the
// validate-search-filters worker. Prices and category ids may arrive as
// numbers or numeric strings.
const SearchFiltersSchema = `{
  "type": "object",
  "properties": {
    "searchTerm": {"type": ["string", "null"], "maxLength": 200},
    "categoryId": {"type": ["integer", "string", "null"]},
    "minPrice": {"type": ["number", "string", "null"]},
    "maxPrice": {"type": ["number", "string", "null"]},
    "includeAllStatuses": {"type": ["boolean", "null"]},
    "statusFilter": {"type": ["string", "null"], "enum": ["active", "sold", "hidden", "", null]},
    "condition": {"type": ["string", "null"]},
    "orderBy": {"type": ["string", "null"], "enum": ["latest", "oldest", "price_asc", "price_desc", "", null]},
    "limit": {"type": ["integer", "string", "null"]},
    "offset": {"type": ["integer", "string", "null"]}
  }
}`

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Messages flattens the errors to "field: message" strings.
func (r *ValidationResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return out
}

var (
	schemaMu    sync.Mutex
	schemaCache = map[string]*gojsonschema.Schema{}
)

func compile(schema string) (*gojsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()

	if s, ok := schemaCache[schema]; ok {
		return s, nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	schemaCache[schema] = s
	return s, nil
}

// ValidateJSON validates a raw JSON document against schema.
func ValidateJSON(schema string, document []byte) (*ValidationResult, error) {
	return validate(schema, gojsonschema.NewBytesLoader(document))
}

// ValidateValue validates an already decoded Go value against schema.
func ValidateValue(schema string, value interface{}) (*ValidationResult, error) {
	return validate(schema, gojsonschema.NewGoLoader(value))
}

func validate(schema string, doc gojsonschema.JSONLoader) (*ValidationResult, error) {
	compiled, err := compile(schema)
	if err != nil {
		return nil, err
	}

	result, err := compiled.Validate(doc)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" {
			field = "payload"
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}
