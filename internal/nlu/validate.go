package nlu

import "fmt"

// ValidatePriceBounds reports every problem with a pair of price bounds.
// A reversed range is an error, never swapped.
func ValidatePriceBounds(min, max *int64) []string {
	var errs []string
	if min != nil && *min < 0 {
		errs = append(errs, fmt.Sprintf("minPrice must not be negative (got %d)", *min))
	}
	if max != nil && *max < 0 {
		errs = append(errs, fmt.Sprintf("maxPrice must not be negative (got %d)", *max))
	}
	if min != nil && max != nil && *min > *max {
		errs = append(errs, fmt.Sprintf("minPrice (%d) cannot be greater than maxPrice (%d)", *min, *max))
	}
	return errs
}

// Validate checks the extracted entities' price bounds.
func (e Entities) Validate() []string {
	return ValidatePriceBounds(e.MinPrice, e.MaxPrice)
}
