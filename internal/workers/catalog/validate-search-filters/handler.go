// internal/workers/catalog/validate-search-filters/handler.go
package validatesearchfilters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "marketplace-chat/internal/common/errors"
	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/common/metrics"
	"marketplace-chat/internal/common/validation"
	"marketplace-chat/internal/models"
	"marketplace-chat/internal/nlu"
)

const TaskType = "validate-search-filters"

var (
	ErrInvalidFilterFormat = errors.New("INVALID_FILTER_FORMAT")
)

var validConditions = map[string]bool{
	nlu.ConditionNew:  true,
	nlu.ConditionUsed: true,
}

type Handler struct {
	config       *Config
	catalog      *nlu.Catalog
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, catalog *nlu.Catalog, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		catalog:      catalog,
		errorHandler: apperrors.NewErrorHandler(l),
		logger:       l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, apperrors.NewInvalidFilterFormatError(err.Error()))
		return
	}

	h.completeJob(ctx, client, job, output)
}

// execute rejects malformed values outright; a well-formed but
// inconsistent price range completes with valid=false and the reasons.
func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	raw := input.RawFilters
	if raw == nil {
		raw = map[string]interface{}{}
	}

	check, err := validation.ValidateValue(validation.SearchFiltersSchema, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilterFormat, err)
	}
	if !check.Valid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFilterFormat, strings.Join(check.Messages(), "; "))
	}

	out := &Output{
		Valid:            true,
		ValidationErrors: []string{},
		Filters:          models.SearchFilters{StatusFilter: models.ProductStatusActive},
		OrderBy:          models.OrderByLatest,
		Pagination:       Pagination{Limit: h.config.DefaultLimit},
	}

	if v, ok := raw["searchTerm"]; ok && v != nil {
		s, isString := v.(string)
		if !isString {
			return nil, fmt.Errorf("%w: searchTerm must be a string", ErrInvalidFilterFormat)
		}
		if s = strings.TrimSpace(s); s != "" {
			out.Filters.SearchTerm = &s
		}
	}

	if v, ok := raw["categoryId"]; ok && v != nil {
		id, err := parseInt(v)
		if err != nil {
			return nil, fmt.Errorf("%w: categoryId: %v", ErrInvalidFilterFormat, err)
		}
		if _, known := h.catalog.CategoryByID(id); !known {
			return nil, fmt.Errorf("%w: unknown categoryId %d", ErrInvalidFilterFormat, id)
		}
		out.Filters.CategoryID = &id
	}

	for _, field := range []struct {
		key string
		dst **int64
	}{
		{"minPrice", &out.Filters.MinPrice},
		{"maxPrice", &out.Filters.MaxPrice},
	} {
		v, ok := raw[field.key]
		if !ok || v == nil {
			continue
		}
		price, err := parsePrice(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFilterFormat, field.key, err)
		}
		*field.dst = &price
	}

	if v, ok := raw["condition"]; ok && v != nil {
		s, _ := v.(string)
		s = strings.ToLower(strings.TrimSpace(s))
		if !validConditions[s] {
			return nil, fmt.Errorf("%w: invalid condition '%v'", ErrInvalidFilterFormat, v)
		}
		out.Filters.Condition = s
	}

	if v, ok := raw["includeAllStatuses"].(bool); ok {
		out.Filters.IncludeAllStatuses = v
	}
	if v, ok := raw["statusFilter"].(string); ok && v != "" {
		out.Filters.StatusFilter = v
	}

	if v, ok := raw["orderBy"]; ok && v != nil {
		s, _ := v.(string)
		order := models.OrderBy(strings.TrimSpace(s))
		if order == "" {
			order = models.OrderByLatest
		}
		if !order.Valid() {
			return nil, fmt.Errorf("%w: invalid orderBy '%v'", ErrInvalidFilterFormat, v)
		}
		out.OrderBy = order
	}

	if v, ok := raw["limit"]; ok && v != nil {
		limit, err := parseInt(v)
		if err != nil || limit < 1 {
			return nil, fmt.Errorf("%w: limit must be a positive integer", ErrInvalidFilterFormat)
		}
		if limit > h.config.MaxLimit {
			limit = h.config.MaxLimit
		}
		out.Pagination.Limit = limit
	}

	if v, ok := raw["offset"]; ok && v != nil {
		offset, err := parseInt(v)
		if err != nil || offset < 0 {
			return nil, fmt.Errorf("%w: offset must be a non-negative integer", ErrInvalidFilterFormat)
		}
		out.Pagination.Offset = offset
	}

	if errs := nlu.ValidatePriceBounds(out.Filters.MinPrice, out.Filters.MaxPrice); len(errs) > 0 {
		out.Valid = false
		out.ValidationErrors = errs
	}

	h.logger.Info("filters validated", map[string]interface{}{
		"valid":      out.Valid,
		"errors":     out.ValidationErrors,
		"searchTerm": out.Filters.Term(),
		"orderBy":    string(out.OrderBy),
		"limit":      out.Pagination.Limit,
	})

	return out, nil
}

func parseInt(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, errors.New("not an integer")
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, errors.New("not a number")
		}
		return n, nil
	default:
		return 0, errors.New("not a number")
	}
}

// parsePrice takes JSON numbers as absolute amounts and strings through the
// unit resolver, so "500k" and "1tr" are accepted. A leading minus is kept
// for the range validation to report.
func parsePrice(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case float64:
		return int64(math.Round(v)), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		sign := int64(1)
		if strings.HasPrefix(s, "-") {
			sign = -1
			s = strings.TrimSpace(s[1:])
		}
		price, ok := nlu.ResolvePrice(s, "")
		if !ok {
			return 0, fmt.Errorf("unreadable price %q", v)
		}
		return sign * price, nil
	default:
		return 0, errors.New("not a number")
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err *apperrors.StandardError) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(err.Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
