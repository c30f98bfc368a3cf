// internal/workers/chat/parse-chat-query/handler.go
package parsechatquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "marketplace-chat/internal/common/errors"
	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/common/metrics"
	"marketplace-chat/internal/nlu"
	"marketplace-chat/internal/search"
)

const TaskType = "parse-chat-query"

var (
	ErrEmptyMessage = errors.New("INVALID_INPUT")
)

type Handler struct {
	config       *Config
	parser       *nlu.Parser
	resolver     *search.Resolver
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, parser *nlu.Parser, resolver *search.Resolver, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		parser:       parser,
		resolver:     resolver,
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
		h.failJob(ctx, client, job, apperrors.NewInvalidInputError(err.Error()))
		return
	}

	h.completeJob(ctx, client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrEmptyMessage)
	}

	q := h.parser.Parse(ctx, message, input.NLP)

	errs := q.Entities.Validate()
	if len(errs) > 0 {
		q.Entities.MinPrice = nil
		q.Entities.MaxPrice = nil
	} else {
		errs = []string{}
	}

	filters, order := h.resolver.Resolve(q)

	h.logger.Info("chat query parsed", map[string]interface{}{
		"intent":       q.Intent.Name,
		"source":       q.Intent.Source,
		"entitySource": q.EntitySource,
		"searchTerm":   filters.Term(),
		"orderBy":      string(order),
	})

	return &Output{
		ParsedQuery:      q,
		Intent:           string(q.Intent.Name),
		Filters:          filters,
		OrderBy:          order,
		CategoryName:     h.resolver.CategoryName(filters),
		ValidationErrors: errs,
	}, nil
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
