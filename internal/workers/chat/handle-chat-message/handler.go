// internal/workers/chat/handle-chat-message/handler.go
package handlechatmessage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"marketplace-chat/internal/chat"
	apperrors "marketplace-chat/internal/common/errors"
	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/common/metrics"
)

const TaskType = "handle-chat-message"

var (
	ErrEmptyMessage   = errors.New("INVALID_INPUT")
	ErrPipelineFailed = errors.New("CHAT_PIPELINE_FAILED")
)

// ChatHandler answers one chat message.
type ChatHandler interface {
	Handle(ctx context.Context, req chat.Request) chat.Result
}

type Handler struct {
	config       *Config
	chat         ChatHandler
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, chatHandler ChatHandler, log logger.Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		chat:         chatHandler,
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
		if errors.Is(err, ErrEmptyMessage) {
			h.failJob(ctx, client, job, apperrors.NewInvalidInputError(err.Error()))
		} else {
			h.failJob(ctx, client, job, apperrors.NewChatPipelineFailedError(err))
		}
		return
	}

	h.completeJob(ctx, client, job, output)
}

// execute runs the chat pipeline. The pipeline itself never fails; a
// recovered failure comes back as a generic reply with Metadata.Error set,
// which the job surfaces as an error so the process can branch on it.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrEmptyMessage)
	}

	res := h.chat.Handle(ctx, chat.Request{
		SessionID: input.SessionID,
		UserID:    input.UserID,
		Text:      message,
		NLP:       input.NLP,
	})
	if res.Metadata.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrPipelineFailed, res.Metadata.Error)
	}

	suggestions := res.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}

	h.logger.Info("chat message handled", map[string]interface{}{
		"sessionId": input.SessionID,
		"intent":    res.Metadata.Intent,
		"results":   len(res.Metadata.Results),
		"requestId": res.Metadata.RequestID,
	})

	return &Output{
		Reply:       res.Reply,
		Suggestions: suggestions,
		Metadata:    res.Metadata,
		Found:       len(res.Metadata.Results) > 0,
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
