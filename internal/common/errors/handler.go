// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler turns worker errors into Zeebe fail or throw-error commands.
// Retryable codes fail the job so the broker retries it; everything else is
// thrown as a BPMN error for the process model to catch.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := AsStandardError(err)
	bpmnErr := ConvertToBPMNError(stdErr)
	h.logError(job, stdErr, bpmnErr)

	if retries := remainingRetries(stdErr.Code, job.Retries); retries > 0 {
		h.failJob(ctx, client, job, stdErr.Code, bpmnErr, retries)
		return
	}
	h.throwError(ctx, client, job, bpmnErr)
}

// AsStandardError unwraps err to a StandardError, or wraps it as a chat
// pipeline failure.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewChatPipelineFailedError(err)
}

// remainingRetries is the retry budget to hand back to the broker. The
// job's own remaining count is an upper bound.
func remainingRetries(code ErrorCode, jobRetries int32) int {
	retries := GetRetryCount(code)
	if retries <= 0 || jobRetries <= 0 {
		return 0
	}
	if int(jobRetries) < retries {
		return int(jobRetries)
	}
	return retries
}

// retryBackoff gives storage and NLP outages a little longer to recover.
func retryBackoff(code ErrorCode) time.Duration {
	switch code {
	case ErrCodeStorageTimeout, ErrCodeStorageQueryFailed, ErrCodeNLPUnavailable, ErrCodeNLPTimeout:
		return 2 * time.Second
	default:
		return 500 * time.Millisecond
	}
}

func (h *ErrorHandler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, code ErrorCode, bpmnErr *BPMNError, retries int) {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(int32(retries)).
		RetryBackoff(retryBackoff(code)).
		ErrorMessage(bpmnErr.Message)

	if vars, ok := errorVariables(bpmnErr); ok {
		if withVars, err := cmd.VariablesFromString(vars); err == nil {
			_, err = withVars.Send(ctx)
			h.logSendFailure(job, "fail", err)
			return
		}
	}
	_, err := cmd.Send(ctx)
	h.logSendFailure(job, "fail", err)
}

func (h *ErrorHandler) throwError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if vars, ok := errorVariables(bpmnErr); ok {
		if withVars, err := cmd.VariablesFromString(vars); err == nil {
			_, err = withVars.Send(ctx)
			h.logSendFailure(job, "throw", err)
			return
		}
	}
	_, err := cmd.Send(ctx)
	h.logSendFailure(job, "throw", err)
}

func errorVariables(bpmnErr *BPMNError) (string, bool) {
	vars := bpmnErr.ToErrorVariables()
	if len(vars) == 0 {
		return "", false
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// logSendFailure logs a command the broker did not accept.
func (h *ErrorHandler) logSendFailure(job entities.Job, command string, err error) {
	if err != nil {
		h.logger.Warn("job error command not sent", map[string]interface{}{
			"jobKey":  job.Key,
			"command": command,
			"error":   err.Error(),
		})
	}
}

func (h *ErrorHandler) logError(job entities.Job, stdErr *StandardError, bpmnErr *BPMNError) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"bpmnErrorCode":    bpmnErr.Code,
		"message":          bpmnErr.Message,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"retries":          GetRetryCount(stdErr.Code),
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
		"metadata":         stdErr.Metadata,
	})
}
