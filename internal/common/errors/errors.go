// Package errors provides standardized error handling for the chat pipeline
// and its BPMN job workers.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNLPUnavailable       ErrorCode = "NLP_UNAVAILABLE"
	ErrCodeNLPTimeout           ErrorCode = "NLP_TIMEOUT"
	ErrCodeNLPMalformedResponse ErrorCode = "NLP_MALFORMED_RESPONSE"
	ErrCodeNLPClientError       ErrorCode = "NLP_CLIENT_ERROR"

	ErrCodeStorageQueryFailed ErrorCode = "STORAGE_QUERY_FAILED"
	ErrCodeStorageTimeout     ErrorCode = "STORAGE_TIMEOUT"

	ErrCodeInvalidPriceRange   ErrorCode = "INVALID_PRICE_RANGE"
	ErrCodeInvalidFilterFormat ErrorCode = "INVALID_FILTER_FORMAT"
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"

	ErrCodeChatPipelineFailed ErrorCode = "CHAT_PIPELINE_FAILED"
	ErrCodeEventPublishFailed ErrorCode = "EVENT_PUBLISH_FAILED"

	ErrCodeExternalService      ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout              ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound     ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewNLPUnavailableError covers connection failures and 5xx answers from the NLP service.
func NewNLPUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNLPUnavailable,
		Message:   "NLP service unavailable",
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewNLPTimeoutError(timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeNLPTimeout,
		Message:   "NLP service timeout",
		Details:   fmt.Sprintf("call exceeded %s", timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewNLPMalformedResponseError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNLPMalformedResponse,
		Message:   "NLP service returned a malformed payload",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNLPClientError is used for 4xx answers, which are never retried.
func NewNLPClientError(status int) *StandardError {
	return &StandardError{
		Code:      ErrCodeNLPClientError,
		Message:   "NLP service rejected the request",
		Details:   fmt.Sprintf("status: %d", status),
		Retryable: false,
		Metadata:  map[string]interface{}{"status": status},
		Timestamp: time.Now().UTC(),
	}
}

func NewStorageQueryFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageQueryFailed,
		Message:   "Product storage query failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, errDetails(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewStorageTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageTimeout,
		Message:   "Product storage query timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidPriceRangeError carries the individual validation messages in metadata.
func NewInvalidPriceRangeError(messages []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPriceRange,
		Message:   "Invalid price range",
		Details:   strings.Join(messages, "; "),
		Retryable: false,
		Metadata:  map[string]interface{}{"validationErrors": messages},
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidFilterFormatError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidFilterFormat,
		Message:   "Invalid filter format",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewChatPipelineFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChatPipelineFailed,
		Message:   "Chat pipeline failed",
		Details:   errDetails(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewEventPublishFailedError(topic string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEventPublishFailed,
		Message:   "Chat event publish failed",
		Details:   fmt.Sprintf("topic: %s, error: %s", topic, errDetails(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResourceNotFound,
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthenticationFailed,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeNLPUnavailable:       "NLP_UNAVAILABLE",
	ErrCodeNLPTimeout:           "NLP_TIMEOUT",
	ErrCodeNLPMalformedResponse: "NLP_MALFORMED_RESPONSE",
	ErrCodeNLPClientError:       "NLP_CLIENT_ERROR",
	ErrCodeStorageQueryFailed:   "STORAGE_QUERY_FAILED",
	ErrCodeStorageTimeout:       "STORAGE_TIMEOUT",
	ErrCodeInvalidPriceRange:    "INVALID_PRICE_RANGE",
	ErrCodeInvalidFilterFormat:  "INVALID_FILTER_FORMAT",
	ErrCodeInvalidInput:         "INVALID_INPUT",
	ErrCodeChatPipelineFailed:   "CHAT_PIPELINE_FAILED",
	ErrCodeEventPublishFailed:   "EVENT_PUBLISH_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeNLPUnavailable,
		ErrCodeStorageQueryFailed,
		ErrCodeEventPublishFailed:
		return 3

	case ErrCodeNLPTimeout,
		ErrCodeStorageTimeout:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// HasCode reports whether err wraps a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "NLP"):
		return "NLP"
	case strings.HasPrefix(codeStr, "STORAGE"):
		return "STORAGE"
	case strings.HasPrefix(codeStr, "EVENT"):
		return "MESSAGING"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "CHAT"):
		return "CHAT"
	default:
		return "OTHER"
	}
}
