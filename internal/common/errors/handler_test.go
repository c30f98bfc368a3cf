package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemainingRetries(t *testing.T) {
	tests := []struct {
		name       string
		code       ErrorCode
		jobRetries int32
		want       int
	}{
		{"retryable with budget", ErrCodeNLPUnavailable, 5, 3},
		{"job budget is the cap", ErrCodeNLPUnavailable, 1, 1},
		{"job exhausted", ErrCodeStorageTimeout, 0, 0},
		{"not retryable", ErrCodeInvalidFilterFormat, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, remainingRetries(tt.code, tt.jobRetries))
		})
	}
}

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, retryBackoff(ErrCodeStorageTimeout))
	assert.Equal(t, 500*time.Millisecond, retryBackoff(ErrCodeEventPublishFailed))
}

func TestAsStandardError(t *testing.T) {
	original := NewInvalidInputError("message is empty")
	assert.Same(t, original, AsStandardError(fmt.Errorf("wrapped: %w", original)))

	wrapped := AsStandardError(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeChatPipelineFailed, wrapped.Code)
}

func TestErrorVariables(t *testing.T) {
	bpmnErr := ConvertToBPMNError(NewInvalidFilterFormatError("limit must be a number"))

	vars, ok := errorVariables(bpmnErr)

	assert.True(t, ok)
	assert.Contains(t, vars, "limit must be a number")
}

func TestStandardError_ErrorIncludesDetails(t *testing.T) {
	assert.Equal(t, "StandardError[INVALID_INPUT]: Invalid input: message is empty",
		NewInvalidInputError("message is empty").Error())
	assert.Equal(t, "StandardError[INVALID_INPUT]: Invalid input",
		NewInvalidInputError("").Error())
}
