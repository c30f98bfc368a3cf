package handlechatmessage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-chat/internal/chat"
	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return LoadConfig()
}

type stubChat struct {
	got    chat.Request
	result chat.Result
}

func (s *stubChat) Handle(_ context.Context, req chat.Request) chat.Result {
	s.got = req
	return s.result
}

func newTestHandler(t *testing.T, stub *stubChat) *Handler {
	return NewHandler(createTestConfig(), stub, logger.NewTestLogger(t))
}

// ==========================
// Execute
// ==========================

func TestExecute_Success(t *testing.T) {
	stub := &stubChat{result: chat.Result{
		Reply:       "I found 1 product in Electronics:",
		Suggestions: []string{"Browse by category"},
		Metadata: chat.Metadata{
			RequestID: "req-1",
			Intent:    "search_items",
			Results:   []models.ProductSummary{{ID: 1, Name: "Dell laptop", Price: 450000}},
		},
	}}
	h := newTestHandler(t, stub)

	out, err := h.Execute(context.Background(), &Input{
		SessionID: "s-1",
		UserID:    "u-1",
		Message:   "  laptop  ",
	})

	require.NoError(t, err)
	assert.Equal(t, "laptop", stub.got.Text)
	assert.Equal(t, "s-1", stub.got.SessionID)
	assert.Equal(t, "u-1", stub.got.UserID)
	assert.Equal(t, "I found 1 product in Electronics:", out.Reply)
	assert.Equal(t, []string{"Browse by category"}, out.Suggestions)
	assert.True(t, out.Found)
	assert.Equal(t, "req-1", out.Metadata.RequestID)
}

func TestExecute_NothingFound(t *testing.T) {
	stub := &stubChat{result: chat.Result{
		Reply:    "I couldn't find any products in the store. Try a different search term?",
		Metadata: chat.Metadata{Results: []models.ProductSummary{}},
	}}
	h := newTestHandler(t, stub)

	out, err := h.Execute(context.Background(), &Input{Message: "unicorn saddle"})

	require.NoError(t, err)
	assert.False(t, out.Found)
	assert.NotNil(t, out.Suggestions)
}

func TestExecute_EmptyMessage(t *testing.T) {
	stub := &stubChat{}
	h := newTestHandler(t, stub)

	out, err := h.Execute(context.Background(), &Input{Message: "  "})

	assert.Nil(t, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyMessage))
	assert.Empty(t, stub.got.Text)
}

func TestExecute_PipelineFailure(t *testing.T) {
	stub := &stubChat{result: chat.Result{
		Reply:    "Sorry, something went wrong while processing your message. Please try again.",
		Metadata: chat.Metadata{Error: "Chat pipeline failed"},
	}}
	h := newTestHandler(t, stub)

	out, err := h.Execute(context.Background(), &Input{Message: "laptop"})

	assert.Nil(t, out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPipelineFailed))
}
