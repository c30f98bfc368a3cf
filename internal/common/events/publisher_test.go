package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "marketplace-chat/internal/common/errors"
	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublisher_Record(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w, "chat.messages", logger.NewTestLogger(t))
	created := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	err := p.Record(context.Background(), models.ChatMessage{
		EventID:   "e-1",
		SessionID: "s-1",
		Role:      models.ChatRoleUser,
		Content:   "find laptop",
		CreatedAt: created,
	})

	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "s-1", string(msg.Key))
	assert.Equal(t, created, msg.Time)
	assert.Contains(t, msg.Headers, kafka.Header{Key: "role", Value: []byte("user")})

	var decoded models.ChatMessage
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "find laptop", decoded.Content)
}

func TestPublisher_RecordWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewPublisher(w, "chat.messages", logger.NewTestLogger(t))

	err := p.Record(context.Background(), models.ChatMessage{SessionID: "s-1"})

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeEventPublishFailed))
}

func TestPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewPublisher(w, "t", logger.NewTestLogger(t)).Close())
	assert.True(t, w.closed)
}
