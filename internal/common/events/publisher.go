// internal/common/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	apperrors "marketplace-chat/internal/common/errors"
	"marketplace-chat/internal/common/logger"
	"marketplace-chat/internal/models"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// NewKafkaWriter builds a writer that keeps one session's messages on one
// partition.
func NewKafkaWriter(cfg Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: cfg.WriteTimeout,
	}
}

// Publisher sends chat messages to Kafka, keyed by session id.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger logger.Logger
}

func NewPublisher(writer MessageWriter, topic string, log logger.Logger) *Publisher {
	return &Publisher{
		writer: writer,
		topic:  topic,
		logger: logger.ForComponent(log, "chat-event-publisher"),
	}
}

// Record publishes one chat message.
func (p *Publisher) Record(ctx context.Context, msg models.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return apperrors.NewEventPublishFailedError(p.topic, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.SessionID),
		Value: data,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: "role", Value: []byte(msg.Role)},
			{Key: "eventId", Value: []byte(msg.EventID)},
		},
	})
	if err != nil {
		return apperrors.NewEventPublishFailedError(p.topic, err)
	}

	p.logger.Debug("chat message published", map[string]interface{}{
		"sessionId": msg.SessionID,
		"role":      msg.Role,
		"eventId":   msg.EventID,
	})
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
