package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"redemption-service/internal/config"
	"redemption-service/internal/message"

	"github.com/segmentio/kafka-go"
)

const (
	defaultBatchSize      = 100
	defaultBatchTimeoutMs = 100
)

// NewWriter builds the Kafka writer for the payment-events topic.
func NewWriter(cfg config.Kafka) *kafka.Writer {
	batchSize := cfg.Writer.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	batchTimeoutMs := cfg.Writer.BatchTimeoutMs
	if batchTimeoutMs <= 0 {
		batchTimeoutMs = defaultBatchTimeoutMs
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Broker.URL),
		Topic:                  cfg.Topic.PaymentEvents,
		Balancer:               &kafka.ReferenceHash{},
		BatchSize:              batchSize,
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           time.Duration(batchTimeoutMs) * time.Millisecond,
		Async:                  false,
		AllowAutoTopicCreation: false,
	}
}

// Publisher emits normalized payment events to Kafka. Publishing is
// best-effort: a broker failure is logged and never fails the webhook that
// triggered it.
type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewPublisher(writer *kafka.Writer, logger *slog.Logger) *Publisher {
	return &Publisher{writer: writer, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, paymentEvent message.PaymentEvent) {
	messageBytes, err := json.Marshal(paymentEvent)
	if err != nil {
		p.logger.ErrorContext(ctx, "Error marshalling payment event", "error", err)
		return
	}

	msg := kafka.Message{
		// Key by payment id to keep per-payment ordering.
		Key:   []byte(paymentEvent.ID),
		Value: messageBytes,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, "Error publishing payment event", "id", paymentEvent.ID, "error", err)
		return
	}

	p.logger.InfoContext(ctx, "Published payment event", "id", paymentEvent.ID, "status", paymentEvent.Status)
}
