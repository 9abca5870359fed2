package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"civisync/internal/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type Publisher struct {
	writer *kafka.Writer
	logger *logger.Logger
}

func NewPublisher(brokers string, logger *logger.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers),
		Topic:        Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}

	return &Publisher{
		writer: writer,
		logger: logger,
	}
}

// Publish sends an order lifecycle event, keyed by order id so events for
// one order stay ordered.
func (p *Publisher) Publish(ctx context.Context, event OrderEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", event.OrderID)),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Published %s for order %d", event.Type, event.OrderID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
