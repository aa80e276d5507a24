// Package events publishes committed ledger entries to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"personal-ledger/config"
	"personal-ledger/internal/core/domain"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements ports.EventPublisher on a kafka-go writer.
// Messages are keyed by destination account so each account's events stay ordered.
type Publisher struct {
	writer messageWriter
}

const defaultBatchTimeout = 10 * time.Millisecond

// NewPublisher creates a publisher for the configured topic.
// Publish runs on the response path, so the writer flushes after BatchTimeout
// instead of kafka-go's one second default.
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = defaultBatchTimeout
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: batchTimeout,
			WriteTimeout: 5 * time.Second,
		},
	}
}

// Publish writes one event.
func (p *Publisher) Publish(ctx context.Context, event *domain.LedgerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.DestinationAccountID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(event.Kind)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish ledger event: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
