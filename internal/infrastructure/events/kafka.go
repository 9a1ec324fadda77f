// Package events delivers committed stock domain events to downstream
// consumers. Delivery is best-effort by contract: engines call PublishBatch
// after commit and log failures without retrying the business operation.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"stockledger/internal/domain/stock"
	"stockledger/pkg/logger"
)

// KafkaConfig configures the event writer.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// KafkaPublisher writes stock events to a single topic, keyed by tenant so
// each tenant's events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ stock.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher over the given brokers.
func NewKafkaPublisher(cfg KafkaConfig) *KafkaPublisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 100 * time.Millisecond
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: batchTimeout,
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

// PublishBatch writes one batch of committed events.
func (p *KafkaPublisher) PublishBatch(ctx context.Context, events []stock.Event) error {
	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", event.ID, err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(event.TenantKey),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(event.Type)},
				{Key: "event-id", Value: []byte(event.ID.String())},
				{Key: "tenant-key", Value: []byte(event.TenantKey)},
			},
			Time: event.OccurredAt,
		})
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher is the publisher used when no broker is configured: events
// are written to the structured log and otherwise dropped.
type LogPublisher struct{}

var _ stock.Publisher = (*LogPublisher)(nil)

// NewLogPublisher creates a log-only publisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

// PublishBatch logs each event. Never fails.
func (p *LogPublisher) PublishBatch(ctx context.Context, events []stock.Event) error {
	for _, event := range events {
		logger.Info(ctx, "stock event",
			"event_id", event.ID,
			"event_type", event.Type,
			"tenant_key", event.TenantKey,
			"occurred_at", event.OccurredAt,
		)
	}
	return nil
}
