// Package events implements ports.EventPublisher on a Kafka topic so the
// admin dashboard and analytics pipeline can follow order lifecycle
// transitions without polling the store.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/ramostecidos/storefront/internal/core/ports"
)

type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher builds a Kafka-backed publisher for the given brokers and
// topic. Messages are keyed by order id so all events of one order land on
// one partition, preserving their relative order for consumers.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, evt ports.OrderEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", evt.Type, err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: value,
	})
}

func (p *Publisher) Close() error { return p.writer.Close() }
