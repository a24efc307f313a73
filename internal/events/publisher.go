// Package events publishes order workflow transitions for downstream
// consumers (kitchen displays, analytics). Publishing is best-effort and
// never blocks or fails the status write itself.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ArtyomNalbandian/Dolcetto/internal/domain"
)

const statusTopic = "order-status"

// Publisher emits order lifecycle events.
type Publisher interface {
	OrderStatusChanged(ctx context.Context, orderID string, from, to domain.OrderStatus) error
	Close() error
}

type statusEvent struct {
	OrderID   string    `json:"order_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

// KafkaPublisher writes status events to the order-status topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    statusTopic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) OrderStatusChanged(ctx context.Context, orderID string, from, to domain.OrderStatus) error {
	payload, err := json.Marshal(statusEvent{
		OrderID:   orderID,
		From:      from.String(),
		To:        to.String(),
		ChangedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(orderID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher is used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) OrderStatusChanged(context.Context, string, domain.OrderStatus, domain.OrderStatus) error {
	return nil
}

func (NopPublisher) Close() error { return nil }
