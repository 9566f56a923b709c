package ports

import (
	"context"
	"time"

	"github.com/ramostecidos/storefront/internal/core/domain"
)

// Lifecycle event types published to the order-events topic.
const (
	EventOrderCreated  = "order.created"
	EventOrderPaid     = "order.paid"
	EventOrderShipped  = "order.shipped"
	EventOrderCanceled = "order.canceled"
)

// OrderEvent is the message emitted after a lifecycle transition. Consumers
// (admin dashboards, analytics) must tolerate duplicates: publication happens
// after the store transition and is not part of it.
type OrderEvent struct {
	Type       string             `json:"type"`
	OrderID    string             `json:"order_id"`
	Status     domain.OrderStatus `json:"status"`
	TotalPrice float64            `json:"total_price"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// EventPublisher publishes order lifecycle events. Optional: a nil publisher
// disables publication.
type EventPublisher interface {
	Publish(ctx context.Context, evt OrderEvent) error
}
