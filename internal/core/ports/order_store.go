package ports

import (
	"context"
	"time"

	"github.com/ramostecidos/storefront/internal/core/domain"
)

// OrderStore is the port for durable order persistence.
//
// Every mutation that guards an idempotent side effect is expressed as a
// single conditional update returning whether this caller won the transition.
// The engine never does read-then-write for those fields: two concurrent
// webhook deliveries must not both observe "not yet paid".
type OrderStore interface {
	// CreateOrder persists the order and its items atomically. A partial
	// write (order without items) must never be left behind.
	CreateOrder(ctx context.Context, o *domain.Order) error

	// GetOrder loads an order with its items. Returns *domain.NotFoundError
	// when no such order exists.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// ListOrders returns all orders, newest first, without items.
	ListOrders(ctx context.Context) ([]domain.Order, error)

	// SetPaymentIntent records the gateway reference and raw status, only if
	// no reference was recorded before. Returns false when the order already
	// has a payment intent.
	SetPaymentIntent(ctx context.Context, orderID, reference, rawStatus string) (bool, error)

	// RecordGatewayStatus persists the raw gateway status (and the reference,
	// if still unset) for audit, without touching the business status.
	RecordGatewayStatus(ctx context.Context, orderID, reference, rawStatus string) error

	// MarkPaid transitions pending → paid and claims the confirmation-email
	// flag in one conditional update. Returns true only for the single caller
	// that performed the transition; that caller owns the email send.
	MarkPaid(ctx context.Context, orderID, reference, rawStatus string) (bool, error)

	// MarkShipped transitions paid → shipped, records the carrier results and
	// claims the shipped-email flag, all in one conditional update.
	MarkShipped(ctx context.Context, orderID, trackingCode, labelURL string, shippedAt time.Time) (bool, error)

	// CancelOrder transitions pending → canceled. Returns false when the
	// order is no longer pending.
	CancelOrder(ctx context.Context, orderID string) (bool, error)
}
