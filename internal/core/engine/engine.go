// Package engine implements the order lifecycle state machine: validated
// creation, payment intent creation, webhook reconciliation and the shipment
// transition. All idempotency guarantees are delegated to conditional updates
// in the OrderStore, so the engine itself is stateless and safe to invoke
// concurrently for the same order.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ramostecidos/storefront/internal/core/domain"
	"github.com/ramostecidos/storefront/internal/core/ports"
)

// Customer is the contact snapshot captured at checkout.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// NewOrderItem is one cart line in a create-order request. ProductID is the
// raw catalog reference as sent by the client; it is persisted only when it
// parses as a canonical id, the name/price snapshot is kept either way.
type NewOrderItem struct {
	ProductID     string
	ProductName   string
	Meters        float64
	PricePerMeter float64
}

// CreateOrderInput is the full payload of a create-order call.
type CreateOrderInput struct {
	Customer        Customer
	Items           []NewOrderItem
	ShippingAddress domain.Address
	ShippingPrice   float64
	ShippingMethod  string
}

// OrderStatusView is the cheap read exposed for client-side polling.
type OrderStatusView struct {
	Status           domain.OrderStatus `json:"status"`
	PaymentStatusRaw string             `json:"gateway_status"`
}

// ShipResult carries the carrier artifacts produced by a ship transition.
type ShipResult struct {
	TrackingCode string `json:"tracking_code"`
	LabelURL     string `json:"label_url"`
}

// Engine coordinates the order lifecycle against its collaborators.
// events may be nil; everything else is required.
type Engine struct {
	store    ports.OrderStore
	gateway  ports.PaymentGateway
	carrier  ports.Carrier
	notifier ports.Notifier
	events   ports.EventPublisher
}

func New(store ports.OrderStore, gateway ports.PaymentGateway, carrier ports.Carrier, notifier ports.Notifier, events ports.EventPublisher) *Engine {
	return &Engine{
		store:    store,
		gateway:  gateway,
		carrier:  carrier,
		notifier: notifier,
		events:   events,
	}
}

// CreateOrder validates the payload, computes the total and persists the
// order with status pending. It never contacts the payment gateway.
func (e *Engine) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if err := validateCreateOrder(in); err != nil {
		return nil, err
	}

	totalCents := domain.Centavos(in.ShippingPrice)
	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		totalCents += domain.Centavos(it.Meters * it.PricePerMeter)
		items = append(items, domain.OrderItem{
			ProductID:     canonicalProductID(it.ProductID),
			ProductName:   it.ProductName,
			Meters:        it.Meters,
			PricePerMeter: it.PricePerMeter,
		})
	}

	o := &domain.Order{
		ID:              uuid.NewString(),
		Status:          domain.StatusPending,
		CustomerName:    in.Customer.Name,
		Email:           in.Customer.Email,
		Phone:           in.Customer.Phone,
		Items:           items,
		TotalPrice:      domain.FromCentavos(totalCents),
		ShippingAddress: in.ShippingAddress,
		ShippingPrice:   in.ShippingPrice,
		ShippingMethod:  in.ShippingMethod,
		CreatedAt:       time.Now().UTC(),
	}
	for i := range o.Items {
		o.Items[i].OrderID = o.ID
	}

	if err := e.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "order created", "order_id", o.ID, "total_price", o.TotalPrice)
	e.publish(ctx, ports.EventOrderCreated, o)
	return o, nil
}

// CreatePaymentIntent creates the single PIX payment for an order. The
// idempotency key sent to the gateway is the order id, so a client retrying
// the call (double-clicked "finalize") cannot create a duplicate remote
// payment even if it races past the local precondition check.
func (e *Engine) CreatePaymentIntent(ctx context.Context, orderID string) (*ports.PaymentIntent, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.StatusPending {
		return nil, &domain.ConflictError{Reason: fmt.Sprintf("order is %s, not pending", o.Status)}
	}
	if o.PaymentReference != "" {
		return nil, &domain.ConflictError{Reason: "payment intent already created"}
	}

	first, last := splitPayerName(o.CustomerName)
	intent, err := e.gateway.CreatePixPayment(ctx, ports.PixChargeRequest{
		IdempotencyKey:    o.ID,
		ExternalReference: o.ID,
		Amount:            o.TotalPrice,
		Description:       fmt.Sprintf("Pedido Ramos Tecidos %s", o.ID),
		Payer: ports.Payer{
			Email:     o.Email,
			FirstName: first,
			LastName:  last,
		},
	})
	if err != nil {
		return nil, err
	}

	stored, err := e.store.SetPaymentIntent(ctx, o.ID, intent.ID, intent.Status)
	if err != nil {
		return nil, err
	}
	if !stored {
		// A concurrent call won the set-once update. The gateway side is
		// deduplicated by the idempotency key, so just report the conflict.
		return nil, &domain.ConflictError{Reason: "payment intent already created"}
	}

	slog.InfoContext(ctx, "payment intent created", "order_id", o.ID, "payment_id", intent.ID, "status", intent.Status)
	return intent, nil
}

// GetOrderStatus is the polling read: business status plus the last raw
// gateway status for display.
func (e *Engine) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatusView, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderStatusView{Status: o.Status, PaymentStatusRaw: o.PaymentStatusRaw}, nil
}

// GetOrder loads a full order with items, for the admin panel.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return e.store.GetOrder(ctx, orderID)
}

// ListOrders lists orders for the admin panel, newest first.
func (e *Engine) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return e.store.ListOrders(ctx)
}

// CancelOrder moves a pending order to the terminal canceled state, used by
// operators for abandoned or amount-mismatched orders.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) error {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Status != domain.StatusPending {
		return &domain.ConflictError{Reason: fmt.Sprintf("order is %s, not pending", o.Status)}
	}
	canceled, err := e.store.CancelOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !canceled {
		return &domain.ConflictError{Reason: "order is no longer pending"}
	}
	slog.InfoContext(ctx, "order canceled", "order_id", orderID)
	o.Status = domain.StatusCanceled
	e.publish(ctx, ports.EventOrderCanceled, o)
	return nil
}

func (e *Engine) publish(ctx context.Context, eventType string, o *domain.Order) {
	if e.events == nil {
		return
	}
	evt := ports.OrderEvent{
		Type:       eventType,
		OrderID:    o.ID,
		Status:     o.Status,
		TotalPrice: o.TotalPrice,
		OccurredAt: time.Now().UTC(),
	}
	if err := e.events.Publish(ctx, evt); err != nil {
		slog.ErrorContext(ctx, "event publish failed", "type", eventType, "order_id", o.ID, "error", err)
	}
}

func validateCreateOrder(in CreateOrderInput) error {
	switch {
	case strings.TrimSpace(in.Customer.Name) == "":
		return &domain.ValidationError{Field: "customer.name", Reason: "required"}
	case strings.TrimSpace(in.Customer.Email) == "":
		return &domain.ValidationError{Field: "customer.email", Reason: "required"}
	case strings.TrimSpace(in.Customer.Phone) == "":
		return &domain.ValidationError{Field: "customer.phone", Reason: "required"}
	}
	if len(in.Items) == 0 {
		return &domain.ValidationError{Field: "items", Reason: "cart is empty"}
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.ProductName) == "" {
			return &domain.ValidationError{Field: fmt.Sprintf("items[%d].product_name", i), Reason: "required"}
		}
		if !domain.ValidMeters(it.Meters) {
			return &domain.ValidationError{Field: fmt.Sprintf("items[%d].meters", i), Reason: "must be a positive multiple of 0.5"}
		}
		if it.PricePerMeter <= 0 {
			return &domain.ValidationError{Field: fmt.Sprintf("items[%d].price_per_meter", i), Reason: "must be positive"}
		}
	}
	addr := in.ShippingAddress
	for _, f := range []struct{ name, value string }{
		{"shipping_address.cep", addr.CEP},
		{"shipping_address.street", addr.Street},
		{"shipping_address.number", addr.Number},
		{"shipping_address.district", addr.District},
		{"shipping_address.city", addr.City},
		{"shipping_address.state", addr.State},
	} {
		if strings.TrimSpace(f.value) == "" {
			return &domain.ValidationError{Field: f.name, Reason: "required"}
		}
	}
	if in.ShippingPrice < 0 {
		return &domain.ValidationError{Field: "shipping_price", Reason: "must not be negative"}
	}
	if strings.TrimSpace(in.ShippingMethod) == "" {
		return &domain.ValidationError{Field: "shipping_method", Reason: "required"}
	}
	return nil
}

// canonicalProductID keeps the catalog reference only when it is a canonical
// uuid. Anything else is stored as an empty id with the name/price snapshot
// carrying the item identity; the order itself is never rejected for this.
func canonicalProductID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if _, err := uuid.Parse(raw); err != nil {
		return ""
	}
	return raw
}

// splitPayerName splits a free-form customer name into the first/last pair
// the gateway requires.
func splitPayerName(name string) (first, last string) {
	parts := strings.Fields(strings.TrimSpace(name))
	if len(parts) == 0 {
		return "Cliente", "Cliente"
	}
	if len(parts) == 1 {
		return parts[0], "Cliente"
	}
	return parts[0], strings.Join(parts[1:], " ")
}
