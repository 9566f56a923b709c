package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ramostecidos/storefront/internal/core/domain"
	"github.com/ramostecidos/storefront/internal/core/ports"
)

// ShipOrder runs the operator-triggered paid → shipped transition.
//
// The carrier pipeline (cart → checkout → label → tracking) runs before any
// local write: a failure at any step leaves the order paid and unshipped, so
// the operator can simply retry. Only after all four carrier calls succeed is
// the order updated, in one conditional write that also claims the
// shipped-email flag. A duplicate operator click either fails the
// precondition here or loses that write and gets a conflict, never a second
// carrier purchase or a second email.
func (e *Engine) ShipOrder(ctx context.Context, orderID string) (*ShipResult, error) {
	if e.carrier == nil {
		return nil, &domain.UpstreamError{Service: "carrier", Op: "ship order", Err: errors.New("carrier not configured")}
	}

	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.StatusPaid || o.ShippedAt != nil {
		return nil, &domain.ConflictError{Reason: fmt.Sprintf("order is %s, not ready to ship", o.Status)}
	}
	if len(o.Items) == 0 {
		return nil, &domain.IntegrityError{OrderID: o.ID, Reason: "order has no items"}
	}

	products := make([]ports.ShipmentProduct, 0, len(o.Items))
	for _, it := range o.Items {
		name := it.ProductName
		if name == "" {
			name = "Produto"
		}
		products = append(products, ports.ShipmentProduct{
			Name:   name,
			Meters: it.Meters,
			Value:  it.Subtotal(),
		})
	}

	shipmentID, err := e.carrier.CreateCart(ctx, ports.ShipmentRequest{
		Service:  o.ShippingMethod,
		ToCEP:    o.ShippingAddress.CEP,
		Products: products,
	})
	if err != nil {
		return nil, err
	}
	if err := e.carrier.Checkout(ctx, shipmentID); err != nil {
		return nil, err
	}
	labelURL, err := e.carrier.PrintLabel(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	trackingCode, err := e.carrier.Tracking(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	shippedAt := time.Now().UTC()
	won, err := e.store.MarkShipped(ctx, o.ID, trackingCode, labelURL, shippedAt)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, &domain.ConflictError{Reason: "order was shipped concurrently"}
	}

	slog.InfoContext(ctx, "order shipped",
		"order_id", o.ID,
		"shipment_id", shipmentID,
		"tracking_code", trackingCode,
	)

	o.Status = domain.StatusShipped
	o.TrackingCode = trackingCode
	o.LabelURL = labelURL
	o.ShippedAt = &shippedAt
	if err := e.notifier.SendOrderShipped(ctx, o); err != nil {
		slog.ErrorContext(ctx, "shipped email failed", "order_id", o.ID, "error", err)
	}
	e.publish(ctx, ports.EventOrderShipped, o)

	return &ShipResult{TrackingCode: trackingCode, LabelURL: labelURL}, nil
}
