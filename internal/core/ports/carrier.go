package ports

import "context"

// QuoteItem is one cart line sent to the carrier rate calculator.
type QuoteItem struct {
	Name          string
	Meters        float64
	PricePerMeter float64
}

// ShippingOption is one quoted service: a label shown to the customer, a
// price in reais and a delivery window in business days.
type ShippingOption struct {
	ID      string  `json:"id"`
	Label   string  `json:"label"`
	Price   float64 `json:"price"`
	DaysMin int     `json:"days_min"`
	DaysMax int     `json:"days_max"`
}

// ShipmentProduct is one order item declared on a shipment.
type ShipmentProduct struct {
	Name   string
	Meters float64
	Value  float64
}

// ShipmentRequest opens a shipment cart at the carrier for a paid order.
type ShipmentRequest struct {
	Service  string
	ToCEP    string
	Products []ShipmentProduct
}

// Carrier wraps the shipping aggregator API. The ship pipeline calls
// CreateCart → Checkout → PrintLabel → Tracking in order; any failure leaves
// the order untouched so the operator can retry.
type Carrier interface {
	Calculate(ctx context.Context, toCEP string, items []QuoteItem) ([]ShippingOption, error)
	CreateCart(ctx context.Context, req ShipmentRequest) (shipmentID string, err error)
	Checkout(ctx context.Context, shipmentID string) error
	PrintLabel(ctx context.Context, shipmentID string) (labelURL string, err error)
	Tracking(ctx context.Context, shipmentID string) (trackingCode string, err error)
}
