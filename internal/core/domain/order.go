package domain

import "time"

// OrderStatus is the business state of an order.
//
// Transitions are one-way: pending → paid → shipped, with canceled reachable
// only from pending. There are no reverse transitions; in particular an order
// never regresses from paid to pending, regardless of what the payment
// gateway reports later.
type OrderStatus string

const (
	StatusPending  OrderStatus = "pending"
	StatusPaid     OrderStatus = "paid"
	StatusShipped  OrderStatus = "shipped"
	StatusCanceled OrderStatus = "canceled"
)

// Address is the postal address snapshot captured at checkout.
// Complement is the only optional field.
type Address struct {
	CEP        string `json:"cep"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
}

// OrderItem is one fabric cut inside an order. Name and price are snapshots
// taken when the item entered the cart; later catalog changes never affect a
// placed order. ProductID is the canonical catalog id when the reference
// could be validated, and empty otherwise (the snapshot still identifies the
// item for fulfilment and email purposes).
type OrderItem struct {
	OrderID       string  `json:"order_id"`
	ProductID     string  `json:"product_id,omitempty"`
	ProductName   string  `json:"product_name"`
	Meters        float64 `json:"meters"`
	PricePerMeter float64 `json:"price_per_meter"`
}

// Subtotal returns the item price in reais, rounded to the centavo.
func (i OrderItem) Subtotal() float64 {
	return FromCentavos(Centavos(i.Meters * i.PricePerMeter))
}

// Order is the persisted order record. Contact and address fields are
// immutable after creation; payment and shipping fields are each set exactly
// once by the corresponding lifecycle transition.
type Order struct {
	ID           string      `json:"id"`
	Status       OrderStatus `json:"status"`
	CustomerName string      `json:"customer_name"`
	Email        string      `json:"email"`
	Phone        string      `json:"phone"`
	Items        []OrderItem `json:"items"`

	TotalPrice      float64 `json:"total_price"`
	ShippingAddress Address `json:"shipping_address"`
	ShippingPrice   float64 `json:"shipping_price"`
	ShippingMethod  string  `json:"shipping_method"`

	// PaymentReference is the gateway payment id, set once by the payment
	// intent creation. At most one payment intent exists per order.
	PaymentReference string `json:"payment_reference,omitempty"`
	// PaymentStatusRaw is the last raw status string seen from the gateway.
	// Advisory only; Status is the authoritative business state.
	PaymentStatusRaw string `json:"payment_status_raw,omitempty"`

	ConfirmationEmailSent bool `json:"confirmation_email_sent"`
	ShippedEmailSent      bool `json:"shipped_email_sent"`

	TrackingCode string     `json:"tracking_code,omitempty"`
	LabelURL     string     `json:"label_url,omitempty"`
	ShippedAt    *time.Time `json:"shipped_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
