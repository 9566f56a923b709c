package ports

import "context"

// Payer is the minimal payer identification the gateway requires for PIX.
type Payer struct {
	Email     string
	FirstName string
	LastName  string
}

// PixChargeRequest creates a PIX payment intent at the gateway.
// IdempotencyKey is derived from the order id so a retried call never creates
// a duplicate remote payment.
type PixChargeRequest struct {
	IdempotencyKey    string
	ExternalReference string
	Amount            float64
	Description       string
	Payer             Payer
}

// PaymentIntent is the gateway's answer to a charge request.
type PaymentIntent struct {
	ID           string
	Status       string
	QRCode       string
	QRCodeBase64 string
}

// Payment is the authoritative payment record fetched from the gateway. The
// reconciler always works from this, never from webhook bodies.
type Payment struct {
	ID                string
	Status            string
	ExternalReference string
	TransactionAmount float64
}

// PaymentGateway wraps the payment processor API.
type PaymentGateway interface {
	CreatePixPayment(ctx context.Context, req PixChargeRequest) (*PaymentIntent, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
}
