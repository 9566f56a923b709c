// Package mercadopago implements ports.PaymentGateway against the Mercado
// Pago payments API.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ramostecidos/storefront/internal/core/domain"
	"github.com/ramostecidos/storefront/internal/core/ports"
)

const defaultBaseURL = "https://api.mercadopago.com"

type Client struct {
	httpClient      *http.Client
	baseURL         string
	accessToken     string
	notificationURL string
}

// New builds a gateway client. notificationURL is where the gateway delivers
// payment webhooks (the /webhooks/mercadopago endpoint of this service).
func New(httpClient *http.Client, accessToken, notificationURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient:      httpClient,
		baseURL:         defaultBaseURL,
		accessToken:     accessToken,
		notificationURL: notificationURL,
	}
}

// WithBaseURL overrides the API host, for tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

type payerIdentification struct {
	Type   string `json:"type,omitempty"`
	Number string `json:"number,omitempty"`
}

type payerBody struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type createPaymentBody struct {
	TransactionAmount float64   `json:"transaction_amount"`
	Description       string    `json:"description"`
	PaymentMethodID   string    `json:"payment_method_id"`
	Payer             payerBody `json:"payer"`
	NotificationURL   string    `json:"notification_url"`
	ExternalReference string    `json:"external_reference"`
}

// paymentResponse covers both the create and the fetch responses. Payment ids
// arrive as JSON numbers.
type paymentResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	ExternalReference  string      `json:"external_reference"`
	TransactionAmount  float64     `json:"transaction_amount"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

func (c *Client) CreatePixPayment(ctx context.Context, req ports.PixChargeRequest) (*ports.PaymentIntent, error) {
	body := createPaymentBody{
		TransactionAmount: req.Amount,
		Description:       req.Description,
		PaymentMethodID:   "pix",
		Payer: payerBody{
			Email:     req.Payer.Email,
			FirstName: req.Payer.FirstName,
			LastName:  req.Payer.LastName,
		},
		NotificationURL:   c.notificationURL,
		ExternalReference: req.ExternalReference,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: marshal payment: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("mercadopago: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	// The key makes retried creates converge on one remote payment.
	httpReq.Header.Set("X-Idempotency-Key", req.IdempotencyKey)

	var resp paymentResponse
	if err := c.do(httpReq, "create payment", &resp); err != nil {
		return nil, err
	}

	return &ports.PaymentIntent{
		ID:           resp.ID.String(),
		Status:       resp.Status,
		QRCode:       resp.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64: resp.PointOfInteraction.TransactionData.QRCodeBase64,
	}, nil
}

func (c *Client) GetPayment(ctx context.Context, id string) (*ports.Payment, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	var resp paymentResponse
	if err := c.do(httpReq, "get payment", &resp); err != nil {
		return nil, err
	}

	return &ports.Payment{
		ID:                resp.ID.String(),
		Status:            resp.Status,
		ExternalReference: resp.ExternalReference,
		TransactionAmount: resp.TransactionAmount,
	}, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.UpstreamError{Service: "mercadopago", Op: op, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.UpstreamError{Service: "mercadopago", Op: op, Transient: true, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.UpstreamError{
			Service:   "mercadopago",
			Op:        op,
			Transient: resp.StatusCode >= 500,
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 512)),
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.UpstreamError{Service: "mercadopago", Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
