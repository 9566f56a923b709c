package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ramostecidos/storefront/internal/core/domain"
	"github.com/ramostecidos/storefront/internal/core/ports"
)

func TestCreatePixPayment(t *testing.T) {
	var gotReq *http.Request
	var gotBody createPaymentBody

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 123456789,
			"status": "pending",
			"point_of_interaction": {
				"transaction_data": {"qr_code": "copiaecola", "qr_code_base64": "aW1n"}
			}
		}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), "token-1", "https://shop.example/webhooks/mercadopago").WithBaseURL(srv.URL)

	intent, err := c.CreatePixPayment(context.Background(), ports.PixChargeRequest{
		IdempotencyKey:    "order-1",
		ExternalReference: "order-1",
		Amount:            54.70,
		Description:       "Pedido Ramos Tecidos order-1",
		Payer:             ports.Payer{Email: "m@x.com", FirstName: "Maria", LastName: "Souza"},
	})
	if err != nil {
		t.Fatalf("create pix: %v", err)
	}
	if intent.ID != "123456789" || intent.QRCode != "copiaecola" || intent.QRCodeBase64 != "aW1n" {
		t.Fatalf("intent = %+v", intent)
	}

	if gotReq.URL.Path != "/v1/payments" || gotReq.Method != http.MethodPost {
		t.Fatalf("request = %s %s", gotReq.Method, gotReq.URL.Path)
	}
	if gotReq.Header.Get("X-Idempotency-Key") != "order-1" {
		t.Fatal("idempotency key not sent")
	}
	if gotReq.Header.Get("Authorization") != "Bearer token-1" {
		t.Fatal("authorization header missing")
	}
	if gotBody.PaymentMethodID != "pix" || gotBody.ExternalReference != "order-1" {
		t.Fatalf("body = %+v", gotBody)
	}
	if gotBody.NotificationURL != "https://shop.example/webhooks/mercadopago" {
		t.Fatalf("notification url = %q", gotBody.NotificationURL)
	}
}

func TestGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/123" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 123, "status": "approved", "external_reference": "order-1", "transaction_amount": 54.7}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), "token-1", "").WithBaseURL(srv.URL)

	p, err := c.GetPayment(context.Background(), "123")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if p.ID != "123" || p.Status != "approved" || p.ExternalReference != "order-1" || p.TransactionAmount != 54.7 {
		t.Fatalf("payment = %+v", p)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		status        int
		wantTransient bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := New(srv.Client(), "token", "").WithBaseURL(srv.URL)

		_, err := c.GetPayment(context.Background(), "123")
		srv.Close()

		var ue *domain.UpstreamError
		if !errors.As(err, &ue) {
			t.Fatalf("status %d: err = %v, want UpstreamError", tc.status, err)
		}
		if ue.Transient != tc.wantTransient {
			t.Errorf("status %d: transient = %v, want %v", tc.status, ue.Transient, tc.wantTransient)
		}
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	c := New(http.DefaultClient, "token", "").WithBaseURL(srv.URL)
	_, err := c.GetPayment(context.Background(), "123")
	if !domain.IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
}
