package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ramostecidos/storefront/internal/core/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "orders.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testOrder() *domain.Order {
	id := uuid.NewString()
	return &domain.Order{
		ID:           id,
		Status:       domain.StatusPending,
		CustomerName: "Maria Souza",
		Email:        "maria@example.com",
		Phone:        "+5511999990000",
		Items: []domain.OrderItem{
			{OrderID: id, ProductID: uuid.NewString(), ProductName: "Tricoline Floral", Meters: 2, PricePerMeter: 19.90},
			{OrderID: id, ProductName: "Linho Cru", Meters: 1.5, PricePerMeter: 32.50},
		},
		TotalPrice: 103.45,
		ShippingAddress: domain.Address{
			CEP: "01310100", Street: "Av. Paulista", Number: "1000", Complement: "ap 42",
			District: "Bela Vista", City: "São Paulo", State: "SP",
		},
		ShippingPrice:  14.90,
		ShippingMethod: "pac",
		CreatedAt:      time.Now().UTC(),
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	o := testOrder()
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusPending || got.CustomerName != o.CustomerName {
		t.Fatalf("got = %+v", got)
	}
	if got.TotalPrice != 103.45 || got.ShippingPrice != 14.90 {
		t.Fatalf("money fields = %v / %v", got.TotalPrice, got.ShippingPrice)
	}
	if got.ShippingAddress != o.ShippingAddress {
		t.Fatalf("address = %+v, want %+v", got.ShippingAddress, o.ShippingAddress)
	}
	if len(got.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(got.Items))
	}
	if got.Items[0].ProductID != o.Items[0].ProductID || got.Items[0].PricePerMeter != 19.90 {
		t.Fatalf("item[0] = %+v", got.Items[0])
	}
	// Item without catalog id comes back with an empty one, not garbage.
	if got.Items[1].ProductID != "" || got.Items[1].Meters != 1.5 {
		t.Fatalf("item[1] = %+v", got.Items[1])
	}
	if !got.CreatedAt.Equal(o.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, o.CreatedAt)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetOrder(context.Background(), "missing")
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := testOrder()
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testOrder()

	if err := s.CreateOrder(ctx, older); err != nil {
		t.Fatalf("create older: %v", err)
	}
	if err := s.CreateOrder(ctx, newer); err != nil {
		t.Fatalf("create newer: %v", err)
	}

	orders, err := s.ListOrders(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(orders))
	}
	if orders[0].ID != newer.ID || orders[1].ID != older.ID {
		t.Fatalf("order of orders: %s, %s", orders[0].ID, orders[1].ID)
	}
}

func TestSetPaymentIntentIsSetOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	o := testOrder()
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	won, err := s.SetPaymentIntent(ctx, o.ID, "pay-1", "pending")
	if err != nil || !won {
		t.Fatalf("first set: won=%v err=%v", won, err)
	}

	won, err = s.SetPaymentIntent(ctx, o.ID, "pay-2", "pending")
	if err != nil {
		t.Fatalf("second set: %v", err)
	}
	if won {
		t.Fatal("second intent overwrote the first")
	}

	got, _ := s.GetOrder(ctx, o.ID)
	if got.PaymentReference != "pay-1" {
		t.Fatalf("reference = %q, want pay-1", got.PaymentReference)
	}
}

func TestMarkPaidClaimsTransitionOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	o := testOrder()
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	won, err := s.MarkPaid(ctx, o.ID, "pay-1", "approved")
	if err != nil || !won {
		t.Fatalf("first mark: won=%v err=%v", won, err)
	}

	// Duplicate delivery loses the conditional update.
	won, err = s.MarkPaid(ctx, o.ID, "pay-1", "approved")
	if err != nil {
		t.Fatalf("second mark: %v", err)
	}
	if won {
		t.Fatal("duplicate MarkPaid also won")
	}

	got, _ := s.GetOrder(ctx, o.ID)
	if got.Status != domain.StatusPaid || !got.ConfirmationEmailSent || got.PaymentReference != "pay-1" {
		t.Fatalf("order after mark paid: %+v", got)
	}
}

func TestRecordGatewayStatusKeepsReferenceSetOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	o := testOrder()
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := s.RecordGatewayStatus(ctx, o.ID, "pay-1", "in_process"); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := s.RecordGatewayStatus(ctx, o.ID, "pay-other", "rejected"); err != nil {
		t.Fatalf("second record: %v", err)
	}

	got, _ := s.GetOrder(ctx, o.ID)
	if got.PaymentReference != "pay-1" {
		t.Fatalf("reference = %q, want first write to stick", got.PaymentReference)
	}
	if got.PaymentStatusRaw != "rejected" {
		t.Fatalf("raw status = %q, want latest write", got.PaymentStatusRaw)
	}
	if got.Status != domain.StatusPending {
		t.Fatalf("status = %s, audit write changed business state", got.Status)
	}
}

func TestMarkShipped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	o := testOrder()
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	shippedAt := time.Now().UTC()

	// Pending orders cannot ship.
	won, err := s.MarkShipped(ctx, o.ID, "ME1", "http://label", shippedAt)
	if err != nil {
		t.Fatalf("mark shipped: %v", err)
	}
	if won {
		t.Fatal("pending order shipped")
	}

	if _, err := s.MarkPaid(ctx, o.ID, "pay-1", "approved"); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	won, err = s.MarkShipped(ctx, o.ID, "ME1", "http://label", shippedAt)
	if err != nil || !won {
		t.Fatalf("ship paid order: won=%v err=%v", won, err)
	}

	// And only once.
	won, err = s.MarkShipped(ctx, o.ID, "ME2", "http://other", shippedAt)
	if err != nil {
		t.Fatalf("second ship: %v", err)
	}
	if won {
		t.Fatal("order shipped twice")
	}

	got, _ := s.GetOrder(ctx, o.ID)
	if got.Status != domain.StatusShipped || got.TrackingCode != "ME1" || !got.ShippedEmailSent {
		t.Fatalf("order after ship: %+v", got)
	}
	if got.ShippedAt == nil || !got.ShippedAt.Equal(shippedAt) {
		t.Fatalf("shipped_at = %v, want %v", got.ShippedAt, shippedAt)
	}
}

func TestCancelOrderOnlyWhilePending(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	o := testOrder()
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	won, err := s.CancelOrder(ctx, o.ID)
	if err != nil || !won {
		t.Fatalf("cancel pending: won=%v err=%v", won, err)
	}

	// Terminal; a second cancel and a late MarkPaid both lose.
	if won, _ := s.CancelOrder(ctx, o.ID); won {
		t.Fatal("canceled order canceled again")
	}
	if won, _ := s.MarkPaid(ctx, o.ID, "pay-1", "approved"); won {
		t.Fatal("canceled order marked paid")
	}

	got, _ := s.GetOrder(ctx, o.ID)
	if got.Status != domain.StatusCanceled {
		t.Fatalf("status = %s, want canceled", got.Status)
	}
}

func TestConcurrentMarkPaidSingleWinner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	o := testOrder()
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("create: %v", err)
	}

	const attempts = 8
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			won, err := s.MarkPaid(ctx, o.ID, "pay-1", "approved")
			if err != nil {
				t.Errorf("mark paid: %v", err)
			}
			wins <- won
		}()
	}

	winners := 0
	for i := 0; i < attempts; i++ {
		if <-wins {
			winners++
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}
