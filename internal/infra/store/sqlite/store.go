// Package sqlite provides the SQLite-backed ports.OrderStore.
//
// WAL mode is enabled on Open so reads (admin panel, status polling) never
// block the webhook writer. Every idempotency-critical mutation is a single
// conditional UPDATE whose RowsAffected tells the caller whether it won the
// transition; there are no read-then-write sequences here.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ramostecidos/storefront/internal/core/domain"

	// Pure-Go SQLite driver, no CGO needed for Docker/Alpine builds.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    id                      TEXT PRIMARY KEY,
    status                  TEXT NOT NULL DEFAULT 'pending',
    customer_name           TEXT NOT NULL,
    email                   TEXT NOT NULL,
    phone                   TEXT NOT NULL,

    -- money columns are integer centavos
    total_price             INTEGER NOT NULL,
    shipping_price          INTEGER NOT NULL,
    shipping_method         TEXT NOT NULL,

    shipping_cep            TEXT NOT NULL,
    shipping_street         TEXT NOT NULL,
    shipping_number         TEXT NOT NULL,
    shipping_complement     TEXT NOT NULL DEFAULT '',
    shipping_district       TEXT NOT NULL,
    shipping_city           TEXT NOT NULL,
    shipping_state          TEXT NOT NULL,

    -- set once by payment intent creation; NULL until then
    payment_reference       TEXT,
    payment_status_raw      TEXT NOT NULL DEFAULT '',

    confirmation_email_sent INTEGER NOT NULL DEFAULT 0,
    shipped_email_sent      INTEGER NOT NULL DEFAULT 0,

    tracking_code           TEXT NOT NULL DEFAULT '',
    label_url               TEXT NOT NULL DEFAULT '',
    shipped_at              TEXT,

    created_at              TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS order_items (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id        TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    product_id      TEXT,
    product_name    TEXT NOT NULL,
    meters          REAL NOT NULL,
    price_per_meter INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
CREATE INDEX IF NOT EXISTS idx_orders_payment_reference ON orders(payment_reference);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
`

// Store implements ports.OrderStore on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// Single writer connection; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateOrder inserts the order and all items inside one transaction so a
// partial write can never survive. An items insert failure rolls everything
// back and surfaces as an IntegrityError.
func (s *Store) CreateOrder(ctx context.Context, o *domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	const insertOrder = `
		INSERT INTO orders
			(id, status, customer_name, email, phone,
			 total_price, shipping_price, shipping_method,
			 shipping_cep, shipping_street, shipping_number, shipping_complement,
			 shipping_district, shipping_city, shipping_state,
			 created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	addr := o.ShippingAddress
	_, err = tx.ExecContext(ctx, insertOrder,
		o.ID, string(o.Status), o.CustomerName, o.Email, o.Phone,
		domain.Centavos(o.TotalPrice), domain.Centavos(o.ShippingPrice), o.ShippingMethod,
		addr.CEP, addr.Street, addr.Number, addr.Complement,
		addr.District, addr.City, addr.State,
		formatTime(o.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert order %s: %w", o.ID, err)
	}

	const insertItem = `
		INSERT INTO order_items (order_id, product_id, product_name, meters, price_per_meter)
		VALUES (?, ?, ?, ?, ?)`

	for _, it := range o.Items {
		_, err := tx.ExecContext(ctx, insertItem,
			o.ID, nullableString(it.ProductID), it.ProductName, it.Meters, domain.Centavos(it.PricePerMeter))
		if err != nil {
			return &domain.IntegrityError{OrderID: o.ID, Reason: fmt.Sprintf("item insert failed, order rolled back: %v", err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit order %s: %w", o.ID, err)
	}
	return nil
}

const orderColumns = `
	id, status, customer_name, email, phone,
	total_price, shipping_price, shipping_method,
	shipping_cep, shipping_street, shipping_number, shipping_complement,
	shipping_district, shipping_city, shipping_state,
	COALESCE(payment_reference, ''), payment_status_raw,
	confirmation_email_sent, shipped_email_sent,
	tracking_code, label_url, shipped_at, created_at`

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "order", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get order %s: %w", id, err)
	}

	items, err := s.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func (s *Store) loadItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	const q = `
		SELECT order_id, COALESCE(product_id, ''), product_name, meters, price_per_meter
		FROM order_items WHERE order_id = ? ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load items for %s: %w", orderID, err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		var priceCents int64
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.ProductName, &it.Meters, &priceCents); err != nil {
			return nil, fmt.Errorf("sqlite: scan item: %w", err)
		}
		it.PricePerMeter = domain.FromCentavos(priceCents)
		items = append(items, it)
	}
	return items, rows.Err()
}

// SetPaymentIntent records the gateway reference once. The WHERE clause is
// the duplicate-intent guard.
func (s *Store) SetPaymentIntent(ctx context.Context, orderID, reference, rawStatus string) (bool, error) {
	const q = `
		UPDATE orders SET payment_reference = ?, payment_status_raw = ?
		WHERE id = ? AND payment_reference IS NULL`
	return s.condUpdate(ctx, q, reference, rawStatus, orderID)
}

// RecordGatewayStatus persists the raw gateway data for audit. The reference
// stays set-once; the raw status always reflects the latest delivery.
func (s *Store) RecordGatewayStatus(ctx context.Context, orderID, reference, rawStatus string) error {
	const q = `
		UPDATE orders
		SET payment_reference = COALESCE(payment_reference, ?), payment_status_raw = ?
		WHERE id = ?`
	_, err := s.db.ExecContext(ctx, q, reference, rawStatus, orderID)
	if err != nil {
		return fmt.Errorf("sqlite: record gateway status for %s: %w", orderID, err)
	}
	return nil
}

// MarkPaid is the compare-and-swap at the center of webhook idempotency:
// status transition and email-flag claim happen in the same statement, so of
// any number of concurrent deliveries exactly one observes RowsAffected == 1.
func (s *Store) MarkPaid(ctx context.Context, orderID, reference, rawStatus string) (bool, error) {
	const q = `
		UPDATE orders
		SET status = 'paid',
		    payment_reference = COALESCE(payment_reference, ?),
		    payment_status_raw = ?,
		    confirmation_email_sent = 1
		WHERE id = ? AND status = 'pending'`
	return s.condUpdate(ctx, q, reference, rawStatus, orderID)
}

// MarkShipped is the same pattern for the paid → shipped transition.
func (s *Store) MarkShipped(ctx context.Context, orderID, trackingCode, labelURL string, shippedAt time.Time) (bool, error) {
	const q = `
		UPDATE orders
		SET status = 'shipped',
		    tracking_code = ?,
		    label_url = ?,
		    shipped_at = ?,
		    shipped_email_sent = 1
		WHERE id = ? AND status = 'paid' AND shipped_at IS NULL`
	return s.condUpdate(ctx, q, trackingCode, labelURL, formatTime(shippedAt), orderID)
}

func (s *Store) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	const q = `UPDATE orders SET status = 'canceled' WHERE id = ? AND status = 'pending'`
	return s.condUpdate(ctx, q, orderID)
}

func (s *Store) condUpdate(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("sqlite: conditional update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var status, createdAt string
	var totalCents, shipCents int64
	var confirmSent, shipSent int
	var shippedAt sql.NullString
	err := row.Scan(
		&o.ID, &status, &o.CustomerName, &o.Email, &o.Phone,
		&totalCents, &shipCents, &o.ShippingMethod,
		&o.ShippingAddress.CEP, &o.ShippingAddress.Street, &o.ShippingAddress.Number, &o.ShippingAddress.Complement,
		&o.ShippingAddress.District, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.PaymentReference, &o.PaymentStatusRaw,
		&confirmSent, &shipSent,
		&o.TrackingCode, &o.LabelURL, &shippedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status = domain.OrderStatus(status)
	o.TotalPrice = domain.FromCentavos(totalCents)
	o.ShippingPrice = domain.FromCentavos(shipCents)
	o.ConfirmationEmailSent = confirmSent == 1
	o.ShippedEmailSent = shipSent == 1

	o.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	if shippedAt.Valid {
		t, err := parseTime(shippedAt.String)
		if err != nil {
			return nil, err
		}
		o.ShippedAt = &t
	}
	return &o, nil
}

// SQLite has no native datetime type; timestamps are RFC3339 TEXT.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", s, err)
	}
	return t, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
