package httpx

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ramostecidos/storefront/internal/core/domain"
	"github.com/ramostecidos/storefront/internal/core/engine"
	"github.com/ramostecidos/storefront/internal/core/ports"
)

// OrderEngine is what the handler needs from the lifecycle engine.
type OrderEngine interface {
	CreateOrder(ctx context.Context, in engine.CreateOrderInput) (*domain.Order, error)
	CreatePaymentIntent(ctx context.Context, orderID string) (*ports.PaymentIntent, error)
	ReconcilePaymentCallback(ctx context.Context, payload engine.CallbackPayload) (engine.Outcome, error)
	ShipOrder(ctx context.Context, orderID string) (*engine.ShipResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	GetOrderStatus(ctx context.Context, orderID string) (*engine.OrderStatusView, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
}

// ShippingQuoter is what the handler needs from the quote service.
type ShippingQuoter interface {
	Quote(ctx context.Context, cep string, items []ports.QuoteItem) (*engine.QuoteResult, error)
}

// Handler exposes the storefront over HTTP.
type Handler struct {
	engine       OrderEngine
	quoter       ShippingQuoter
	webhookToken string
	adminToken   string
}

// NewHandler wires the handler. webhookToken guards the payment webhook via a
// token query parameter; adminToken guards the /admin routes via the
// X-Admin-Token header. An empty adminToken disables the admin surface.
func NewHandler(eng OrderEngine, quoter ShippingQuoter, webhookToken, adminToken string) *Handler {
	return &Handler{
		engine:       eng,
		quoter:       quoter,
		webhookToken: webhookToken,
		adminToken:   adminToken,
	}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	items := make([]engine.NewOrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, engine.NewOrderItem{
			ProductID:     it.ProductID,
			ProductName:   it.ProductName,
			Meters:        it.Meters,
			PricePerMeter: it.PricePerMeter,
		})
	}

	order, err := h.engine.CreateOrder(r.Context(), engine.CreateOrderInput{
		Customer: engine.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		ShippingPrice:   req.ShippingPrice,
		ShippingMethod:  req.ShippingMethod,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateOrderResponse{OrderID: order.ID, TotalPrice: order.TotalPrice})
}

func (h *Handler) CreatePix(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	intent, err := h.engine.CreatePaymentIntent(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CreatePixResponse{
		OK:           true,
		OrderID:      orderID,
		PaymentID:    intent.ID,
		QRCodeBase64: intent.QRCodeBase64,
		QRCode:       intent.QRCode,
		Status:       intent.Status,
	})
}

// PaymentWebhook receives gateway callbacks. Business rejections (malformed
// payload, unknown order, amount mismatch) are still acked with 200 so the
// gateway stops redelivering; only transient infrastructure failures answer
// with a retryable 500.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookToken != "" && subtle.ConstantTimeCompare([]byte(r.URL.Query().Get("token")), []byte(h.webhookToken)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	body := map[string]any{}
	dec := json.NewDecoder(r.Body)
	// Numeric payment ids must not round-trip through float64.
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		// A malformed body is a business outcome: the reference extraction
		// will report no_reference and the delivery gets acked.
		body = map[string]any{}
	}

	outcome, err := h.engine.ReconcilePaymentCallback(r.Context(), engine.CallbackPayload{
		Body:  body,
		Query: r.URL.Query(),
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "webhook reconciliation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "reconcile_failed", "temporary failure, retry")
		return
	}

	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		engine.Outcome
	}{OK: true, Outcome: outcome})
}

func (h *Handler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.GetOrderStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) QuoteShipping(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	result, err := h.quoter.Quote(r.Context(), req.CEP, mapQuoteItems(req.Items))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OK bool `json:"ok"`
		*engine.QuoteResult
	}{OK: true, QuoteResult: result})
}

func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.engine.ListOrders(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, mapOrderToResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.engine.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

func (h *Handler) AdminShipOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.engine.ShipOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ShipOrderResponse{
		Success:      true,
		TrackingCode: result.TrackingCode,
		LabelURL:     result.LabelURL,
	})
}

func (h *Handler) AdminCancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CancelOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// requireAdmin is the operator gate. Authentication beyond a shared token is
// handled upstream (reverse proxy); an unset token disables the routes.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminToken == "" || subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Admin-Token")), []byte(h.adminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	var ce *domain.ConflictError
	var nf *domain.NotFoundError
	var ue *domain.UpstreamError
	var ie *domain.IntegrityError

	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "invalid_request", ve.Error())
	case errors.As(err, &ce):
		writeError(w, http.StatusConflict, "conflict", ce.Error())
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, "not_found", nf.Error())
	case errors.As(err, &ue):
		writeError(w, http.StatusBadGateway, "upstream_error", ue.Error())
	case errors.As(err, &ie):
		writeError(w, http.StatusInternalServerError, "integrity_error", ie.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
