package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/ramostecidos/storefront/internal/core/domain"
	"github.com/ramostecidos/storefront/internal/core/ports"
)

// CallbackPayload is the webhook delivery as received: an arbitrary-shape
// JSON body plus the request query parameters. The gateway sends several
// payload variants and may deliver each zero, one or many times.
type CallbackPayload struct {
	Body  map[string]any
	Query url.Values
}

// OutcomeCode tags the result of one reconciliation attempt.
type OutcomeCode string

const (
	// OutcomeApplied: the authoritative gateway status was mapped and
	// persisted, possibly transitioning the order to paid.
	OutcomeApplied OutcomeCode = "applied"
	// OutcomeAlreadyApplied: the order had already reached (or passed) the
	// target status; the delivery was a duplicate and had no effect.
	OutcomeAlreadyApplied OutcomeCode = "already_applied"
	// OutcomeIgnored: the delivery could not be applied for the given
	// reason. Business-level, not an error; the handler still acks it.
	OutcomeIgnored OutcomeCode = "ignored"
)

// IgnoreReason says why a delivery was ignored.
type IgnoreReason string

const (
	ReasonNoReference    IgnoreReason = "no_reference"
	ReasonFetchFailed    IgnoreReason = "fetch_failed"
	ReasonOrderNotFound  IgnoreReason = "order_not_found"
	ReasonAmountMismatch IgnoreReason = "amount_mismatch"
)

// Outcome is what the webhook handler needs to answer the gateway: a tag, an
// optional ignore reason and the resulting order status.
type Outcome struct {
	Code    OutcomeCode        `json:"outcome"`
	Reason  IgnoreReason       `json:"reason,omitempty"`
	OrderID string             `json:"order_id,omitempty"`
	Status  domain.OrderStatus `json:"status,omitempty"`
}

func ignored(reason IgnoreReason) Outcome {
	return Outcome{Code: OutcomeIgnored, Reason: reason}
}

// amountToleranceCents is the reconciliation tolerance between the stored
// order total and the gateway-reported transaction amount.
const amountToleranceCents = 1

// ReconcilePaymentCallback processes one webhook delivery. It is idempotent:
// replaying the same delivery any number of times yields at most one status
// transition and at most one confirmation email.
//
// A non-nil error means a transient infrastructure failure (store
// unavailable) that the handler should surface as retryable. Every business
// rejection comes back as an Outcome so the handler can ack the gateway and
// stop its retry loop.
func (e *Engine) ReconcilePaymentCallback(ctx context.Context, payload CallbackPayload) (Outcome, error) {
	ref, ok := extractPaymentReference(payload)
	if !ok {
		slog.InfoContext(ctx, "webhook without payment reference, ignoring")
		return ignored(ReasonNoReference), nil
	}

	// The callback body is replayable and spoofable; fetch the authoritative
	// payment record instead of trusting embedded amount/status fields.
	payment, err := e.gateway.GetPayment(ctx, ref)
	if err != nil {
		slog.WarnContext(ctx, "payment fetch failed, gateway will retry", "payment_id", ref, "error", err)
		return ignored(ReasonFetchFailed), nil
	}

	orderID := strings.TrimSpace(payment.ExternalReference)
	if orderID == "" {
		return ignored(ReasonOrderNotFound), nil
	}
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			slog.WarnContext(ctx, "payment references unknown order", "payment_id", payment.ID, "order_id", orderID)
			return ignored(ReasonOrderNotFound), nil
		}
		return Outcome{}, err
	}

	expected := domain.Centavos(o.TotalPrice)
	reported := domain.Centavos(payment.TransactionAmount)
	if expected > 0 && reported > 0 && absCents(expected-reported) > amountToleranceCents {
		// Possibly an unrelated or tampered payment. Keep the order pending,
		// persist the gateway data for audit and log with full context.
		slog.ErrorContext(ctx, "payment amount mismatch",
			"order_id", o.ID,
			"payment_id", payment.ID,
			"expected", o.TotalPrice,
			"reported", payment.TransactionAmount,
		)
		if err := e.store.RecordGatewayStatus(ctx, o.ID, payment.ID, payment.Status); err != nil {
			return Outcome{}, err
		}
		out := ignored(ReasonAmountMismatch)
		out.OrderID = o.ID
		out.Status = o.Status
		return out, nil
	}

	// The status mapping is total: anything the gateway reports that is not
	// an approval keeps the order pending, including status strings this code
	// has never seen.
	approved := payment.Status == "approved"

	if o.Status != domain.StatusPending {
		// Already paid (or shipped). Never regress; still persist the raw
		// gateway data for audit.
		if err := e.store.RecordGatewayStatus(ctx, o.ID, payment.ID, payment.Status); err != nil {
			return Outcome{}, err
		}
		return Outcome{Code: OutcomeAlreadyApplied, OrderID: o.ID, Status: o.Status}, nil
	}

	if !approved {
		if err := e.store.RecordGatewayStatus(ctx, o.ID, payment.ID, payment.Status); err != nil {
			return Outcome{}, err
		}
		return Outcome{Code: OutcomeApplied, OrderID: o.ID, Status: domain.StatusPending}, nil
	}

	// One conditional update transitions pending → paid and claims the
	// confirmation-email flag. Exactly one of any number of concurrent
	// deliveries wins; only the winner sends the email.
	won, err := e.store.MarkPaid(ctx, o.ID, payment.ID, payment.Status)
	if err != nil {
		return Outcome{}, err
	}
	if !won {
		return Outcome{Code: OutcomeAlreadyApplied, OrderID: o.ID, Status: domain.StatusPaid}, nil
	}

	slog.InfoContext(ctx, "order paid", "order_id", o.ID, "payment_id", payment.ID)

	o.Status = domain.StatusPaid
	o.PaymentReference = payment.ID
	o.PaymentStatusRaw = payment.Status
	if err := e.notifier.SendOrderPaid(ctx, o); err != nil {
		// The claim is already persisted, so a retry will not resend. Losing
		// the mail beats a duplicate-per-delivery storm; leave it to the
		// audit log.
		slog.ErrorContext(ctx, "confirmation email failed", "order_id", o.ID, "error", err)
	}
	e.publish(ctx, ports.EventOrderPaid, o)

	return Outcome{Code: OutcomeApplied, OrderID: o.ID, Status: domain.StatusPaid}, nil
}

// extractPaymentReference applies the prioritized extraction rules over the
// delivery: body data.id, then body id, then the query parameter variants the
// gateway uses. All rules are total; an unextractable payload is a business
// outcome, not an error.
func extractPaymentReference(p CallbackPayload) (string, bool) {
	if data, ok := p.Body["data"].(map[string]any); ok {
		if ref := stringifyID(data["id"]); ref != "" {
			return ref, true
		}
	}
	if ref := stringifyID(p.Body["id"]); ref != "" {
		return ref, true
	}
	for _, key := range []string{"data.id", "id"} {
		if ref := strings.TrimSpace(p.Query.Get(key)); ref != "" {
			return ref, true
		}
	}
	return "", false
}

// stringifyID renders the id field of a decoded JSON payload. The gateway
// sends numeric ids in bodies and string ids in query parameters.
func stringifyID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return ""
}

func absCents(c int64) int64 {
	if c < 0 {
		return -c
	}
	return c
}
