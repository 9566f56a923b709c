package ports

import (
	"context"

	"github.com/ramostecidos/storefront/internal/core/domain"
)

// Notifier sends transactional email from an order snapshot. Callers are
// responsible for invoking each method at most once per order; the store-level
// email flags guard that.
type Notifier interface {
	SendOrderPaid(ctx context.Context, o *domain.Order) error
	SendOrderShipped(ctx context.Context, o *domain.Order) error
}
