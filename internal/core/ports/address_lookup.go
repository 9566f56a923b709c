package ports

import (
	"context"

	"github.com/ramostecidos/storefront/internal/core/domain"
)

// AddressLookup resolves a postal code into a structured address.
// Returns *domain.NotFoundError for a well-formed but unknown CEP.
type AddressLookup interface {
	Resolve(ctx context.Context, cep string) (*domain.Address, error)
}
