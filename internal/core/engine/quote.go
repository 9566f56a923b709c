package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ramostecidos/storefront/internal/core/domain"
	"github.com/ramostecidos/storefront/internal/core/ports"
	"github.com/ramostecidos/storefront/internal/pkg/cache"
)

// QuoteResult is the answer to a shipping quote: the resolved address, the
// cart total and the available options.
type QuoteResult struct {
	CEP        string                 `json:"cep"`
	Address    domain.Address         `json:"address"`
	ItemsTotal float64                `json:"items_total"`
	Provider   string                 `json:"provider"`
	Options    []ports.ShippingOption `json:"options"`
}

const addressCacheTTL = 24 * time.Hour

// Quoter computes shipping quotes: live carrier rates when the carrier is
// configured and answers, a static regional price table otherwise. Pure apart
// from the address lookup and the carrier call; nothing is persisted.
//
// carrier and quotes may be nil (no live rates, no caching).
type Quoter struct {
	lookup  ports.AddressLookup
	carrier ports.Carrier
	quotes  cache.Cache
}

func NewQuoter(lookup ports.AddressLookup, carrier ports.Carrier, quotes cache.Cache) *Quoter {
	return &Quoter{lookup: lookup, carrier: carrier, quotes: quotes}
}

// Quote resolves the destination address and returns the shipping options for
// the given cart snapshot.
func (q *Quoter) Quote(ctx context.Context, cep string, items []ports.QuoteItem) (*QuoteResult, error) {
	clean := CleanCEP(cep)
	if len(clean) != 8 {
		return nil, &domain.ValidationError{Field: "cep", Reason: "must have 8 digits"}
	}
	if len(items) == 0 {
		return nil, &domain.ValidationError{Field: "items", Reason: "cart is empty"}
	}

	addr, err := q.resolveAddress(ctx, clean)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, &domain.ValidationError{Field: "cep", Reason: "not found"}
		}
		return nil, err
	}

	totalCents := int64(0)
	for _, it := range items {
		totalCents += domain.Centavos(it.Meters * it.PricePerMeter)
	}

	result := &QuoteResult{
		CEP:        clean,
		Address:    *addr,
		ItemsTotal: domain.FromCentavos(totalCents),
	}

	if q.carrier != nil {
		options, err := q.carrier.Calculate(ctx, clean, items)
		if err == nil && len(options) > 0 {
			result.Provider = "melhorenvio"
			result.Options = options
			return result, nil
		}
		if err != nil {
			slog.WarnContext(ctx, "carrier quote failed, using regional fallback", "cep", clean, "error", err)
		}
	}

	result.Provider = "fallback"
	result.Options = regionalOptions(addr.State, addr.City)
	return result, nil
}

func (q *Quoter) resolveAddress(ctx context.Context, cep string) (*domain.Address, error) {
	var key string
	if q.quotes != nil {
		key = q.quotes.GenerateKey("address", cep)
		if raw, err := q.quotes.Get(ctx, key); err == nil && raw != "" {
			var addr domain.Address
			if json.Unmarshal([]byte(raw), &addr) == nil {
				return &addr, nil
			}
		}
	}

	addr, err := q.lookup.Resolve(ctx, cep)
	if err != nil {
		return nil, err
	}

	if q.quotes != nil {
		if raw, err := json.Marshal(addr); err == nil {
			if err := q.quotes.Set(ctx, key, string(raw), addressCacheTTL); err != nil {
				slog.WarnContext(ctx, "address cache write failed", "cep", cep, "error", err)
			}
		}
	}
	return addr, nil
}

// CleanCEP strips everything that is not a digit and truncates to the 8
// digits of a Brazilian postal code.
func CleanCEP(cep string) string {
	var b strings.Builder
	for _, r := range cep {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			if b.Len() == 8 {
				break
			}
		}
	}
	return b.String()
}

// regionalOptions is the static price table used when the carrier is
// unreachable or unconfigured: SP capital, SP interior, southeast/south, and
// everywhere else.
func regionalOptions(uf, city string) []ports.ShippingOption {
	type rates struct {
		pac, express         float64
		pacDays, expressDays [2]int
	}

	UF := strings.ToUpper(strings.TrimSpace(uf))
	CITY := strings.ToLower(city)

	var r rates
	switch {
	case UF == "SP" && (strings.Contains(CITY, "são paulo") || strings.Contains(CITY, "sao paulo")):
		r = rates{pac: 14.9, express: 24.9, pacDays: [2]int{2, 4}, expressDays: [2]int{1, 2}}
	case UF == "SP":
		r = rates{pac: 19.9, express: 29.9, pacDays: [2]int{3, 5}, expressDays: [2]int{2, 3}}
	case UF == "RJ", UF == "MG", UF == "ES", UF == "PR", UF == "SC", UF == "RS":
		r = rates{pac: 29.9, express: 39.9, pacDays: [2]int{4, 7}, expressDays: [2]int{2, 4}}
	default:
		r = rates{pac: 39.9, express: 59.9, pacDays: [2]int{6, 10}, expressDays: [2]int{3, 6}}
	}

	return []ports.ShippingOption{
		{ID: "pac", Label: "Entrega econômica", Price: r.pac, DaysMin: r.pacDays[0], DaysMax: r.pacDays[1]},
		{ID: "expresso", Label: "Entrega expressa", Price: r.express, DaysMin: r.expressDays[0], DaysMax: r.expressDays[1]},
	}
}
