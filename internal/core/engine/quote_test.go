package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ramostecidos/storefront/internal/core/domain"
	"github.com/ramostecidos/storefront/internal/core/ports"
)

type fakeLookup struct {
	addr  *domain.Address
	err   error
	calls int
}

func (l *fakeLookup) Resolve(_ context.Context, cep string) (*domain.Address, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	cp := *l.addr
	cp.CEP = cep
	return &cp, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache { return &memCache{data: map[string]string{}} }

func (c *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *memCache) GenerateKey(operation, key string) string {
	return "test:" + operation + ":" + key
}

func spAddress() *domain.Address {
	return &domain.Address{
		Street:   "Av. Paulista",
		District: "Bela Vista",
		City:     "São Paulo",
		State:    "SP",
	}
}

func quoteItems() []ports.QuoteItem {
	return []ports.QuoteItem{{Name: "Tricoline Floral", Meters: 2, PricePerMeter: 19.90}}
}

func TestQuoteValidatesCEP(t *testing.T) {
	q := NewQuoter(&fakeLookup{addr: spAddress()}, nil, nil)

	for _, cep := range []string{"", "123", "abcdefgh", "0131010"} {
		_, err := q.Quote(context.Background(), cep, quoteItems())
		var ve *domain.ValidationError
		if !errors.As(err, &ve) || ve.Field != "cep" {
			t.Errorf("Quote(%q) err = %v, want cep ValidationError", cep, err)
		}
	}
}

func TestQuoteNormalizesCEP(t *testing.T) {
	lookup := &fakeLookup{addr: spAddress()}
	q := NewQuoter(lookup, nil, nil)

	res, err := q.Quote(context.Background(), "01310-100", quoteItems())
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if res.CEP != "01310100" {
		t.Fatalf("cep = %q, want digits only", res.CEP)
	}
}

func TestQuoteRejectsEmptyCart(t *testing.T) {
	q := NewQuoter(&fakeLookup{addr: spAddress()}, nil, nil)

	_, err := q.Quote(context.Background(), "01310100", nil)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "items" {
		t.Fatalf("err = %v, want items ValidationError", err)
	}
}

func TestQuoteUnknownCEP(t *testing.T) {
	lookup := &fakeLookup{err: &domain.NotFoundError{Entity: "cep", ID: "99999999"}}
	q := NewQuoter(lookup, nil, nil)

	_, err := q.Quote(context.Background(), "99999999", quoteItems())
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "cep" {
		t.Fatalf("err = %v, want cep ValidationError", err)
	}
}

func TestQuotePrefersCarrierRates(t *testing.T) {
	carrier := &fakeCarrier{options: []ports.ShippingOption{
		{ID: "1", Label: "PAC", Price: 21.30, DaysMin: 5, DaysMax: 5},
		{ID: "2", Label: "SEDEX", Price: 35.10, DaysMin: 2, DaysMax: 2},
	}}
	q := NewQuoter(&fakeLookup{addr: spAddress()}, carrier, nil)

	res, err := q.Quote(context.Background(), "01310100", quoteItems())
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if res.Provider != "melhorenvio" || len(res.Options) != 2 {
		t.Fatalf("result = %+v, want carrier rates", res)
	}
	if res.ItemsTotal != 39.80 {
		t.Fatalf("items total = %v, want 39.80", res.ItemsTotal)
	}
}

func TestQuoteFallsBackWhenCarrierFails(t *testing.T) {
	carrier := &fakeCarrier{calcErr: &domain.UpstreamError{Service: "melhorenvio", Op: "calculate", Transient: true, Err: errors.New("timeout")}}
	q := NewQuoter(&fakeLookup{addr: spAddress()}, carrier, nil)

	res, err := q.Quote(context.Background(), "01310100", quoteItems())
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if res.Provider != "fallback" {
		t.Fatalf("provider = %q, want fallback", res.Provider)
	}
	if len(res.Options) != 2 || res.Options[0].Price != 14.9 {
		t.Fatalf("options = %+v, want SP capital table", res.Options)
	}
}

func TestQuoteFallsBackWhenCarrierReturnsNothing(t *testing.T) {
	q := NewQuoter(&fakeLookup{addr: spAddress()}, &fakeCarrier{}, nil)

	res, err := q.Quote(context.Background(), "01310100", quoteItems())
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if res.Provider != "fallback" {
		t.Fatalf("provider = %q, want fallback", res.Provider)
	}
}

func TestQuoteRegionalTable(t *testing.T) {
	cases := []struct {
		name           string
		city, uf       string
		pac, express   float64
		pacMin, pacMax int
	}{
		{"sp capital", "São Paulo", "SP", 14.9, 24.9, 2, 4},
		{"sp capital unaccented", "Sao Paulo", "SP", 14.9, 24.9, 2, 4},
		{"sp interior", "Campinas", "SP", 19.9, 29.9, 3, 5},
		{"rio", "Rio de Janeiro", "RJ", 29.9, 39.9, 4, 7},
		{"minas", "Belo Horizonte", "MG", 29.9, 39.9, 4, 7},
		{"south", "Curitiba", "PR", 29.9, 39.9, 4, 7},
		{"north", "Manaus", "AM", 39.9, 59.9, 6, 10},
		{"northeast", "Salvador", "BA", 39.9, 59.9, 6, 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			addr := &domain.Address{City: tc.city, State: tc.uf, Street: "Rua A", District: "Centro"}
			q := NewQuoter(&fakeLookup{addr: addr}, nil, nil)

			res, err := q.Quote(context.Background(), "01310100", quoteItems())
			if err != nil {
				t.Fatalf("quote: %v", err)
			}
			if len(res.Options) != 2 {
				t.Fatalf("options = %d, want 2", len(res.Options))
			}
			pac, express := res.Options[0], res.Options[1]
			if pac.ID != "pac" || pac.Price != tc.pac || pac.DaysMin != tc.pacMin || pac.DaysMax != tc.pacMax {
				t.Fatalf("pac option = %+v", pac)
			}
			if express.ID != "expresso" || express.Price != tc.express {
				t.Fatalf("express option = %+v", express)
			}
			if pac.Label != "Entrega econômica" || express.Label != "Entrega expressa" {
				t.Fatalf("labels = %q/%q", pac.Label, express.Label)
			}
		})
	}
}

func TestQuoteCachesAddressLookups(t *testing.T) {
	lookup := &fakeLookup{addr: spAddress()}
	q := NewQuoter(lookup, nil, newMemCache())

	for i := 0; i < 3; i++ {
		if _, err := q.Quote(context.Background(), "01310100", quoteItems()); err != nil {
			t.Fatalf("quote %d: %v", i, err)
		}
	}
	if lookup.calls != 1 {
		t.Fatalf("lookup calls = %d, want 1 with warm cache", lookup.calls)
	}
}

func TestCleanCEP(t *testing.T) {
	cases := []struct{ in, want string }{
		{"01310-100", "01310100"},
		{" 01310100 ", "01310100"},
		{"cep: 01310100", "01310100"},
		{"013101001234", "01310100"},
		{"abc", ""},
	}
	for _, tc := range cases {
		if got := CleanCEP(tc.in); got != tc.want {
			t.Errorf("CleanCEP(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
