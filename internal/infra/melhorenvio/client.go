// Package melhorenvio implements ports.Carrier against the Melhor Envio
// shipping aggregator: rate calculation plus the cart → checkout → print →
// tracking shipment pipeline.
package melhorenvio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/ramostecidos/storefront/internal/core/domain"
	"github.com/ramostecidos/storefront/internal/core/ports"
)

const (
	productionBaseURL = "https://api.melhorenvio.com.br"
	sandboxBaseURL    = "https://sandbox.melhorenvio.com.br"
	userAgent         = "RamosTecidos/1.0"
)

// Packaging describes how fabric cuts are boxed for the rate calculator.
type Packaging struct {
	WeightPerMeterKG float64
	LengthCM         float64
	WidthCM          float64
	HeightCM         float64
}

// DefaultPackaging matches the store's standard fabric roll box.
var DefaultPackaging = Packaging{WeightPerMeterKG: 0.2, LengthCM: 30, WidthCM: 20, HeightCM: 5}

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	fromCEP    string
	packaging  Packaging
}

// New builds a carrier client. env selects the API host: "production" or
// anything else for the sandbox. fromCEP is the store's origin postal code.
func New(httpClient *http.Client, token, env, fromCEP string, pkg Packaging) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := sandboxBaseURL
	if strings.EqualFold(env, "production") {
		base = productionBaseURL
	}
	if pkg == (Packaging{}) {
		pkg = DefaultPackaging
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    base,
		token:      token,
		fromCEP:    fromCEP,
		packaging:  pkg,
	}
}

// WithBaseURL overrides the API host, for tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// flexFloat decodes the API's number-or-quoted-number price fields.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("melhorenvio: parse number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

type postalCode struct {
	PostalCode string `json:"postal_code"`
}

type calculateProduct struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Quantity     int     `json:"quantity"`
	UnitaryValue float64 `json:"unitary_value"`
	Weight       float64 `json:"weight"`
	Length       float64 `json:"length"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
}

type calculateRequest struct {
	From     postalCode         `json:"from"`
	To       postalCode         `json:"to"`
	Products []calculateProduct `json:"products"`
}

type calculateQuote struct {
	ID           json.Number `json:"id"`
	Name         string      `json:"name"`
	Price        flexFloat   `json:"price"`
	DeliveryTime int         `json:"delivery_time"`
	Company      struct {
		Name string `json:"name"`
	} `json:"company"`
	Error string `json:"error"`
}

func (c *Client) Calculate(ctx context.Context, toCEP string, items []ports.QuoteItem) ([]ports.ShippingOption, error) {
	products := make([]calculateProduct, 0, len(items))
	for i, it := range items {
		name := it.Name
		if name == "" {
			name = "Produto"
		}
		value := domain.FromCentavos(domain.Centavos(it.Meters * it.PricePerMeter))
		products = append(products, calculateProduct{
			ID:           strconv.Itoa(i + 1),
			Name:         name,
			Quantity:     1,
			UnitaryValue: value,
			Weight:       math.Max(0.01, round2(it.Meters*c.packaging.WeightPerMeterKG)),
			Length:       c.packaging.LengthCM,
			Width:        c.packaging.WidthCM,
			Height:       c.packaging.HeightCM,
		})
	}

	var quotes []calculateQuote
	err := c.post(ctx, "/api/v2/me/shipment/calculate", calculateRequest{
		From:     postalCode{PostalCode: c.fromCEP},
		To:       postalCode{PostalCode: toCEP},
		Products: products,
	}, &quotes)
	if err != nil {
		return nil, err
	}

	options := make([]ports.ShippingOption, 0, len(quotes))
	for _, q := range quotes {
		// Services that cannot reach the destination come back with an
		// error field and no price.
		if q.Error != "" || q.Price <= 0 || q.DeliveryTime <= 0 {
			continue
		}
		company := q.Company.Name
		if company == "" {
			company = "Transportadora"
		}
		options = append(options, ports.ShippingOption{
			ID:      q.ID.String(),
			Label:   fmt.Sprintf("%s - %s", company, q.Name),
			Price:   float64(q.Price),
			DaysMin: q.DeliveryTime,
			DaysMax: q.DeliveryTime,
		})
	}
	return options, nil
}

type cartProduct struct {
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	UnitaryValue float64 `json:"unitary_value"`
}

type cartRequest struct {
	Service  string        `json:"service"`
	From     postalCode    `json:"from"`
	To       postalCode    `json:"to"`
	Products []cartProduct `json:"products"`
}

func (c *Client) CreateCart(ctx context.Context, req ports.ShipmentRequest) (string, error) {
	products := make([]cartProduct, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, cartProduct{
			Name:         p.Name,
			Quantity:     p.Meters,
			UnitaryValue: p.Value,
		})
	}

	var resp struct {
		ID json.Number `json:"id"`
	}
	err := c.post(ctx, "/api/v2/me/cart", cartRequest{
		Service:  req.Service,
		From:     postalCode{PostalCode: c.fromCEP},
		To:       postalCode{PostalCode: req.ToCEP},
		Products: products,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.ID.String() == "" {
		return "", &domain.UpstreamError{Service: "melhorenvio", Op: "create cart", Err: fmt.Errorf("response carried no shipment id")}
	}
	return resp.ID.String(), nil
}

func (c *Client) Checkout(ctx context.Context, shipmentID string) error {
	body := map[string]any{
		"shipments": []map[string]string{{"id": shipmentID}},
	}
	var resp json.RawMessage
	return c.post(ctx, "/api/v2/me/shipment/checkout", body, &resp)
}

func (c *Client) PrintLabel(ctx context.Context, shipmentID string) (string, error) {
	body := map[string]any{
		"shipments": []string{shipmentID},
	}
	var resp struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/api/v2/me/shipment/print", body, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", &domain.UpstreamError{Service: "melhorenvio", Op: "print label", Err: fmt.Errorf("response carried no label url")}
	}
	return resp.URL, nil
}

func (c *Client) Tracking(ctx context.Context, shipmentID string) (string, error) {
	var resp struct {
		Tracking string `json:"tracking"`
	}
	if err := c.get(ctx, "/api/v2/me/shipment/tracking/"+shipmentID, &resp); err != nil {
		return "", err
	}
	if resp.Tracking == "" {
		return "", &domain.UpstreamError{Service: "melhorenvio", Op: "tracking", Err: fmt.Errorf("response carried no tracking code")}
	}
	return resp.Tracking, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("melhorenvio: marshal %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("melhorenvio: build request: %w", err)
	}
	return c.do(req, path, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("melhorenvio: build request: %w", err)
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.UpstreamError{Service: "melhorenvio", Op: op, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.UpstreamError{Service: "melhorenvio", Op: op, Transient: true, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := apiErrorMessage(raw)
		return &domain.UpstreamError{
			Service:   "melhorenvio",
			Op:        op,
			Transient: resp.StatusCode >= 500,
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, msg),
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.UpstreamError{Service: "melhorenvio", Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func apiErrorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		return body.Message
	}
	if len(raw) > 256 {
		raw = raw[:256]
	}
	return string(raw)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
