// Package viacep implements ports.AddressLookup against the public ViaCEP
// postal code API.
package viacep

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ramostecidos/storefront/internal/core/domain"
)

const defaultBaseURL = "https://viacep.com.br"

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, baseURL: defaultBaseURL}
}

// WithBaseURL overrides the API host, for tests.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

type lookupResponse struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	// ViaCEP answers 200 with {"erro": true} for unknown postal codes.
	Erro bool `json:"erro"`
}

func (c *Client) Resolve(ctx context.Context, cep string) (*domain.Address, error) {
	url := fmt.Sprintf("%s/ws/%s/json/", c.baseURL, cep)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("viacep: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Service: "viacep", Op: "resolve", Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return nil, &domain.NotFoundError{Entity: "cep", ID: cep}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.UpstreamError{
			Service:   "viacep",
			Op:        "resolve",
			Transient: resp.StatusCode >= 500,
			Err:       fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &domain.UpstreamError{Service: "viacep", Op: "resolve", Err: fmt.Errorf("decode response: %w", err)}
	}
	if body.Erro {
		return nil, &domain.NotFoundError{Entity: "cep", ID: cep}
	}

	return &domain.Address{
		CEP:      body.CEP,
		Street:   body.Logradouro,
		District: body.Bairro,
		City:     body.Localidade,
		State:    body.UF,
	}, nil
}
