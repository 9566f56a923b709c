package httpx

import (
	"time"

	"github.com/ramostecidos/storefront/internal/core/domain"
	"github.com/ramostecidos/storefront/internal/core/ports"
)

type CustomerDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type OrderItemDTO struct {
	ProductID     string  `json:"product_id,omitempty"`
	ProductName   string  `json:"product_name"`
	Meters        float64 `json:"meters"`
	PricePerMeter float64 `json:"price_per_meter"`
}

type CreateOrderRequest struct {
	Customer        CustomerDTO    `json:"customer"`
	Items           []OrderItemDTO `json:"items"`
	ShippingAddress domain.Address `json:"shipping_address"`
	ShippingPrice   float64        `json:"shipping_price"`
	ShippingMethod  string         `json:"shipping_method"`
}

type CreateOrderResponse struct {
	OrderID    string  `json:"order_id"`
	TotalPrice float64 `json:"total_price"`
}

type CreatePixResponse struct {
	OK           bool   `json:"ok"`
	OrderID      string `json:"order_id"`
	PaymentID    string `json:"payment_id"`
	QRCodeBase64 string `json:"qr_code_base64"`
	QRCode       string `json:"qr_code"`
	Status       string `json:"status"`
}

type QuoteRequest struct {
	CEP   string         `json:"cep"`
	Items []QuoteItemDTO `json:"items"`
}

type QuoteItemDTO struct {
	Name          string  `json:"name"`
	Meters        float64 `json:"meters"`
	PricePerMeter float64 `json:"price_per_meter"`
}

type ShipOrderResponse struct {
	Success      bool   `json:"success"`
	TrackingCode string `json:"tracking_code"`
	LabelURL     string `json:"label_url"`
}

type OrderResponse struct {
	ID              string         `json:"id"`
	Status          string         `json:"status"`
	CustomerName    string         `json:"customer_name"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone"`
	Items           []OrderItemDTO `json:"items,omitempty"`
	TotalPrice      float64        `json:"total_price"`
	ShippingAddress domain.Address `json:"shipping_address"`
	ShippingPrice   float64        `json:"shipping_price"`
	ShippingMethod  string         `json:"shipping_method"`
	PaymentID       string         `json:"payment_id,omitempty"`
	GatewayStatus   string         `json:"gateway_status,omitempty"`
	TrackingCode    string         `json:"tracking_code,omitempty"`
	LabelURL        string         `json:"label_url,omitempty"`
	ShippedAt       *time.Time     `json:"shipped_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapOrderToResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID:     it.ProductID,
			ProductName:   it.ProductName,
			Meters:        it.Meters,
			PricePerMeter: it.PricePerMeter,
		})
	}
	return OrderResponse{
		ID:              o.ID,
		Status:          string(o.Status),
		CustomerName:    o.CustomerName,
		Email:           o.Email,
		Phone:           o.Phone,
		Items:           items,
		TotalPrice:      o.TotalPrice,
		ShippingAddress: o.ShippingAddress,
		ShippingPrice:   o.ShippingPrice,
		ShippingMethod:  o.ShippingMethod,
		PaymentID:       o.PaymentReference,
		GatewayStatus:   o.PaymentStatusRaw,
		TrackingCode:    o.TrackingCode,
		LabelURL:        o.LabelURL,
		ShippedAt:       o.ShippedAt,
		CreatedAt:       o.CreatedAt,
	}
}

func mapQuoteItems(items []QuoteItemDTO) []ports.QuoteItem {
	out := make([]ports.QuoteItem, 0, len(items))
	for _, it := range items {
		out = append(out, ports.QuoteItem{
			Name:          it.Name,
			Meters:        it.Meters,
			PricePerMeter: it.PricePerMeter,
		})
	}
	return out
}
