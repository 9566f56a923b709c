package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ramostecidos/storefront/internal/httpx/middlewares"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Post("/orders", h.CreateOrder)
	r.Post("/orders/{id}/pix", h.CreatePix)
	r.Get("/orders/{id}/status", h.OrderStatus)
	r.Post("/shipping/quote", h.QuoteShipping)
	r.Post("/webhooks/mercadopago", h.PaymentWebhook)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(h.requireAdmin)
		ar.Get("/orders", h.AdminListOrders)
		ar.Get("/orders/{id}", h.AdminGetOrder)
		ar.Post("/orders/{id}/ship", h.AdminShipOrder)
		ar.Post("/orders/{id}/cancel", h.AdminCancelOrder)
	})

	return r
}
