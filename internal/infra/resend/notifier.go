// Package resend implements ports.Notifier over the Resend transactional
// email API. Templates mirror the storefront's Portuguese customer emails.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/ramostecidos/storefront/internal/core/domain"
)

const defaultBaseURL = "https://api.resend.com"

type Notifier struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	from       string
}

func New(httpClient *http.Client, apiKey, from string) *Notifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Notifier{
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		from:       from,
	}
}

// WithBaseURL overrides the API host, for tests.
func (n *Notifier) WithBaseURL(u string) *Notifier {
	n.baseURL = u
	return n
}

func (n *Notifier) SendOrderPaid(ctx context.Context, o *domain.Order) error {
	var items strings.Builder
	for _, it := range o.Items {
		fmt.Fprintf(&items,
			"<tr><td>%s</td><td align=\"center\">%.1f m</td><td align=\"right\">R$ %.2f</td></tr>",
			html.EscapeString(it.ProductName), it.Meters, it.Subtotal())
	}

	body := fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: auto;">
  <h2>Olá, %s!</h2>
  <p>Recebemos o pagamento do seu pedido.</p>
  <p><strong>Número do pedido:</strong> %s</p>
  <h3>Itens do pedido</h3>
  <table width="100%%" cellpadding="8" cellspacing="0" border="1" style="border-collapse: collapse;">
    <tbody>%s</tbody>
  </table>
  <p><strong>Frete:</strong> %s – R$ %.2f</p>
  <h3>Total pago: R$ %.2f</h3>
  <p>Você vai receber o código de rastreio por e-mail assim que o envio for postado.</p>
  <p>Obrigado por comprar na <strong>Ramos Tecidos</strong>!</p>
</div>`,
		html.EscapeString(o.CustomerName), o.ID, items.String(),
		html.EscapeString(o.ShippingMethod), o.ShippingPrice, o.TotalPrice)

	return n.send(ctx, o.Email, fmt.Sprintf("Pedido confirmado — %s", o.ID), body)
}

func (n *Notifier) SendOrderShipped(ctx context.Context, o *domain.Order) error {
	tracking := "<p>Assim que o rastreio estiver disponível, enviaremos aqui.</p>"
	if o.TrackingCode != "" {
		tracking = fmt.Sprintf("<p><strong>Código de rastreio:</strong> %s</p>", html.EscapeString(o.TrackingCode))
		if o.LabelURL != "" {
			tracking += fmt.Sprintf(`<p><a href="%s">Acompanhar envio</a></p>`, html.EscapeString(o.LabelURL))
		}
	}

	body := fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; line-height: 1.5">
  <h2>Seu pedido foi enviado</h2>
  <p>Olá, %s!</p>
  <p><strong>Pedido:</strong> %s</p>
  %s
  <p>Obrigado por comprar na <strong>Ramos Tecidos</strong>!</p>
</div>`,
		html.EscapeString(o.CustomerName), o.ID, tracking)

	return n.send(ctx, o.Email, fmt.Sprintf("Pedido enviado — %s", o.ID), body)
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (n *Notifier) send(ctx context.Context, to, subject, htmlBody string) error {
	raw, err := json.Marshal(sendRequest{From: n.from, To: to, Subject: subject, HTML: htmlBody})
	if err != nil {
		return fmt.Errorf("resend: marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/emails", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("resend: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return &domain.UpstreamError{Service: "resend", Op: "send email", Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &domain.UpstreamError{
			Service:   "resend",
			Op:        "send email",
			Transient: resp.StatusCode >= 500,
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, detail),
		}
	}
	return nil
}
