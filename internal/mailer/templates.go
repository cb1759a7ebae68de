package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"storefront/internal/notify"
)

var orderConfirmationTmpl = template.Must(template.New("order_confirmation").Parse(`<!doctype html>
<html>
<body style="font-family: Helvetica, Arial, sans-serif; color: #111;">
  <h2>Thank you for your order, {{.CustomerName}}!</h2>
  <p>Order <strong>{{.OrderNumber}}</strong> is confirmed and will ship to {{.ShippingTo}}.</p>
  <table cellpadding="6" style="border-collapse: collapse;">
    <tr><th align="left">Item</th><th align="right">Qty</th><th align="right">Price</th></tr>
    {{- range .Items}}
    <tr><td>{{.ProductName}}{{if .Shade}} ({{.Shade}}){{end}}</td><td align="right">{{.Quantity}}</td><td align="right">{{$.Currency}} {{.Price}}</td></tr>
    {{- end}}
  </table>
  <p>Subtotal: {{.Currency}} {{.Subtotal}}</p>
  {{- if .TaxSummary}}
  <p>Tax: {{.TaxSummary}}</p>
  {{- end}}
  <p><strong>Total: {{.Currency}} {{.Total}}</strong></p>
</body>
</html>
`))

// OrderConfirmation собирает письмо-подтверждение заказа.
func OrderConfirmation(msg notify.OrderConfirmed) (Email, error) {
	var buf bytes.Buffer
	if err := orderConfirmationTmpl.Execute(&buf, msg); err != nil {
		return Email{}, fmt.Errorf("ошибка рендера письма: %w", err)
	}
	return Email{
		To:      []string{msg.CustomerEmail},
		Subject: fmt.Sprintf("Order %s confirmed", msg.OrderNumber),
		HTML:    buf.String(),
		Text: fmt.Sprintf("Order %s confirmed. Total: %s %s", msg.OrderNumber, msg.Currency, msg.Total),
	}, nil
}
