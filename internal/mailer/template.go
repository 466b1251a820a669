package mailer

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/furever-shop/api/internal/domain"
	"github.com/furever-shop/api/internal/services"
)

var orderEmailTemplate = template.Must(template.New("order_email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>{{.Heading}}</h2>
  <p>Hi {{.RecipientName}},</p>
  <p>{{.Intro}}</p>
  <table cellpadding="6" cellspacing="0" border="0">
    {{range .Items}}
    <tr>
      <td>{{.Name}}</td>
      <td>x{{.Quantity}}</td>
      <td align="right">{{.Subtotal}}</td>
    </tr>
    {{end}}
    <tr>
      <td colspan="2"><strong>Total</strong></td>
      <td align="right"><strong>{{.Total}}</strong></td>
    </tr>
  </table>
  {{if .ShippingLines}}
  <p><strong>Shipping to:</strong><br>
  {{range .ShippingLines}}{{.}}<br>{{end}}
  </p>
  {{end}}
  <p>Order reference: <strong>#{{.ShortRef}}</strong></p>
  <p>Thanks for shopping with FurEver Pet Shop! 🐾</p>
</body>
</html>`))

var emailHeadings = map[domain.NotificationKind]struct {
	heading string
	intro   string
}{
	domain.NotificationOrderConfirmed: {
		heading: "Order Confirmed! 🛒",
		intro:   "We received your order and will start preparing it shortly.",
	},
	domain.NotificationOrderProcessing: {
		heading: "Order Update 📦",
		intro:   "Your order is being prepared for shipment.",
	},
	domain.NotificationOrderShipped: {
		heading: "Order Shipped! 🚚",
		intro:   "Your order is on its way.",
	},
	domain.NotificationOrderDelivered: {
		heading: "Order Delivered! 🎉",
		intro:   "Your order has been delivered. We hope your pet loves it!",
	},
	domain.NotificationOrderCanceled: {
		heading: "Order Canceled",
		intro:   "Your order has been canceled. If this was a mistake, just place it again.",
	},
}

type emailItem struct {
	Name     string
	Quantity int
	Subtotal string
}

type emailData struct {
	Heading       string
	Intro         string
	RecipientName string
	Items         []emailItem
	Total         string
	ShippingLines []string
	ShortRef      string
}

func (m *SMTPMailer) renderBody(email services.OrderEmail) (string, error) {
	copyText := emailHeadings[email.Kind]

	name := m.sanitizer.Sanitize(strings.TrimSpace(email.RecipientName))
	if name == "" {
		name = "there"
	}

	items := make([]emailItem, 0, len(email.Order.Items))
	for _, item := range email.Order.Items {
		items = append(items, emailItem{
			Name:     m.sanitizer.Sanitize(item.Name),
			Quantity: item.Quantity,
			Subtotal: m.FormatMoney(item.Subtotal()),
		})
	}

	var shipping []string
	for _, line := range []string{
		email.Order.ShippingAddress1,
		email.Order.ShippingAddress2,
		email.Order.City,
		email.Order.Zip,
		email.Order.Country,
	} {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			shipping = append(shipping, m.sanitizer.Sanitize(trimmed))
		}
	}

	data := emailData{
		Heading:       copyText.heading,
		Intro:         copyText.intro,
		RecipientName: name,
		Items:         items,
		Total:         m.FormatMoney(email.Order.TotalPrice),
		ShippingLines: shipping,
		ShortRef:      email.Order.ShortRef(),
	}

	var buf bytes.Buffer
	if err := orderEmailTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
