package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/foodhub/internal/domain"
)

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<h2>Thanks for your order, {{.Name}}!</h2>
<p>Order <strong>{{.OrderID}}</strong> is paid and waiting for the restaurant.</p>
<table>
{{- range .Items}}
<tr><td>{{.Quantity}} x {{.Name}}</td><td>{{.Total}}</td></tr>
{{- end}}
</table>
<p>Total: <strong>{{.Total}}</strong></p>
<p>Delivering to {{.Address}}, {{.City}}</p>`))

var flaggedTemplate = template.Must(template.New("flagged").Parse(`<p>Payment failed after order <strong>{{.OrderID}}</strong> was created.</p>
<p>Checkout session: {{.SessionID}}</p>
<p>Reason: {{.Reason}}</p>
<p>The order was kept. Review it before the restaurant starts preparing.</p>`))

type confirmationLine struct {
	Name     string
	Quantity int
	Total    string
}

type confirmationView struct {
	Name    string
	OrderID string
	Items   []confirmationLine
	Total   string
	Address string
	City    string
}

// NotificationHandler turns order events into emails sent through the email
// service.
type NotificationHandler struct {
	emailServiceURL string
	currency        string
	opsEmail        string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL, currency, opsEmail string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: strings.TrimRight(emailServiceURL, "/"),
		currency:        currency,
		opsEmail:        opsEmail,
		httpClient:      client,
		logger:          logger,
	}
}

func (h *NotificationHandler) HandleOrderCreated(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "user_id", event.UserID)

	view := confirmationView{
		Name:    event.DeliveryDetails.Name,
		OrderID: event.OrderID,
		Total:   FormatAmount(event.TotalAmount, h.currency),
		Address: event.DeliveryDetails.Address,
		City:    event.DeliveryDetails.City,
	}
	for _, item := range event.Items {
		view.Items = append(view.Items, confirmationLine{
			Name:     item.Name,
			Quantity: item.Quantity,
			Total:    FormatAmount(item.Price*int64(item.Quantity), h.currency),
		})
	}

	var body bytes.Buffer
	if err := confirmationTemplate.Execute(&body, view); err != nil {
		return fmt.Errorf("render confirmation email: %w", err)
	}

	if err := h.sendEmail(ctx, event.DeliveryDetails.Email, "Your Food Hub order is confirmed", body.String()); err != nil {
		return fmt.Errorf("send confirmation email for order %s: %w", event.OrderID, err)
	}

	h.logger.Info("confirmation email sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) HandlePaymentFlagged(ctx context.Context, payload []byte) error {
	var event domain.PaymentFlaggedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal payment flagged event: %w", err)
	}

	if h.opsEmail == "" {
		h.logger.Warn("payment flagged but no ops email configured", "order_id", event.OrderID, "session_id", event.SessionID)
		return nil
	}

	var body bytes.Buffer
	if err := flaggedTemplate.Execute(&body, event); err != nil {
		return fmt.Errorf("render flagged email: %w", err)
	}

	if err := h.sendEmail(ctx, h.opsEmail, "Payment failed for order "+event.OrderID, body.String()); err != nil {
		return fmt.Errorf("send flagged email for order %s: %w", event.OrderID, err)
	}

	h.logger.Info("ops notified of failed payment", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) sendEmail(ctx context.Context, to, subject, html string) error {
	data, err := json.Marshal(map[string]string{
		"to":      to,
		"subject": subject,
		"html":    html,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}

// Stripe's zero-decimal currencies; amounts are already whole units.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true,
	"xpf": true,
}

// FormatAmount renders minor currency units, e.g. 64500 "inr" as "INR 645.00"
// and 1500 "jpy" as "JPY 1500".
func FormatAmount(minor int64, currency string) string {
	code := strings.ToUpper(currency)
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return fmt.Sprintf("%s %d", code, minor)
	}

	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s %s%d.%02d", code, sign, minor/100, minor%100)
}
