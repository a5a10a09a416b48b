// internal/pkg/email/service.go
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/your-org/storefront/internal/config"
)

// EmailService handles all email operations. Callers treat sends as
// best-effort: a failed send is logged by the caller and never fails the
// surrounding business operation.
type EmailService struct {
	config    *config.Config
	templates map[string]*template.Template
	client    *http.Client
}

// NewEmailService creates a new email service
func NewEmailService(cfg *config.Config) *EmailService {
	service := &EmailService{
		config:    cfg,
		templates: make(map[string]*template.Template),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	service.templates["order_confirmation"] = template.Must(
		template.New("order_confirmation").Parse(orderConfirmationTemplate))
	service.templates["order_shipped"] = template.Must(
		template.New("order_shipped").Parse(orderShippedTemplate))

	return service
}

// SendEmail sends an email using the configured provider
func (s *EmailService) SendEmail(ctx context.Context, email *Email) error {
	switch s.config.Email.Provider {
	case "smtp":
		return s.sendSMTP(email)
	case "api":
		return s.sendAPI(ctx, email)
	default:
		return fmt.Errorf("unsupported email provider: %s", s.config.Email.Provider)
	}
}

// SendOrderConfirmation sends the order confirmation email
func (s *EmailService) SendOrderConfirmation(ctx context.Context, data OrderConfirmationData) error {
	data.StoreName = s.config.Email.FromName

	htmlContent, err := s.renderTemplate("order_confirmation", data)
	if err != nil {
		return fmt.Errorf("failed to render order confirmation template: %w", err)
	}

	return s.SendEmail(ctx, &Email{
		To:          []string{data.GuestEmail},
		Subject:     fmt.Sprintf("Your order %s is confirmed", data.OrderNumber),
		HTMLContent: htmlContent,
	})
}

// SendOrderShipped sends the shipped notification email
func (s *EmailService) SendOrderShipped(ctx context.Context, data OrderShippedData) error {
	data.StoreName = s.config.Email.FromName

	htmlContent, err := s.renderTemplate("order_shipped", data)
	if err != nil {
		return fmt.Errorf("failed to render order shipped template: %w", err)
	}

	return s.SendEmail(ctx, &Email{
		To:          []string{data.GuestEmail},
		Subject:     fmt.Sprintf("Your order %s has shipped", data.OrderNumber),
		HTMLContent: htmlContent,
	})
}

func (s *EmailService) renderTemplate(name string, data interface{}) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("template %q not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *EmailService) sendSMTP(email *Email) error {
	cfg := s.config.Email
	addr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)

	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
		"To":           strings.Join(email.To, ", "),
		"Subject":      email.Subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
	}

	var msg bytes.Buffer
	for k, v := range headers {
		fmt.Fprintf(&msg, "%s: %s\r\n", k, v)
	}
	msg.WriteString("\r\n")
	msg.WriteString(email.HTMLContent)

	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	}

	if err := smtp.SendMail(addr, auth, cfg.FromEmail, email.To, msg.Bytes()); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}

func (s *EmailService) sendAPI(ctx context.Context, email *Email) error {
	cfg := s.config.Email

	payload, err := json.Marshal(map[string]interface{}{
		"from":    fmt.Sprintf("%s <%s>", cfg.FromName, cfg.FromEmail),
		"to":      email.To,
		"subject": email.Subject,
		"html":    email.HTMLContent,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}
	return nil
}

const orderConfirmationTemplate = `
<html>
<body>
	<h2>Thank you for your order, {{.GuestName}}!</h2>
	<p>Your order <strong>{{.OrderNumber}}</strong> has been received.</p>
	<table>
		<tr><th align="left">Item</th><th align="left">Qty</th><th align="left">Total</th></tr>
		{{range .Items}}
		<tr><td>{{.Name}}{{if .Color}} ({{.Color}}){{end}}</td><td>{{.Quantity}}</td><td>{{.LineTotal}}</td></tr>
		{{end}}
	</table>
	<p>Subtotal: {{.Subtotal}}</p>
	{{if .DiscountAmount}}<p>Discount: -{{.DiscountAmount}}</p>{{end}}
	<p>Shipping: {{.ShippingCost}}</p>
	<p><strong>Total: {{.Total}}</strong></p>
	<p>Payment method: {{.PaymentMethod}}</p>
	<p>{{.StoreName}}</p>
</body>
</html>`

const orderShippedTemplate = `
<html>
<body>
	<h2>Good news, {{.GuestName}}!</h2>
	<p>Your order <strong>{{.OrderNumber}}</strong> was shipped on {{.ShippedDate}}.</p>
	<p>{{.StoreName}}</p>
</body>
</html>`
