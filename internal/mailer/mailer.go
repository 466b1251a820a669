// Package mailer sends transactional order email over SMTP. Sending is best
// effort; the caller decides whether a failure matters.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	mail "github.com/wneessen/go-mail"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/furever-shop/api/internal/domain"
	"github.com/furever-shop/api/internal/platform/config"
	"github.com/furever-shop/api/internal/services"
)

const defaultFromName = "FurEver Pet Shop"

var subjects = map[domain.NotificationKind]string{
	domain.NotificationOrderConfirmed:  "Your FurEver order %s is confirmed",
	domain.NotificationOrderProcessing: "Your FurEver order %s is being prepared",
	domain.NotificationOrderShipped:    "Your FurEver order %s has shipped",
	domain.NotificationOrderDelivered:  "Your FurEver order %s was delivered",
	domain.NotificationOrderCanceled:   "Your FurEver order %s was canceled",
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPMailer renders and sends order email through an SMTP relay.
type SMTPMailer struct {
	client      sender
	fromName    string
	fromAddress string
	sanitizer   *bluemonday.Policy
	printer     *message.Printer
}

// Option adjusts SMTPMailer construction.
type Option func(*SMTPMailer)

// WithSender overrides the SMTP client, used by tests.
func WithSender(s sender) Option {
	return func(m *SMTPMailer) { m.client = s }
}

// New builds an SMTPMailer from the SMTP configuration.
func New(cfg config.SMTPConfig, opts ...Option) (*SMTPMailer, error) {
	if !cfg.Enabled() {
		return nil, errors.New("mailer requires smtp host and from address")
	}

	fromName := strings.TrimSpace(cfg.FromName)
	if fromName == "" {
		fromName = defaultFromName
	}

	m := &SMTPMailer{
		fromName:    fromName,
		fromAddress: strings.TrimSpace(cfg.FromAddress),
		sanitizer:   bluemonday.StrictPolicy(),
		printer:     message.NewPrinter(language.AmericanEnglish),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.client == nil {
		clientOpts := []mail.Option{
			mail.WithPort(cfg.Port),
			mail.WithTLSPolicy(mail.TLSOpportunistic),
		}
		if strings.TrimSpace(cfg.Username) != "" {
			clientOpts = append(clientOpts,
				mail.WithSMTPAuth(mail.SMTPAuthPlain),
				mail.WithUsername(cfg.Username),
				mail.WithPassword(cfg.Password),
			)
		}
		client, err := mail.NewClient(cfg.Host, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("smtp client: %w", err)
		}
		m.client = client
	}
	return m, nil
}

// SendOrderEmail renders the email for the notification kind and hands it to
// the SMTP relay.
func (m *SMTPMailer) SendOrderEmail(ctx context.Context, email services.OrderEmail) error {
	to := strings.TrimSpace(email.To)
	if to == "" {
		return errors.New("email recipient is required")
	}
	subjectFormat, ok := subjects[email.Kind]
	if !ok {
		return fmt.Errorf("no email template for kind %q", email.Kind)
	}

	body, err := m.renderBody(email)
	if err != nil {
		return fmt.Errorf("render email body: %w", err)
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.fromName, m.fromAddress); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(fmt.Sprintf(subjectFormat, "#"+email.Order.ShortRef()))
	msg.SetBodyString(mail.TypeTextHTML, body)

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// FormatMoney renders a cent amount as US dollars with locale-aware grouping.
func (m *SMTPMailer) FormatMoney(cents int64) string {
	return m.printer.Sprintf("$%.2f", float64(cents)/100)
}
