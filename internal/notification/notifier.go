// Package notification delivers owner-facing alerts raised by the
// automation engine. Delivery failures are the caller's choice to swallow;
// the engine treats notifications as best-effort.
package notification

import (
	"context"
	"fmt"

	"github.com/ganeshchavan786/vega-crm/platform/logger"

	mail "github.com/wneessen/go-mail"
)

// Message is one owner-facing alert.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier is the delivery port used by the engine.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// SMTPConfig carries mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// EmailNotifier delivers alerts over SMTP.
type EmailNotifier struct {
	client *mail.Client
	from   string
	log    *logger.Logger
}

// NewEmailNotifier builds an SMTP-backed notifier.
func NewEmailNotifier(cfg SMTPConfig, log *logger.Logger) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating mail client: %w", err)
	}
	return &EmailNotifier{client: client, from: cfg.From, log: log}, nil
}

// Notify sends one email.
func (n *EmailNotifier) Notify(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(n.from); err != nil {
		return fmt.Errorf("setting sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("setting recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	if err := n.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	n.log.Info("notification sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// Noop discards every notification. Used when SMTP is not configured and in
// tests.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(ctx context.Context, msg Message) error { return nil }
