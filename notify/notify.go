// ABOUTME: Outgoing email delivery for reminders and operator notifications
// ABOUTME: SMTP delivery via go-mail, plus a log-only notifier for dry runs
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/harperreed/leadsync/apperr"
)

// Notifier sends a plain-text email.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

// SMTPNotifier delivers mail through an SMTP server.
type SMTPNotifier struct {
	cfg SMTPConfig
}

// NewSMTPNotifier creates an SMTP notifier.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.FromEmail == "" {
		return nil, errors.New("smtp from address is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPNotifier{cfg: cfg}, nil
}

// Send delivers one message. Failures are NotificationErrors.
func (n *SMTPNotifier) Send(ctx context.Context, to, subject, body string) error {
	msg, err := n.message(to, subject, body)
	if err != nil {
		return apperr.Notification("compose", err)
	}

	opts := []gomail.Option{
		gomail.WithPort(n.cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(n.cfg.Timeout),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(n.cfg.Username),
			gomail.WithPassword(n.cfg.Password),
		)
	}

	client, err := gomail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return apperr.Notification("smtp client", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return apperr.Notification("smtp send", err)
	}
	return nil
}

func (n *SMTPNotifier) message(to, subject, body string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if n.cfg.FromName != "" {
		if err := msg.FromFormat(n.cfg.FromName, n.cfg.FromEmail); err != nil {
			return nil, fmt.Errorf("smtp from: %w", err)
		}
	} else if err := msg.From(n.cfg.FromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	return msg, nil
}

// LogNotifier logs messages instead of sending them.
type LogNotifier struct {
	Logger *slog.Logger
}

// Send logs the message.
func (n LogNotifier) Send(_ context.Context, to, subject, body string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email not sent (log only)", "to", to, "subject", subject, "bytes", len(body))
	return nil
}
