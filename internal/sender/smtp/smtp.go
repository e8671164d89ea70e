// Package smtp delivers emails through an SMTP relay using gomail.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/utafrali/folio/internal/sender"
)

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// InsecureSkipVerify disables certificate checks. Only for local relays
	// such as MailHog.
	InsecureSkipVerify bool
}

// dialer is the part of *gomail.Dialer the sender needs.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Sender sends plain-text emails.
type Sender struct {
	cfg    Config
	dialer dialer
	logger *slog.Logger
}

// New creates an SMTP sender. A new connection is opened for every message.
func New(cfg Config, logger *slog.Logger) *Sender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.InsecureSkipVerify {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for local relays
	}
	return newWithDialer(cfg, d, logger)
}

func newWithDialer(cfg Config, d dialer, logger *slog.Logger) *Sender {
	return &Sender{cfg: cfg, dialer: d, logger: logger}
}

// Name returns the name of this sender.
func (s *Sender) Name() string {
	return "smtp"
}

// Send delivers msg. gomail has no context support, so ctx is only checked
// before dialing.
func (s *Sender) Send(ctx context.Context, msg *sender.Message) error {
	if msg.To == "" {
		return fmt.Errorf("smtp: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	if s.cfg.FromName != "" {
		m.SetAddressHeader("From", s.cfg.From, s.cfg.FromName)
	} else {
		m.SetHeader("From", s.cfg.From)
	}
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}

	s.logger.DebugContext(ctx, "email sent",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}
