// Package mail delivers the welcome notification sent when an account
// is created. Delivery is best-effort: callers dispatch it
// asynchronously and failures are logged, never escalated.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"userboard/internal/config"
)

// Mailer sends account notifications.
type Mailer interface {
	// SendWelcome sends the welcome message for a newly created account.
	SendWelcome(ctx context.Context, email, name string) error
}

// New selects a mailer for the given configuration. A fully configured
// SMTP transport is used when available; otherwise messages go to a
// log-only transport so unconfigured environments still work.
func New(cfg config.SMTPConfig) Mailer {
	if cfg.Host != "" && cfg.User != "" && cfg.Password != "" {
		return &SMTPMailer{cfg: cfg}
	}
	return &LogMailer{From: cfg.From}
}

// SMTPMailer delivers mail over plain-auth SMTP.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// SendWelcome sends the welcome message to the given address.
func (m *SMTPMailer) SendWelcome(ctx context.Context, email, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	msg := welcomeMessage(m.cfg.From, email, name)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{email}, msg); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	return nil
}

// welcomeMessage builds the full RFC 822 message for the welcome mail.
func welcomeMessage(from, to, name string) []byte {
	body := fmt.Sprintf(
		"<h1>Welcome %s!</h1>\r\n"+
			"<p>Your account has been created successfully.</p>\r\n"+
			"<p>You can now access the admin dashboard.</p>\r\n",
		name,
	)

	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Welcome to Admin Dashboard\r\n"+
			"MIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		from, to, body,
	)

	return []byte(msg)
}
